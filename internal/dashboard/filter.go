// Package dashboard builds the views served by the HTTP API and the export
// commands from a pipeline result: selection filters, the canton table,
// charts, the choropleth map and its markers.
package dashboard

import (
	"sort"

	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

// Selector sentinels meaning "no filter".
const (
	AllProvinces = "(Todas)"
	AllCantons   = "(Todos)"
)

// Selection is a province and canton filter. Empty fields select everything.
type Selection struct {
	Province string
	Canton   string
}

// NewSelection canonicalizes user input. The "(Todas)"/"(Todos)" sentinels
// and empty strings select everything.
func NewSelection(province, canton string) Selection {
	s := Selection{
		Province: normalize.CanonicalName(province),
		Canton:   normalize.CanonicalName(canton),
	}
	if s.Province == AllProvinces {
		s.Province = ""
	}
	if s.Canton == AllCantons {
		s.Canton = ""
	}
	return s
}

// All reports whether the selection filters nothing.
func (s Selection) All() bool {
	return s.Province == "" && s.Canton == ""
}

// Provinces returns the sorted distinct non-empty province names.
func Provinces(districts []model.District) []string {
	return distinct(districts, func(d model.District) (string, bool) {
		return d.Province, true
	})
}

// Cantons returns the sorted distinct canton names, limited to province
// unless it is empty or the "(Todas)" sentinel.
func Cantons(districts []model.District, province string) []string {
	sel := NewSelection(province, "")
	return distinct(districts, func(d model.District) (string, bool) {
		return d.Name, sel.Province == "" || d.Province == sel.Province
	})
}

func distinct(districts []model.District, key func(model.District) (string, bool)) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, d := range districts {
		k, ok := key(d)
		if !ok || k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FilterDistricts returns the districts matching sel, in input order.
func FilterDistricts(districts []model.District, sel Selection) []model.District {
	out := make([]model.District, 0, len(districts))
	for _, d := range districts {
		if sel.Province != "" && d.Province != sel.Province {
			continue
		}
		if sel.Canton != "" && d.Name != sel.Canton {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterFacilities selects facilities by their address locality. A province
// selection keeps facilities whose locality names a canton of that
// province; a canton selection keeps facilities whose locality equals the
// canton. Facilities without a locality only appear when nothing is
// selected.
func FilterFacilities(facilities []model.Facility, districts []model.District, sel Selection) []model.Facility {
	if sel.All() {
		return append([]model.Facility(nil), facilities...)
	}

	var inProvince map[string]bool
	if sel.Province != "" {
		inProvince = make(map[string]bool)
		for _, d := range districts {
			if d.Province == sel.Province {
				inProvince[d.Name] = true
			}
		}
	}

	out := make([]model.Facility, 0, len(facilities))
	for _, f := range facilities {
		if inProvince != nil && !inProvince[f.City] {
			continue
		}
		if sel.Canton != "" && f.City != sel.Canton {
			continue
		}
		out = append(out, f)
	}
	return out
}

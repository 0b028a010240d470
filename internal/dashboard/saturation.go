package dashboard

import (
	"fmt"
	"sort"

	"github.com/gyeh/cantonhealth/internal/model"
)

// Saturation threshold bounds, in inhabitants per hospital.
const (
	DefaultThreshold = 10000
	MinThreshold     = 1000
	MaxThreshold     = 1000000
)

// ValidateThreshold checks a saturation threshold against the allowed range.
func ValidateThreshold(t float64) error {
	if t < MinThreshold || t > MaxThreshold {
		return fmt.Errorf("saturation threshold %v out of range [%d, %d]", t, MinThreshold, MaxThreshold)
	}
	return nil
}

// SaturatedRow is a canton whose ratio meets the saturation threshold.
type SaturatedRow struct {
	Province    string  `json:"PROVINCIA"`
	Canton      string  `json:"CANTON"`
	Population  int64   `json:"POB_2015"`
	Hospitals   int64   `json:"TOTAL_HOSPITALES"`
	PerHospital float64 `json:"HAB_POR_HOSP"`
}

// Saturated returns cantons with a defined ratio at or above threshold,
// highest ratio first.
func Saturated(districts []model.District, threshold float64) []SaturatedRow {
	out := []SaturatedRow{}
	for _, d := range districts {
		r, ok := d.Ratio()
		if !ok || r < threshold {
			continue
		}
		out = append(out, SaturatedRow{
			Province:    d.Province,
			Canton:      d.Name,
			Population:  d.Population,
			Hospitals:   d.FacilityCount,
			PerHospital: r,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerHospital > out[j].PerHospital
	})
	return out
}

package normalize

import (
	"sort"

	"github.com/gyeh/cantonhealth/internal/model"
)

// AliasTable maps alternate source column names to canonical names.
type AliasTable map[string]string

// PopulationAliases normalizes census exports.
var PopulationAliases = AliasTable{
	"NOM_CANT":              model.ColCanton,
	"NOM_PROV":              model.ColProvince,
	"PoblaciónEstimada2015": model.ColPopulation,
}

// BoundaryAliases normalizes canton boundary exports.
var BoundaryAliases = AliasTable{
	"CÓDIGO":               model.ColCode,
	"CÓDIGO_CANTÓN":        model.ColCantonCode,
	"CANTÓN":               model.ColCanton,
	"CÓDIGO_DE_PROVINCIA ": model.ColProvinceCode,
}

// FacilityAliases normalizes facility exports.
var FacilityAliases = AliasTable{
	"addr:city": model.ColFacilityCity,
}

// AliasesFor returns the alias table for a layer name.
func AliasesFor(layer string) AliasTable {
	switch layer {
	case model.LayerPopulation:
		return PopulationAliases
	case model.LayerBoundaries:
		return BoundaryAliases
	case model.LayerFacilities:
		return FacilityAliases
	}
	return nil
}

// Resolve returns the canonical name for column, or ok=false when the table
// has no alias for it. Keys match exactly first, then on NFC form.
func (t AliasTable) Resolve(column string) (string, bool) {
	if to, ok := t[column]; ok {
		return to, true
	}
	folded := FoldKey(column)
	for from, to := range t {
		if FoldKey(from) == folded {
			return to, true
		}
	}
	return "", false
}

// Renames computes the renames that apply to the given columns, keyed by
// source column. Aliases whose source column is absent are skipped.
func (t AliasTable) Renames(columns []string) map[string]string {
	out := make(map[string]string)
	for _, c := range columns {
		if to, ok := t.Resolve(c); ok && to != c {
			out[c] = to
		}
	}
	return out
}

// Apply returns a copy of props with renames applied. A renamed column
// replaces any existing column of the canonical name.
func Apply(props map[string]any, renames map[string]string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if _, renamed := renames[k]; renamed {
			continue
		}
		out[k] = v
	}
	for from, to := range renames {
		if v, ok := props[from]; ok {
			out[to] = v
		}
	}
	return out
}

// RenameColumns applies renames to a column list, preserving order and
// dropping duplicates created by the rename.
func RenameColumns(columns []string, renames map[string]string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if to, ok := renames[c]; ok {
			c = to
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SortedKeys returns the keys of a rename map in sorted order.
func SortedKeys(renames map[string]string) []string {
	keys := make([]string, 0, len(renames))
	for k := range renames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

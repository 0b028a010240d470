package model

// Canonical attribute names after alias normalization.
const (
	ColCanton        = "CANTON"
	ColProvince      = "PROVINCIA"
	ColCode          = "CODIGO"
	ColCantonCode    = "CODIGO_CANTON"
	ColProvinceCode  = "CODIGO_DE_PROVINCIA"
	ColPopulation    = "POB_2015"
	ColCategory      = "#meta+healthcare"
	ColFacilityName  = "#loc +name"
	ColFacilityAlt   = "name"
	ColFacilityCity  = "addr_city"
	FacilityNameNone = "Hospital"
)

// Derived column names, matching the dashboard's table keys.
const (
	ColFacilityCount = "TOTAL_HOSPITALES"
	ColArea          = "area_km2"
	ColDensity       = "densidad"
	ColRatio         = "HAB_POR_HOSP"
)

// Layer names.
const (
	LayerPopulation = "population"
	LayerFacilities = "facilities"
	LayerBoundaries = "boundaries"
)

// LayerSpec describes one of the three input layers.
type LayerSpec struct {
	Name string
	// Required lists canonical columns the layer is expected to carry after
	// aliasing. Absence is tolerated and only logged.
	Required []string
}

// AllLayers lists the input layers in load order.
var AllLayers = []LayerSpec{
	{Name: LayerPopulation, Required: []string{ColCanton, ColPopulation}},
	{Name: LayerFacilities, Required: []string{ColCategory}},
	{Name: LayerBoundaries, Required: []string{ColCanton, ColProvince}},
}

// LayerByName returns the LayerSpec for the given name, or ok=false.
func LayerByName(name string) (LayerSpec, bool) {
	for _, l := range AllLayers {
		if l.Name == name {
			return l, true
		}
	}
	return LayerSpec{}, false
}

// LayerNames returns the names of all input layers.
func LayerNames() []string {
	names := make([]string, len(AllLayers))
	for i, l := range AllLayers {
		names[i] = l.Name
	}
	return names
}

package dashboard

import (
	"sort"

	"github.com/gyeh/cantonhealth/internal/model"
)

// PressureTopN is the number of cantons in the pressure chart.
const PressureTopN = 10

// Bar is one bar of a chart.
type Bar struct {
	Canton   string  `json:"canton"`
	Province string  `json:"province"`
	Value    float64 `json:"value"`
}

// Chart is a bar chart description for the front end.
type Chart struct {
	Title         string `json:"title"`
	ValueLabel    string `json:"value_label"`
	CategoryLabel string `json:"category_label"`
	Horizontal    bool   `json:"horizontal"`
	ColorScale    string `json:"color_scale"`
	Bars          []Bar  `json:"bars"`
}

// HospitalsChart counts hospitals per canton, optionally within one
// province, sorted by count descending.
func HospitalsChart(districts []model.District, province string) Chart {
	sel := NewSelection(province, "")
	title := "Hospitales por cantón"
	if sel.Province != "" {
		title += " en " + sel.Province
	}
	bars := []Bar{}
	for _, d := range FilterDistricts(districts, sel) {
		bars = append(bars, Bar{Canton: d.Name, Province: d.Province, Value: float64(d.FacilityCount)})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })
	return Chart{
		Title:         title,
		ValueLabel:    "Hospitales",
		CategoryLabel: "Cantón",
		ColorScale:    "Blues",
		Bars:          bars,
	}
}

// PressureChart lists the cantons with the most inhabitants per hospital,
// optionally within one province. Cantons without a ratio are skipped.
func PressureChart(districts []model.District, province string) Chart {
	sel := NewSelection(province, "")
	bars := []Bar{}
	for _, d := range FilterDistricts(districts, sel) {
		if r, ok := d.Ratio(); ok {
			bars = append(bars, Bar{Canton: d.Name, Province: d.Province, Value: r})
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })
	if len(bars) > PressureTopN {
		bars = bars[:PressureTopN]
	}
	return Chart{
		Title:         "Top 10 cantones con más habitantes por hospital",
		ValueLabel:    "Habitantes por hospital",
		CategoryLabel: "Cantón",
		Horizontal:    true,
		ColorScale:    "OrRd",
		Bars:          bars,
	}
}

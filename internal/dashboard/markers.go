package dashboard

import (
	"github.com/gyeh/cantonhealth/internal/model"
)

// Marker is a facility pin on the map.
type Marker struct {
	Name  string  `json:"name"`
	City  string  `json:"city"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// Markers places each facility at its representative point. Facilities
// without one are skipped.
func Markers(facilities []model.Facility) []Marker {
	out := make([]Marker, 0, len(facilities))
	for _, f := range facilities {
		if !f.HasPoint() {
			continue
		}
		out = append(out, Marker{
			Name:  f.Name,
			City:  f.City,
			Lat:   f.Point[1],
			Lon:   f.Point[0],
			Popup: f.Name + " - " + f.City,
		})
	}
	return out
}

package dashboard

import (
	"github.com/gyeh/cantonhealth/internal/model"
)

// Summary holds the dashboard footer totals.
type Summary struct {
	Districts       int   `json:"districts"`
	TotalHospitals  int64 `json:"total_hospitals"`
	TotalPopulation int64 `json:"total_population"`
}

// Summarize totals hospitals and population over districts. Sums stay in
// int64 so large populations are exact.
func Summarize(districts []model.District) Summary {
	s := Summary{Districts: len(districts)}
	for _, d := range districts {
		s.TotalHospitals += d.FacilityCount
		s.TotalPopulation += d.Population
	}
	return s
}

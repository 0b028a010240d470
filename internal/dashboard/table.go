package dashboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/gyeh/cantonhealth/internal/model"
)

// CSVFileName is the download name for the filtered table.
const CSVFileName = "datos_cantones_filtrados.csv"

// Missing is rendered in place of an undefined ratio.
const Missing = "N/A"

// TableHeaders are the display names of the table columns, in order.
var TableHeaders = []string{
	"Provincia",
	"Cantón",
	"Población (2015)",
	"Área (km²)",
	"Densidad poblacional",
	"Total de hospitales",
	"Habitantes por hospital",
}

// Row is one canton in the dashboard table.
type Row struct {
	Province    string   `json:"PROVINCIA"`
	Canton      string   `json:"CANTON"`
	Population  int64    `json:"POB_2015"`
	AreaKm2     float64  `json:"area_km2"`
	Density     float64  `json:"densidad"`
	Hospitals   int64    `json:"TOTAL_HOSPITALES"`
	PerHospital *float64 `json:"HAB_POR_HOSP"`
}

// Table converts districts to rows sorted by population, largest first.
// Ties keep input order.
func Table(districts []model.District) []Row {
	rows := make([]Row, len(districts))
	for i, d := range districts {
		rows[i] = Row{
			Province:    d.Province,
			Canton:      d.Name,
			Population:  d.Population,
			AreaKm2:     d.AreaKm2,
			Density:     d.Density,
			Hospitals:   d.FacilityCount,
			PerHospital: d.PopulationPerFacility,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Population > rows[j].Population
	})
	return rows
}

// Display returns the row formatted for people, with "N/A" for an
// undefined ratio.
func (r Row) Display() []string {
	ratio := Missing
	if r.PerHospital != nil {
		ratio = fmt.Sprintf("%.1f", *r.PerHospital)
	}
	return []string{
		r.Province,
		r.Canton,
		strconv.FormatInt(r.Population, 10),
		fmt.Sprintf("%.2f", r.AreaKm2),
		fmt.Sprintf("%.2f", r.Density),
		strconv.FormatInt(r.Hospitals, 10),
		ratio,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes rows with the display headers. Numbers keep full
// precision and an undefined ratio is an empty cell.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TableHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		ratio := ""
		if r.PerHospital != nil {
			ratio = formatFloat(*r.PerHospital)
		}
		record := []string{
			r.Province,
			r.Canton,
			strconv.FormatInt(r.Population, 10),
			formatFloat(r.AreaKm2),
			formatFloat(r.Density),
			strconv.FormatInt(r.Hospitals, 10),
			ratio,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

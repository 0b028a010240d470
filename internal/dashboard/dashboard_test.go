package dashboard

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	geom "github.com/twpayne/go-geom"

	"github.com/gyeh/cantonhealth/internal/model"
)

func ratio(v float64) *float64 { return &v }

func square(x0, y0 float64) geom.T {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x0, y0}, {x0 + 0.1, y0}, {x0 + 0.1, y0 + 0.1}, {x0, y0 + 0.1}, {x0, y0},
	}})
}

func fixtureDistricts() []model.District {
	return []model.District{
		{Name: "Alfa", Province: "San José", Geometry: square(0, 0), Population: 1000, FacilityCount: 2, AreaKm2: 10, Density: 100, PopulationPerFacility: ratio(500)},
		{Name: "Beta", Province: "San José", Geometry: square(1, 0), Population: 2000, AreaKm2: 20, Density: 100},
		{Name: "Gamma", Province: "Alajuela", Geometry: square(2, 0), AreaKm2: 5},
		{Name: "Delta", Province: "Alajuela", Geometry: square(3, 0), Population: 60000, FacilityCount: 3, AreaKm2: 30, Density: 2000, PopulationPerFacility: ratio(20000)},
		{Name: "Épsilon", Province: "Cartago", Geometry: square(4, 0), Population: 12000, FacilityCount: 1, AreaKm2: 12, Density: 1000, PopulationPerFacility: ratio(12000)},
	}
}

func fixtureFacilities() []model.Facility {
	return []model.Facility{
		{Index: 0, Name: "Hospital Alfa", City: "Alfa", Point: geom.Coord{0.05, 0.05}},
		{Index: 1, Name: "Clínica", City: "Delta", Point: geom.Coord{3.05, 0.05}},
		{Index: 2, Name: "Hospital", City: "", Point: geom.Coord{9, 9}},
		{Index: 3, Name: "Sin punto", City: "Beta"},
	}
}

func TestSelection(t *testing.T) {
	if s := NewSelection(AllProvinces, AllCantons); !s.All() {
		t.Errorf("sentinels should select all: %+v", s)
	}
	if s := NewSelection("  San  José ", ""); s.Province != "San José" || s.All() {
		t.Errorf("province not canonicalized: %+v", s)
	}
}

func TestProvincesAndCantons(t *testing.T) {
	ds := append(fixtureDistricts(), model.District{Name: "Sin provincia"})
	if got, want := Provinces(ds), []string{"Alajuela", "Cartago", "San José"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Provinces = %v, want %v", got, want)
	}
	if got, want := Cantons(ds, "Alajuela"), []string{"Delta", "Gamma"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Cantons(Alajuela) = %v, want %v", got, want)
	}
	if got := Cantons(ds, AllProvinces); len(got) != 6 {
		t.Errorf("Cantons(all) = %v", got)
	}
}

func TestFilterDistricts(t *testing.T) {
	ds := fixtureDistricts()
	if got := FilterDistricts(ds, NewSelection("San José", "")); len(got) != 2 {
		t.Errorf("province filter = %d rows", len(got))
	}
	if got := FilterDistricts(ds, NewSelection("San José", "Delta")); len(got) != 0 {
		t.Errorf("canton outside province should match nothing, got %d", len(got))
	}
	if got := FilterDistricts(ds, NewSelection("", "Delta")); len(got) != 1 || got[0].Name != "Delta" {
		t.Errorf("canton filter = %+v", got)
	}
	if got := FilterDistricts(ds, Selection{}); len(got) != len(ds) {
		t.Errorf("empty selection should keep all")
	}
}

func TestFilterFacilities(t *testing.T) {
	ds, fs := fixtureDistricts(), fixtureFacilities()
	names := func(fs []model.Facility) []string {
		out := []string{}
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}
	if got := FilterFacilities(fs, ds, Selection{}); len(got) != 4 {
		t.Errorf("all = %v", names(got))
	}
	if got, want := names(FilterFacilities(fs, ds, NewSelection("Alajuela", ""))), []string{"Clínica"}; !reflect.DeepEqual(got, want) {
		t.Errorf("province = %v, want %v", got, want)
	}
	if got, want := names(FilterFacilities(fs, ds, NewSelection("", "Alfa"))), []string{"Hospital Alfa"}; !reflect.DeepEqual(got, want) {
		t.Errorf("canton = %v, want %v", got, want)
	}
}

func TestTable(t *testing.T) {
	rows := Table(fixtureDistricts())
	order := []string{}
	for _, r := range rows {
		order = append(order, r.Canton)
	}
	if want := []string{"Delta", "Épsilon", "Beta", "Alfa", "Gamma"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	beta := rows[2].Display()
	if beta[6] != Missing {
		t.Errorf("missing ratio rendered %q", beta[6])
	}
	if alfa := rows[3].Display(); alfa[6] != "500.0" || alfa[3] != "10.00" {
		t.Errorf("alfa display = %v", alfa)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Table(fixtureDistricts())); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("records = %d, want 6", len(records))
	}
	if !reflect.DeepEqual(records[0], TableHeaders) {
		t.Errorf("header = %v", records[0])
	}
	if got := records[1]; got[1] != "Delta" || got[2] != "60000" || got[6] != "20000" {
		t.Errorf("first row = %v", got)
	}
	if got := records[3][6]; got != "" {
		t.Errorf("undefined ratio should be empty, got %q", got)
	}
}

func TestWritePDF(t *testing.T) {
	ds := fixtureDistricts()
	var buf bytes.Buffer
	if err := WritePDF(&buf, "Cantones de San José", Table(ds), Summarize(ds)); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", buf.Bytes()[:8])
	}
}

func TestSaturated(t *testing.T) {
	got := Saturated(fixtureDistricts(), DefaultThreshold)
	if len(got) != 2 || got[0].Canton != "Delta" || got[1].Canton != "Épsilon" {
		t.Errorf("saturated = %+v", got)
	}
	if got := Saturated(fixtureDistricts(), MaxThreshold); len(got) != 0 {
		t.Errorf("expected none above max, got %+v", got)
	}
	for _, bad := range []float64{999, 1000001} {
		if ValidateThreshold(bad) == nil {
			t.Errorf("ValidateThreshold(%v) should fail", bad)
		}
	}
	if err := ValidateThreshold(DefaultThreshold); err != nil {
		t.Error(err)
	}
}

func TestCharts(t *testing.T) {
	ds := fixtureDistricts()
	h := HospitalsChart(ds, "")
	if len(h.Bars) != 5 || h.Bars[0].Canton != "Delta" || h.Bars[0].Value != 3 {
		t.Errorf("hospitals chart = %+v", h.Bars)
	}
	if h := HospitalsChart(ds, "Alajuela"); len(h.Bars) != 2 || !strings.HasSuffix(h.Title, "en Alajuela") {
		t.Errorf("province chart = %+v", h)
	}

	p := PressureChart(ds, AllProvinces)
	if len(p.Bars) != 3 || p.Bars[0].Value != 20000 || p.Bars[2].Value != 500 {
		t.Errorf("pressure chart = %+v", p.Bars)
	}

	many := []model.District{}
	for i := 0; i < 15; i++ {
		many = append(many, model.District{Name: string(rune('A' + i)), PopulationPerFacility: ratio(float64(i))})
	}
	if p := PressureChart(many, ""); len(p.Bars) != PressureTopN || p.Bars[0].Value != 14 {
		t.Errorf("top-n = %d bars, first %v", len(p.Bars), p.Bars[0])
	}
}

func TestBreaksAndClass(t *testing.T) {
	values := []float64{6, 1, 5, 2, 4, 3}
	breaks := Breaks(values)
	if len(breaks) != Classes-1 {
		t.Fatalf("breaks = %v", breaks)
	}
	for i := 1; i < len(breaks); i++ {
		if breaks[i] < breaks[i-1] {
			t.Errorf("breaks not monotonic: %v", breaks)
		}
	}
	if Class(0, breaks) != 0 || Class(100, breaks) != Classes-1 {
		t.Errorf("class bounds wrong for %v", breaks)
	}
	if got := Breaks(nil); len(got) != 0 {
		t.Errorf("Breaks(nil) = %v", got)
	}
}

func TestBuildMap(t *testing.T) {
	v, err := VariableByColumn(model.ColRatio)
	if err != nil {
		t.Fatal(err)
	}
	p, err := PaletteByName("Viridis")
	if err != nil {
		t.Fatal(err)
	}
	view := BuildMap(fixtureDistricts(), fixtureFacilities(), v, p, DefaultThreshold)

	if n := len(view.Districts.Features); n != 3 {
		t.Errorf("choropleth features = %d, want 3 (undefined ratios dropped)", n)
	}
	for _, f := range view.Districts.Features {
		fill, _ := f.Properties["fill"].(string)
		class, _ := f.Properties["class"].(int)
		if fill != p.Colors[class] {
			t.Errorf("%v: fill %q does not match class %d", f.Properties[model.ColCanton], fill, class)
		}
	}
	if n := len(view.Saturated.Features); n != 2 {
		t.Errorf("saturated outlines = %d, want 2", n)
	}
	if n := len(view.Markers); n != 3 {
		t.Errorf("markers = %d, want 3", n)
	}
	if m := view.Markers[0]; m.Lat != 0.05 || m.Lon != 0.05 || m.Popup != "Hospital Alfa - Alfa" {
		t.Errorf("marker = %+v", m)
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"type":"FeatureCollection"`)) {
		t.Errorf("map payload lacks feature collection: %s", raw[:120])
	}

	pop, _ := VariableByColumn(model.ColPopulation)
	if view := BuildMap(fixtureDistricts(), nil, pop, p, DefaultThreshold); len(view.Districts.Features) != 5 {
		t.Errorf("population map should keep all districts, got %d", len(view.Districts.Features))
	}

	if _, err := VariableByColumn("POB_2011"); err == nil {
		t.Error("expected unknown variable error")
	}
	if _, err := PaletteByName("Rainbow"); err == nil {
		t.Error("expected unknown palette error")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixtureDistricts())
	if s.TotalHospitals != 6 || s.TotalPopulation != 75000 || s.Districts != 5 {
		t.Errorf("summary = %+v", s)
	}

	// Beyond float64's exact integer range.
	big := []model.District{{Name: "A", Population: 1<<53 + 1}, {Name: "B", Population: 2}}
	if got := Summarize(big).TotalPopulation; got != 1<<53+3 {
		t.Errorf("total population = %d, want %d", got, int64(1<<53+3))
	}
}

func TestDistrictFeatures(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGeoJSON(&buf, DistrictFeatures(fixtureDistricts())); err != nil {
		t.Fatalf("WriteGeoJSON: %v", err)
	}
	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "FeatureCollection" || len(decoded.Features) != 5 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if v, ok := decoded.Features[1].Properties[model.ColRatio]; !ok || v != nil {
		t.Errorf("undefined ratio should encode as null, got %v", v)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CSVFileName)

	if err := WriteFile(path, func(w io.Writer) error {
		return WriteCSV(w, Table(fixtureDistricts()))
	}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	good, err := os.ReadFile(path)
	if err != nil || len(good) == 0 {
		t.Fatalf("csv not written: %q %v", good, err)
	}

	// A failing writer leaves the earlier export intact and no temp files.
	failed := errors.New("disk full")
	err = WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "Cantón,Prov")
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("expected write error, got %v", err)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(after, good) {
		t.Error("failed export clobbered the existing file")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("leftover files after failed export: %v", entries)
	}

	fresh := filepath.Join(dir, "nuevo.pdf")
	_ = WriteFile(fresh, func(io.Writer) error { return failed })
	if _, err := os.Stat(fresh); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed export left a partial file")
	}
}

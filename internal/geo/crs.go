// Package geo holds the coordinate reference handling and planar geometry
// predicates used by the canton pipeline.
package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

// Well-known coordinate reference systems.
const (
	WGS84       = "EPSG:4326"
	CRS84       = "OGC:CRS84"
	CR05        = "EPSG:5365"
	CRSIRGAS    = "EPSG:8908"
	WebMercator = "EPSG:3857"
	CRTM05      = "EPSG:5367"
	CRSIRGASTM  = "EPSG:8910"
	EqualArea   = "EPSG:6933"
)

// registry extends the library's EPSG table with the Costa Rican grids and
// the equal-area grid used for areas.
var registry = func() *wgs84.Repository {
	r := wgs84.EPSG()
	r.Add(5367, crtm05())
	r.Add(8910, crtm05())
	r.Add(6933, easeGrid2())
	return r
}()

var epsgCode = regexp.MustCompile(`(?i)EPSG:{1,2}(?:[0-9.]*:)?(\d+)$`)

// ParseCRS normalizes a CRS identifier as found in GeoJSON "crs" members and
// GeoParquet metadata. An empty name means WGS84.
func ParseCRS(name string) (string, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return WGS84, nil
	}
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CRS84") {
		return CRS84, nil
	}
	if m := epsgCode.FindStringSubmatch(s); m != nil {
		return canonicalEPSG(m[1])
	}
	if _, err := strconv.Atoi(s); err == nil {
		return canonicalEPSG(s)
	}
	return "", fmt.Errorf("unrecognized crs %q", name)
}

func canonicalEPSG(code string) (string, error) {
	switch code {
	case "4326", "4979":
		return WGS84, nil
	case "3857", "900913", "3785", "102100":
		return WebMercator, nil
	case "5367":
		return CRTM05, nil
	case "6933":
		return EqualArea, nil
	}
	return "EPSG:" + code, nil
}

// ToWGS84 returns a coordinate function mapping crs to longitude/latitude.
// Geographic systems on WGS84-compatible datums map to a nil function.
func ToWGS84(crs string) (CoordFunc, error) {
	switch crs {
	case WGS84, CRS84, CR05, CRSIRGAS, "":
		return nil, nil
	}
	code, ok := strings.CutPrefix(crs, "EPSG:")
	if !ok {
		return nil, fmt.Errorf("unsupported source crs %s", crs)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, fmt.Errorf("unsupported source crs %s", crs)
	}
	from := registry.Code(n)
	if from == nil {
		return nil, fmt.Errorf("unsupported source crs %s", crs)
	}
	return coordFunc(wgs84.Transform(from, wgs84.LonLat())), nil
}

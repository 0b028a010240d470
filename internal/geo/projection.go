package geo

import (
	"math"

	"github.com/wroge/wgs84"
)

// CoordFunc maps one planar coordinate pair to another.
type CoordFunc func(x, y float64) (float64, float64)

func coordFunc(fn wgs84.Func) CoordFunc {
	return func(x, y float64) (float64, float64) {
		a, b, _ := fn(x, y, 0)
		return a, b
	}
}

// crtm05 is the Costa Rica transverse Mercator grid (CR05 / CRTM05 and
// CR-SIRGAS / CRTM05). Both datums agree with WGS84 at metre level.
func crtm05() wgs84.ProjectedReferenceSystem {
	crs := wgs84.WGS84().TransverseMercator(-84, 0, 0.9999, 500000, 0)
	crs.Area = wgs84.AreaFunc(func(lon, lat float64) bool {
		return lon >= -87.1 && lon <= -82.5 && lat >= 2.2 && lat <= 11.3
	})
	return crs
}

// easeGrid2 is EPSG:6933, the global EASE-Grid 2.0 equal-area grid.
func easeGrid2() wgs84.ProjectedReferenceSystem {
	return wgs84.ProjectedReferenceSystem{
		Datum:      wgs84.WGS84(),
		Projection: cylindricalEqualArea{lat1: 30},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			return math.Abs(lon) <= 180 && math.Abs(lat) <= 86
		}),
	}
}

// cylindricalEqualArea is the ellipsoidal Lambert cylindrical equal-area
// projection with standard parallels at ±lat1 (Snyder, USGS PP 1395, 10-15
// to 10-17).
type cylindricalEqualArea struct {
	lat1 float64
}

func ellipsoid(s wgs84.Spheroid) (a, e2 float64) {
	f := 1 / s.Fi()
	return s.A(), f * (2 - f)
}

func (p cylindricalEqualArea) k0(e2 float64) float64 {
	sin := math.Sin(rad(p.lat1))
	return math.Cos(rad(p.lat1)) / math.Sqrt(1-e2*sin*sin)
}

func authalicQ(sin, e2 float64) float64 {
	e := math.Sqrt(e2)
	return (1 - e2) * (sin/(1-e2*sin*sin) - (1/(2*e))*math.Log((1-e*sin)/(1+e*sin)))
}

func (p cylindricalEqualArea) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	a, e2 := ellipsoid(s)
	k0 := p.k0(e2)
	return a * k0 * rad(lon), a * authalicQ(math.Sin(rad(lat)), e2) / (2 * k0)
}

func (p cylindricalEqualArea) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	a, e2 := ellipsoid(s)
	e := math.Sqrt(e2)
	k0 := p.k0(e2)
	lon = deg(east / (a * k0))
	q := 2 * north * k0 / a
	if math.Abs(q) >= authalicQ(1, e2) {
		return lon, math.Copysign(90, q)
	}
	phi := math.Asin(q / 2)
	for i := 0; i < 10; i++ {
		sin, cos := math.Sin(phi), math.Cos(phi)
		den := 1 - e2*sin*sin
		step := den * den / (2 * cos) * (q/(1-e2) - sin/den +
			(1/(2*e))*math.Log((1-e*sin)/(1+e*sin)))
		phi += step
		if math.Abs(step) < 1e-12 {
			break
		}
	}
	return lon, deg(phi)
}

func deg(r float64) float64 { return r * 180 / math.Pi }
func rad(d float64) float64 { return d * math.Pi / 180 }

var (
	equalAreaForward = coordFunc(wgs84.LonLat().To(easeGrid2()))
	equalAreaInverse = coordFunc(easeGrid2().To(wgs84.LonLat()))
)

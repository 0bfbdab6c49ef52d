package geo

import (
	"fmt"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0088

const geohashPrecision = 7

type Validator struct {
	bounds Bounds
}

func NewValidator(bounds Bounds) *Validator {
	return &Validator{bounds: bounds}
}

// Validate returns p when it lies inside the supported bounding box and
// within the area's radius, nil otherwise.
func (v *Validator) Validate(p *Point, area Area) *Point {
	if ok, _ := v.Check(p, area); !ok {
		return nil
	}
	return p
}

// Check reports whether p is acceptable for area and, when it is not, why.
func (v *Validator) Check(p *Point, area Area) (bool, string) {
	if p == nil {
		return false, "no point"
	}
	if !p.IsFinite() {
		return false, "non-finite coordinate"
	}
	if !v.bounds.Contains(p.Lat, p.Lng) {
		return false, fmt.Sprintf("outside bounds (%.5f, %.5f)", p.Lat, p.Lng)
	}
	if area.Center != nil && area.RadiusKm > 0 {
		d := DistanceKm(*area.Center, *p)
		if d > area.RadiusKm {
			return false, fmt.Sprintf("%.1fkm from center, limit %.1fkm", d, area.RadiusKm)
		}
	}
	return true, ""
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lng)
	to := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return from.Distance(to).Radians() * earthRadiusKm
}

// Cell returns the geohash cell of a point, used by the map UI for clustering.
func Cell(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
}

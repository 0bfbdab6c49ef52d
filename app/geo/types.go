package geo

import (
	"math"
)

// Point is a resolved geographic coordinate. Address carries the provider's
// normalized address string for the point and is used for address back-fill.
type Point struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func NewPoint(lat, lng float64, address string) *Point {
	return &Point{Lat: lat, Lng: lng, Address: address}
}

func (p Point) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLng float64 `json:"min_lng" yaml:"min_lng"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLng float64 `json:"max_lng" yaml:"max_lng"`
}

// DefaultBounds covers the Kanto prefectures and their immediate neighbours.
var DefaultBounds = Bounds{
	MinLat: 34.8,
	MinLng: 138.3,
	MaxLat: 37.0,
	MaxLng: 140.9,
}

func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Area describes where a locale's events are expected to be. A nil Center
// or a zero RadiusKm disables the distance check.
type Area struct {
	Center   *Point
	RadiusKm float64
}

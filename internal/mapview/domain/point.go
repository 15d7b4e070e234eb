package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Point — географическая точка (широта, долгота)
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint проверяет диапазоны и возвращает точку
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Lat: lat, Lng: lng}
	return p, p.Validate()
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCoordinates)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidCoordinates)
	}
	return nil
}

// Equal — точное совпадение по обеим осям
func (p Point) Equal(o Point) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

// Orb возвращает точку в порядке GeoJSON/WKT: X = lng, Y = lat
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// PointFromOrb — обратное преобразование из (lng, lat)
func PointFromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lng: o.Lon()}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lat, p.Lng)
}

// SamePoint сравнивает две nullable точки
func SamePoint(a, b *Point) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Role — роль точки маршрута
type Role string

const (
	RoleStart Role = "start"
	RoleEnd   Role = "end"
)

// Roles — все роли в порядке отрисовки
var Roles = []Role{RoleStart, RoleEnd}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStart, RoleEnd:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Bounds — прямоугольник на карте
type Bounds struct {
	SouthWest Point `json:"southWest"`
	NorthEast Point `json:"northEast"`
}

// BoundsOf возвращает минимальный прямоугольник, содержащий точки
func BoundsOf(first Point, rest ...Point) Bounds {
	b := Bounds{SouthWest: first, NorthEast: first}
	for _, p := range rest {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b
}

// Pad расширяет прямоугольник на ratio от высоты/ширины с каждой стороны
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := math.Abs(b.NorthEast.Lat-b.SouthWest.Lat) * ratio
	dLng := math.Abs(b.NorthEast.Lng-b.SouthWest.Lng) * ratio
	return Bounds{
		SouthWest: Point{Lat: b.SouthWest.Lat - dLat, Lng: b.SouthWest.Lng - dLng},
		NorthEast: Point{Lat: b.NorthEast.Lat + dLat, Lng: b.NorthEast.Lng + dLng},
	}
}

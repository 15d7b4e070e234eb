package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// ============================================================================
// Геометрия: единый декодер для значений из БД
// ============================================================================
//
// БД отдает геометрию как hex EWKB (encode(ST_AsEWKB(g), 'hex')): только он
// сохраняет float64 без округления. Текстовые ST_AsGeoJSON / ST_AsText режут
// до 9 / 15 знаков, и точка после чтения перестает совпадать с поставленной.
// GeoJSON и WKT тоже принимаются. Любое значение проходит через
// DecodePoint / DecodePath, дальше по коду идут только Point / []Point.
//
// На запись — WKT с порядком (lng lat):
//   POINT(lng lat)
//   LINESTRING(lng lat, lng lat, ...)
// ============================================================================

// RouteGeometry — результат routing API
type RouteGeometry struct {
	Path     []Point `json:"path"`
	Distance float64 `json:"distance"` // метры
	Duration float64 `json:"duration"` // секунды
}

// DecodePoint разбирает GeoJSON Point или WKT POINT
func DecodePoint(raw string) (Point, error) {
	g, err := decodeGeometry(raw)
	if err != nil {
		return Point{}, err
	}
	op, ok := g.(orb.Point)
	if !ok {
		return Point{}, fmt.Errorf("%w: expected Point, got %s", ErrParse, g.GeoJSONType())
	}
	p := PointFromOrb(op)
	if err := p.Validate(); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return p, nil
}

// DecodePath разбирает GeoJSON LineString или WKT LINESTRING
func DecodePath(raw string) ([]Point, error) {
	g, err := decodeGeometry(raw)
	if err != nil {
		return nil, err
	}
	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: expected LineString, got %s", ErrParse, g.GeoJSONType())
	}
	path := make([]Point, 0, len(ls))
	for _, op := range ls {
		p := PointFromOrb(op)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		path = append(path, p)
	}
	return path, nil
}

func decodeGeometry(raw string) (orb.Geometry, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty geometry", ErrParse)
	}

	if strings.HasPrefix(s, "{") {
		g, err := geojson.UnmarshalGeometry([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if g.Coordinates == nil {
			return nil, fmt.Errorf("%w: geojson without coordinates", ErrParse)
		}
		return g.Coordinates, nil
	}

	if isHexWKB(s) {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		g, _, err := ewkb.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return g, nil
	}

	// EWKT: SRID=4326;POINT(...)
	if i := strings.Index(s, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		s = s[i+1:]
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return g, nil
}

// isHexWKB: первый байт WKB — порядок байт, 00 или 01
func isHexWKB(s string) bool {
	if len(s) < 10 || len(s)%2 != 0 {
		return false
	}
	return strings.HasPrefix(s, "00") || strings.HasPrefix(s, "01")
}

// EncodePointWKT — POINT(lng lat)
func EncodePointWKT(p Point) string {
	return wkt.MarshalString(p.Orb())
}

// EncodePathWKT — LINESTRING(...); ok == false, если вершин меньше двух
func EncodePathWKT(path []Point) (string, bool) {
	if len(path) < 2 {
		return "", false
	}
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, p.Orb())
	}
	return wkt.MarshalString(ls), true
}

// PointGeoJSON — GeoJSON Point для ответа клиенту
func PointGeoJSON(p Point) *geojson.Geometry {
	return geojson.NewGeometry(p.Orb())
}

// PathGeoJSON — GeoJSON LineString; nil для пустого пути
func PathGeoJSON(path []Point) *geojson.Geometry {
	if len(path) == 0 {
		return nil
	}
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, p.Orb())
	}
	return geojson.NewGeometry(ls)
}

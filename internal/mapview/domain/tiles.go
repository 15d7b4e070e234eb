package domain

import "fmt"

// TileLayer — источник тайлов
type TileLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

// DefaultTileLayer — слой, который включается при инициализации
const DefaultTileLayer = "GoogleMaps"

var tileLayers = []TileLayer{
	{
		Name:        "OpenStreetMap",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		MaxZoom:     19,
	},
	{
		Name:        "GoogleMaps",
		URL:         "https://mt1.google.com/vt/lyrs=m&x={x}&y={y}&z={z}",
		Attribution: "&copy; Google Maps",
		MaxZoom:     20,
	},
	{
		Name:        "CartoPositron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     19,
	},
	{
		Name:        "StamenTerrain",
		URL:         "https://tiles.stadiamaps.com/tiles/stamen_terrain/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; Stadia Maps &copy; Stamen Design &copy; OpenStreetMap contributors",
		MaxZoom:     18,
	},
	{
		Name:        "ArcGISWorldStreet",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Street_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
		MaxZoom:     19,
	},
}

// TileLayers возвращает копию каталога
func TileLayers() []TileLayer {
	out := make([]TileLayer, len(tileLayers))
	copy(out, tileLayers)
	return out
}

// TileLayerByName ищет слой по имени
func TileLayerByName(name string) (TileLayer, error) {
	for _, l := range tileLayers {
		if l.Name == name {
			return l, nil
		}
	}
	return TileLayer{}, fmt.Errorf("%w: unknown tile layer %q", ErrValidation, name)
}

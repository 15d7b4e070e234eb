package domain

// Значения viewport по умолчанию
const (
	DefaultZoom    = 14
	FocusZoom      = 16
	FitBoundsPad   = 0.2
	StorageKey     = "mapState"
	MaxSearchLimit = 10
)

// DefaultCenter — Маракайбо
var DefaultCenter = Point{Lat: 10.196805, Lng: -71.30903}

// LineStyle — стиль линии маршрута
type LineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

var RouteLineStyle = LineStyle{Color: "#1976D2", Weight: 4, Opacity: 0.7}

// MarkerColor — цвет иконки маркера по роли
func MarkerColor(r Role) string {
	if r == RoleEnd {
		return "red"
	}
	return "green"
}

// Viewport — центр и зум карты
type Viewport struct {
	Center Point `json:"center"`
	Zoom   int   `json:"zoom"`
}

// Phase — состояние карты с точки зрения маршрута
type Phase string

const (
	PhaseEmpty        Phase = "empty"
	PhaseLocationOnly Phase = "location_only"
	PhaseRoutePending Phase = "route_pending"
	PhaseRouteReady   Phase = "route_ready"
)

package in

// Типы команд, которые popup UI отправляет по WebSocket
const (
	CmdCreatePoint    = "create_point"
	CmdDeletePoint    = "delete_point"
	CmdReset          = "reset"
	CmdLocate         = "locate"
	CmdSearch         = "search"
	CmdMapClick       = "map_click"
	CmdSetTiles       = "set_tiles"
	CmdSelectLocation = "select_location"
	CmdSelectRoute    = "select_route"
)

// Command — команда канала popup'ов
type Command struct {
	Type  string  `json:"type"`
	Role  string  `json:"role,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
	Query string  `json:"query,omitempty"`
	Limit int     `json:"limit,omitempty"`
	Name  string  `json:"name,omitempty"`
	ID    string  `json:"id,omitempty"`
}

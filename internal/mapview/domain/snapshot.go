package domain

// Snapshot — сохраняемое состояние карты (ключ "mapState")
type Snapshot struct {
	StartPos        *Point         `json:"startPos"`
	EndPos          *Point         `json:"endPos"`
	CurrentLocation *SavedLocation `json:"currentLocation"`
	CurrentRoute    *SavedRoute    `json:"currentRoute"`
}

// IsEmpty — нечего восстанавливать
func (s *Snapshot) IsEmpty() bool {
	return s.StartPos == nil && s.EndPos == nil && s.CurrentLocation == nil && s.CurrentRoute == nil
}

// Endpoint возвращает точку по роли
func (s *Snapshot) Endpoint(r Role) *Point {
	if r == RoleEnd {
		return s.EndPos
	}
	return s.StartPos
}

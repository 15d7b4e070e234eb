package domain

// Place — результат геокодирования
type Place struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Point    Point  `json:"point"`
}

// MapEvent — событие для брокера после изменения коллекций
type MapEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name,omitempty"`
}

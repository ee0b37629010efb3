package domain

import "time"

// Vector3 is a point or Euler rotation in scene space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is the session-local avatar. It is persisted only inside a SaveGame.
type Player struct {
	ID                string  `json:"id"`
	Position          Vector3 `json:"position"`
	Rotation          Vector3 `json:"rotation"`
	IsMoving          bool    `json:"isMoving"`
	CurrentRoom       string  `json:"currentRoom"`
	InteractionTarget string  `json:"interactionTarget,omitempty"`
}

// InventoryItem is something the player carries.
type InventoryItem struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Quantity   int            `json:"quantity"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Notification is a player-visible message.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// UIState holds panel visibility and the notification queue.
type UIState struct {
	ShowLIMS                 bool           `json:"showLIMS"`
	ShowInventory            bool           `json:"showInventory"`
	ShowMissions             bool           `json:"showMissions"`
	ShowQRScanner            bool           `json:"showQRScanner"`
	ActiveEquipmentInterface string         `json:"activeEquipmentInterface,omitempty"`
	Notifications            []Notification `json:"notifications"`
	Error                    string         `json:"error,omitempty"`
}

// GameState is the persisted part of the session.
type GameState struct {
	Player        Player          `json:"player"`
	Inventory     []InventoryItem `json:"inventory"`
	CurrentSample *Sample         `json:"currentSample,omitempty"`
	UI            UIState         `json:"ui"`
}

// SaveGame is the snapshot stored at userGameData/{uid}.
type SaveGame struct {
	UserID     string      `json:"userId,omitempty"`
	Laboratory *Laboratory `json:"laboratory,omitempty"`
	Missions   []Mission   `json:"missions"`
	Samples    []Sample    `json:"samples"`
	Equipment  []Equipment `json:"equipment"`
	GameState  GameState   `json:"gameState"`
	LastSaved  time.Time   `json:"lastSaved,omitempty"`
}

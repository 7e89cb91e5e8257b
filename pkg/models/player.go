package models

import "time"

// Player represents a connected warehouse worker
type Player struct {
	// From JWT claims
	ID          string `json:"id"`          // Converted from int64 user_id
	Username    string `json:"username"`    // JWT claim
	Permissions int64  `json:"permissions"` // JWT claim: bitwise permission flags
	Activated   int64  `json:"activated"`   // JWT claim: activation timestamp or ban status

	// Connection state
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`

	// Shift the player is working in
	SessionID string `json:"session_id"`
}

// PermissionOperator allows a player to drive phase changes and purchases.
// Players without it may still move and deliver items.
const PermissionOperator int64 = 1 << 0

// IsActive checks if the player account is activated and not banned
func (p *Player) IsActive() bool {
	// activated > 0 means activated
	// activated == 0 means not activated
	// activated == -1 means banned
	return p.Activated > 0
}

// IsBanned checks if the player is banned
func (p *Player) IsBanned() bool {
	return p.Activated == -1
}

// IsOperator reports whether the player may run the shift controls.
func (p *Player) IsOperator() bool {
	return p.Permissions&PermissionOperator != 0
}

package network

import (
	"encoding/json"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// Message types - Client → Server
const (
	MsgTypeJoin          = "join"
	MsgTypeLeave         = "leave"
	MsgTypePing          = "ping"
	MsgTypeItemUpdate    = "item_update"
	MsgTypeScanSubmit    = "scan_submit"
	MsgTypeSkipRequest   = "skip_request"
	MsgTypeBuyUpgrade    = "buy_upgrade"
	MsgTypeOrderStock    = "order_stock"
	MsgTypeStartDelivery = "start_delivery"
	MsgTypeEndDelivery   = "end_delivery"
	MsgTypeResetProgress = "reset_progress"
	MsgTypeStatus        = "status"
)

// Message types - Server → Client
const (
	MsgTypeWelcome       = "welcome"
	MsgTypePlayerJoined  = "player_joined"
	MsgTypePlayerLeft    = "player_left"
	MsgTypePong          = "pong"
	MsgTypeShiftStatus   = "shift_status"
	MsgTypeResult        = "result"
	MsgTypeEvent         = "event"
	MsgTypeError         = "error"
	MsgTypeRequestText   = "request_text"
	MsgTypeIndicator     = "indicator"
	MsgTypeSkipButton    = "skip_button"
	MsgTypeMoney         = "money_notification"
	MsgTypeText          = "text_notification"
	MsgTypeSound         = "sound"
	MsgTypeItemSpawned   = "item_spawned"
	MsgTypeItemMoved     = "item_moved"
	MsgTypeItemEjected   = "item_ejected"
	MsgTypeItemDestroyed = "item_destroyed"
)

// Scan station indicators.
const (
	IndicatorScanning = "scanning"
	IndicatorAccepted = "accepted"
	IndicatorRejected = "rejected"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Client Message Payloads ---

// ItemUpdatePayload reports where a client sees an item
type ItemUpdatePayload struct {
	ItemID   string              `json:"item_id"`
	Position models.Vec3         `json:"position"`
	Held     bool                `json:"held"`
	Mode     models.DeliveryMode `json:"mode,omitempty"`
}

// StationPayload addresses one scan station; empty means the first
type StationPayload struct {
	StationID string `json:"station_id,omitempty"`
}

// ScanSubmitPayload hands an item to a scan station
type ScanSubmitPayload struct {
	StationID string `json:"station_id,omitempty"`
	ItemID    string `json:"item_id"`
}

// BuyUpgradePayload purchases the next level of an upgrade
type BuyUpgradePayload struct {
	UpgradeID string `json:"upgrade_id"`
}

// OrderLine is one row of a stock order
type OrderLine struct {
	Item     models.ItemType `json:"item"`
	Quantity int             `json:"quantity"`
}

// OrderStockPayload buys stock during the stocking phase
type OrderStockPayload struct {
	Lines []OrderLine `json:"lines"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID  string      `json:"player_id"`
	Username  string      `json:"username"`
	Operator  bool        `json:"operator"`
	SessionID string      `json:"session_id"`
	Status    interface{} `json:"status"`
}

// PlayerJoinedPayload notifies clients when a player joins
type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// PlayerLeftPayload notifies clients when a player leaves
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// ResultPayload answers a command
type ResultPayload struct {
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// EventPayload mirrors a gameplay event
type EventPayload struct {
	Kind    string          `json:"kind"`
	Phase   models.Phase    `json:"phase"`
	Item    models.ItemType `json:"item,omitempty"`
	Second  int             `json:"second,omitempty"`
	Amount  int             `json:"amount,omitempty"`
	Level   int             `json:"level,omitempty"`
	Upgrade string          `json:"upgrade,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
}

// StationTextPayload carries text for a station screen
type StationTextPayload struct {
	StationID string `json:"station_id"`
	Text      string `json:"text"`
}

// IndicatorPayload switches a station indicator on
type IndicatorPayload struct {
	StationID string `json:"station_id"`
	Indicator string `json:"indicator"`
}

// SkipButtonPayload shows or hides a station's skip button
type SkipButtonPayload struct {
	StationID string `json:"station_id"`
	Visible   bool   `json:"visible"`
}

// MoneyPayload is a floating +/- amount at a station
type MoneyPayload struct {
	StationID string `json:"station_id"`
	Amount    int    `json:"amount"`
}

// SoundPayload asks clients to play a cue at a position
type SoundPayload struct {
	Cue      string      `json:"cue"`
	Position models.Vec3 `json:"position"`
}

// ItemEjectedPayload carries the impulse applied to a rejected item
type ItemEjectedPayload struct {
	Item    interface{} `json:"item"`
	Impulse models.Vec3 `json:"impulse"`
}

// ItemDestroyedPayload names a removed item
type ItemDestroyedPayload struct {
	ItemID string `json:"item_id"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

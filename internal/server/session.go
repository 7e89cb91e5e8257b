package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/network"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// ErrSessionFull is returned when a player joins a full shift.
var ErrSessionFull = errors.New("session is full")

// Session represents the shift players are connected to. It is also the
// game's output: every cue the game produces is broadcast to its players.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[string]*models.Player // playerID -> Player
	connections map[string]*Connection    // playerID -> Connection
	mu          sync.RWMutex

	maxPlayers int
	logger     *slog.Logger
}

// SessionStatus represents the connection side of the shift
type SessionStatus struct {
	PlayerCount int   `json:"player_count"`
	MaxPlayers  int   `json:"max_players"`
	Uptime      int64 `json:"uptime"` // seconds
}

// NewSession creates a new session
func NewSession(id string, cfg *config.Config, logger *slog.Logger) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[string]*models.Player),
		connections: make(map[string]*Connection),
		maxPlayers:  cfg.Session.MaxPlayers,
		logger:      logging.OrDiscard(logger),
	}
}

// AddPlayer adds a player to the session. A player reconnecting replaces
// their previous connection.
func (s *Session) AddPlayer(player *models.Player, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[player.ID]; !exists && s.maxPlayers > 0 && len(s.players) >= s.maxPlayers {
		return ErrSessionFull
	}
	s.players[player.ID] = player
	s.connections[player.ID] = conn

	s.logger.Info("player joined", "player_id", player.ID, "username", player.Username, "session", s.ID)
	return nil
}

// RemovePlayer removes a player if conn is still their connection. It
// reports whether anything was removed.
func (s *Session) RemovePlayer(playerID string, conn *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.connections[playerID]; !ok || current != conn {
		return false
	}
	player := s.players[playerID]
	delete(s.players, playerID)
	delete(s.connections, playerID)
	s.logger.Info("player left", "player_id", playerID, "username", player.Username, "session", s.ID)
	return true
}

// GetPlayer retrieves a player by ID
func (s *Session) GetPlayer(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// GetPlayers returns all players in the session
func (s *Session) GetPlayers() []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*models.Player, 0, len(s.players))
	for _, player := range s.players {
		players = append(players, player)
	}
	return players
}

// GetStatus returns the current session status
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionStatus{
		PlayerCount: len(s.players),
		MaxPlayers:  s.maxPlayers,
		Uptime:      int64(time.Since(s.CreatedAt).Seconds()),
	}
}

// BroadcastMessage sends a message to all connected players
func (s *Session) BroadcastMessage(msg *network.ServerMessage) {
	s.BroadcastExcept(nil, msg)
}

// BroadcastExcept sends a message to all players except the specified connection
func (s *Session) BroadcastExcept(exclude *Connection, msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		if conn != exclude {
			conn.sendRaw(data)
		}
	}
}

func (s *Session) broadcast(msgType string, payload interface{}) {
	s.BroadcastMessage(&network.ServerMessage{Type: msgType, Payload: payload})
}

// Play broadcasts a sound cue.
func (s *Session) Play(cue sfx.Cue, at models.Vec3) {
	s.broadcast(network.MsgTypeSound, network.SoundPayload{Cue: string(cue), Position: at})
}

// ItemSpawned broadcasts a new item.
func (s *Session) ItemSpawned(item world.ItemView) {
	s.broadcast(network.MsgTypeItemSpawned, item)
}

// ItemMoved broadcasts an item's new state.
func (s *Session) ItemMoved(item world.ItemView) {
	s.broadcast(network.MsgTypeItemMoved, item)
}

// ItemEjected broadcasts a rejected item and the impulse to apply.
func (s *Session) ItemEjected(item world.ItemView, impulse models.Vec3) {
	s.broadcast(network.MsgTypeItemEjected, network.ItemEjectedPayload{Item: item, Impulse: impulse})
}

// ItemDestroyed broadcasts an item's removal.
func (s *Session) ItemDestroyed(id string) {
	s.broadcast(network.MsgTypeItemDestroyed, network.ItemDestroyedPayload{ItemID: id})
}

// Event broadcasts a gameplay event.
func (s *Session) Event(e events.Event) {
	payload := network.EventPayload{
		Kind:   e.Kind.String(),
		Phase:  e.Phase,
		Item:   e.Item,
		Second: e.Second,
		Amount: e.Amount,
		Level:  e.Level,
	}
	if e.Upgrade != nil {
		payload.Upgrade = e.Upgrade.ID
	}
	if len(e.Data) > 0 {
		payload.Data = e.Data
	}
	s.broadcast(network.MsgTypeEvent, payload)
}

// Display returns the screen of one scan station.
func (s *Session) Display(stationID string) scan.Display {
	return stationDisplay{session: s, id: stationID}
}

// stationDisplay broadcasts one station's screen updates.
type stationDisplay struct {
	session *Session
	id      string
}

func (d stationDisplay) ShowRequestText(text string) {
	d.session.broadcast(network.MsgTypeRequestText, network.StationTextPayload{StationID: d.id, Text: text})
}

func (d stationDisplay) ShowScanningIndicator() { d.indicator(network.IndicatorScanning) }
func (d stationDisplay) ShowAcceptedIndicator() { d.indicator(network.IndicatorAccepted) }
func (d stationDisplay) ShowRejectedIndicator() { d.indicator(network.IndicatorRejected) }

func (d stationDisplay) indicator(name string) {
	d.session.broadcast(network.MsgTypeIndicator, network.IndicatorPayload{StationID: d.id, Indicator: name})
}

func (d stationDisplay) ShowSkipButton(visible bool) {
	d.session.broadcast(network.MsgTypeSkipButton, network.SkipButtonPayload{StationID: d.id, Visible: visible})
}

func (d stationDisplay) SpawnMoneyNotification(delta int) {
	d.session.broadcast(network.MsgTypeMoney, network.MoneyPayload{StationID: d.id, Amount: delta})
}

func (d stationDisplay) SpawnTextNotification(text string) {
	d.session.broadcast(network.MsgTypeText, network.StationTextPayload{StationID: d.id, Text: text})
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gravitas-games/sortshift/internal/game"
	"github.com/gravitas-games/sortshift/internal/network"
	"github.com/gravitas-games/sortshift/internal/stock"
	"github.com/gravitas-games/sortshift/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	ws     *websocket.Conn
	server *Server

	// Player information (set after authentication)
	player *models.Player

	// Buffered channel for outbound messages
	send chan []byte

	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	joined bool
	closed bool
}

// NewConnection creates a new connection for an authenticated player
func NewConnection(ws *websocket.Conn, server *Server, player *models.Player) *Connection {
	cfg := server.config.Session
	limit := rate.Limit(cfg.CommandRate)
	if cfg.CommandRate <= 0 {
		limit = rate.Inf
	}
	return &Connection{
		ws:      ws,
		server:  server,
		player:  player,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(limit, max(cfg.CommandBurst, 1)),
		logger:  server.logger.With("player_id", player.ID),
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		if !c.limiter.Allow() {
			c.SendError("rate_limited", "Too many messages")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	c.logger.Debug("received message", "type", msg.Type)

	switch msg.Type {
	case network.MsgTypeJoin:
		c.handleJoin()
		return
	case network.MsgTypeLeave:
		c.handleLeave()
		return
	case network.MsgTypePing:
		c.handlePing()
		return
	}

	if !c.isJoined() {
		c.SendError("not_joined", "Join the shift first")
		return
	}

	cmd, err := c.decodeCommand(msg)
	if err != nil {
		if errors.Is(err, errUnknownType) {
			c.SendError("unknown_message_type", "Unknown message type")
		} else {
			c.SendError("invalid_payload", err.Error())
		}
		return
	}
	if operatorOnly(cmd.Kind) && !c.player.IsOperator() {
		c.SendError("forbidden", "Only an operator can do that")
		return
	}
	c.enqueue(cmd)
}

var errUnknownType = errors.New("unknown message type")

// decodeCommand turns a gameplay message into a game command.
func (c *Connection) decodeCommand(msg *network.ClientMessage) (game.Command, error) {
	switch msg.Type {
	case network.MsgTypeStatus:
		return game.Command{Kind: game.CmdStatus}, nil

	case network.MsgTypeItemUpdate:
		var p network.ItemUpdatePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return game.Command{}, err
		}
		return game.Command{Kind: game.CmdItemUpdate, ItemID: p.ItemID, Position: p.Position, Held: p.Held, Mode: p.Mode}, nil

	case network.MsgTypeScanSubmit:
		var p network.ScanSubmitPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return game.Command{}, err
		}
		return game.Command{Kind: game.CmdScanSubmit, StationID: p.StationID, ItemID: p.ItemID}, nil

	case network.MsgTypeSkipRequest:
		var p network.StationPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return game.Command{}, err
		}
		return game.Command{Kind: game.CmdSkipRequest, StationID: p.StationID}, nil

	case network.MsgTypeBuyUpgrade:
		var p network.BuyUpgradePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return game.Command{}, err
		}
		return game.Command{Kind: game.CmdBuyUpgrade, UpgradeID: p.UpgradeID}, nil

	case network.MsgTypeOrderStock:
		var p network.OrderStockPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return game.Command{}, err
		}
		lines := make([]stock.Line, 0, len(p.Lines))
		for _, l := range p.Lines {
			lines = append(lines, stock.Line{Type: l.Item, Quantity: l.Quantity})
		}
		return game.Command{Kind: game.CmdOrderStock, Lines: lines}, nil

	case network.MsgTypeStartDelivery:
		return game.Command{Kind: game.CmdStartDelivery}, nil
	case network.MsgTypeEndDelivery:
		return game.Command{Kind: game.CmdEndDelivery}, nil
	case network.MsgTypeResetProgress:
		return game.Command{Kind: game.CmdResetProgress}, nil
	}
	return game.Command{}, errUnknownType
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// operatorOnly lists the commands that drive the shift for everyone.
func operatorOnly(kind game.CommandKind) bool {
	switch kind {
	case game.CmdBuyUpgrade, game.CmdOrderStock, game.CmdStartDelivery, game.CmdEndDelivery, game.CmdResetProgress:
		return true
	}
	return false
}

// enqueue hands cmd to the game loop; the reply comes back as a result
// message from the game goroutine.
func (c *Connection) enqueue(cmd game.Command) {
	cmd.PlayerID = c.player.ID
	cmd.Reply = c.sendResult
	if err := c.server.game.Enqueue(cmd); err != nil {
		c.logger.Warn("command dropped", "command", cmd.Kind.String(), "error", err)
		c.SendError("busy", "Server is busy, try again")
	}
}

func (c *Connection) sendResult(res game.Result) {
	if res.Status != nil {
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypeShiftStatus, Payload: res.Status})
		return
	}
	payload := network.ResultPayload{Command: res.Kind.String(), OK: res.OK()}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	if res.Receipt != nil {
		payload.Data = res.Receipt
	}
	c.SendMessage(&network.ServerMessage{Type: network.MsgTypeResult, Payload: payload})
}

func (c *Connection) isJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// handleJoin adds the player to the shift and sends the welcome with a
// fresh status snapshot.
func (c *Connection) handleJoin() {
	if c.isJoined() {
		return
	}

	now := time.Now()
	c.player.Connected = true
	c.player.ConnectedAt = now
	c.player.LastSeen = now
	c.player.SessionID = c.server.session.ID

	if err := c.server.session.AddPlayer(c.player, c); err != nil {
		c.logger.Warn("failed to join session", "error", err)
		c.SendError("join_failed", err.Error())
		return
	}
	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()

	status := game.Command{
		Kind:     game.CmdStatus,
		PlayerID: c.player.ID,
		Reply: func(res game.Result) {
			c.SendMessage(&network.ServerMessage{
				Type: network.MsgTypeWelcome,
				Payload: network.WelcomePayload{
					PlayerID:  c.player.ID,
					Username:  c.player.Username,
					Operator:  c.player.IsOperator(),
					SessionID: c.server.session.ID,
					Status:    res.Status,
				},
			})
		},
	}
	if err := c.server.game.Enqueue(status); err != nil {
		c.SendError("busy", "Server is busy, try again")
	}

	c.server.session.BroadcastExcept(c, &network.ServerMessage{
		Type: network.MsgTypePlayerJoined,
		Payload: network.PlayerJoinedPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handleLeave removes the player and drops anything they were carrying
func (c *Connection) handleLeave() {
	c.mu.Lock()
	joined := c.joined
	c.joined = false
	c.mu.Unlock()
	if !joined {
		return
	}

	if !c.server.session.RemovePlayer(c.player.ID, c) {
		return
	}
	if err := c.server.game.Enqueue(game.Command{Kind: game.CmdPlayerLeft, PlayerID: c.player.ID}); err != nil {
		c.logger.Warn("failed to release held items", "error", err)
	}
	c.server.session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypePlayerLeft,
		Payload: network.PlayerLeftPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
	})
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	c.sendRaw(data)
}

// sendRaw queues an encoded message. It never blocks and is a no-op once
// the connection is closed.
func (c *Connection) sendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close leaves the shift and closes the connection. It is safe to call
// more than once.
func (c *Connection) Close() {
	c.handleLeave()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.ws.Close()
}

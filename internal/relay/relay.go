// Package relay forwards gameplay events to NATS for analytics consumers.
// Forwarding is best effort: a failed publish is logged and the game goes on.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Publisher sends raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Forwarded lists the event kinds sent over the relay.
var Forwarded = []events.Kind{
	events.KindItemScanned,
	events.KindItemRejected,
	events.KindRequestSkipped,
	events.KindUpgradePurchased,
	events.KindCrateSpawned,
	events.KindTimerExpired,
	events.KindQuotaMet,
}

var subjectTokens = map[events.Kind]string{
	events.KindItemScanned:      "item_scanned",
	events.KindItemRejected:     "item_rejected",
	events.KindRequestSkipped:   "request_skipped",
	events.KindUpgradePurchased: "upgrade_purchased",
	events.KindCrateSpawned:     "crate_spawned",
	events.KindTimerExpired:     "timer_expired",
	events.KindQuotaMet:         "quota_met",
}

// Envelope is the JSON body of a relayed event.
type Envelope struct {
	ID      string          `json:"id"`
	Shift   string          `json:"shift"`
	Kind    string          `json:"kind"`
	Phase   models.Phase    `json:"phase"`
	Item    models.ItemType `json:"item,omitempty"`
	Amount  int             `json:"amount,omitempty"`
	Level   int             `json:"level,omitempty"`
	Upgrade string          `json:"upgrade,omitempty"`
	Data    map[string]any  `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// Relay turns bus events into NATS messages.
type Relay struct {
	pub    Publisher
	prefix string
	shift  string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a relay publishing under prefix for the named shift.
func New(pub Publisher, prefix, shift string, logger *slog.Logger) *Relay {
	if prefix == "" {
		prefix = "sortshift.events"
	}
	return &Relay{
		pub:    pub,
		prefix: prefix,
		shift:  shift,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// Subject returns the subject an event kind is published on.
func (r *Relay) Subject(kind events.Kind) string {
	token, ok := subjectTokens[kind]
	if !ok {
		token = "other"
	}
	return r.prefix + "." + token
}

// Attach subscribes to every forwarded kind.
func (r *Relay) Attach(bus *events.Bus) *events.Group {
	g := events.NewGroup(bus)
	for _, kind := range Forwarded {
		g.On(kind, r.Forward)
	}
	return g
}

// Forward publishes one event.
func (r *Relay) Forward(e events.Event) {
	env := Envelope{
		ID:     ulid.Make().String(),
		Shift:  r.shift,
		Kind:   e.Kind.String(),
		Phase:  e.Phase,
		Item:   e.Item,
		Amount: e.Amount,
		Level:  e.Level,
		Data:   e.Data,
		At:     r.now().UTC(),
	}
	if e.Upgrade != nil {
		env.Upgrade = e.Upgrade.ID
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Warn("relay marshal failed", "kind", env.Kind, "error", err)
		return
	}
	if err := r.pub.Publish(r.Subject(e.Kind), data); err != nil {
		r.logger.Warn("relay publish failed", "kind", env.Kind, "error", err)
	}
}

// Config configures the NATS connection.
type Config struct {
	URL            string
	ConnectTimeout time.Duration
}

// Dial connects to NATS with reconnects enabled.
func Dial(cfg Config) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("sortshift"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Package timer implements the delivery countdown.
package timer

import (
	"log/slog"
	"math"
	"time"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// State is the countdown's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateExpired
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// BonusSource supplies extra countdown time. The upgrade ledger implements it.
type BonusSource interface {
	DeliveryBonus() time.Duration
}

// Config holds the countdown lengths.
type Config struct {
	Base    time.Duration
	LowTime time.Duration
	// TickAt is where CountdownTick cues play.
	TickAt models.Vec3
}

// Timer counts a delivery round down to zero. It is driven by Tick and never
// reads the wall clock.
type Timer struct {
	cfg       Config
	bonus     BonusSource
	bus       events.Publisher
	sink      sfx.Sink
	logger    *slog.Logger
	remaining time.Duration
	state     State
	announced int
}

// New creates an idle timer. bonus may be nil.
func New(cfg Config, bonus BonusSource, bus events.Publisher, sink sfx.Sink, logger *slog.Logger) *Timer {
	if bus == nil {
		bus = events.NullPublisher{}
	}
	return &Timer{
		cfg:    cfg,
		bonus:  bonus,
		bus:    bus,
		sink:   sfx.OrNop(sink),
		logger: logging.OrDiscard(logger),
	}
}

// Start begins a countdown of Base plus the bonus read now. Bonus changes
// made while running apply to the next Start.
func (t *Timer) Start() {
	total := t.cfg.Base
	if t.bonus != nil {
		total += t.bonus.DeliveryBonus()
	}
	if total < 0 {
		total = 0
	}
	t.remaining = total
	t.state = StateRunning
	t.announced = 0
	t.logger.Info("countdown started", "duration", total)
}

// Tick advances a running countdown by dt.
func (t *Timer) Tick(dt time.Duration) {
	if t.state != StateRunning || dt <= 0 {
		return
	}
	t.remaining -= dt
	if t.remaining <= 0 {
		t.remaining = 0
		t.state = StateExpired
		t.logger.Info("countdown expired")
		t.bus.Publish(events.Event{Kind: events.KindTimerExpired, Phase: models.PhaseDelivery})
		return
	}
	if t.remaining > t.cfg.LowTime {
		return
	}
	sec := int(math.Ceil(t.remaining.Seconds()))
	if t.announced > 0 && sec >= t.announced {
		return
	}
	// A long frame may cross several seconds; each one is announced. On
	// entering the window only the current second is.
	from := sec
	if t.announced > 0 {
		from = t.announced - 1
	}
	for s := from; s >= sec; s-- {
		t.sink.Play(sfx.CountdownTick, t.cfg.TickAt)
		t.bus.Publish(events.Event{Kind: events.KindTimerWarning, Phase: models.PhaseDelivery, Second: s})
	}
	t.announced = sec
}

// Stop ends the countdown without publishing expiry.
func (t *Timer) Stop() {
	t.remaining = 0
	t.state = StateIdle
}

// Remaining returns the time left, never negative.
func (t *Timer) Remaining() time.Duration {
	return t.remaining
}

// Running reports whether the countdown is in progress.
func (t *Timer) Running() bool {
	return t.state == StateRunning
}

// State returns the lifecycle position.
func (t *Timer) State() State {
	return t.state
}

// Attach starts the countdown on DeliveryStarted and stops it on
// DeliveryEnded. Close the returned group to detach.
func (t *Timer) Attach(bus *events.Bus) *events.Group {
	g := events.NewGroup(bus)
	g.On(events.KindDeliveryStarted, func(events.Event) { t.Start() })
	g.On(events.KindDeliveryEnded, func(events.Event) { t.Stop() })
	return g
}

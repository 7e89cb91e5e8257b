// Package phase holds the Stocking/Delivery cycle.
package phase

import (
	"log/slog"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Machine owns the current phase. It starts in Stocking.
type Machine struct {
	current models.Phase
	round   int
	bus     events.Publisher
	sink    sfx.Sink
	at      models.Vec3
	logger  *slog.Logger
}

// NewMachine creates a machine in Stocking. Phase cues play at position at.
func NewMachine(bus events.Publisher, sink sfx.Sink, at models.Vec3, logger *slog.Logger) *Machine {
	if bus == nil {
		bus = events.NullPublisher{}
	}
	return &Machine{
		current: models.PhaseStocking,
		bus:     bus,
		sink:    sfx.OrNop(sink),
		at:      at,
		logger:  logging.OrDiscard(logger),
	}
}

// Current returns the current phase.
func (m *Machine) Current() models.Phase {
	return m.current
}

// Round returns how many Delivery phases have been entered.
func (m *Machine) Round() int {
	return m.round
}

// TransitionTo moves to p. It returns false and publishes nothing when the
// machine is already in p.
func (m *Machine) TransitionTo(p models.Phase) bool {
	if p == m.current {
		return false
	}
	switch p {
	case models.PhaseDelivery:
		m.current = p
		m.round++
		m.logger.Info("delivery started", "round", m.round)
		m.sink.Play(sfx.DeliveryPhaseStart, m.at)
		m.bus.Publish(events.Event{Kind: events.KindDeliveryStarted, Phase: p})
	case models.PhaseStocking:
		m.current = p
		m.logger.Info("stocking started", "round", m.round)
		// Teardown handlers on DeliveryEnded run before setup handlers on StockingStarted.
		m.bus.Publish(events.Event{Kind: events.KindDeliveryEnded, Phase: p})
		m.sink.Play(sfx.InventoryPhaseStart, m.at)
		m.bus.Publish(events.Event{Kind: events.KindStockingStarted, Phase: p})
	default:
		m.logger.Warn("ignoring transition to unknown phase", "phase", int(p))
		return false
	}
	return true
}

// Package events is the observer registry shared by the shift components.
// Dispatch is synchronous and follows subscription order, so publishers can
// rely on handlers of an earlier event having run before the next one fires.
package events

import (
	"sync"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// Kind represents the type of gameplay event.
type Kind int

const (
	// KindDeliveryStarted is emitted when the shift enters the Delivery phase.
	KindDeliveryStarted Kind = iota
	// KindDeliveryEnded is emitted when Delivery is left, before KindStockingStarted.
	KindDeliveryEnded
	// KindStockingStarted is emitted when the shift enters the Stocking phase.
	KindStockingStarted
	// KindTimerWarning is emitted once per whole second inside the low-time window.
	KindTimerWarning
	// KindTimerExpired is emitted once when the delivery countdown reaches zero.
	KindTimerExpired
	// KindRequestPosted is emitted when the scan station posts a new request.
	KindRequestPosted
	// KindItemScanned is emitted when a delivered item matches the request.
	KindItemScanned
	// KindItemRejected is emitted when a delivered item does not match.
	KindItemRejected
	// KindRequestSkipped is emitted when a paid skip is accepted.
	KindRequestSkipped
	// KindQuotaMet is emitted when the round's accepted-item quota is reached.
	KindQuotaMet
	// KindUpgradePurchased is emitted after a successful upgrade purchase.
	KindUpgradePurchased
	// KindCrateSpawned is emitted when a stock crate lands at a chute.
	KindCrateSpawned
	// KindBalanceChanged is emitted whenever the economy balance moves.
	KindBalanceChanged
	// KindTutorialCompleted is emitted once when the tutorial item is accepted.
	KindTutorialCompleted
)

// String returns a human-readable representation of the event kind.
func (k Kind) String() string {
	switch k {
	case KindDeliveryStarted:
		return "DeliveryStarted"
	case KindDeliveryEnded:
		return "DeliveryEnded"
	case KindStockingStarted:
		return "StockingStarted"
	case KindTimerWarning:
		return "TimerWarning"
	case KindTimerExpired:
		return "TimerExpired"
	case KindRequestPosted:
		return "RequestPosted"
	case KindItemScanned:
		return "ItemScanned"
	case KindItemRejected:
		return "ItemRejected"
	case KindRequestSkipped:
		return "RequestSkipped"
	case KindQuotaMet:
		return "QuotaMet"
	case KindUpgradePurchased:
		return "UpgradePurchased"
	case KindCrateSpawned:
		return "CrateSpawned"
	case KindBalanceChanged:
		return "BalanceChanged"
	case KindTutorialCompleted:
		return "TutorialCompleted"
	default:
		return "Unknown"
	}
}

// Event is a gameplay notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind    Kind                      `json:"kind"`
	Phase   models.Phase              `json:"phase"`
	Item    models.ItemType           `json:"item,omitempty"`
	Second  int                       `json:"second,omitempty"`
	Amount  int                       `json:"amount,omitempty"`
	Level   int                       `json:"level,omitempty"`
	Upgrade *models.UpgradeDefinition `json:"upgrade,omitempty"`
	Data    map[string]any            `json:"data,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

// Publisher is the narrow side of the bus handed to components that only emit.
type Publisher interface {
	Publish(event Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus manages subscriptions and delivers events in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers handler for kind. The returned Subscription removes it.
func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[kind] = append(b.subs[kind], subscription{id: b.nextID, handler: handler})
	return Subscription{bus: b, kind: kind, id: b.nextID}
}

// Publish calls every handler subscribed to event.Kind before returning.
// Handlers may publish or (un)subscribe; they see a snapshot of the list
// taken when Publish started.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[event.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Count returns the number of handlers registered for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

func (b *Bus) remove(kind Kind, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Subscription is a handle to one registered handler.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s Subscription) Unsubscribe() bool {
	if s.bus == nil {
		return false
	}
	return s.bus.remove(s.kind, s.id)
}

// Group collects subscriptions owned by one component so they can be
// released together on teardown.
type Group struct {
	bus  *Bus
	subs []Subscription
}

// NewGroup creates a group that subscribes on bus.
func NewGroup(bus *Bus) *Group {
	return &Group{bus: bus}
}

// On subscribes handler to kind and records the subscription.
func (g *Group) On(kind Kind, handler Handler) {
	g.subs = append(g.subs, g.bus.Subscribe(kind, handler))
}

// Close unsubscribes everything in reverse registration order.
func (g *Group) Close() {
	for i := len(g.subs) - 1; i >= 0; i-- {
		g.subs[i].Unsubscribe()
	}
	g.subs = nil
}

// NullPublisher drops every event.
type NullPublisher struct{}

// Publish does nothing.
func (NullPublisher) Publish(Event) {}

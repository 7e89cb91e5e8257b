// Package economy tracks the shift's money.
package economy

import (
	"log/slog"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
)

// BalanceKey is the persistence key of the saved balance.
const BalanceKey = "economy_balance"

// Ledger holds the current balance. All mutation goes through Add and
// TrySpend; every change is written to the store and published.
type Ledger struct {
	balance int
	store   persist.Store
	bus     events.Publisher
	logger  *slog.Logger
}

// NewLedger loads the saved balance, or starting when nothing was saved.
func NewLedger(starting int, store persist.Store, bus events.Publisher, logger *slog.Logger) *Ledger {
	if store == nil {
		store = persist.NewMemoryStore(nil)
	}
	if bus == nil {
		bus = events.NullPublisher{}
	}
	return &Ledger{
		balance: store.GetInt(BalanceKey, starting),
		store:   store,
		bus:     bus,
		logger:  logging.OrDiscard(logger),
	}
}

// Balance returns the current balance.
func (l *Ledger) Balance() int {
	return l.balance
}

// Add credits amount. Non-positive amounts are ignored; debits use TrySpend.
func (l *Ledger) Add(amount int) {
	if amount <= 0 {
		if amount < 0 {
			l.logger.Warn("ignoring negative credit", "amount", amount)
		}
		return
	}
	l.apply(amount)
}

// TrySpend debits amount if the balance covers it. It never spends partially.
func (l *Ledger) TrySpend(amount int) bool {
	if amount < 0 {
		return false
	}
	if amount > l.balance {
		return false
	}
	if amount > 0 {
		l.apply(-amount)
	}
	return true
}

func (l *Ledger) apply(delta int) {
	l.balance += delta
	l.store.SetInt(BalanceKey, l.balance)
	l.bus.Publish(events.Event{
		Kind:   events.KindBalanceChanged,
		Amount: delta,
		Data:   map[string]any{"balance": l.balance},
	})
}

// Package upgrade implements the persistent upgrade economy: a cost curve per
// upgrade track, purchased levels saved between sessions, and the gameplay
// multipliers those levels produce.
package upgrade

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Wallet is the part of the economy ledger purchases need.
type Wallet interface {
	TrySpend(amount int) bool
}

// StorageKey is the persistence key for a definition's level.
func StorageKey(def models.UpgradeDefinition) string {
	return fmt.Sprintf("upgrade_%s_%s", def.Kind, def.ID)
}

// Cost returns the price of reaching level. Level 0 and levels above
// MaxLevel cost 0; they are never purchasable.
func Cost(def models.UpgradeDefinition, level int) int {
	if level < 1 || level > def.MaxLevel {
		return 0
	}
	mult := def.CostMultiplier
	if mult <= 0 {
		mult = 1
	}
	return int(math.Round(float64(def.BaseCost) * math.Pow(mult, float64(level-1))))
}

// Ledger owns purchased levels and is the only writer of their saved values.
type Ledger struct {
	defs   []models.UpgradeDefinition
	levels map[string]int
	store  persist.Store
	wallet Wallet
	bus    events.Publisher
	logger *slog.Logger
}

// NewLedger loads saved levels for defs, clamping anything out of range.
// Definitions without an ID or with MaxLevel < 1 are skipped with a warning.
func NewLedger(defs []models.UpgradeDefinition, store persist.Store, wallet Wallet, bus events.Publisher, logger *slog.Logger) *Ledger {
	if store == nil {
		store = persist.NewMemoryStore(nil)
	}
	if bus == nil {
		bus = events.NullPublisher{}
	}
	l := &Ledger{
		levels: make(map[string]int, len(defs)),
		store:  store,
		wallet: wallet,
		bus:    bus,
		logger: logging.OrDiscard(logger),
	}
	for _, def := range defs {
		if def.ID == "" || def.MaxLevel < 1 {
			l.logger.Warn("skipping invalid upgrade definition", "id", def.ID, "max_level", def.MaxLevel)
			continue
		}
		if _, dup := l.levels[def.ID]; dup {
			l.logger.Warn("skipping duplicate upgrade id", "id", def.ID)
			continue
		}
		level := store.GetInt(StorageKey(def), 0)
		if level < 0 {
			level = 0
		}
		if level > def.MaxLevel {
			level = def.MaxLevel
		}
		l.defs = append(l.defs, def)
		l.levels[def.ID] = level
	}
	return l
}

// Definitions returns the loaded definitions in configuration order.
func (l *Ledger) Definitions() []models.UpgradeDefinition {
	return append([]models.UpgradeDefinition(nil), l.defs...)
}

// Definition looks up a definition by ID.
func (l *Ledger) Definition(id string) (models.UpgradeDefinition, bool) {
	for _, def := range l.defs {
		if def.ID == id {
			return def, true
		}
	}
	return models.UpgradeDefinition{}, false
}

// Level returns the purchased level of id (0 when unknown).
func (l *Ledger) Level(id string) int {
	return l.levels[id]
}

// NextCost returns the cost of the next level of id, or 0 when maxed or unknown.
func (l *Ledger) NextCost(id string) int {
	def, ok := l.Definition(id)
	if !ok {
		return 0
	}
	return Cost(def, l.levels[id]+1)
}

// Purchase buys one level of id. It returns false without changing anything
// when id is unknown, the track is maxed, or the wallet cannot pay.
func (l *Ledger) Purchase(id string) bool {
	def, ok := l.Definition(id)
	if !ok {
		return false
	}
	current := l.levels[id]
	if current >= def.MaxLevel {
		return false
	}
	cost := Cost(def, current+1)
	if l.wallet == nil || !l.wallet.TrySpend(cost) {
		return false
	}

	next := current + 1
	l.levels[id] = next
	l.store.SetInt(StorageKey(def), next)
	if err := l.store.Flush(); err != nil {
		l.logger.Warn("upgrade level not flushed", "id", id, "level", next, "error", err)
	}

	l.logger.Info("upgrade purchased", "id", id, "level", next, "cost", cost)
	l.bus.Publish(events.Event{
		Kind:    events.KindUpgradePurchased,
		Upgrade: &def,
		Level:   next,
		Amount:  cost,
		Data:    map[string]any{"modifiers": l.Modifiers()},
	})
	return true
}

// Reset zeroes every level and saves the result.
func (l *Ledger) Reset() {
	for _, def := range l.defs {
		l.levels[def.ID] = 0
		l.store.SetInt(StorageKey(def), 0)
	}
	if err := l.store.Flush(); err != nil {
		l.logger.Warn("upgrade reset not flushed", "error", err)
	}
}

// first returns the first definition of kind. Several definitions of one
// kind is a configuration error; later ones are ignored here.
func (l *Ledger) first(kind models.UpgradeKind) (models.UpgradeDefinition, bool) {
	for _, def := range l.defs {
		if def.Kind == kind {
			return def, true
		}
	}
	return models.UpgradeDefinition{}, false
}

// BonusFor returns Step × level for the first definition of kind, or 0.
func (l *Ledger) BonusFor(kind models.UpgradeKind) float64 {
	def, ok := l.first(kind)
	if !ok {
		return 0
	}
	return def.EffectiveStep() * float64(l.levels[def.ID])
}

// MultiplierFor returns 1 + BonusFor(kind); 1.0 when nothing was bought.
func (l *Ledger) MultiplierFor(kind models.UpgradeKind) float64 {
	return 1 + l.BonusFor(kind)
}

// DeliveryBonus returns the extra countdown time bought with the
// DeliveryTimeBonus track.
func (l *Ledger) DeliveryBonus() time.Duration {
	return time.Duration(l.BonusFor(models.UpgradeDeliveryTimeBonus) * float64(time.Second))
}

// Modifiers returns the current multipliers as one snapshot.
func (l *Ledger) Modifiers() Modifiers {
	return Modifiers{
		ThrowStrength: l.MultiplierFor(models.UpgradeThrowStrength),
		MoveSpeed:     l.MultiplierFor(models.UpgradeMoveSpeed),
		ScanSpeed:     l.MultiplierFor(models.UpgradeScanSpeed),
		DeliveryBonus: l.DeliveryBonus(),
	}
}

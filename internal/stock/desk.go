// Package stock is the ordering desk used between delivery rounds. Orders
// are paid at wholesale, packed into crates and dropped down the chutes.
package stock

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// maxLineQuantity caps a single order line.
const maxLineQuantity = 50

var (
	ErrWrongPhase        = errors.New("stock: orders are only taken while stocking")
	ErrEmptyOrder        = errors.New("stock: order is empty")
	ErrInsufficientFunds = errors.New("stock: insufficient funds")
	ErrNoChutes          = errors.New("stock: no chutes to deliver to")
)

// Catalog resolves item records.
type Catalog interface {
	Lookup(t models.ItemType) (models.ItemRecord, bool)
}

// Wallet pays for orders.
type Wallet interface {
	TrySpend(amount int) bool
}

// PhaseReader exposes the current phase.
type PhaseReader interface {
	Current() models.Phase
}

// Chutes picks where each crate lands.
type Chutes interface {
	SelectNext() (distribution.Target, bool)
}

// Floor receives crates.
type Floor interface {
	SpawnCrate(crate *distribution.Crate, target distribution.Target) []*world.Item
}

// Line is one row of an order.
type Line struct {
	Type     models.ItemType `json:"type"`
	Quantity int             `json:"quantity"`
}

// Receipt describes a fulfilled order.
type Receipt struct {
	Cost   int                   `json:"cost"`
	Items  int                   `json:"items"`
	Crates []*distribution.Crate `json:"crates"`
	Chutes []string              `json:"chutes"`
}

// Config tunes the desk.
type Config struct {
	CrateCapacity int
	// Wholesale scales catalog prices for orders (0.5 pays half price).
	Wholesale float64
}

// Desk takes stock orders.
type Desk struct {
	cfg     Config
	catalog Catalog
	wallet  Wallet
	phase   PhaseReader
	chutes  Chutes
	floor   Floor
	sound   sfx.Sink
	bus     events.Publisher
	logger  *slog.Logger
}

// NewDesk creates a desk.
func NewDesk(cfg Config, catalog Catalog, wallet Wallet, phase PhaseReader, chutes Chutes, floor Floor, sound sfx.Sink, bus events.Publisher, logger *slog.Logger) *Desk {
	if cfg.CrateCapacity < 1 {
		cfg.CrateCapacity = 1
	}
	if cfg.Wholesale <= 0 {
		cfg.Wholesale = 1
	}
	if bus == nil {
		bus = events.NullPublisher{}
	}
	return &Desk{
		cfg:     cfg,
		catalog: catalog,
		wallet:  wallet,
		phase:   phase,
		chutes:  chutes,
		floor:   floor,
		sound:   sfx.OrNop(sound),
		bus:     bus,
		logger:  logging.OrDiscard(logger),
	}
}

// Quote expands lines into records in order and prices them.
func (d *Desk) Quote(lines []Line) (int, []models.ItemRecord, error) {
	var records []models.ItemRecord
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if line.Quantity > maxLineQuantity {
			return 0, nil, fmt.Errorf("stock: quantity %d of %s exceeds %d", line.Quantity, line.Type, maxLineQuantity)
		}
		record, ok := d.catalog.Lookup(line.Type)
		if !ok {
			return 0, nil, fmt.Errorf("stock: %s is not in the catalog", line.Type)
		}
		for i := 0; i < line.Quantity; i++ {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return 0, nil, ErrEmptyOrder
	}
	total := 0
	for _, r := range records {
		total += r.Price
	}
	return int(math.Round(float64(total) * d.cfg.Wholesale)), records, nil
}

// Order buys lines and drops the crates. Nothing is charged when it fails.
func (d *Desk) Order(lines []Line) (Receipt, error) {
	if d.phase == nil || d.phase.Current() != models.PhaseStocking {
		return Receipt{}, ErrWrongPhase
	}
	cost, records, err := d.Quote(lines)
	if err != nil {
		return Receipt{}, err
	}
	if d.chutes == nil {
		return Receipt{}, ErrNoChutes
	}
	if d.wallet == nil || !d.wallet.TrySpend(cost) {
		return Receipt{}, ErrInsufficientFunds
	}

	receipt := Receipt{Cost: cost, Items: len(records)}
	for _, crate := range distribution.Pack(records, d.cfg.CrateCapacity) {
		target, ok := d.chutes.SelectNext()
		if !ok {
			// Paid for already; the crate waits at the origin instead.
			d.logger.Warn("no chute available; dropping crate at origin", "crate_id", crate.ID)
		}
		if d.floor != nil {
			d.floor.SpawnCrate(crate, target)
		}
		d.sound.Play(sfx.ItemSpawn, target.Position)
		receipt.Crates = append(receipt.Crates, crate)
		receipt.Chutes = append(receipt.Chutes, target.ID)
		d.bus.Publish(events.Event{
			Kind:   events.KindCrateSpawned,
			Phase:  models.PhaseStocking,
			Amount: len(crate.Items),
			Data: map[string]any{
				"crate_id": crate.ID.String(),
				"chute":    target.ID,
				"value":    crate.Value(),
			},
		})
	}

	d.logger.Info("stock ordered", "items", receipt.Items, "crates", len(receipt.Crates), "cost", cost)
	return receipt, nil
}

package stock

import (
	"testing"

	"github.com/gravitas-games/sortshift/internal/catalog"
	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/economy"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/phase"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deskRig struct {
	desk    *Desk
	wallet  *economy.Ledger
	machine *phase.Machine
	floor   *world.World
	cues    int
	crates  []events.Event
}

func newDeskRig(t *testing.T, balance int) *deskRig {
	t.Helper()
	bus := events.NewBus()
	r := &deskRig{
		wallet:  economy.NewLedger(balance, nil, nil, nil),
		machine: phase.NewMachine(nil, nil, models.Vec3{}, nil),
		floor:   world.New(nil, nil),
	}
	bus.Subscribe(events.KindCrateSpawned, func(e events.Event) { r.crates = append(r.crates, e) })
	pool := distribution.NewPool(9,
		distribution.Target{ID: "a", Position: models.Vec3{X: -5}},
		distribution.Target{ID: "b", Position: models.Vec3{X: 5}},
	)
	sink := sfx.SinkFunc(func(c sfx.Cue, _ models.Vec3) {
		if c == sfx.ItemSpawn {
			r.cues++
		}
	})
	r.desk = NewDesk(Config{CrateCapacity: 5, Wholesale: 0.5}, catalog.Default(), r.wallet, r.machine, pool, r.floor, sink, bus, nil)
	return r
}

func TestOrder_PacksAndSpawns(t *testing.T) {
	r := newDeskRig(t, 100)

	// 9 × Beans at 10 each, half price.
	receipt, err := r.desk.Order([]Line{{Type: models.ItemBeans, Quantity: 9}})
	require.NoError(t, err)

	assert.Equal(t, 45, receipt.Cost)
	assert.Equal(t, 55, r.wallet.Balance())
	require.Len(t, receipt.Crates, 2)
	assert.Len(t, receipt.Crates[0].Items, 5)
	assert.Len(t, receipt.Crates[1].Items, 4)
	assert.NotEqual(t, receipt.Chutes[0], receipt.Chutes[1], "consecutive crates use different chutes")
	assert.Equal(t, 9, r.floor.Len())
	assert.Equal(t, 2, r.cues)
	assert.Len(t, r.crates, 2)
}

func TestOrder_PreservesLineOrder(t *testing.T) {
	r := newDeskRig(t, 1000)
	receipt, err := r.desk.Order([]Line{
		{Type: models.ItemMeat, Quantity: 2},
		{Type: models.ItemSoda, Quantity: 4},
	})
	require.NoError(t, err)

	var got []models.ItemType
	for _, c := range receipt.Crates {
		for _, item := range c.Items {
			got = append(got, item.Type)
		}
	}
	assert.Equal(t, []models.ItemType{
		models.ItemMeat, models.ItemMeat,
		models.ItemSoda, models.ItemSoda, models.ItemSoda, models.ItemSoda,
	}, got)
}

func TestOrder_Refusals(t *testing.T) {
	t.Run("delivery phase", func(t *testing.T) {
		r := newDeskRig(t, 100)
		r.machine.TransitionTo(models.PhaseDelivery)
		_, err := r.desk.Order([]Line{{Type: models.ItemBeans, Quantity: 1}})
		assert.ErrorIs(t, err, ErrWrongPhase)
		assert.Equal(t, 100, r.wallet.Balance())
	})
	t.Run("empty", func(t *testing.T) {
		r := newDeskRig(t, 100)
		_, err := r.desk.Order([]Line{{Type: models.ItemBeans, Quantity: 0}})
		assert.ErrorIs(t, err, ErrEmptyOrder)
	})
	t.Run("unknown item", func(t *testing.T) {
		r := newDeskRig(t, 100)
		_, err := r.desk.Order([]Line{{Type: models.ItemUnknown, Quantity: 1}})
		assert.Error(t, err)
		assert.Equal(t, 100, r.wallet.Balance())
	})
	t.Run("too many", func(t *testing.T) {
		r := newDeskRig(t, 100000)
		_, err := r.desk.Order([]Line{{Type: models.ItemWater, Quantity: maxLineQuantity + 1}})
		assert.Error(t, err)
	})
	t.Run("insufficient funds", func(t *testing.T) {
		r := newDeskRig(t, 4)
		_, err := r.desk.Order([]Line{{Type: models.ItemBeans, Quantity: 1}})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 4, r.wallet.Balance())
		assert.Zero(t, r.floor.Len())
	})
}

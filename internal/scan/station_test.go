package scan

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gravitas-games/sortshift/internal/catalog"
	"github.com/gravitas-games/sortshift/internal/economy"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/phase"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/task"
	"github.com/gravitas-games/sortshift/internal/upgrade"
	"github.com/gravitas-games/sortshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItem struct {
	id        string
	held      bool
	typ       models.ItemType
	price     int
	pos       models.Vec3
	mode      models.DeliveryMode
	placed    bool
	ejected   int
	ejectDir  models.Vec3
	force     float64
	destroyed bool
}

func (f *fakeItem) ID() string                    { return f.id }
func (f *fakeItem) IsHeld() bool                  { return f.held }
func (f *fakeItem) DeclaredType() models.ItemType { return f.typ }
func (f *fakeItem) Price() int                    { return f.price }
func (f *fakeItem) Position() models.Vec3         { return f.pos }
func (f *fakeItem) Mode() models.DeliveryMode     { return f.mode }
func (f *fakeItem) PlaceAtScanPoint(at models.Vec3) {
	f.placed = true
	f.pos = at
}
func (f *fakeItem) EjectWithImpulse(dir models.Vec3, force float64) {
	f.ejected++
	f.ejectDir = dir
	f.force = force
}
func (f *fakeItem) Destroy() { f.destroyed = true }

type fakeDisplay struct {
	texts    []string
	scanning int
	accepted int
	rejected int
	skipBtn  []bool
	money    []int
	notes    []string
}

func (d *fakeDisplay) ShowRequestText(text string)       { d.texts = append(d.texts, text) }
func (d *fakeDisplay) ShowScanningIndicator()            { d.scanning++ }
func (d *fakeDisplay) ShowAcceptedIndicator()            { d.accepted++ }
func (d *fakeDisplay) ShowRejectedIndicator()            { d.rejected++ }
func (d *fakeDisplay) ShowSkipButton(visible bool)       { d.skipBtn = append(d.skipBtn, visible) }
func (d *fakeDisplay) SpawnMoneyNotification(delta int)  { d.money = append(d.money, delta) }
func (d *fakeDisplay) SpawnTextNotification(text string) { d.notes = append(d.notes, text) }

func (d *fakeDisplay) lastText() string {
	if len(d.texts) == 0 {
		return ""
	}
	return d.texts[len(d.texts)-1]
}

type fakeTutorial struct {
	active    bool
	presented int
	itemID    string
	completed int
}

func (f *fakeTutorial) IsActive() bool                { return f.active }
func (f *fakeTutorial) PresentTutorialRequest()       { f.presented++ }
func (f *fakeTutorial) IsTutorialItem(item Item) bool { return item.ID() == f.itemID }
func (f *fakeTutorial) OnAccepted() {
	f.completed++
	f.active = false
}

type fixedSpeed float64

func (f fixedSpeed) Modifiers() upgrade.Modifiers {
	m := upgrade.DefaultModifiers()
	m.ScanSpeed = float64(f)
	return m
}

var testConfig = Config{
	ScanDuration:    1500 * time.Millisecond,
	PostAcceptDelay: time.Second,
	RejectDelay:     1500 * time.Millisecond,
	SkipDelay:       2 * time.Second,
	FallbackPrice:   10,
	PlacedZone:      Zone{Min: models.Vec3{X: -1, Y: -1, Z: -1}, Max: models.Vec3{X: 1, Y: 1, Z: 1}},
	ThrownZone:      Zone{Min: models.Vec3{X: 5, Y: 0, Z: 5}, Max: models.Vec3{X: 7, Y: 2, Z: 7}},
	ScanPoint:       models.Vec3{Y: 1},
	EjectDirection:  models.Vec3{Z: 2},
	EjectForce:      6,
	GeneratingText:  "Generating...",
}

type rig struct {
	sched   *task.Scheduler
	bus     *events.Bus
	machine *phase.Machine
	wallet  *economy.Ledger
	display *fakeDisplay
	gate    *Gate
	station *Station
	cues    []sfx.Cue
	scanned []events.Event
	skipped []events.Event
}

func newRig(t *testing.T, tweak func(*Deps)) *rig {
	t.Helper()
	r := &rig{
		sched:   task.NewScheduler(),
		bus:     events.NewBus(),
		display: &fakeDisplay{},
		gate:    NewGate(),
	}
	r.machine = phase.NewMachine(r.bus, nil, models.Vec3{}, nil)
	r.wallet = economy.NewLedger(100, nil, r.bus, nil)
	r.bus.Subscribe(events.KindItemScanned, func(e events.Event) { r.scanned = append(r.scanned, e) })
	r.bus.Subscribe(events.KindRequestSkipped, func(e events.Event) { r.skipped = append(r.skipped, e) })

	deps := Deps{
		Scheduler: r.sched,
		Phase:     r.machine,
		Wallet:    r.wallet,
		Prices:    catalog.Default(),
		Display:   r.display,
		Sound:     sfx.SinkFunc(func(c sfx.Cue, _ models.Vec3) { r.cues = append(r.cues, c) }),
		Bus:       r.bus,
		Gate:      r.gate,
		Rand:      rand.New(rand.NewSource(11)),
	}
	if tweak != nil {
		tweak(&deps)
	}
	r.station = New("counter-1", testConfig, deps)
	g := r.station.Attach(r.bus)
	t.Cleanup(g.Close)
	return r
}

// startDelivery enters Delivery and pins the request to req.
func (r *rig) startDelivery(req models.ItemType) {
	r.machine.TransitionTo(models.PhaseDelivery)
	if req.Valid() {
		r.station.request = req
		r.station.requestText = req.String()
	}
}

func placed(typ models.ItemType, price int) *fakeItem {
	return &fakeItem{id: "item-" + typ.String(), typ: typ, price: price, mode: models.DeliveryPlaced}
}

func TestGenerateRequest_OutsideDeliveryIsNoop(t *testing.T) {
	r := newRig(t, nil)
	r.station.GenerateRequest()

	assert.Equal(t, models.ItemUnknown, r.station.Request())
	assert.Equal(t, StateIdle, r.station.State())
	assert.Empty(t, r.display.texts)
}

func TestGenerateRequest_NeverSentinel(t *testing.T) {
	r := newRig(t, nil)
	r.startDelivery(models.ItemUnknown)

	for i := 0; i < 200; i++ {
		r.station.GenerateRequest()
		require.True(t, r.station.Request().Valid())
	}
	assert.Equal(t, StateAwaiting, r.station.State())
	assert.Equal(t, r.station.Request().String(), r.display.lastText(), "no comment bank falls back to the type name")
}

func TestGenerateRequest_UsesCommentBank(t *testing.T) {
	lines := map[models.ItemType][]string{}
	for _, it := range models.RequestableItems() {
		lines[it] = []string{"need " + it.String()}
	}
	r := newRig(t, func(d *Deps) { d.Prompts = catalog.NewCommentBank(3, lines) })
	r.startDelivery(models.ItemUnknown)

	assert.Equal(t, "need "+r.station.Request().String(), r.display.lastText())
	assert.Equal(t, []bool{true}, r.display.skipBtn)
}

func TestSubmit_AcceptFlow(t *testing.T) {
	r := newRig(t, nil)
	r.startDelivery(models.ItemMeat)
	item := placed(models.ItemMeat, 18)

	require.True(t, r.station.Submit(item))
	assert.True(t, item.placed)
	assert.Equal(t, StateScanning, r.station.State())
	assert.Equal(t, 1, r.display.scanning)

	r.sched.Advance(1499 * time.Millisecond)
	assert.Equal(t, 100, r.wallet.Balance())
	assert.Empty(t, r.scanned)

	r.sched.Advance(time.Millisecond)
	assert.Equal(t, 118, r.wallet.Balance())
	require.Len(t, r.scanned, 1)
	assert.Equal(t, models.ItemMeat, r.scanned[0].Item)
	assert.True(t, item.destroyed)
	assert.Equal(t, 1, r.display.accepted)
	assert.Equal(t, []int{18}, r.display.money)
	assert.Contains(t, r.cues, sfx.Acceptance)
	assert.True(t, r.station.Busy(), "gate held through the post-accept pause")

	r.sched.Advance(time.Second)
	assert.Equal(t, StateAwaiting, r.station.State())
	assert.False(t, r.station.Busy())
	assert.True(t, r.station.Request().Valid())
	assert.Len(t, r.scanned, 1)
}

func TestSubmit_RejectFlow(t *testing.T) {
	r := newRig(t, nil)
	r.startDelivery(models.ItemSoda)
	item := placed(models.ItemEggs, 8)

	require.True(t, r.station.Submit(item))
	r.sched.Advance(1500 * time.Millisecond)

	assert.Equal(t, 100, r.wallet.Balance())
	assert.Empty(t, r.scanned)
	assert.Equal(t, 1, r.display.rejected)
	assert.Contains(t, r.cues, sfx.Rejection)
	assert.Equal(t, 1, item.ejected)
	assert.Equal(t, models.Vec3{Z: 1}, item.ejectDir)
	assert.Equal(t, 6.0, item.force)
	assert.False(t, item.destroyed)

	textsBefore := len(r.display.texts)
	r.sched.Advance(1500 * time.Millisecond)
	require.Len(t, r.display.texts, textsBefore+1)
	assert.Equal(t, "Soda", r.display.lastText())
	assert.Equal(t, models.ItemSoda, r.station.Request())
	assert.Equal(t, StateAwaiting, r.station.State())
	assert.False(t, r.station.Busy())
}

func TestSubmit_Refusals(t *testing.T) {
	t.Run("outside delivery", func(t *testing.T) {
		r := newRig(t, nil)
		assert.False(t, r.station.Submit(placed(models.ItemMeat, 1)))
	})
	t.Run("held item", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		item := placed(models.ItemMeat, 1)
		item.held = true
		assert.False(t, r.station.Submit(item))
		assert.False(t, item.placed)
	})
	t.Run("placed outside zone", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		item := placed(models.ItemMeat, 1)
		item.pos = models.Vec3{X: 6, Y: 1, Z: 6}
		assert.False(t, r.station.Submit(item))
	})
	t.Run("thrown uses its own zone", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		item := placed(models.ItemMeat, 1)
		item.mode = models.DeliveryThrown
		assert.False(t, r.station.Submit(item))
		item.pos = models.Vec3{X: 6, Y: 1, Z: 6}
		assert.True(t, r.station.Submit(item))
	})
	t.Run("busy", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		require.True(t, r.station.Submit(placed(models.ItemMeat, 1)))
		second := placed(models.ItemMeat, 1)
		assert.False(t, r.station.Submit(second))
		assert.False(t, second.placed)
	})
	t.Run("nil item", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		assert.False(t, r.station.Submit(nil))
	})
}

func TestSharedGate_OneScanAtATime(t *testing.T) {
	r := newRig(t, nil)
	other := New("counter-2", testConfig, Deps{
		Scheduler: r.sched,
		Phase:     r.machine,
		Wallet:    r.wallet,
		Gate:      r.gate,
		Rand:      rand.New(rand.NewSource(5)),
	})
	g := other.Attach(r.bus)
	defer g.Close()

	r.startDelivery(models.ItemMeat)
	require.True(t, r.station.Submit(placed(models.ItemMeat, 18)))
	assert.False(t, other.Submit(placed(models.ItemMilk, 7)))

	r.sched.Advance(2500 * time.Millisecond)
	assert.True(t, other.Submit(placed(models.ItemMilk, 7)))
}

func TestSkip_ChargesHalfPrice(t *testing.T) {
	r := newRig(t, nil)
	r.startDelivery(models.ItemBeans)

	require.True(t, r.station.Skip())
	assert.Equal(t, 95, r.wallet.Balance())
	assert.Equal(t, []int{-5}, r.display.money)
	assert.Equal(t, []string{"Generating..."}, r.display.notes)
	assert.Empty(t, r.station.RequestText())
	assert.Equal(t, StateSkipping, r.station.State())
	require.Len(t, r.skipped, 1)
	assert.Equal(t, models.ItemBeans, r.skipped[0].Item)
	assert.Equal(t, 5, r.skipped[0].Amount)

	assert.False(t, r.station.Skip(), "second skip while one is in flight")
	assert.False(t, r.station.Submit(placed(models.ItemBeans, 10)), "no scans while skipping")

	r.sched.Advance(1999 * time.Millisecond)
	assert.Equal(t, models.ItemUnknown, r.station.Request())

	r.sched.Advance(time.Millisecond)
	assert.True(t, r.station.Request().Valid())
	assert.Equal(t, StateAwaiting, r.station.State())
	assert.Equal(t, 95, r.wallet.Balance())
	assert.True(t, r.station.Skip())
}

func TestSkip_Refusals(t *testing.T) {
	t.Run("no request", func(t *testing.T) {
		r := newRig(t, nil)
		assert.False(t, r.station.Skip())
	})
	t.Run("insufficient funds", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		require.True(t, r.wallet.TrySpend(100))
		assert.False(t, r.station.Skip())
		assert.Equal(t, models.ItemMeat, r.station.Request())
		assert.Empty(t, r.skipped)
	})
	t.Run("while scanning", func(t *testing.T) {
		r := newRig(t, nil)
		r.startDelivery(models.ItemMeat)
		require.True(t, r.station.Submit(placed(models.ItemMeat, 18)))
		assert.False(t, r.station.Skip())
	})
}

func TestSkip_FallbackPrice(t *testing.T) {
	r := newRig(t, func(d *Deps) { d.Prices = nil })
	r.startDelivery(models.ItemCheese)
	assert.Equal(t, 5, r.station.SkipPenalty())
	require.True(t, r.station.Skip())
	assert.Equal(t, 95, r.wallet.Balance())
}

func TestDeliveryEnded_CancelsScan(t *testing.T) {
	r := newRig(t, nil)
	r.startDelivery(models.ItemMeat)
	item := placed(models.ItemMeat, 18)
	require.True(t, r.station.Submit(item))

	r.sched.Advance(time.Second)
	r.machine.TransitionTo(models.PhaseStocking)

	assert.Equal(t, StateIdle, r.station.State())
	assert.Equal(t, models.ItemUnknown, r.station.Request())
	assert.False(t, r.station.Busy())
	assert.Equal(t, 1, item.ejected)
	assert.Equal(t, []bool{true, false}, r.display.skipBtn)

	r.sched.Advance(5 * time.Second)
	assert.Equal(t, 100, r.wallet.Balance())
	assert.Empty(t, r.scanned)
	assert.Zero(t, r.sched.Pending())
}

func TestDeliveryEnded_FromScannedHandler(t *testing.T) {
	r := newRig(t, nil)
	r.bus.Subscribe(events.KindItemScanned, func(events.Event) {
		r.machine.TransitionTo(models.PhaseStocking)
	})
	r.startDelivery(models.ItemMeat)
	require.True(t, r.station.Submit(placed(models.ItemMeat, 18)))

	r.sched.Advance(1500 * time.Millisecond)
	assert.Equal(t, 118, r.wallet.Balance())
	assert.Equal(t, StateIdle, r.station.State())
	assert.Zero(t, r.sched.Pending(), "post-accept follow-up must be cancelled")
}

func TestTutorial_Override(t *testing.T) {
	tut := &fakeTutorial{active: true, itemID: "starter-box"}
	r := newRig(t, func(d *Deps) { d.Tutorial = tut })
	r.startDelivery(models.ItemUnknown)

	assert.Equal(t, 1, tut.presented)
	assert.Equal(t, models.ItemUnknown, r.station.Request())
	assert.False(t, r.station.Skip(), "tutorial request cannot be skipped")

	wrong := placed(models.ItemMeat, 18)
	require.True(t, r.station.Submit(wrong))
	r.sched.Advance(3 * time.Second)
	assert.Equal(t, 1, wrong.ejected)
	assert.Equal(t, 2, tut.presented, "reject re-presents the tutorial prompt")

	starter := &fakeItem{id: "starter-box", typ: models.ItemBread, price: 5, mode: models.DeliveryPlaced}
	require.True(t, r.station.Submit(starter))
	r.sched.Advance(1500 * time.Millisecond)
	assert.Equal(t, 105, r.wallet.Balance())
	assert.Equal(t, 1, tut.completed)

	r.sched.Advance(time.Second)
	assert.True(t, r.station.Request().Valid(), "normal requests resume after the tutorial")
}

func TestTutorial_CompletionWakesOtherStations(t *testing.T) {
	tut := &fakeTutorial{active: true, itemID: "starter-box"}
	r := newRig(t, func(d *Deps) { d.Tutorial = tut })
	screen := &fakeDisplay{}
	other := New("counter-2", testConfig, Deps{
		Scheduler: r.sched,
		Phase:     r.machine,
		Wallet:    r.wallet,
		Prices:    catalog.Default(),
		Tutorial:  tut,
		Display:   screen,
		Bus:       r.bus,
		Gate:      r.gate,
		Rand:      rand.New(rand.NewSource(5)),
	})
	g := other.Attach(r.bus)
	defer g.Close()

	r.startDelivery(models.ItemUnknown)
	require.Equal(t, models.ItemUnknown, other.Request())

	starter := &fakeItem{id: "starter-box", typ: models.ItemBread, price: 5, mode: models.DeliveryPlaced}
	require.True(t, r.station.Submit(starter))
	r.sched.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, tut.completed)

	assert.True(t, other.Request().Valid(), "waiting station posts a real request")
	assert.Equal(t, StateAwaiting, other.State())
	assert.Equal(t, other.RequestText(), screen.lastText())

	r.sched.Advance(time.Second)
	assert.True(t, other.Skip(), "the new request can be skipped once the gate is free")
}

func TestTutorial_CompletionDuringRejectPostsRequest(t *testing.T) {
	tut := &fakeTutorial{active: true, itemID: "starter-box"}
	r := newRig(t, func(d *Deps) { d.Tutorial = tut })
	screen := &fakeDisplay{}
	other := New("counter-2", testConfig, Deps{
		Scheduler: r.sched,
		Phase:     r.machine,
		Wallet:    r.wallet,
		Prices:    catalog.Default(),
		Tutorial:  tut,
		Display:   screen,
		Bus:       r.bus,
		Gate:      NewGate(),
		Rand:      rand.New(rand.NewSource(5)),
	})
	g := other.Attach(r.bus)
	defer g.Close()
	r.startDelivery(models.ItemUnknown)

	starter := &fakeItem{id: "starter-box", typ: models.ItemBread, price: 5, mode: models.DeliveryPlaced}
	require.True(t, r.station.Submit(starter))
	wrong := placed(models.ItemMilk, 7)
	require.True(t, other.Submit(wrong))

	r.sched.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, tut.completed)
	assert.Equal(t, 1, wrong.ejected)
	assert.Equal(t, models.ItemUnknown, other.Request())

	r.sched.Advance(1500 * time.Millisecond)
	assert.True(t, other.Request().Valid())
	assert.NotEmpty(t, screen.lastText())
	assert.Equal(t, StateAwaiting, other.State())
}

func TestScanSpeed_ShortensScan(t *testing.T) {
	r := newRig(t, func(d *Deps) { d.Speed = fixedSpeed(2) })
	r.startDelivery(models.ItemMeat)
	require.True(t, r.station.Submit(placed(models.ItemMeat, 18)))

	r.sched.Advance(749 * time.Millisecond)
	assert.Empty(t, r.scanned)
	r.sched.Advance(time.Millisecond)
	assert.Len(t, r.scanned, 1)
}

func TestZone(t *testing.T) {
	z := Zone{Min: models.Vec3{X: 0, Y: 0, Z: 0}, Max: models.Vec3{X: 2, Y: 2, Z: 2}}
	assert.True(t, z.Contains(models.Vec3{X: 2, Y: 0, Z: 1}))
	assert.False(t, z.Contains(models.Vec3{X: 2.1, Y: 0, Z: 1}))
	assert.Equal(t, models.Vec3{X: 1, Y: 1, Z: 1}, z.Center())
}

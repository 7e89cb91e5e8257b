package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/stock"
	"github.com/gravitas-games/sortshift/internal/tutorial"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
)

type screen struct {
	scan.NopDisplay
	texts []string
}

func (s *screen) ShowRequestText(text string) { s.texts = append(s.texts, text) }

type recordingOutput struct {
	world.NopObserver
	screens map[string]*screen
	cues    []sfx.Cue
	events  []events.Kind
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{screens: make(map[string]*screen)}
}

func (o *recordingOutput) Play(cue sfx.Cue, _ models.Vec3) { o.cues = append(o.cues, cue) }
func (o *recordingOutput) Event(e events.Event)            { o.events = append(o.events, e.Kind) }

func (o *recordingOutput) Display(id string) scan.Display {
	s, ok := o.screens[id]
	if !ok {
		s = &screen{}
		o.screens[id] = s
	}
	return s
}

func (o *recordingOutput) count(kind events.Kind) int {
	n := 0
	for _, k := range o.events {
		if k == kind {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Game.Seed = 42
	return cfg
}

func newTestGame(t *testing.T, cfg *config.Config) (*Game, *recordingOutput, *persist.MemoryStore) {
	t.Helper()
	out := newRecordingOutput()
	store := persist.NewMemoryStore(nil)
	g, err := New(Options{Config: cfg, Store: store, Output: out, ShiftID: "test"})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g, out, store
}

// do applies cmd on a zero-length tick and returns its result.
func do(t *testing.T, g *Game, cmd Command) Result {
	t.Helper()
	var got *Result
	cmd.Reply = func(r Result) { got = &r }
	require.NoError(t, g.Enqueue(cmd))
	g.Tick(0)
	require.NotNil(t, got, "command %s was not applied", cmd.Kind)
	return *got
}

// spawnRequested puts an item matching station's request on the placed zone.
func spawnRequested(t *testing.T, g *Game, st *scan.Station) *world.Item {
	t.Helper()
	record, ok := g.catalog.Lookup(st.Request())
	require.True(t, ok, "request %s is in the catalog", st.Request())
	return g.world.Spawn(record, g.layout.PlacedZone.Center())
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_BuildsStations(t *testing.T) {
	cfg := testConfig()
	cfg.Game.Stations = 3
	g, _, _ := newTestGame(t, cfg)

	require.Len(t, g.Stations(), 3)
	assert.Equal(t, "station-1", g.Stations()[0].ID())
	assert.Equal(t, models.PhaseStocking, g.Phase())
	assert.Equal(t, cfg.Game.StartingBalance, g.Balance())
}

func TestDeliveryRound_AcceptPaysAndPostsNextRequest(t *testing.T) {
	g, out, _ := newTestGame(t, testConfig())

	res := do(t, g, Command{Kind: CmdStartDelivery})
	require.True(t, res.OK())
	assert.Equal(t, models.PhaseDelivery, g.Phase())

	st := g.Stations()[0]
	require.True(t, st.Request().Valid())
	item := spawnRequested(t, g, st)
	price := item.Price()

	res = do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()})
	require.True(t, res.OK())
	assert.Equal(t, scan.StateScanning, st.State())

	g.Tick(g.cfg.Game.ScanDuration)
	assert.Equal(t, 100+price, g.Balance())
	assert.Equal(t, 1, out.count(events.KindItemScanned))
	_, exists := g.World().Get(item.ID())
	assert.False(t, exists, "accepted item is destroyed")
	assert.Contains(t, out.cues, sfx.Acceptance)

	g.Tick(g.cfg.Game.PostAcceptDelay)
	assert.Equal(t, scan.StateAwaiting, st.State())
	assert.False(t, st.Busy())
	assert.Equal(t, 2, out.count(events.KindRequestPosted))
}

func TestDeliveryRound_TimerExpiryReturnsToStocking(t *testing.T) {
	g, out, store := newTestGame(t, testConfig())
	do(t, g, Command{Kind: CmdStartDelivery})

	for i := 0; i < 59; i++ {
		g.Tick(time.Second)
	}
	assert.Equal(t, models.PhaseDelivery, g.Phase())

	g.Tick(time.Second)
	assert.Equal(t, models.PhaseStocking, g.Phase())
	assert.Equal(t, 1, out.count(events.KindTimerExpired))
	assert.Equal(t, 10, out.count(events.KindTimerWarning))
	assert.Equal(t, models.ItemUnknown, g.Stations()[0].Request())
	assert.Positive(t, store.Flushes(), "entering stocking flushes save data")
}

func TestDeliveryRound_QuotaEndsRoundEarly(t *testing.T) {
	cfg := testConfig()
	cfg.Game.RequestQuota = 1
	g, out, _ := newTestGame(t, cfg)
	do(t, g, Command{Kind: CmdStartDelivery})

	st := g.Stations()[0]
	item := spawnRequested(t, g, st)
	require.True(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()}).OK())

	g.Tick(cfg.Game.ScanDuration)
	assert.Equal(t, models.PhaseStocking, g.Phase())
	assert.Equal(t, 1, out.count(events.KindQuotaMet))

	// The post-accept follow-up was cancelled with the round.
	g.Tick(cfg.Game.PostAcceptDelay)
	assert.Equal(t, scan.StateIdle, st.State())
	assert.Equal(t, 1, out.count(events.KindRequestPosted))
}

func TestSkipRequest(t *testing.T) {
	g, out, _ := newTestGame(t, testConfig())
	do(t, g, Command{Kind: CmdStartDelivery})
	st := g.Stations()[0]
	penalty := st.SkipPenalty()

	require.True(t, do(t, g, Command{Kind: CmdSkipRequest}).OK())
	assert.Equal(t, 100-penalty, g.Balance())
	assert.Equal(t, 1, out.count(events.KindRequestSkipped))

	assert.ErrorIs(t, do(t, g, Command{Kind: CmdSkipRequest}).Err, ErrRefused, "skip already in flight")

	g.Tick(g.cfg.Game.SkipDelay)
	assert.True(t, st.Request().Valid())
	assert.Equal(t, scan.StateAwaiting, st.State())
}

func TestCommand_Errors(t *testing.T) {
	g, _, _ := newTestGame(t, testConfig())

	assert.ErrorIs(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: "nope"}).Err, ErrUnknownItem)
	assert.ErrorIs(t, do(t, g, Command{Kind: CmdSkipRequest, StationID: "station-9"}).Err, ErrUnknownStation)
	assert.ErrorIs(t, do(t, g, Command{Kind: CmdItemUpdate, ItemID: "nope"}).Err, ErrUnknownItem)
	assert.ErrorIs(t, do(t, g, Command{Kind: CmdEndDelivery}).Err, ErrRefused, "already stocking")
	assert.ErrorIs(t, do(t, g, Command{Kind: CmdBuyUpgrade, UpgradeID: "nope"}).Err, ErrRefused)
	assert.ErrorIs(t, do(t, g, Command{Kind: CommandKind(99)}).Err, ErrUnknownCommand)
}

func TestEnqueue_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Session.CommandQueue = 1
	g, _, _ := newTestGame(t, cfg)

	require.NoError(t, g.Enqueue(Command{Kind: CmdStatus}))
	assert.ErrorIs(t, g.Enqueue(Command{Kind: CmdStatus}), ErrQueueFull)

	g.Tick(0)
	assert.NoError(t, g.Enqueue(Command{Kind: CmdStatus}))
}

func TestOrderStock(t *testing.T) {
	g, out, _ := newTestGame(t, testConfig())

	res := do(t, g, Command{Kind: CmdOrderStock, Lines: []stock.Line{{Type: models.ItemSoda, Quantity: 6}}})
	require.True(t, res.OK())
	require.NotNil(t, res.Receipt)
	assert.Len(t, res.Receipt.Crates, 2)
	assert.Equal(t, 6, g.World().Len())
	assert.Equal(t, 100-res.Receipt.Cost, g.Balance())
	assert.Equal(t, 2, out.count(events.KindCrateSpawned))

	do(t, g, Command{Kind: CmdStartDelivery})
	res = do(t, g, Command{Kind: CmdOrderStock, Lines: []stock.Line{{Type: models.ItemSoda, Quantity: 1}}})
	assert.ErrorIs(t, res.Err, stock.ErrWrongPhase)
}

func TestBuyUpgrade_ExtendsNextRound(t *testing.T) {
	cfg := testConfig()
	cfg.Game.StartingBalance = 500
	g, _, store := newTestGame(t, cfg)

	require.True(t, do(t, g, Command{Kind: CmdBuyUpgrade, UpgradeID: "clock"}).OK())
	assert.Equal(t, 1, store.GetInt("upgrade_delivery_time_bonus_clock", 0))

	do(t, g, Command{Kind: CmdStartDelivery})
	assert.Equal(t, 70*time.Second, g.timer.Remaining())
}

func TestItemUpdate_HoldAndRelease(t *testing.T) {
	g, _, _ := newTestGame(t, testConfig())
	do(t, g, Command{Kind: CmdStartDelivery})
	st := g.Stations()[0]
	item := spawnRequested(t, g, st)

	res := do(t, g, Command{Kind: CmdItemUpdate, PlayerID: "p1", ItemID: item.ID(), Position: item.Position(), Held: true})
	require.True(t, res.OK())
	assert.True(t, item.IsHeld())
	assert.ErrorIs(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()}).Err, ErrRefused, "held items cannot be scanned")

	do(t, g, Command{Kind: CmdPlayerLeft, PlayerID: "p1"})
	assert.False(t, item.IsHeld())
	assert.True(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()}).OK())
}

func TestTutorial_FirstRound(t *testing.T) {
	cfg := testConfig()
	cfg.Tutorial.Enabled = true
	g, out, store := newTestGame(t, cfg)

	do(t, g, Command{Kind: CmdStartDelivery})
	require.Equal(t, 1, g.World().Len(), "tutorial item spawned")
	id := g.tutorial.ItemID()
	require.NotEmpty(t, id)
	assert.Equal(t, models.ItemUnknown, g.Stations()[0].Request())
	assert.Contains(t, out.screens["station-1"].texts, cfg.Tutorial.Prompt)

	res := do(t, g, Command{Kind: CmdItemUpdate, ItemID: id, Position: g.layout.PlacedZone.Center(), Mode: models.DeliveryPlaced})
	require.True(t, res.OK())
	require.True(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: id}).OK())
	g.Tick(cfg.Game.ScanDuration)
	g.Tick(cfg.Game.PostAcceptDelay)

	assert.False(t, g.tutorial.IsActive())
	assert.Equal(t, 1, store.GetInt(tutorial.CompleteKey, 0))
	assert.True(t, g.Stations()[0].Request().Valid(), "normal requests follow the tutorial")
}

func TestTutorial_CompletionStartsEveryStation(t *testing.T) {
	cfg := testConfig()
	cfg.Game.Stations = 2
	cfg.Tutorial.Enabled = true
	g, out, _ := newTestGame(t, cfg)

	do(t, g, Command{Kind: CmdStartDelivery})
	second := g.Stations()[1]
	require.Equal(t, models.ItemUnknown, second.Request())
	assert.Contains(t, out.screens["station-2"].texts, cfg.Tutorial.Prompt)

	id := g.tutorial.ItemID()
	require.True(t, do(t, g, Command{Kind: CmdItemUpdate, ItemID: id, Position: g.layout.PlacedZone.Center(), Mode: models.DeliveryPlaced}).OK())
	require.True(t, do(t, g, Command{Kind: CmdScanSubmit, StationID: "station-1", ItemID: id}).OK())
	g.Tick(cfg.Game.ScanDuration)

	require.False(t, g.tutorial.IsActive())
	assert.Equal(t, 1, out.count(events.KindTutorialCompleted))
	require.True(t, second.Request().Valid(), "station-2 leaves the tutorial with a real request")
	texts := out.screens["station-2"].texts
	assert.Equal(t, second.RequestText(), texts[len(texts)-1])

	g.Tick(cfg.Game.PostAcceptDelay)
	item := spawnRequested(t, g, second)
	require.True(t, do(t, g, Command{Kind: CmdScanSubmit, StationID: "station-2", ItemID: item.ID()}).OK())
	before := g.Balance()
	g.Tick(cfg.Game.ScanDuration)
	assert.Equal(t, before+item.Price(), g.Balance(), "station-2 accepts its requested item")
}

func TestReject_EjectedItemCannotBeResubmittedInPlace(t *testing.T) {
	cfg := testConfig()
	g, _, _ := newTestGame(t, cfg)
	do(t, g, Command{Kind: CmdStartDelivery})
	st := g.Stations()[0]

	wrongType := models.ItemMeat
	if st.Request() == wrongType {
		wrongType = models.ItemSoda
	}
	record, ok := g.catalog.Lookup(wrongType)
	require.True(t, ok)
	item := g.world.Spawn(record, g.layout.PlacedZone.Center())

	require.True(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()}).OK())
	g.Tick(cfg.Game.ScanDuration)
	g.Tick(cfg.Game.RejectDelay)
	require.Equal(t, scan.StateAwaiting, st.State())
	assert.False(t, g.layout.PlacedZone.Contains(item.Position()))

	res := do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()})
	assert.ErrorIs(t, res.Err, ErrRefused)

	do(t, g, Command{Kind: CmdItemUpdate, ItemID: item.ID(), Position: g.layout.PlacedZone.Center(), Mode: models.DeliveryPlaced})
	assert.True(t, do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()}).OK(), "carried back, it can be scanned again")
}

func TestResetProgress(t *testing.T) {
	cfg := testConfig()
	cfg.Game.StartingBalance = 500
	g, _, _ := newTestGame(t, cfg)
	do(t, g, Command{Kind: CmdBuyUpgrade, UpgradeID: "arm"})
	do(t, g, Command{Kind: CmdOrderStock, Lines: []stock.Line{{Type: models.ItemMilk, Quantity: 2}}})
	do(t, g, Command{Kind: CmdStartDelivery})

	require.True(t, do(t, g, Command{Kind: CmdResetProgress}).OK())
	assert.Equal(t, models.PhaseStocking, g.Phase())
	assert.Zero(t, g.World().Len())
	assert.Zero(t, g.Upgrades().Level("arm"))
}

func TestStatus_ReportsModifiers(t *testing.T) {
	g, _, _ := newTestGame(t, testConfig())
	require.True(t, do(t, g, Command{Kind: CmdBuyUpgrade, UpgradeID: "arm"}).OK())

	s := g.Status()
	assert.InDelta(t, 1.2, s.Modifiers.ThrowStrength, 1e-9)
	assert.InDelta(t, 1.0, s.Modifiers.MoveSpeed, 1e-9)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"throw_strength":1.2`)
}

func TestStatus(t *testing.T) {
	g, _, _ := newTestGame(t, testConfig())
	do(t, g, Command{Kind: CmdStartDelivery})

	res := do(t, g, Command{Kind: CmdStatus})
	require.NotNil(t, res.Status)
	s := res.Status
	assert.Equal(t, "test", s.Shift)
	assert.Equal(t, models.PhaseDelivery, s.Phase)
	assert.Equal(t, 1, s.Round)
	assert.InDelta(t, 60, s.Remaining, 0.001)
	require.Len(t, s.Stations, 1)
	assert.Equal(t, "awaiting", s.Stations[0].State)
	assert.Positive(t, s.Stations[0].SkipPenalty)
	assert.Len(t, s.Upgrades, 4)
	assert.Len(t, s.Chutes, 2)
	assert.NotEmpty(t, s.Catalog)
}

func TestRelay_ForwardsScans(t *testing.T) {
	pub := &fakePublisher{}
	g, err := New(Options{Config: testConfig(), Relay: pub, ShiftID: "relay"})
	require.NoError(t, err)
	defer g.Close()

	do(t, g, Command{Kind: CmdStartDelivery})
	item := spawnRequested(t, g, g.Stations()[0])
	do(t, g, Command{Kind: CmdScanSubmit, ItemID: item.ID()})
	g.Tick(g.cfg.Game.ScanDuration)

	assert.Contains(t, pub.subjects, "sortshift.events.item_scanned")
}

func TestClose_FlushesAndDetaches(t *testing.T) {
	out := newRecordingOutput()
	store := persist.NewMemoryStore(nil)
	g, err := New(Options{Config: testConfig(), Store: store, Output: out})
	require.NoError(t, err)

	g.Close()
	assert.Positive(t, store.Flushes())
	assert.Zero(t, g.Bus().Count(events.KindDeliveryStarted))
}

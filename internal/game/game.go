// Package game owns one shift: it wires the phase cycle, the countdown, the
// scan stations, the shops and the floor together, and runs them on a fixed
// tick. Transport goroutines never touch game state directly; they enqueue
// commands that Tick applies in order.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gravitas-games/sortshift/internal/catalog"
	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/economy"
	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/floor"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/internal/phase"
	"github.com/gravitas-games/sortshift/internal/relay"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/stock"
	"github.com/gravitas-games/sortshift/internal/task"
	"github.com/gravitas-games/sortshift/internal/timer"
	"github.com/gravitas-games/sortshift/internal/tutorial"
	"github.com/gravitas-games/sortshift/internal/upgrade"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the game loop is behind.
var ErrQueueFull = errors.New("game: command queue full")

// Output is where the game sends everything players should see or hear.
// The server implements it by broadcasting to connections.
type Output interface {
	sfx.Sink
	world.Observer
	// Display returns the screen of one scan station.
	Display(stationID string) scan.Display
	// Event is called for every event published on the game bus.
	Event(e events.Event)
}

// Options configures New. Config is required; the rest may be nil.
type Options struct {
	Config  *config.Config
	Store   persist.Store
	Output  Output
	Relay   relay.Publisher
	ShiftID string
	Logger  *slog.Logger
}

// Game is one running shift.
type Game struct {
	cfg    *config.Config
	logger *slog.Logger
	output Output

	bus   *events.Bus
	sched *task.Scheduler
	store persist.Store

	wallet   *economy.Ledger
	upgrades *upgrade.Ledger
	phase    *phase.Machine
	timer    *timer.Timer
	gate     *scan.Gate
	stations []*scan.Station
	byID     map[string]*scan.Station

	catalog  *catalog.Catalog
	comments *catalog.CommentBank
	tutorial *tutorial.Tutorial
	world    *world.World
	layout   *floor.Layout
	pool     *distribution.Pool
	desk     *stock.Desk
	relay    *relay.Relay

	groups   []*events.Group
	commands chan Command

	shiftID    string
	accepted   int
	ticks      int64
	sinceFlush time.Duration
}

// New builds a shift from configuration.
func New(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("game: config is required")
	}
	logger := logging.OrDiscard(opts.Logger)
	store := opts.Store
	if store == nil {
		logger.Warn("no store configured; progress will not survive a restart")
		store = persist.NewMemoryStore(nil)
	}
	queue := cfg.Session.CommandQueue
	if queue < 1 {
		queue = 256
	}
	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cat := catalog.Default()
	if len(cfg.Catalog) > 0 {
		var err error
		if cat, err = catalog.New(cfg.Catalog...); err != nil {
			return nil, fmt.Errorf("failed to build catalog: %w", err)
		}
	}
	layout, err := floor.New(cfg.Floor)
	if err != nil {
		return nil, fmt.Errorf("failed to build floor: %w", err)
	}

	g := &Game{
		cfg:      cfg,
		logger:   logger,
		output:   opts.Output,
		bus:      events.NewBus(),
		sched:    task.NewScheduler(),
		store:    store,
		gate:     scan.NewGate(),
		byID:     make(map[string]*scan.Station),
		catalog:  cat,
		comments: catalog.NewCommentBank(seed, cfg.CommentLines()),
		layout:   layout,
		pool:     layout.Pool(seed),
		commands: make(chan Command, queue),
		shiftID:  opts.ShiftID,
	}
	if g.output == nil {
		g.output = nopOutput{}
	}
	if g.shiftID == "" {
		g.shiftID = "shift"
	}

	g.wallet = economy.NewLedger(cfg.Game.StartingBalance, store, g.bus, logger.With("subsystem", "economy"))
	g.upgrades = upgrade.NewLedger(cfg.Upgrades, store, g.wallet, g.bus, logger.With("subsystem", "upgrade"))
	g.phase = phase.NewMachine(g.bus, g.output, layout.Speaker, logger.With("subsystem", "phase"))
	g.timer = timer.New(timer.Config{
		Base:    cfg.Game.DeliveryDuration,
		LowTime: cfg.Game.LowTimeThreshold,
		TickAt:  layout.Speaker,
	}, g.upgrades, g.bus, g.output, logger.With("subsystem", "timer"))
	g.world = world.New(g.output, logger.With("subsystem", "world"))

	stationIDs := make([]string, cfg.Game.Stations)
	for i := range stationIDs {
		stationIDs[i] = fmt.Sprintf("station-%d", i+1)
	}
	g.tutorial = tutorial.New(tutorial.Config{
		Enabled:  cfg.Tutorial.Enabled,
		Prompt:   cfg.Tutorial.Prompt,
		ItemType: models.ParseItemType(cfg.Tutorial.Item),
		ItemName: cfg.Tutorial.ItemName,
	}, store, stationScreens{output: g.output, ids: stationIDs}, logger.With("subsystem", "tutorial"))

	rng := rand.New(rand.NewSource(seed))
	for _, id := range stationIDs {
		st := scan.New(id, scan.Config{
			ScanDuration:    cfg.Game.ScanDuration,
			PostAcceptDelay: cfg.Game.PostAcceptDelay,
			RejectDelay:     cfg.Game.RejectDelay,
			SkipDelay:       cfg.Game.SkipDelay,
			FallbackPrice:   cfg.Game.FallbackPrice,
			PlacedZone:      layout.PlacedZone,
			ThrownZone:      layout.ThrownZone,
			ScanPoint:       layout.ScanPoint,
			EjectDirection:  layout.EjectDirection,
			EjectForce:      cfg.Game.EjectForce,
			GeneratingText:  cfg.Game.GeneratingText,
		}, scan.Deps{
			Scheduler: g.sched,
			Phase:     g.phase,
			Wallet:    g.wallet,
			Prices:    cat,
			Prompts:   g.comments,
			Tutorial:  g.tutorial,
			Speed:     g.upgrades,
			Display:   g.output.Display(id),
			Sound:     g.output,
			Bus:       g.bus,
			Gate:      g.gate,
			Rand:      rand.New(rand.NewSource(rng.Int63())),
			Logger:    logger.With("subsystem", "scan"),
		})
		g.stations = append(g.stations, st)
		g.byID[id] = st
	}

	g.desk = stock.NewDesk(stock.Config{
		CrateCapacity: cfg.Game.CrateCapacity,
		Wholesale:     cfg.Game.Wholesale,
	}, cat, g.wallet, g.phase, g.pool, g.world, g.output, g.bus, logger.With("subsystem", "stock"))

	if opts.Relay != nil {
		g.relay = relay.New(opts.Relay, cfg.Relay.SubjectPrefix, g.shiftID, logger.With("subsystem", "relay"))
	}

	g.attach()
	logger.Info("shift ready",
		"shift", g.shiftID,
		"stations", len(g.stations),
		"chutes", g.pool.Len(),
		"catalog", cat.Len(),
		"upgrades", len(g.upgrades.Definitions()),
		"tutorial", g.tutorial.IsActive(),
	)
	return g, nil
}

// attach subscribes every component. Order matters: the timer and the
// stations hear DeliveryStarted before the round bookkeeping does.
func (g *Game) attach() {
	g.groups = append(g.groups, g.timer.Attach(g.bus))
	for _, st := range g.stations {
		g.groups = append(g.groups, st.Attach(g.bus))
	}

	rules := events.NewGroup(g.bus)
	rules.On(events.KindDeliveryStarted, func(events.Event) {
		g.accepted = 0
		g.spawnTutorialItem()
	})
	rules.On(events.KindTimerExpired, func(events.Event) {
		g.phase.TransitionTo(models.PhaseStocking)
	})
	rules.On(events.KindItemScanned, g.countAccepted)
	rules.On(events.KindStockingStarted, func(events.Event) {
		g.flush("stocking")
	})
	g.groups = append(g.groups, rules)

	if g.relay != nil {
		g.groups = append(g.groups, g.relay.Attach(g.bus))
	}

	out := events.NewGroup(g.bus)
	for _, kind := range allKinds {
		out.On(kind, g.observe)
	}
	g.groups = append(g.groups, out)
}

func (g *Game) countAccepted(e events.Event) {
	g.accepted++
	quota := g.cfg.Game.RequestQuota
	if quota <= 0 || g.accepted < quota || g.phase.Current() != models.PhaseDelivery {
		return
	}
	g.logger.Info("request quota met", "accepted", g.accepted, "round", g.phase.Round())
	g.bus.Publish(events.Event{Kind: events.KindQuotaMet, Phase: models.PhaseDelivery, Amount: g.accepted})
	g.phase.TransitionTo(models.PhaseStocking)
}

func (g *Game) spawnTutorialItem() {
	if !g.tutorial.IsActive() {
		return
	}
	if _, ok := g.world.Get(g.tutorial.ItemID()); ok {
		return
	}
	itemType, name := g.tutorial.Item()
	record, ok := g.catalog.Lookup(itemType)
	if !ok {
		record = models.ItemRecord{Type: itemType, Price: g.cfg.Game.FallbackPrice}
	}
	record.Name = name
	item := g.world.Spawn(record, g.layout.TutorialSpawn)
	g.tutorial.Bind(item.ID())
}

func (g *Game) observe(e events.Event) {
	recordEvent(e)
	g.output.Event(e)
}

func (g *Game) flush(reason string) {
	g.sinceFlush = 0
	if err := g.store.Flush(); err != nil {
		g.logger.Warn("failed to flush save data", "reason", reason, "error", err)
		metricFlushErrors.Inc()
	}
}

// Enqueue queues cmd for the next tick. It never blocks.
func (g *Game) Enqueue(cmd Command) error {
	select {
	case g.commands <- cmd:
		return nil
	default:
		metricCommandsDropped.Inc()
		return ErrQueueFull
	}
}

// Tick advances the shift by dt: queued commands first, then due tasks,
// then the countdown, then the periodic flush.
func (g *Game) Tick(dt time.Duration) {
	g.ticks++
	g.drain()
	g.sched.Advance(dt)
	g.timer.Tick(dt)

	if interval := g.cfg.Storage.FlushInterval; interval > 0 {
		g.sinceFlush += dt
		if g.sinceFlush >= interval {
			g.flush("interval")
		}
	}
	metricTickSeconds.Observe(dt.Seconds())
}

func (g *Game) drain() {
	for {
		select {
		case cmd := <-g.commands:
			g.apply(cmd)
		default:
			return
		}
	}
}

// Run ticks at tickRate Hz until ctx is cancelled, then flushes and detaches.
func (g *Game) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := time.Now()
	g.logger.Info("shift running", "tick_rate", tickRate)
	for {
		select {
		case <-ctx.Done():
			g.Close()
			return ctx.Err()
		case now := <-ticker.C:
			g.Tick(now.Sub(last))
			last = now
		}
	}
}

// Close detaches every subscription and flushes the store.
func (g *Game) Close() {
	for _, grp := range g.groups {
		grp.Close()
	}
	g.groups = nil
	g.flush("shutdown")
	g.logger.Info("shift closed", "shift", g.shiftID, "ticks", g.ticks)
}

// Bus returns the game event bus.
func (g *Game) Bus() *events.Bus { return g.bus }

// Phase returns the current phase.
func (g *Game) Phase() models.Phase { return g.phase.Current() }

// Balance returns the current balance.
func (g *Game) Balance() int { return g.wallet.Balance() }

// Stations returns the scan stations in order.
func (g *Game) Stations() []*scan.Station { return g.stations }

// World returns the item registry.
func (g *Game) World() *world.World { return g.world }

// Upgrades returns the upgrade ledger.
func (g *Game) Upgrades() *upgrade.Ledger { return g.upgrades }

// Catalog returns the item catalog.
func (g *Game) Catalog() *catalog.Catalog { return g.catalog }

// stationScreens shows tutorial text on every station.
type stationScreens struct {
	output Output
	ids    []string
}

func (s stationScreens) ShowRequestText(text string) {
	for _, id := range s.ids {
		s.output.Display(id).ShowRequestText(text)
	}
}

type nopOutput struct {
	world.NopObserver
}

func (nopOutput) Play(sfx.Cue, models.Vec3)   {}
func (nopOutput) Display(string) scan.Display { return scan.NopDisplay{} }
func (nopOutput) Event(events.Event)          {}

// Package scan implements the scan station: it posts item requests during
// Delivery, scans delivered items and pays out or rejects them, and sells
// request skips.
//
// A station runs entirely on the game loop. Timed steps (scan duration,
// post-accept pause, reject redisplay, skip delay) are tasks on the shared
// frame-clock scheduler, and each replaces whatever pending task it
// supersedes.
package scan

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/gravitas-games/sortshift/internal/events"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/sfx"
	"github.com/gravitas-games/sortshift/internal/task"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// maxDrawAttempts bounds redraws when a request draw lands on the sentinel.
const maxDrawAttempts = 8

// State is the station's position in the request/scan cycle.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateScanning
	StateSkipping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateScanning:
		return "scanning"
	case StateSkipping:
		return "skipping"
	default:
		return "unknown"
	}
}

// Config holds a station's timings, zones and penalties.
type Config struct {
	ScanDuration    time.Duration
	PostAcceptDelay time.Duration
	RejectDelay     time.Duration
	SkipDelay       time.Duration

	// FallbackPrice prices a skip when the requested type is not in the catalog.
	FallbackPrice int

	PlacedZone Zone
	ThrownZone Zone
	ScanPoint  models.Vec3

	EjectDirection models.Vec3
	EjectForce     float64

	GeneratingText string
}

// Deps are the collaborators a station is wired to. Scheduler and Phase are
// required; everything else degrades to a no-op or fallback when nil.
type Deps struct {
	Scheduler *task.Scheduler
	Phase     PhaseReader
	Wallet    Wallet
	Prices    PriceBook
	Prompts   Prompter
	Tutorial  Tutorial
	Speed     SpeedSource
	Display   Display
	Sound     sfx.Sink
	Bus       events.Publisher
	Gate      *Gate
	Rand      *rand.Rand
	Logger    *slog.Logger
}

// Station is one scan counter.
type Station struct {
	id  string
	cfg Config

	sched    *task.Scheduler
	phase    PhaseReader
	wallet   Wallet
	prices   PriceBook
	prompts  Prompter
	tutorial Tutorial
	speed    SpeedSource
	display  Display
	sound    sfx.Sink
	bus      events.Publisher
	gate     *Gate
	rng      *rand.Rand
	logger   *slog.Logger

	state       State
	request     models.ItemType
	requestText string
	current     Item

	pending task.Slot
	skip    task.Slot
}

// New creates an idle station.
func New(id string, cfg Config, deps Deps) *Station {
	if cfg.GeneratingText == "" {
		cfg.GeneratingText = "Generating new request..."
	}
	s := &Station{
		id:       id,
		cfg:      cfg,
		sched:    deps.Scheduler,
		phase:    deps.Phase,
		wallet:   deps.Wallet,
		prices:   deps.Prices,
		prompts:  deps.Prompts,
		tutorial: deps.Tutorial,
		speed:    deps.Speed,
		display:  deps.Display,
		sound:    sfx.OrNop(deps.Sound),
		bus:      deps.Bus,
		gate:     deps.Gate,
		rng:      deps.Rand,
		logger:   logging.OrDiscard(deps.Logger).With("station", id),
	}
	if s.display == nil {
		s.display = NopDisplay{}
	}
	if s.bus == nil {
		s.bus = events.NullPublisher{}
	}
	if s.gate == nil {
		s.gate = NewGate()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.wallet == nil {
		s.logger.Warn("station has no wallet; payouts and skips are disabled")
	}
	return s
}

// ID returns the station identifier.
func (s *Station) ID() string { return s.id }

// State returns the current cycle state.
func (s *Station) State() State { return s.state }

// Request returns the active request, or ItemUnknown when none is posted.
func (s *Station) Request() models.ItemType { return s.request }

// RequestText returns the text last shown for the active request.
func (s *Station) RequestText() string { return s.requestText }

// Busy reports whether this station holds the shared gate.
func (s *Station) Busy() bool { return s.gate.HeldBy(s) }

func (s *Station) inDelivery() bool {
	return s.phase != nil && s.phase.Current() == models.PhaseDelivery
}

func (s *Station) tutorialActive() bool {
	return s.tutorial != nil && s.tutorial.IsActive()
}

// GenerateRequest posts a new request. It does nothing outside Delivery.
func (s *Station) GenerateRequest() {
	if !s.inDelivery() {
		return
	}
	if s.state == StateIdle {
		s.state = StateAwaiting
	}

	if s.tutorialActive() {
		s.request = models.ItemUnknown
		s.requestText = ""
		s.tutorial.PresentTutorialRequest()
		s.bus.Publish(events.Event{
			Kind:  events.KindRequestPosted,
			Phase: models.PhaseDelivery,
			Data:  map[string]any{"station": s.id, "tutorial": true},
		})
		return
	}

	items := models.RequestableItems()
	next := models.ItemUnknown
	for i := 0; i < maxDrawAttempts && !next.Valid(); i++ {
		next = items[s.rng.Intn(len(items))]
	}
	if !next.Valid() {
		s.logger.Warn("request draw kept landing on the sentinel; keeping previous request")
		return
	}

	text, ok := "", false
	if s.prompts != nil {
		text, ok = s.prompts.PromptFor(next)
	}
	if !ok {
		text = next.String()
	}

	s.request = next
	s.requestText = text
	s.display.ShowRequestText(text)
	s.logger.Debug("request posted", "item", next.String())
	s.bus.Publish(events.Event{
		Kind:  events.KindRequestPosted,
		Phase: models.PhaseDelivery,
		Item:  next,
		Data:  map[string]any{"station": s.id, "text": text},
	})
}

func (s *Station) zoneFor(mode models.DeliveryMode) Zone {
	if mode == models.DeliveryThrown {
		return s.cfg.ThrownZone
	}
	return s.cfg.PlacedZone
}

func (s *Station) scanDuration() time.Duration {
	if s.speed == nil {
		return s.cfg.ScanDuration
	}
	return s.speed.Modifiers().ScaleScan(s.cfg.ScanDuration)
}

// Submit starts scanning item. It returns false and changes nothing when the
// gate is busy, a skip is in flight, the phase is not Delivery, the item is
// held, or the item is outside the zone for its delivery mode.
func (s *Station) Submit(item Item) bool {
	if item == nil {
		return false
	}
	if s.state == StateScanning || s.state == StateSkipping || s.gate.Busy() {
		return false
	}
	if !s.inDelivery() {
		return false
	}
	if item.IsHeld() {
		return false
	}
	if !s.zoneFor(item.Mode()).Contains(item.Position()) {
		return false
	}
	if !s.gate.acquire(s) {
		return false
	}

	s.current = item
	s.state = StateScanning
	item.PlaceAtScanPoint(s.cfg.ScanPoint)
	s.display.ShowScanningIndicator()

	d := s.scanDuration()
	s.logger.Debug("scan started", "item_id", item.ID(), "declared", item.DeclaredType().String(), "duration", d)
	s.pending.Replace(s.sched, d, s.resolve)
	return true
}

func (s *Station) resolve() {
	item := s.current
	if item == nil {
		return
	}
	s.current = nil

	tutorial := s.tutorialActive()
	var matched bool
	if tutorial {
		matched = s.tutorial.IsTutorialItem(item)
	} else {
		matched = s.request.Valid() && item.DeclaredType() == s.request
	}

	if matched {
		s.accept(item, tutorial)
	} else {
		s.reject(item)
	}
}

func (s *Station) accept(item Item, tutorial bool) {
	price := item.Price()
	declared := item.DeclaredType()
	if s.wallet != nil {
		s.wallet.Add(price)
	}
	s.display.SpawnMoneyNotification(price)
	s.display.ShowAcceptedIndicator()
	s.sound.Play(sfx.Acceptance, s.cfg.ScanPoint)
	item.Destroy()
	if tutorial {
		s.tutorial.OnAccepted()
	}

	s.pending.Replace(s.sched, s.cfg.PostAcceptDelay, func() {
		s.gate.release(s)
		s.state = StateAwaiting
		s.GenerateRequest()
	})

	s.logger.Info("item accepted", "item_id", item.ID(), "item", declared.String(), "price", price)
	if tutorial && !s.tutorialActive() {
		s.bus.Publish(events.Event{
			Kind:  events.KindTutorialCompleted,
			Phase: models.PhaseDelivery,
			Item:  declared,
			Data:  map[string]any{"station": s.id, "item_id": item.ID()},
		})
	}
	// Published last: a handler may end Delivery, which must cancel the
	// follow-up scheduled above.
	s.bus.Publish(events.Event{
		Kind:   events.KindItemScanned,
		Phase:  models.PhaseDelivery,
		Item:   declared,
		Amount: price,
		Data:   map[string]any{"station": s.id, "item_id": item.ID()},
	})
}

func (s *Station) reject(item Item) {
	declared := item.DeclaredType()
	s.display.ShowRejectedIndicator()
	s.sound.Play(sfx.Rejection, s.cfg.ScanPoint)
	item.EjectWithImpulse(s.cfg.EjectDirection.Normalized(), s.cfg.EjectForce)

	s.pending.Replace(s.sched, s.cfg.RejectDelay, func() {
		s.gate.release(s)
		s.state = StateAwaiting
		switch {
		case s.tutorialActive():
			s.tutorial.PresentTutorialRequest()
		case s.request.Valid():
			s.display.ShowRequestText(s.requestText)
		default:
			// The tutorial ended elsewhere while this item was being rejected.
			s.GenerateRequest()
		}
	})

	s.logger.Info("item rejected", "item_id", item.ID(), "item", declared.String(), "expected", s.request.String())
	s.bus.Publish(events.Event{
		Kind:  events.KindItemRejected,
		Phase: models.PhaseDelivery,
		Item:  declared,
		Data:  map[string]any{"station": s.id, "item_id": item.ID(), "expected": s.request.String()},
	})
}

// SkipPenalty returns what skipping the active request would cost.
func (s *Station) SkipPenalty() int {
	price, ok := 0, false
	if s.prices != nil {
		price, ok = s.prices.PriceOf(s.request)
	}
	if !ok {
		price = s.cfg.FallbackPrice
	}
	return price / 2
}

// Skip pays half the requested item's price to replace the request. It
// returns false and changes nothing when the station is busy or already
// skipping, no request is active, the phase is not Delivery, or the wallet
// cannot pay.
func (s *Station) Skip() bool {
	if s.state == StateScanning || s.state == StateSkipping || s.gate.Busy() {
		return false
	}
	if !s.request.Valid() {
		return false
	}
	if !s.inDelivery() {
		return false
	}
	if s.prices == nil {
		s.logger.Warn("no price book; skip uses fallback price", "fallback", s.cfg.FallbackPrice)
	}
	penalty := s.SkipPenalty()
	if s.wallet == nil || !s.wallet.TrySpend(penalty) {
		return false
	}

	skipped := s.request
	s.state = StateSkipping
	s.request = models.ItemUnknown
	s.requestText = ""
	s.display.SpawnMoneyNotification(-penalty)
	s.display.SpawnTextNotification(s.cfg.GeneratingText)

	s.skip.Replace(s.sched, s.cfg.SkipDelay, func() {
		s.state = StateAwaiting
		s.GenerateRequest()
	})

	s.logger.Info("request skipped", "item", skipped.String(), "penalty", penalty)
	s.bus.Publish(events.Event{
		Kind:   events.KindRequestSkipped,
		Phase:  models.PhaseDelivery,
		Item:   skipped,
		Amount: penalty,
		Data:   map[string]any{"station": s.id},
	})
	return true
}

// Reset cancels pending work, ejects any item mid-scan, clears the request
// and returns to Idle.
func (s *Station) Reset() {
	s.pending.Cancel()
	s.skip.Cancel()
	if s.current != nil {
		s.current.EjectWithImpulse(s.cfg.EjectDirection.Normalized(), s.cfg.EjectForce)
		s.current = nil
	}
	s.gate.release(s)
	s.request = models.ItemUnknown
	s.requestText = ""
	s.display.ShowSkipButton(false)
	s.state = StateIdle
}

// resumeAfterTutorial posts a real request on a station left waiting on the
// tutorial. Stations still scanning or skipping pick one up when that ends.
func (s *Station) resumeAfterTutorial() {
	if s.state != StateAwaiting || s.request.Valid() {
		return
	}
	s.GenerateRequest()
}

// Attach binds the station to the phase cycle: DeliveryStarted posts the
// first request and DeliveryEnded resets. When the tutorial completes on any
// station, waiting stations post their first real request. Close the returned
// group to detach.
func (s *Station) Attach(bus *events.Bus) *events.Group {
	g := events.NewGroup(bus)
	g.On(events.KindDeliveryStarted, func(events.Event) {
		s.display.ShowSkipButton(true)
		s.GenerateRequest()
	})
	g.On(events.KindDeliveryEnded, func(events.Event) {
		s.Reset()
	})
	g.On(events.KindTutorialCompleted, func(events.Event) {
		s.resumeAfterTutorial()
	})
	return g
}

package game

import (
	"errors"

	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/internal/stock"
	"github.com/gravitas-games/sortshift/internal/upgrade"
	"github.com/gravitas-games/sortshift/internal/world"
	"github.com/gravitas-games/sortshift/pkg/models"
)

var (
	ErrUnknownCommand = errors.New("game: unknown command")
	ErrUnknownStation = errors.New("game: unknown station")
	ErrUnknownItem    = errors.New("game: unknown item")
	ErrRefused        = errors.New("game: refused")
)

// CommandKind identifies what a command asks for.
type CommandKind int

const (
	CmdItemUpdate CommandKind = iota
	CmdScanSubmit
	CmdSkipRequest
	CmdBuyUpgrade
	CmdOrderStock
	CmdStartDelivery
	CmdEndDelivery
	CmdResetProgress
	CmdStatus
	CmdPlayerLeft
)

// String returns the wire name of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CmdItemUpdate:
		return "item_update"
	case CmdScanSubmit:
		return "scan_submit"
	case CmdSkipRequest:
		return "skip_request"
	case CmdBuyUpgrade:
		return "buy_upgrade"
	case CmdOrderStock:
		return "order_stock"
	case CmdStartDelivery:
		return "start_delivery"
	case CmdEndDelivery:
		return "end_delivery"
	case CmdResetProgress:
		return "reset_progress"
	case CmdStatus:
		return "status"
	case CmdPlayerLeft:
		return "player_left"
	default:
		return "unknown"
	}
}

// Command is one queued request. Only the fields relevant to Kind are read.
type Command struct {
	Kind      CommandKind
	PlayerID  string
	StationID string // empty means the first station
	ItemID    string
	Position  models.Vec3
	Held      bool
	Mode      models.DeliveryMode
	UpgradeID string
	Lines     []stock.Line

	// Reply, when set, is called from Tick once the command has been applied.
	// It must not block.
	Reply func(Result)
}

// Result is the outcome of a command.
type Result struct {
	Kind    CommandKind
	Err     error
	Receipt *stock.Receipt
	Status  *Status
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Err == nil }

// StationStatus is the visible state of one scan station.
type StationStatus struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	Request     models.ItemType `json:"request"`
	Text        string          `json:"text"`
	Busy        bool            `json:"busy"`
	SkipPenalty int             `json:"skip_penalty"`
}

// UpgradeStatus is one upgrade track with its current level.
type UpgradeStatus struct {
	models.UpgradeDefinition
	Level    int `json:"level"`
	NextCost int `json:"next_cost"`
}

// Status is a snapshot of the whole shift.
type Status struct {
	Shift     string                `json:"shift"`
	Phase     models.Phase          `json:"phase"`
	Round     int                   `json:"round"`
	Balance   int                   `json:"balance"`
	Remaining float64               `json:"remaining"` // seconds
	Accepted  int                   `json:"accepted"`
	Quota     int                   `json:"quota,omitempty"`
	Tutorial  bool                  `json:"tutorial"`
	Stations  []StationStatus       `json:"stations"`
	Upgrades  []UpgradeStatus       `json:"upgrades"`
	Modifiers upgrade.Modifiers     `json:"modifiers"`
	Catalog   []models.ItemRecord   `json:"catalog"`
	Chutes    []distribution.Target `json:"chutes"`
	Items     []world.ItemView      `json:"items"`
	Tick      int64                 `json:"tick"`
}

// Status builds a snapshot. Call it only from inside Tick or a Reply.
func (g *Game) Status() Status {
	s := Status{
		Shift:     g.shiftID,
		Phase:     g.phase.Current(),
		Round:     g.phase.Round(),
		Balance:   g.wallet.Balance(),
		Remaining: g.timer.Remaining().Seconds(),
		Accepted:  g.accepted,
		Quota:     g.cfg.Game.RequestQuota,
		Tutorial:  g.tutorial.IsActive(),
		Modifiers: g.upgrades.Modifiers(),
		Catalog:   g.catalog.Records(),
		Chutes:    g.pool.Targets(),
		Items:     g.world.Snapshot(),
		Tick:      g.ticks,
	}
	for _, st := range g.stations {
		ss := StationStatus{
			ID:      st.ID(),
			State:   st.State().String(),
			Request: st.Request(),
			Text:    st.RequestText(),
			Busy:    st.Busy(),
		}
		if st.Request().Valid() {
			ss.SkipPenalty = st.SkipPenalty()
		}
		s.Stations = append(s.Stations, ss)
	}
	for _, def := range g.upgrades.Definitions() {
		s.Upgrades = append(s.Upgrades, UpgradeStatus{
			UpgradeDefinition: def,
			Level:             g.upgrades.Level(def.ID),
			NextCost:          g.upgrades.NextCost(def.ID),
		})
	}
	return s
}

func (g *Game) station(id string) (*scan.Station, bool) {
	if id == "" {
		if len(g.stations) == 0 {
			return nil, false
		}
		return g.stations[0], true
	}
	st, ok := g.byID[id]
	return st, ok
}

func (g *Game) apply(cmd Command) {
	res := Result{Kind: cmd.Kind}
	switch cmd.Kind {
	case CmdItemUpdate:
		heldBy := ""
		if cmd.Held {
			heldBy = cmd.PlayerID
		}
		if !g.world.Report(cmd.ItemID, cmd.Position, heldBy, cmd.Mode) {
			res.Err = ErrUnknownItem
		}

	case CmdScanSubmit:
		st, ok := g.station(cmd.StationID)
		if !ok {
			res.Err = ErrUnknownStation
			break
		}
		item, ok := g.world.Get(cmd.ItemID)
		if !ok {
			res.Err = ErrUnknownItem
			break
		}
		if !st.Submit(item) {
			res.Err = ErrRefused
		}

	case CmdSkipRequest:
		st, ok := g.station(cmd.StationID)
		if !ok {
			res.Err = ErrUnknownStation
			break
		}
		if !st.Skip() {
			res.Err = ErrRefused
		}

	case CmdBuyUpgrade:
		if !g.upgrades.Purchase(cmd.UpgradeID) {
			res.Err = ErrRefused
		}

	case CmdOrderStock:
		receipt, err := g.desk.Order(cmd.Lines)
		if err != nil {
			res.Err = err
			break
		}
		res.Receipt = &receipt

	case CmdStartDelivery:
		if !g.phase.TransitionTo(models.PhaseDelivery) {
			res.Err = ErrRefused
		}

	case CmdEndDelivery:
		if !g.phase.TransitionTo(models.PhaseStocking) {
			res.Err = ErrRefused
		}

	case CmdResetProgress:
		g.phase.TransitionTo(models.PhaseStocking)
		g.world.Clear()
		g.upgrades.Reset()
		g.logger.Info("progress reset", "player_id", cmd.PlayerID)

	case CmdStatus:
		status := g.Status()
		res.Status = &status

	case CmdPlayerLeft:
		if n := g.world.Release(cmd.PlayerID); n > 0 {
			g.logger.Debug("released held items", "player_id", cmd.PlayerID, "items", n)
		}

	default:
		res.Err = ErrUnknownCommand
	}

	recordCommand(cmd.Kind, res.Err)
	if cmd.Reply != nil {
		cmd.Reply(res)
	}
}

// Package tutorial runs the first-shift walkthrough: a fixed prompt that
// only one marked item can satisfy. Finishing it is saved so later sessions
// start with normal requests.
package tutorial

import (
	"log/slog"

	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// CompleteKey is the persistence key set to 1 once the tutorial is done.
const CompleteKey = "tutorial_complete"

// TextDisplay shows the tutorial prompt.
type TextDisplay interface {
	ShowRequestText(text string)
}

// Config describes the walkthrough.
type Config struct {
	Enabled  bool
	Prompt   string
	ItemType models.ItemType
	ItemName string
}

// Tutorial implements scan.Tutorial.
type Tutorial struct {
	cfg     Config
	store   persist.Store
	display TextDisplay
	logger  *slog.Logger
	active  bool
	itemID  string
}

// New creates the tutorial. It is inactive when disabled or already completed.
func New(cfg Config, store persist.Store, display TextDisplay, logger *slog.Logger) *Tutorial {
	if store == nil {
		store = persist.NewMemoryStore(nil)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "Bring the marked box to the scanner."
	}
	if !cfg.ItemType.Valid() {
		cfg.ItemType = models.ItemBread
	}
	t := &Tutorial{
		cfg:     cfg,
		store:   store,
		display: display,
		logger:  logging.OrDiscard(logger),
	}
	t.active = cfg.Enabled && store.GetInt(CompleteKey, 0) == 0
	return t
}

// IsActive reports whether the walkthrough is still running.
func (t *Tutorial) IsActive() bool {
	return t.active
}

// PresentTutorialRequest shows the fixed prompt.
func (t *Tutorial) PresentTutorialRequest() {
	if t.display != nil {
		t.display.ShowRequestText(t.cfg.Prompt)
	}
}

// Bind marks the world item that completes the walkthrough.
func (t *Tutorial) Bind(itemID string) {
	t.itemID = itemID
}

// ItemID returns the bound item, or "" before Bind.
func (t *Tutorial) ItemID() string {
	return t.itemID
}

// Item returns the type and name the tutorial item should spawn with.
func (t *Tutorial) Item() (models.ItemType, string) {
	name := t.cfg.ItemName
	if name == "" {
		name = "Tutorial " + t.cfg.ItemType.String()
	}
	return t.cfg.ItemType, name
}

// IsTutorialItem reports whether item is the bound tutorial item.
func (t *Tutorial) IsTutorialItem(item scan.Item) bool {
	return item != nil && t.itemID != "" && item.ID() == t.itemID
}

// OnAccepted completes the walkthrough and saves that it is done.
func (t *Tutorial) OnAccepted() {
	if !t.active {
		return
	}
	t.active = false
	t.itemID = ""
	t.store.SetInt(CompleteKey, 1)
	if err := t.store.Flush(); err != nil {
		t.logger.Warn("tutorial completion not flushed", "error", err)
	}
	t.logger.Info("tutorial completed")
}

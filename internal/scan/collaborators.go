package scan

import (
	"github.com/gravitas-games/sortshift/internal/upgrade"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Display is where the station shows its state to players.
type Display interface {
	ShowRequestText(text string)
	ShowScanningIndicator()
	ShowAcceptedIndicator()
	ShowRejectedIndicator()
	ShowSkipButton(visible bool)
	SpawnMoneyNotification(delta int)
	SpawnTextNotification(text string)
}

// Item is the physical object being delivered. The world owns it; the
// station only inspects and moves it.
type Item interface {
	ID() string
	// IsHeld reports whether a player is carrying the item right now.
	IsHeld() bool
	DeclaredType() models.ItemType
	Price() int
	Position() models.Vec3
	Mode() models.DeliveryMode
	PlaceAtScanPoint(at models.Vec3)
	EjectWithImpulse(direction models.Vec3, force float64)
	Destroy()
}

// Tutorial overrides request generation and matching while active.
type Tutorial interface {
	IsActive() bool
	PresentTutorialRequest()
	IsTutorialItem(item Item) bool
	OnAccepted()
}

// Prompter phrases a request. The catalog comment bank implements it.
type Prompter interface {
	PromptFor(t models.ItemType) (string, bool)
}

// Wallet is the slice of the economy ledger the station needs.
type Wallet interface {
	Add(amount int)
	TrySpend(amount int) bool
}

// PhaseReader exposes the current phase.
type PhaseReader interface {
	Current() models.Phase
}

// PriceBook looks up catalog prices for skip penalties.
type PriceBook interface {
	PriceOf(t models.ItemType) (int, bool)
}

// SpeedSource supplies the purchased modifiers. The upgrade ledger implements it.
type SpeedSource interface {
	Modifiers() upgrade.Modifiers
}

// NopDisplay discards everything.
type NopDisplay struct{}

func (NopDisplay) ShowRequestText(string)       {}
func (NopDisplay) ShowScanningIndicator()       {}
func (NopDisplay) ShowAcceptedIndicator()       {}
func (NopDisplay) ShowRejectedIndicator()       {}
func (NopDisplay) ShowSkipButton(bool)          {}
func (NopDisplay) SpawnMoneyNotification(int)   {}
func (NopDisplay) SpawnTextNotification(string) {}

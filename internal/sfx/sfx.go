// Package sfx names the fire-and-forget audio cues the core emits.
// Playback happens on clients; the server only says what and where.
package sfx

import "github.com/gravitas-games/sortshift/pkg/models"

// Cue is a named sound event.
type Cue string

const (
	ItemSpawn           Cue = "ItemSpawn"
	Acceptance          Cue = "Acceptance"
	Rejection           Cue = "Rejection"
	CountdownTick       Cue = "CountdownTick"
	DeliveryPhaseStart  Cue = "DeliveryPhaseStart"
	InventoryPhaseStart Cue = "InventoryPhaseStart"
)

// Sink receives cues. Delivery is not guaranteed and nothing is returned.
type Sink interface {
	Play(cue Cue, at models.Vec3)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(cue Cue, at models.Vec3)

// Play calls f.
func (f SinkFunc) Play(cue Cue, at models.Vec3) { f(cue, at) }

// Nop discards every cue.
type Nop struct{}

// Play does nothing.
func (Nop) Play(Cue, models.Vec3) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

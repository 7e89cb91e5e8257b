// Package floor describes the shop floor: where the scan zones are, where
// the scanner holds items, and where stock chutes drop crates.
package floor

import (
	"fmt"
	"log"

	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/scan"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// Layout is the static geometry of one shop floor.
type Layout struct {
	PlacedZone     scan.Zone             `yaml:"placed_zone"`
	ThrownZone     scan.Zone             `yaml:"thrown_zone"`
	ScanPoint      models.Vec3           `yaml:"scan_point"`
	EjectDirection models.Vec3           `yaml:"eject_direction"`
	Speaker        models.Vec3           `yaml:"speaker"` // Where phase and countdown cues play
	TutorialSpawn  models.Vec3           `yaml:"tutorial_spawn"`
	Chutes         []distribution.Target `yaml:"chutes"`
}

// Default returns a small counter with two chutes behind it.
func Default() Layout {
	return Layout{
		PlacedZone: scan.Zone{
			Min: models.Vec3{X: -0.6, Y: 0.8, Z: -0.4},
			Max: models.Vec3{X: 0.6, Y: 1.4, Z: 0.4},
		},
		ThrownZone: scan.Zone{
			Min: models.Vec3{X: -1.5, Y: 0.5, Z: -1.5},
			Max: models.Vec3{X: 1.5, Y: 2.5, Z: 1.5},
		},
		ScanPoint:      models.Vec3{Y: 1.0},
		EjectDirection: models.Vec3{Y: 0.4, Z: 1},
		Speaker:        models.Vec3{Y: 3},
		TutorialSpawn:  models.Vec3{X: 2, Y: 1},
		Chutes: []distribution.Target{
			{ID: "chute-west", Position: models.Vec3{X: -6, Y: 1.5, Z: -8}},
			{ID: "chute-east", Position: models.Vec3{X: 6, Y: 1.5, Z: -8}},
		},
	}
}

// New fills gaps in l from Default and validates the result.
func New(l Layout) (*Layout, error) {
	def := Default()
	if l.PlacedZone == (scan.Zone{}) {
		l.PlacedZone = def.PlacedZone
	}
	if l.ThrownZone == (scan.Zone{}) {
		l.ThrownZone = def.ThrownZone
	}
	if l.ScanPoint == (models.Vec3{}) {
		l.ScanPoint = def.ScanPoint
	}
	if l.EjectDirection == (models.Vec3{}) {
		l.EjectDirection = def.EjectDirection
	}
	if l.Speaker == (models.Vec3{}) {
		l.Speaker = def.Speaker
	}
	if l.TutorialSpawn == (models.Vec3{}) {
		l.TutorialSpawn = def.TutorialSpawn
	}
	if len(l.Chutes) == 0 {
		l.Chutes = def.Chutes
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	log.Printf("Floor built with %d chutes", len(l.Chutes))
	return &l, nil
}

// Validate checks zone bounds and chute IDs.
func (l *Layout) Validate() error {
	if err := validZone("placed_zone", l.PlacedZone); err != nil {
		return err
	}
	if err := validZone("thrown_zone", l.ThrownZone); err != nil {
		return err
	}
	if len(l.Chutes) == 0 {
		return fmt.Errorf("floor: at least one chute is required")
	}
	seen := make(map[string]bool, len(l.Chutes))
	for i, c := range l.Chutes {
		if c.ID == "" {
			return fmt.Errorf("floor: chute %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("floor: duplicate chute id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func validZone(name string, z scan.Zone) error {
	if z.Min.X > z.Max.X || z.Min.Y > z.Max.Y || z.Min.Z > z.Max.Z {
		return fmt.Errorf("floor: %s min exceeds max", name)
	}
	return nil
}

// Pool returns a distribution pool over the chutes.
func (l *Layout) Pool(seed int64) *distribution.Pool {
	return distribution.NewPool(seed, l.Chutes...)
}

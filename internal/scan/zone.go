package scan

import "github.com/gravitas-games/sortshift/pkg/models"

// Zone is an axis-aligned box. Bounds are inclusive.
type Zone struct {
	Min models.Vec3 `yaml:"min" json:"min"`
	Max models.Vec3 `yaml:"max" json:"max"`
}

// Contains reports whether p lies inside the box.
func (z Zone) Contains(p models.Vec3) bool {
	return p.X >= z.Min.X && p.X <= z.Max.X &&
		p.Y >= z.Min.Y && p.Y <= z.Max.Y &&
		p.Z >= z.Min.Z && p.Z <= z.Max.Z
}

// Center returns the midpoint of the box.
func (z Zone) Center() models.Vec3 {
	return z.Min.Add(z.Max).Scale(0.5)
}

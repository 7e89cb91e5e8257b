package scan

// Gate is the station-wide busy flag. Stations that share a gate never scan
// at the same time. A Gate is owned by the game loop and is not safe for
// concurrent use.
type Gate struct {
	owner *Station
}

// NewGate creates a free gate.
func NewGate() *Gate {
	return &Gate{}
}

// Busy reports whether some station holds the gate.
func (g *Gate) Busy() bool {
	return g.owner != nil
}

// HeldBy reports whether s holds the gate.
func (g *Gate) HeldBy(s *Station) bool {
	return g.owner != nil && g.owner == s
}

func (g *Gate) acquire(s *Station) bool {
	if g.owner != nil {
		return false
	}
	g.owner = s
	return true
}

// release frees the gate if s holds it.
func (g *Gate) release(s *Station) {
	if g.owner == s {
		g.owner = nil
	}
}

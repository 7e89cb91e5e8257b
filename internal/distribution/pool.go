// Package distribution decides where stock lands: which chute gets the next
// crate, and how an order is split into crates.
package distribution

import (
	"math/rand"
	"sync"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// Target is a spawn point crates can be sent to.
type Target struct {
	ID       string      `yaml:"id" json:"id"`
	Position models.Vec3 `yaml:"position" json:"position"`
}

// Pool picks targets at random without ever repeating the previous pick
// while at least two targets are registered.
type Pool struct {
	mu      sync.Mutex
	targets []Target
	last    int
	rng     *rand.Rand
}

// NewPool creates a pool seeded with seed.
func NewPool(seed int64, targets ...Target) *Pool {
	p := &Pool{
		last: -1,
		rng:  rand.New(rand.NewSource(seed)),
	}
	for _, t := range targets {
		p.Register(t)
	}
	return p
}

// Register adds a target. Registering resets nothing; the previous pick
// stays excluded from the next draw.
func (p *Pool) Register(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
}

// Len returns the number of registered targets.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

// Targets returns a copy of the registered targets.
func (p *Pool) Targets() []Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Target(nil), p.targets...)
}

// SelectNext returns the next target. It reports false when the pool is empty.
func (p *Pool) SelectNext() (Target, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.targets)
	switch {
	case n == 0:
		return Target{}, false
	case n == 1:
		p.last = 0
		return p.targets[0], true
	}

	var idx int
	if p.last < 0 || p.last >= n {
		idx = p.rng.Intn(n)
	} else {
		// Draw from the n-1 other slots and shift past the excluded one.
		idx = p.rng.Intn(n - 1)
		if idx >= p.last {
			idx++
		}
	}
	p.last = idx
	return p.targets[idx], true
}

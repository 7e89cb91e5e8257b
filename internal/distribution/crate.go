package distribution

import (
	"github.com/google/uuid"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// Crate is a fixed-capacity container of ordered items.
type Crate struct {
	ID       uuid.UUID           `json:"id"`
	Capacity int                 `json:"capacity"`
	Items    []models.ItemRecord `json:"items"`
}

// NewCrate creates an empty crate. Capacity below 1 becomes 1.
func NewCrate(capacity int) *Crate {
	if capacity < 1 {
		capacity = 1
	}
	return &Crate{
		ID:       uuid.New(),
		Capacity: capacity,
		Items:    make([]models.ItemRecord, 0, capacity),
	}
}

// Full reports whether the crate holds Capacity items.
func (c *Crate) Full() bool {
	return len(c.Items) >= c.Capacity
}

// Add appends item unless the crate is full.
func (c *Crate) Add(item models.ItemRecord) bool {
	if c.Full() {
		return false
	}
	c.Items = append(c.Items, item)
	return true
}

// Value returns the summed price of the crate's items.
func (c *Crate) Value() int {
	total := 0
	for _, item := range c.Items {
		total += item.Price
	}
	return total
}

// Pack splits items into crates of capacity in input order. It returns
// ceil(len(items)/capacity) crates and nil for an empty order.
func Pack(items []models.ItemRecord, capacity int) []*Crate {
	if len(items) == 0 {
		return nil
	}
	if capacity < 1 {
		capacity = 1
	}
	crates := make([]*Crate, 0, (len(items)+capacity-1)/capacity)
	current := NewCrate(capacity)
	for _, item := range items {
		if current.Full() {
			crates = append(crates, current)
			current = NewCrate(capacity)
		}
		current.Add(item)
	}
	return append(crates, current)
}

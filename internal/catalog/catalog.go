// Package catalog holds the read-only item records and the lines the scan
// station uses to phrase requests.
package catalog

import (
	"fmt"
	"sort"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// Catalog stores item records keyed by type. It is built once and never
// mutated afterwards, so lookups need no locking.
type Catalog struct {
	byType map[models.ItemType]models.ItemRecord
	order  []models.ItemType
}

// New validates records and builds a catalog. Records must have a valid
// type, a non-negative price and a unique type.
func New(records ...models.ItemRecord) (*Catalog, error) {
	c := &Catalog{byType: make(map[models.ItemType]models.ItemRecord, len(records))}
	for _, r := range records {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("catalog: item %q has no valid type", r.Name)
		}
		if r.Price < 0 {
			return nil, fmt.Errorf("catalog: item %q has negative price", r.Name)
		}
		if _, dup := c.byType[r.Type]; dup {
			return nil, fmt.Errorf("catalog: duplicate record for %s", r.Type)
		}
		if r.Name == "" {
			r.Name = r.Type.String()
		}
		c.byType[r.Type] = r
		c.order = append(c.order, r.Type)
	}
	return c, nil
}

// Lookup returns the record for t.
func (c *Catalog) Lookup(t models.ItemType) (models.ItemRecord, bool) {
	if c == nil {
		return models.ItemRecord{}, false
	}
	r, ok := c.byType[t]
	return r, ok
}

// PriceOf returns the unit price of t.
func (c *Catalog) PriceOf(t models.ItemType) (int, bool) {
	r, ok := c.Lookup(t)
	return r.Price, ok
}

// Records returns every record in load order.
func (c *Catalog) Records() []models.ItemRecord {
	if c == nil {
		return nil
	}
	out := make([]models.ItemRecord, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.byType[t])
	}
	return out
}

// Categories returns the distinct category tags, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	for _, r := range c.Records() {
		if r.Category != "" {
			seen[r.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Default returns the stock catalog used when configuration lists no items.
func Default() *Catalog {
	c, _ := New(
		models.ItemRecord{Name: "Meat", Type: models.ItemMeat, Price: 18, Category: "fresh"},
		models.ItemRecord{Name: "Soda", Type: models.ItemSoda, Price: 6, Category: "drinks"},
		models.ItemRecord{Name: "Eggs", Type: models.ItemEggs, Price: 8, Category: "fresh"},
		models.ItemRecord{Name: "Beans", Type: models.ItemBeans, Price: 10, Category: "pantry"},
		models.ItemRecord{Name: "Milk", Type: models.ItemMilk, Price: 7, Category: "fresh"},
		models.ItemRecord{Name: "Bread", Type: models.ItemBread, Price: 5, Category: "bakery"},
		models.ItemRecord{Name: "Cheese", Type: models.ItemCheese, Price: 14, Category: "fresh"},
		models.ItemRecord{Name: "Apples", Type: models.ItemApples, Price: 9, Category: "produce"},
		models.ItemRecord{Name: "Cereal", Type: models.ItemCereal, Price: 12, Category: "pantry"},
		models.ItemRecord{Name: "Water", Type: models.ItemWater, Price: 4, Category: "drinks"},
	)
	return c
}

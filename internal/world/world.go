// Package world is the server's record of every physical item on the shop
// floor. Clients simulate the physics and report positions; the world keeps
// the authoritative copy and tells observers what changed.
package world

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/gravitas-games/sortshift/internal/distribution"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// crateSpacing separates items spawned from one crate so they do not overlap.
const crateSpacing = 0.35

// ItemView is the wire snapshot of an item.
type ItemView struct {
	ID       string              `json:"id"`
	Type     models.ItemType     `json:"type"`
	Name     string              `json:"name"`
	Price    int                 `json:"price"`
	Position models.Vec3         `json:"position"`
	Mode     models.DeliveryMode `json:"mode"`
	HeldBy   string              `json:"held_by,omitempty"`
	Pinned   bool                `json:"pinned,omitempty"`
	CrateID  string              `json:"crate_id,omitempty"`
}

// Observer is told about every change to the floor.
type Observer interface {
	ItemSpawned(item ItemView)
	ItemMoved(item ItemView)
	ItemEjected(item ItemView, impulse models.Vec3)
	ItemDestroyed(id string)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) ItemSpawned(ItemView)              {}
func (NopObserver) ItemMoved(ItemView)                {}
func (NopObserver) ItemEjected(ItemView, models.Vec3) {}
func (NopObserver) ItemDestroyed(string)              {}

// World owns the items. It is driven from the game loop and is not safe for
// concurrent use.
type World struct {
	items    map[string]*Item
	observer Observer
	logger   *slog.Logger
}

// New creates an empty floor.
func New(observer Observer, logger *slog.Logger) *World {
	if observer == nil {
		observer = NopObserver{}
	}
	return &World{
		items:    make(map[string]*Item),
		observer: observer,
		logger:   logging.OrDiscard(logger),
	}
}

// Spawn places a new item built from record at pos.
func (w *World) Spawn(record models.ItemRecord, pos models.Vec3) *Item {
	item := &Item{
		world:    w,
		id:       uuid.NewString(),
		record:   record,
		position: pos,
		mode:     models.DeliveryPlaced,
	}
	w.items[item.id] = item
	w.logger.Debug("item spawned", "item_id", item.id, "item", record.Type.String())
	w.observer.ItemSpawned(item.View())
	return item
}

// SpawnCrate unloads crate at target, spreading items along the X axis.
func (w *World) SpawnCrate(crate *distribution.Crate, target distribution.Target) []*Item {
	out := make([]*Item, 0, len(crate.Items))
	for i, record := range crate.Items {
		offset := models.Vec3{X: float64(i) * crateSpacing}
		item := w.Spawn(record, target.Position.Add(offset))
		item.crateID = crate.ID.String()
		out = append(out, item)
	}
	return out
}

// Get returns the item with id.
func (w *World) Get(id string) (*Item, bool) {
	item, ok := w.items[id]
	return item, ok
}

// Len returns the number of items on the floor.
func (w *World) Len() int {
	return len(w.items)
}

// Snapshot returns views of every item ordered by ID.
func (w *World) Snapshot() []ItemView {
	out := make([]ItemView, 0, len(w.items))
	for _, item := range w.items {
		out = append(out, item.View())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Report applies a client's view of an item. Pinned items belong to a scan
// station and ignore reports. It returns false for unknown or pinned items.
func (w *World) Report(id string, pos models.Vec3, heldBy string, mode models.DeliveryMode) bool {
	item, ok := w.items[id]
	if !ok || item.pinned {
		return false
	}
	item.position = pos
	item.heldBy = heldBy
	if mode == models.DeliveryThrown || mode == models.DeliveryPlaced {
		item.mode = mode
	}
	w.observer.ItemMoved(item.View())
	return true
}

// Release drops everything held by player, such as when they disconnect.
func (w *World) Release(player string) int {
	n := 0
	for _, item := range w.items {
		if item.heldBy == player {
			item.heldBy = ""
			w.observer.ItemMoved(item.View())
			n++
		}
	}
	return n
}

// Clear removes every item.
func (w *World) Clear() {
	for id, item := range w.items {
		item.gone = true
		delete(w.items, id)
		w.observer.ItemDestroyed(id)
	}
}

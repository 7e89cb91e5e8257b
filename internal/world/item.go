package world

import "github.com/gravitas-games/sortshift/pkg/models"

// Item is one physical good on the floor. It satisfies scan.Item.
type Item struct {
	world    *World
	id       string
	record   models.ItemRecord
	position models.Vec3
	mode     models.DeliveryMode
	heldBy   string
	pinned   bool
	crateID  string
	gone     bool
}

func (i *Item) ID() string                    { return i.id }
func (i *Item) IsHeld() bool                  { return i.heldBy != "" }
func (i *Item) DeclaredType() models.ItemType { return i.record.Type }
func (i *Item) Price() int                    { return i.record.Price }
func (i *Item) Position() models.Vec3         { return i.position }
func (i *Item) Mode() models.DeliveryMode     { return i.mode }

// HeldBy returns the carrying player's ID, or "".
func (i *Item) HeldBy() string { return i.heldBy }

// View returns the wire snapshot.
func (i *Item) View() ItemView {
	return ItemView{
		ID:       i.id,
		Type:     i.record.Type,
		Name:     i.record.Name,
		Price:    i.record.Price,
		Position: i.position,
		Mode:     i.mode,
		HeldBy:   i.heldBy,
		Pinned:   i.pinned,
		CrateID:  i.crateID,
	}
}

// PlaceAtScanPoint pins the item at the scanner until it is ejected or
// destroyed.
func (i *Item) PlaceAtScanPoint(at models.Vec3) {
	if i.gone {
		return
	}
	i.position = at
	i.heldBy = ""
	i.pinned = true
	i.world.observer.ItemMoved(i.View())
}

// ejectDistance is how far along the impulse an ejected item is assumed to
// land until a client reports where it really is.
const ejectDistance = 1.5

// EjectWithImpulse unpins the item, moves it off the scanner and asks
// clients to push it along direction with force.
func (i *Item) EjectWithImpulse(direction models.Vec3, force float64) {
	if i.gone {
		return
	}
	i.pinned = false
	i.mode = models.DeliveryPlaced
	i.position = i.position.Add(direction.Normalized().Scale(ejectDistance))
	i.world.observer.ItemEjected(i.View(), direction.Scale(force))
}

// Destroy removes the item from the floor.
func (i *Item) Destroy() {
	if i.gone {
		return
	}
	i.gone = true
	delete(i.world.items, i.id)
	i.world.observer.ItemDestroyed(i.id)
}

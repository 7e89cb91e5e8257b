package models

import (
	"strings"
)

// ItemType identifies a deliverable good. ItemUnknown is the sentinel for
// "no active request" and is never requested or stocked.
type ItemType int

const (
	ItemUnknown ItemType = iota
	ItemMeat
	ItemSoda
	ItemEggs
	ItemBeans
	ItemMilk
	ItemBread
	ItemCheese
	ItemApples
	ItemCereal
	ItemWater
)

var itemNames = map[ItemType]string{
	ItemUnknown: "Unknown",
	ItemMeat:    "Meat",
	ItemSoda:    "Soda",
	ItemEggs:    "Eggs",
	ItemBeans:   "Beans",
	ItemMilk:    "Milk",
	ItemBread:   "Bread",
	ItemCheese:  "Cheese",
	ItemApples:  "Apples",
	ItemCereal:  "Cereal",
	ItemWater:   "Water",
}

// String returns the display name of the item type.
func (t ItemType) String() string {
	if name, ok := itemNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether t is a real good rather than the sentinel or an
// out-of-range value.
func (t ItemType) Valid() bool {
	return t > ItemUnknown && t <= ItemWater
}

// MarshalText encodes the type by name so configs and wire payloads stay readable.
func (t ItemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts a case-insensitive item name. Unrecognised names decode
// to ItemUnknown.
func (t *ItemType) UnmarshalText(text []byte) error {
	*t = ParseItemType(string(text))
	return nil
}

// ParseItemType looks up an item type by name, ignoring case and surrounding
// whitespace. It returns ItemUnknown when nothing matches.
func ParseItemType(name string) ItemType {
	name = strings.TrimSpace(name)
	for t, n := range itemNames {
		if strings.EqualFold(n, name) {
			return t
		}
	}
	return ItemUnknown
}

// RequestableItems returns every item type except the sentinel, in
// declaration order.
func RequestableItems() []ItemType {
	out := make([]ItemType, 0, int(ItemWater))
	for t := ItemMeat; t <= ItemWater; t++ {
		out = append(out, t)
	}
	return out
}

// ItemRecord is a catalog entry. Records are read-only once loaded.
type ItemRecord struct {
	Name     string   `yaml:"name" json:"name"`
	Type     ItemType `yaml:"type" json:"type"`
	Price    int      `yaml:"price" json:"price"`
	Category string   `yaml:"category" json:"category,omitempty"`
}

// DeliveryMode describes how an item reached the scan station.
type DeliveryMode string

const (
	DeliveryPlaced DeliveryMode = "placed"
	DeliveryThrown DeliveryMode = "thrown"
)

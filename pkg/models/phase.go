package models

import (
	"fmt"
	"strings"
)

// Phase is the coarse game mode.
type Phase int

const (
	PhaseStocking Phase = iota
	PhaseDelivery
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStocking:
		return "stocking"
	case PhaseDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts "stocking" or "delivery", ignoring case.
func (p *Phase) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "stocking":
		*p = PhaseStocking
	case "delivery":
		*p = PhaseDelivery
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

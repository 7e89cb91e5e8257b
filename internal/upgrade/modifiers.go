package upgrade

import "time"

// Modifiers is the set of gameplay adjustments produced by purchased levels.
// Clients read ThrowStrength and MoveSpeed from the shift status and the
// UpgradePurchased event and apply them locally; the server applies
// ScanSpeed and DeliveryBonus itself.
type Modifiers struct {
	ThrowStrength float64       `json:"throw_strength"` // Multiplier for throw impulse (1.2 = 20% stronger)
	MoveSpeed     float64       `json:"move_speed"`     // Multiplier for walking speed
	ScanSpeed     float64       `json:"scan_speed"`     // Divides scan duration (2.0 = scans take half as long)
	DeliveryBonus time.Duration `json:"-"`              // Added to the base delivery countdown
}

// DefaultModifiers returns identity modifiers (no effect).
func DefaultModifiers() Modifiers {
	return Modifiers{
		ThrowStrength: 1.0,
		MoveSpeed:     1.0,
		ScanSpeed:     1.0,
	}
}

// ScaleScan applies the ScanSpeed multiplier to a scan duration.
// Non-positive multipliers leave the duration unchanged.
func (m Modifiers) ScaleScan(d time.Duration) time.Duration {
	if m.ScanSpeed <= 0 {
		return d
	}
	return time.Duration(float64(d) / m.ScanSpeed)
}

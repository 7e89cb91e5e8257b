package models

// UpgradeKind names the gameplay parameter an upgrade modifies.
type UpgradeKind string

const (
	UpgradeThrowStrength     UpgradeKind = "throw_strength"
	UpgradeMoveSpeed         UpgradeKind = "move_speed"
	UpgradeDeliveryTimeBonus UpgradeKind = "delivery_time_bonus"
	UpgradeScanSpeed         UpgradeKind = "scan_speed"
)

// DefaultStep returns the per-level effect used when a definition leaves Step
// unset. Multiplier kinds are fractions per level; DeliveryTimeBonus is seconds.
func (k UpgradeKind) DefaultStep() float64 {
	switch k {
	case UpgradeThrowStrength:
		return 0.20
	case UpgradeMoveSpeed:
		return 0.15
	case UpgradeDeliveryTimeBonus:
		return 10
	case UpgradeScanSpeed:
		return 0.10
	default:
		return 0
	}
}

// UpgradeDefinition describes one purchasable upgrade track.
type UpgradeDefinition struct {
	ID             string      `yaml:"id" json:"id"`
	Name           string      `yaml:"name" json:"name"`
	Kind           UpgradeKind `yaml:"kind" json:"kind"`
	MaxLevel       int         `yaml:"max_level" json:"max_level"`
	BaseCost       int         `yaml:"base_cost" json:"base_cost"`
	CostMultiplier float64     `yaml:"cost_multiplier" json:"cost_multiplier"`
	Step           float64     `yaml:"step" json:"step,omitempty"` // effect per level; 0 means Kind.DefaultStep()
}

// EffectiveStep returns Step, or the kind default when Step is zero.
func (d UpgradeDefinition) EffectiveStep() float64 {
	if d.Step != 0 {
		return d.Step
	}
	return d.Kind.DefaultStep()
}

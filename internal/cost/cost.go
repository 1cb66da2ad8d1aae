// Package cost implements the goal-requirement calculator: a pure mapping
// from (level, community size) to the cents required to reach the next level.
//
// All parameters are injected; nothing is hardcoded. The controller freezes
// the community-size sample at transition boundaries, so the calculator
// itself is stateless and never re-samples.
package cost

import "fmt"

// Mode selects the difficulty formula.
type Mode string

const (
	// ModeDynamic returns base+dynamic with no multiplier.
	ModeDynamic Mode = "dynamic"
	// ModeStatic applies a clamped static multiplier to base+dynamic.
	ModeStatic Mode = "static"
)

// IsValid reports whether the mode is a known difficulty mode.
func (m Mode) IsValid() bool {
	return m == ModeDynamic || m == ModeStatic
}

// Params holds the externally configured calculator inputs.
type Params struct {
	// BaseTableCents is the per-level base requirement. Index 0 is level 1.
	// Must be non-empty and monotonically increasing. Levels beyond the
	// table use the last entry.
	BaseTableCents []int64

	// FreeTier is the community size below which no dynamic cost applies.
	FreeTier int

	// PerMemberCents is the dynamic cost added per member above FreeTier.
	PerMemberCents int64

	// MaxDynamicCents caps the dynamic component.
	MaxDynamicCents int64

	// Mode selects the difficulty formula.
	Mode Mode

	// StaticMultiplier scales the requirement in ModeStatic. Clamped to
	// [MultiplierMin, MultiplierMax] before use.
	StaticMultiplier float64

	// MultiplierMin and MultiplierMax bound the static multiplier.
	MultiplierMin float64
	MultiplierMax float64

	// MinRequirementCents is the floor for any computed requirement.
	// A misconfigured or zero result falls back to this, never to zero.
	MinRequirementCents int64
}

// Calculator computes goal requirements from frozen inputs.
type Calculator struct {
	params Params
}

// New creates a Calculator after validating the parameters.
func New(p Params) (*Calculator, error) {
	if len(p.BaseTableCents) == 0 {
		return nil, fmt.Errorf("base table must not be empty")
	}
	for i := 1; i < len(p.BaseTableCents); i++ {
		if p.BaseTableCents[i] < p.BaseTableCents[i-1] {
			return nil, fmt.Errorf("base table must be monotonically increasing: entry %d (%d) < entry %d (%d)",
				i, p.BaseTableCents[i], i-1, p.BaseTableCents[i-1])
		}
	}
	if !p.Mode.IsValid() {
		return nil, fmt.Errorf("unknown difficulty mode %q", p.Mode)
	}
	if p.MinRequirementCents <= 0 {
		return nil, fmt.Errorf("minimum requirement must be positive, got %d", p.MinRequirementCents)
	}
	if p.MultiplierMin > p.MultiplierMax {
		return nil, fmt.Errorf("multiplier range inverted: min %v > max %v", p.MultiplierMin, p.MultiplierMax)
	}
	return &Calculator{params: p}, nil
}

// RequiredCents returns the cents required to advance from the given level,
// using the provided community-size sample.
func (c *Calculator) RequiredCents(level, communitySize int) int64 {
	required := c.base(level) + c.dynamic(communitySize)

	if c.params.Mode == ModeStatic {
		m := clampFloat(c.params.StaticMultiplier, c.params.MultiplierMin, c.params.MultiplierMax)
		required = int64(float64(required) * m)
	}

	// Floor: a zero or negative requirement would make the goal unusable.
	if required < c.params.MinRequirementCents {
		return c.params.MinRequirementCents
	}
	return required
}

// base looks up the per-level base requirement, clamping to the table edges.
func (c *Calculator) base(level int) int64 {
	table := c.params.BaseTableCents
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(table) {
		idx = len(table) - 1
	}
	return table[idx]
}

// dynamic computes the community-size component:
// clamp(max(0, size-FreeTier) * PerMemberCents, 0, MaxDynamicCents).
func (c *Calculator) dynamic(communitySize int) int64 {
	over := communitySize - c.params.FreeTier
	if over <= 0 {
		return 0
	}
	d := int64(over) * c.params.PerMemberCents
	if c.params.MaxDynamicCents > 0 && d > c.params.MaxDynamicCents {
		return c.params.MaxDynamicCents
	}
	if d < 0 {
		return 0
	}
	return d
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

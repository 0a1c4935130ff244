// Package oversub implements the oversubscription-level catalog and the
// oversubscription-aware PE scheduler. The scheduler decides whether a host
// can admit a VM's vCPU demand and tracks how many physical PEs are
// notionally consumed, without simulating individual PE assignment.
package oversub

import (
	"fmt"
	"math"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// Level is an oversubscription ratio in fixed-point thousandths. Map keys
// are always derived from catalog entries, never recomputed from floats,
// so level equality is exact.
type Level int64

// levelScale is the fixed-point denominator of Level.
const levelScale = 1000

// LevelOf converts a ratio to its fixed-point representation.
func LevelOf(ratio float64) Level {
	return Level(math.Round(ratio * levelScale))
}

// Ratio returns the level as a floating-point sharing ratio.
func (l Level) Ratio() float64 {
	return float64(l) / levelScale
}

// Oversubscribed reports whether the level allows PE sharing (> 1.0).
func (l Level) Oversubscribed() bool {
	return l > levelScale
}

func (l Level) String() string {
	return fmt.Sprintf("%g", l.Ratio())
}

// ceilDiv returns ceil(n / level) using integer arithmetic only.
func ceilDiv(n int64, l Level) int64 {
	if n <= 0 {
		return 0
	}
	return (n*levelScale + int64(l) - 1) / int64(l)
}

// Catalog is the fixed ordered template of oversubscription levels. Its
// length bounds the number of vCPUs a single VM may request.
type Catalog struct {
	levels []Level
}

// DefaultCatalog returns the standard 16-entry template 1.0 ... 16.0.
func DefaultCatalog() *Catalog {
	ratios := make([]float64, 16)
	for i := range ratios {
		ratios[i] = float64(i + 1)
	}
	c, _ := NewCatalog(ratios)
	return c
}

// NewCatalog builds a catalog from the given ordered ratios. Every ratio
// must be >= 1.0.
func NewCatalog(ratios []float64) (*Catalog, error) {
	if len(ratios) == 0 {
		return nil, fmt.Errorf("catalog: empty level template: %w", domain.ErrConfigInvalid)
	}
	levels := make([]Level, len(ratios))
	for i, r := range ratios {
		if r < 1.0 {
			return nil, fmt.Errorf("catalog: level %g at index %d is below 1.0: %w", r, i, domain.ErrConfigInvalid)
		}
		levels[i] = LevelOf(r)
	}
	return &Catalog{levels: levels}, nil
}

// Len returns the number of template entries.
func (c *Catalog) Len() int {
	return len(c.levels)
}

// Levels returns a copy of the template.
func (c *Catalog) Levels() []Level {
	out := make([]Level, len(c.levels))
	copy(out, c.levels)
	return out
}

// Contains reports whether the level is a template entry.
func (c *Catalog) Contains(l Level) bool {
	for _, entry := range c.levels {
		if entry == l {
			return true
		}
	}
	return false
}

// PlanFor returns the per-vCPU level assignment for a VM declaring the
// given level with the given vCPU count: the declared level at every
// index. The vCPU count is bounded by the template length and the declared
// level must be a template entry; violations surface at VM-submission
// time, not as an out-of-range index inside the scheduler.
func (c *Catalog) PlanFor(ratio float64, vcpus int) ([]Level, error) {
	if vcpus <= 0 {
		return nil, fmt.Errorf("catalog: vm requests %d vcpus: %w", vcpus, domain.ErrConfigInvalid)
	}
	if vcpus > len(c.levels) {
		return nil, fmt.Errorf("catalog: vm requests %d vcpus but the level template has %d entries: %w",
			vcpus, len(c.levels), domain.ErrConfigInvalid)
	}
	level := LevelOf(ratio)
	if !c.Contains(level) {
		return nil, fmt.Errorf("catalog: level %g is not a template entry: %w", ratio, domain.ErrConfigInvalid)
	}
	plan := make([]Level, vcpus)
	for i := range plan {
		plan[i] = level
	}
	return plan, nil
}

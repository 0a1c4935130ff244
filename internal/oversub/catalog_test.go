// Package oversub provides tests for the level catalog and PE scheduler.
package oversub

import (
	"errors"
	"testing"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

func TestLevelOf_RoundTrip(t *testing.T) {
	for _, ratio := range []float64{1.0, 1.5, 2.0, 4.0, 16.0} {
		l := LevelOf(ratio)
		if l.Ratio() != ratio {
			t.Errorf("LevelOf(%g).Ratio() = %g", ratio, l.Ratio())
		}
	}
}

func TestLevel_Oversubscribed(t *testing.T) {
	if LevelOf(1.0).Oversubscribed() {
		t.Error("level 1.0 must not be oversubscribed")
	}
	if !LevelOf(1.001).Oversubscribed() {
		t.Error("level 1.001 must be oversubscribed")
	}
	if !LevelOf(4.0).Oversubscribed() {
		t.Error("level 4.0 must be oversubscribed")
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		n     int64
		level float64
		want  int64
	}{
		{4, 1.0, 4},
		{4, 4.0, 1},
		{5, 4.0, 2},
		{6, 2.0, 3},
		{7, 2.0, 4},
		{0, 2.0, 0},
		{-3, 2.0, 0},
		{3, 1.5, 2},
	}
	for _, c := range cases {
		if got := ceilDiv(c.n, LevelOf(c.level)); got != c.want {
			t.Errorf("ceilDiv(%d, %g) = %d, want %d", c.n, c.level, got, c.want)
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() != 16 {
		t.Fatalf("default catalog has %d levels, want 16", c.Len())
	}
	levels := c.Levels()
	for i, l := range levels {
		if l.Ratio() != float64(i+1) {
			t.Errorf("level[%d] = %g, want %d", i, l.Ratio(), i+1)
		}
	}
}

func TestNewCatalog_RejectsInvalidLevels(t *testing.T) {
	if _, err := NewCatalog(nil); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("empty template: got %v, want ErrConfigInvalid", err)
	}
	if _, err := NewCatalog([]float64{1.0, 0.5}); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("level below 1.0: got %v, want ErrConfigInvalid", err)
	}
}

func TestCatalog_PlanFor(t *testing.T) {
	c := DefaultCatalog()

	plan, err := c.PlanFor(2.0, 3)
	if err != nil {
		t.Fatalf("PlanFor(2.0, 3): %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("plan has %d entries, want 3", len(plan))
	}
	for i, l := range plan {
		if l != LevelOf(2.0) {
			t.Errorf("plan[%d] = %s, want 2", i, l)
		}
	}
}

func TestCatalog_PlanFor_Bounds(t *testing.T) {
	c := DefaultCatalog()

	if _, err := c.PlanFor(1.0, 0); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("zero vcpus: got %v, want ErrConfigInvalid", err)
	}
	if _, err := c.PlanFor(1.0, 17); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("vcpus beyond template: got %v, want ErrConfigInvalid", err)
	}
	if _, err := c.PlanFor(2.5, 1); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("level outside template: got %v, want ErrConfigInvalid", err)
	}
}

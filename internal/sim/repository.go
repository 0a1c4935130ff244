// Package sim drives a simulation run: it owns the broker-side VM
// lifecycle, feeds placement requests through the policy at the times the
// event kernel dictates, and records the outcome.
package sim

import (
	"context"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// RunStore persists the outcome of simulation runs.
type RunStore interface {
	// CreateRun stores the run header before events start.
	CreateRun(ctx context.Context, run *domain.SimulationRun) error

	// FinishRun updates the run header with final counts and times.
	FinishRun(ctx context.Context, run *domain.SimulationRun) error

	// SavePlacement stores one placement decision.
	SavePlacement(ctx context.Context, rec *domain.PlacementRecord) error

	// SaveHostSample stores one host utilization sample.
	SaveHostSample(ctx context.Context, sample *domain.HostSample) error
}

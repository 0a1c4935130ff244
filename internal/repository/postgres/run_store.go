package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/sim"
)

// Ensure RunStore implements sim.RunStore
var _ sim.RunStore = (*RunStore)(nil)

// RunStore implements sim.RunStore using PostgreSQL.
type RunStore struct {
	db     *DB
	logger *zap.Logger
}

// NewRunStore creates a PostgreSQL run store.
func NewRunStore(db *DB, logger *zap.Logger) *RunStore {
	return &RunStore{
		db:     db,
		logger: logger.With(zap.String("repository", "run")),
	}
}

// CreateRun stores the run header.
func (s *RunStore) CreateRun(ctx context.Context, run *domain.SimulationRun) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO simulation_runs
			(id, started_at, hosts, pes_per_host, host_ram_mib, first_fit, submitted_vms, placed_vms, failed_vms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0)`,
		run.ID, run.StartedAt, run.Hosts, run.PesPerHost, run.HostRAMMiB, run.FirstFit, run.SubmittedVMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun updates the run header with final counts.
func (s *RunStore) FinishRun(ctx context.Context, run *domain.SimulationRun) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE simulation_runs
		SET finished_at = $2, placed_vms = $3, failed_vms = $4
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.PlacedVMs, run.FailedVMs,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SavePlacement stores one placement decision.
func (s *RunStore) SavePlacement(ctx context.Context, rec *domain.PlacementRecord) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO placement_records
			(run_id, clock, vm_id, vcpus, level, placed, host_id, used_pes, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.RunID, rec.Clock, rec.VMID, rec.VCPUs, rec.Level, rec.Placed, rec.HostID, rec.UsedPes, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert placement record: %w", err)
	}
	return nil
}

// SaveHostSample stores one host utilization sample.
func (s *RunStore) SaveHostSample(ctx context.Context, sample *domain.HostSample) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO host_samples
			(run_id, clock, host_id, used_pes, total_pes, ram_allocated_mib)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sample.RunID, sample.Clock, sample.HostID, sample.UsedPes, sample.TotalPes, sample.RAMAllocatedMiB,
	)
	if err != nil {
		return fmt.Errorf("failed to insert host sample: %w", err)
	}
	return nil
}

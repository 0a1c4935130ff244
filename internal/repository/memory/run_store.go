// Package memory provides an in-memory run store for development and
// testing.
package memory

import (
	"context"
	"sync"

	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/sim"
)

// Ensure RunStore implements sim.RunStore
var _ sim.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of the run store.
type RunStore struct {
	mu         sync.RWMutex
	runs       map[string]*domain.SimulationRun
	placements map[string][]domain.PlacementRecord
	samples    map[string][]domain.HostSample
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:       make(map[string]*domain.SimulationRun),
		placements: make(map[string][]domain.PlacementRecord),
		samples:    make(map[string][]domain.HostSample),
	}
}

// CreateRun stores a run header.
func (s *RunStore) CreateRun(ctx context.Context, run *domain.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return domain.ErrConfigInvalid
	}
	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

// FinishRun updates a run header.
func (s *RunStore) FinishRun(ctx context.Context, run *domain.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

// SavePlacement appends a placement record.
func (s *RunStore) SavePlacement(ctx context.Context, rec *domain.PlacementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.placements[rec.RunID] = append(s.placements[rec.RunID], *rec)
	return nil
}

// SaveHostSample appends a host sample.
func (s *RunStore) SaveHostSample(ctx context.Context, sample *domain.HostSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[sample.RunID] = append(s.samples[sample.RunID], *sample)
	return nil
}

// GetRun retrieves a stored run.
func (s *RunStore) GetRun(id string) (*domain.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	stored := *run
	return &stored, nil
}

// Placements returns the placement records of a run in decision order.
func (s *RunStore) Placements(runID string) []domain.PlacementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.PlacementRecord(nil), s.placements[runID]...)
}

// Samples returns the host samples of a run in time order.
func (s *RunStore) Samples(runID string) []domain.HostSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.HostSample(nil), s.samples[runID]...)
}

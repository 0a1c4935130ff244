package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

func TestRunStore_CreateAndFinish(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.SimulationRun{
		ID:           "run-1",
		StartedAt:    time.Now(),
		Hosts:        2,
		PesPerHost:   64,
		SubmittedVMs: 10,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateRun(ctx, run); err == nil {
		t.Fatal("duplicate create must fail")
	}

	run.FinishedAt = time.Now()
	run.PlacedVMs = 8
	run.FailedVMs = 2
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish: %v", err)
	}

	stored, err := store.GetRun("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PlacedVMs != 8 || stored.FailedVMs != 2 {
		t.Errorf("stored run = %+v", stored)
	}
	if stored.FinishedAt.IsZero() {
		t.Error("finish time was not stored")
	}
}

func TestRunStore_FinishUnknownRun(t *testing.T) {
	store := NewRunStore()
	err := store.FinishRun(context.Background(), &domain.SimulationRun{ID: "absent"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("finish unknown run: got %v, want ErrNotFound", err)
	}
}

func TestRunStore_GetUnknownRun(t *testing.T) {
	store := NewRunStore()
	if _, err := store.GetRun("absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get unknown run: got %v, want ErrNotFound", err)
	}
}

func TestRunStore_AppendsRecordsInOrder(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		rec := &domain.PlacementRecord{RunID: "run-1", VMID: i, Placed: true}
		if err := store.SavePlacement(ctx, rec); err != nil {
			t.Fatalf("save placement: %v", err)
		}
	}
	placements := store.Placements("run-1")
	if len(placements) != 3 {
		t.Fatalf("got %d placements, want 3", len(placements))
	}
	for i, rec := range placements {
		if rec.VMID != int64(i+1) {
			t.Errorf("placement order broken: %+v", placements)
		}
	}

	sample := &domain.HostSample{RunID: "run-1", HostID: 0, UsedPes: 4, TotalPes: 64}
	if err := store.SaveHostSample(ctx, sample); err != nil {
		t.Fatalf("save sample: %v", err)
	}
	if len(store.Samples("run-1")) != 1 {
		t.Error("sample was not stored")
	}
	if len(store.Samples("other")) != 0 {
		t.Error("samples leaked across runs")
	}
}

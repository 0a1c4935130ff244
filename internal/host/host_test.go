// Package host provides tests for host admission and balance metrics.
package host

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/oversub"
)

func newTestHost(t *testing.T, id int64, pes int, ramMiB int64) *Host {
	t.Helper()
	cfg := Config{
		PEs:               pes,
		RAMMiB:            ramMiB,
		BandwidthMbps:     100 * 1024,
		StorageMiB:        10 * 1024 * 1024,
		CriticalSize:      oversub.DefaultCriticalSize,
		MigrationOverhead: oversub.DefaultMigrationOverhead,
	}
	return New(id, cfg, oversub.DefaultCatalog(), zap.NewNop())
}

func testVM(id int64, vcpus int, level float64, ramMiB int64) *domain.VM {
	return domain.NewVM(id, domain.VMSpec{
		VCPUs:       vcpus,
		MipsPerVCPU: 1000,
		RAMMiB:      ramMiB,
		Level:       level,
	})
}

func TestHost_AllocateAndDeallocate(t *testing.T) {
	h := newTestHost(t, 1, 4, 4096)
	vm := testVM(1, 2, 1.0, 1024)

	if err := h.AllocateResourcesForVm(vm); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if vm.State() != domain.VMStatePlaced {
		t.Fatalf("vm state = %s, want PLACED", vm.State())
	}
	if h.Ram().Allocated() != 1024 {
		t.Errorf("ram allocated = %d, want 1024", h.Ram().Allocated())
	}
	if h.Scheduler().UsedPes() != 2 {
		t.Errorf("used pes = %d, want 2", h.Scheduler().UsedPes())
	}
	if u := h.Utilization(); u != 0.5 {
		t.Errorf("utilization = %g, want 0.5", u)
	}

	freed, err := h.DeallocateResourcesOfVm(vm)
	if err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	if freed != 2 {
		t.Errorf("freed pes = %d, want 2", freed)
	}
	if vm.State() != domain.VMStateDestroyed {
		t.Errorf("vm state = %s, want DESTROYED", vm.State())
	}
	if h.Ram().Allocated() != 0 || h.Scheduler().UsedPes() != 0 {
		t.Error("deallocation left residual state")
	}
}

// A rejected allocation must leave neither a RAM grant nor a scheduler
// registration behind.
func TestHost_FailedAllocationLeavesNoPartialState(t *testing.T) {
	h := newTestHost(t, 1, 4, 4096)

	// RAM fits, PEs do not.
	wide := testVM(1, 8, 1.0, 512)
	suitability := h.IsSuitableForVm(wide)
	if !suitability.ForRam || suitability.ForPes {
		t.Fatalf("suitability = %+v, want ram ok and pes rejected", suitability)
	}
	if err := h.AllocateResourcesForVm(wide); !errors.Is(err, domain.ErrResourceExhausted) {
		t.Fatalf("allocate: got %v, want ErrResourceExhausted", err)
	}
	if h.Ram().Allocated() != 0 || h.Scheduler().UsedPes() != 0 {
		t.Error("failed allocation left partial state")
	}
	if wide.State() != domain.VMStateRequested {
		t.Errorf("vm state = %s after rejection, want REQUESTED", wide.State())
	}

	// PEs fit, RAM does not.
	heavy := testVM(2, 1, 1.0, 8192)
	suitability = h.IsSuitableForVm(heavy)
	if suitability.ForRam || !suitability.ForPes {
		t.Fatalf("suitability = %+v, want ram rejected and pes ok", suitability)
	}
	if err := h.AllocateResourcesForVm(heavy); !errors.Is(err, domain.ErrResourceExhausted) {
		t.Fatalf("allocate: got %v, want ErrResourceExhausted", err)
	}
	if h.Ram().Allocated() != 0 || h.Scheduler().UsedPes() != 0 {
		t.Error("failed allocation left partial state")
	}
}

func TestHost_DegenerateCapacityNeverSuitable(t *testing.T) {
	vm := testVM(1, 1, 1.0, 256)

	noPes := newTestHost(t, 1, 0, 4096)
	if noPes.IsSuitableForVm(vm).Suitable() {
		t.Error("a host without pes must never be suitable")
	}
	noRam := newTestHost(t, 2, 4, 0)
	if noRam.IsSuitableForVm(vm).Suitable() {
		t.Error("a host without ram must never be suitable")
	}
}

func TestHost_DeallocateNeverPlaced(t *testing.T) {
	h := newTestHost(t, 1, 4, 4096)
	vm := testVM(1, 1, 1.0, 256)

	if _, err := h.DeallocateResourcesOfVm(vm); !errors.Is(err, domain.ErrAllocationInconsistency) {
		t.Errorf("deallocating a never-placed vm: got %v, want ErrAllocationInconsistency", err)
	}
}

func TestHost_IdealCpuMemRatio(t *testing.T) {
	h := newTestHost(t, 1, 4, 4096)
	if ideal := h.IdealCpuMemRatio(); ideal != 1024 {
		t.Fatalf("ideal ratio = %g, want 1024", ideal)
	}

	// An empty host collapses to the ideal.
	ratio, err := h.CpuMemRatio(nil)
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if ratio != 1024 {
		t.Errorf("empty-host ratio = %g, want ideal 1024", ratio)
	}
}

func TestHost_ProgressTowardIdeal(t *testing.T) {
	h := newTestHost(t, 1, 4, 4096)

	// One memory-heavy VM pushes the ratio to 2048 MiB per pe.
	first := testVM(1, 1, 1.0, 2048)
	if err := h.AllocateResourcesForVm(first); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	ratio, err := h.CpuMemRatio(nil)
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if ratio != 2048 {
		t.Fatalf("ratio = %g, want 2048", ratio)
	}

	// A cpu-only candidate restores the balance exactly.
	candidate := testVM(2, 1, 1.0, 0)
	progress, err := h.ProgressTowardIdeal(candidate)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress != 1024 {
		t.Errorf("progress = %g, want 1024", progress)
	}
}

// When placement cannot improve the balance the score falls back to the
// free-pe fraction, so emptier hosts still rank higher.
func TestHost_ProgressFallbackPrefersFreeCapacity(t *testing.T) {
	loaded := newTestHost(t, 1, 4, 4096)
	empty := newTestHost(t, 2, 4, 4096)

	resident := testVM(1, 2, 1.0, 2048)
	if err := loaded.AllocateResourcesForVm(resident); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// The candidate keeps both hosts exactly at the ideal ratio.
	candidate := testVM(2, 2, 1.0, 2048)
	loadedScore, err := loaded.ProgressTowardIdeal(candidate)
	if err != nil {
		t.Fatalf("loaded progress: %v", err)
	}
	emptyScore, err := empty.ProgressTowardIdeal(candidate)
	if err != nil {
		t.Fatalf("empty progress: %v", err)
	}
	if emptyScore <= loadedScore {
		t.Errorf("empty host scored %g, loaded host %g; want empty higher", emptyScore, loadedScore)
	}
}

// Package host implements the host resource container: the composition of
// RAM/bandwidth provisioners with the oversubscription-aware PE scheduler,
// plus the CPU:memory balance metrics the placement policy scores with.
package host

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/oversub"
	"github.com/vclusterlab/vclustersim/internal/provisioner"
)

// Config describes one host's capacities and scheduler tuning.
type Config struct {
	PEs               int
	RAMMiB            int64
	BandwidthMbps     int64
	StorageMiB        int64
	CriticalSize      int
	MigrationOverhead float64
}

// Suitability is the per-dimension result of a host admission check.
type Suitability struct {
	ForRam     bool
	ForPes     bool
	ForBw      bool
	ForStorage bool
}

// Suitable reports whether every dimension passed.
func (s Suitability) Suitable() bool {
	return s.ForRam && s.ForPes && s.ForBw && s.ForStorage
}

// Host is a physical machine with a fixed PE count, RAM and bandwidth
// provisioners and a PE scheduler. Allocate and Deallocate are the only
// operations that mutate provisioner or scheduler state for a VM.
type Host struct {
	id         int64
	pes        int
	storageMiB int64
	active     bool

	ram   *provisioner.Resource
	bw    *provisioner.Resource
	sched *oversub.Scheduler

	logger *zap.Logger
}

// New creates an active host.
func New(id int64, cfg Config, catalog *oversub.Catalog, logger *zap.Logger) *Host {
	logger = logger.With(zap.Int64("host_id", id))
	return &Host{
		id:         id,
		pes:        cfg.PEs,
		storageMiB: cfg.StorageMiB,
		active:     true,
		ram:        provisioner.NewResource("ram", cfg.RAMMiB, logger),
		bw:         provisioner.NewResource("bw", cfg.BandwidthMbps, logger),
		sched:      oversub.NewScheduler(catalog, cfg.PEs, cfg.CriticalSize, cfg.MigrationOverhead, logger),
		logger:     logger.With(zap.String("component", "host")),
	}
}

// ID returns the host id.
func (h *Host) ID() int64 {
	return h.id
}

// PEs returns the physical core count.
func (h *Host) PEs() int {
	return h.pes
}

// Active reports whether the host accepts placements.
func (h *Host) Active() bool {
	return h.active
}

// SetActive powers the host on or off for placement purposes.
func (h *Host) SetActive(active bool) {
	h.active = active
}

// Ram returns the RAM provisioner.
func (h *Host) Ram() *provisioner.Resource {
	return h.ram
}

// Scheduler returns the PE scheduler for diagnostics and metrics.
func (h *Host) Scheduler() *oversub.Scheduler {
	return h.sched
}

// Utilization returns used PEs over total PEs in [0, 1].
func (h *Host) Utilization() float64 {
	if h.pes == 0 {
		return 0
	}
	return float64(h.sched.UsedPes()) / float64(h.pes)
}

// IsSuitableForVm combines RAM suitability (provisioner) and PE
// suitability (scheduler). Bandwidth and storage checks are disabled in
// this variant and always pass: admission control is restricted to CPU and
// memory. Hosts with no PEs or no RAM are never suitable rather than
// faulting on degenerate ratios.
func (h *Host) IsSuitableForVm(vm *domain.VM) Suitability {
	suitability := Suitability{ForBw: true, ForStorage: true}
	if h.pes == 0 || h.ram.Capacity() == 0 {
		return suitability
	}

	suitability.ForRam = h.ram.IsSuitableForVm(vm.ID, vm.Spec.RAMMiB)

	forPes, err := h.sched.IsSuitableForVm(vm)
	if err != nil {
		h.logger.Warn("pe suitability check failed", zap.Int64("vm_id", vm.ID), zap.Error(err))
		return suitability
	}
	suitability.ForPes = forPes
	return suitability
}

// AllocateResourcesForVm admits the VM onto the host. Both suitability
// predicates are validated before either the provisioner or the scheduler
// is mutated, so a failure leaves no partial state.
func (h *Host) AllocateResourcesForVm(vm *domain.VM) error {
	suitability := h.IsSuitableForVm(vm)
	if !suitability.Suitable() {
		return fmt.Errorf("host %d cannot fit vm %d (ram=%t pes=%t): %w",
			h.id, vm.ID, suitability.ForRam, suitability.ForPes, domain.ErrResourceExhausted)
	}
	if vm.State() != domain.VMStateRequested {
		return fmt.Errorf("host %d: vm %d in state %s: %w", h.id, vm.ID, vm.State(), domain.ErrInvalidTransition)
	}

	if err := h.ram.AllocateForVm(vm.ID, vm.Spec.RAMMiB); err != nil {
		return err
	}
	if _, err := h.sched.AllocatePesForVm(vm, vm.RequestedMips()); err != nil {
		// Suitability was re-checked inside the scheduler; undo the RAM
		// grant so no partial state remains.
		if _, ramErr := h.ram.DeallocateForVm(vm.ID); ramErr != nil {
			h.logger.Error("ram rollback failed", zap.Int64("vm_id", vm.ID), zap.Error(ramErr))
		}
		return err
	}

	if err := vm.MarkPlaced(); err != nil {
		return err
	}
	h.logger.Debug("vm placed",
		zap.Int64("vm_id", vm.ID),
		zap.Int64("used_pes", h.sched.UsedPes()),
		zap.Int64("ram_allocated_mib", h.ram.Allocated()),
	)
	return nil
}

// DeallocateResourcesOfVm releases the VM's RAM and PEs and returns the
// number of physical PEs notionally freed. Deallocating a VM that never
// reached the placed state is an allocation inconsistency.
func (h *Host) DeallocateResourcesOfVm(vm *domain.VM) (int64, error) {
	if vm.State() != domain.VMStatePlaced {
		return 0, fmt.Errorf("host %d: vm %d in state %s was never placed: %w",
			h.id, vm.ID, vm.State(), domain.ErrAllocationInconsistency)
	}
	if !h.sched.Registered(vm) || h.ram.AllocatedToVm(vm.ID) == 0 && vm.Spec.RAMMiB > 0 {
		return 0, fmt.Errorf("host %d: vm %d is not allocated here: %w", h.id, vm.ID, domain.ErrAllocationInconsistency)
	}

	if _, err := h.ram.DeallocateForVm(vm.ID); err != nil {
		return 0, err
	}
	freed, err := h.sched.DeallocatePesFromVm(vm)
	if err != nil {
		return 0, err
	}
	if err := vm.MarkDestroyed(); err != nil {
		return freed, err
	}
	h.logger.Debug("vm destroyed",
		zap.Int64("vm_id", vm.ID),
		zap.Int64("freed_pes", freed),
		zap.Int64("used_pes", h.sched.UsedPes()),
	)
	return freed, nil
}

// IdealCpuMemRatio is the host's target memory per physical PE.
func (h *Host) IdealCpuMemRatio() float64 {
	if h.pes == 0 {
		return 0
	}
	return float64(h.ram.Capacity()) / float64(h.pes)
}

// CpuMemRatio returns allocated memory per used PE, hypothetically
// including the candidate when one is given. With no load on either
// operand the ratio collapses to the ideal.
func (h *Host) CpuMemRatio(candidate *domain.VM) (float64, error) {
	var usedPes int64
	mem := h.ram.Allocated()
	if candidate != nil {
		with, err := h.sched.UsedPesWith(candidate)
		if err != nil {
			return 0, err
		}
		usedPes = with
		mem += candidate.Spec.RAMMiB
	} else {
		usedPes = h.sched.UsedPes()
	}

	if mem <= 0 || usedPes <= 0 {
		return h.IdealCpuMemRatio(), nil
	}
	return float64(mem) / float64(usedPes), nil
}

// deltaToIdeal returns the signed distance of the (hypothetical) ratio
// from the ideal ratio.
func (h *Host) deltaToIdeal(candidate *domain.VM) (float64, error) {
	ratio, err := h.CpuMemRatio(candidate)
	if err != nil {
		return 0, err
	}
	return ratio - h.IdealCpuMemRatio(), nil
}

// ProgressTowardIdeal scores how much placing the VM here moves the host
// toward its ideal CPU:memory balance. When no progress is made the score
// falls back to the host's free-PE fraction so the policy still selects
// the least-loaded host deterministically.
func (h *Host) ProgressTowardIdeal(vm *domain.VM) (float64, error) {
	oldDelta, err := h.deltaToIdeal(nil)
	if err != nil {
		return 0, err
	}
	newDelta, err := h.deltaToIdeal(vm)
	if err != nil {
		return 0, err
	}

	progress := math.Abs(oldDelta) - math.Abs(newDelta)
	if progress <= 0 && h.pes > 0 {
		progress += float64(int64(h.pes)-h.sched.UsedPes()) / float64(h.pes)
	}
	return progress, nil
}

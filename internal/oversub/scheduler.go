package oversub

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// DefaultCriticalSize is the distinct-consumer count below which pooling
// math is skipped: with fewer VMs sharing a level set, mutualization has
// no meaningful benefit and raw vCPU demand is charged.
const DefaultCriticalSize = 2

// DefaultMigrationOverhead is the fraction of requested MIPS withheld from
// a VM that is migrating in or out of the host.
const DefaultMigrationOverhead = 0.1

// Consumer is the capability a VM must expose to take part in
// oversubscription-aware scheduling.
type Consumer interface {
	VMID() int64
	VCPUs() int
	OversubscriptionLevel() float64
	InMigration() bool
}

// MipsReceiver is implemented by consumers that record the MIPS share
// granted at allocation time.
type MipsReceiver interface {
	SetAllocatedMips(domain.MipsShare)
}

// Scheduler performs admission tests and PE allocation bookkeeping for one
// host. It keeps two maps keyed by oversubscription level: the set of VMs
// consuming at that level and the vCPU demand registered at that level.
// Map entries are created lazily on first reference and persist for the
// scheduler's lifetime.
//
// All operations are synchronous; the simulation kernel never runs two
// mutations against the same host concurrently.
type Scheduler struct {
	catalog           *Catalog
	workingPes        int64
	criticalSize      int
	migrationOverhead float64

	consumers map[Level]map[int64]Consumer
	demand    map[Level]int64

	logger *zap.Logger
}

// NewScheduler creates a scheduler for a host with the given working PE
// count. The migration overhead is a fraction in [0, 1].
func NewScheduler(catalog *Catalog, workingPes int, criticalSize int, migrationOverhead float64, logger *zap.Logger) *Scheduler {
	if criticalSize <= 0 {
		criticalSize = DefaultCriticalSize
	}
	return &Scheduler{
		catalog:           catalog,
		workingPes:        int64(workingPes),
		criticalSize:      criticalSize,
		migrationOverhead: migrationOverhead,
		consumers:         make(map[Level]map[int64]Consumer),
		demand:            make(map[Level]int64),
		logger:            logger.With(zap.String("component", "pe-scheduler")),
	}
}

// WorkingPes returns the host's working PE count.
func (s *Scheduler) WorkingPes() int64 {
	return s.workingPes
}

// Catalog returns the level template the scheduler assigns from.
func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

func (s *Scheduler) planFor(vm Consumer) ([]Level, error) {
	return s.catalog.PlanFor(vm.OversubscriptionLevel(), vm.VCPUs())
}

// UsedPes returns the host's notional physical PE usage.
func (s *Scheduler) UsedPes() int64 {
	return s.usedPes(nil, nil)
}

// UsedPesWith returns the hypothetical usage if the candidate VM were
// admitted. It is side-effect-free.
func (s *Scheduler) UsedPesWith(vm Consumer) (int64, error) {
	plan, err := s.planFor(vm)
	if err != nil {
		return 0, err
	}
	return s.usedPes(vm, plan), nil
}

// usedPes is the central estimator. The candidate's levels join the
// partition without being registered, which keeps admission checks pure.
//
// Dedicated levels (<= 1.0) are charged their raw vCPU demand. For
// oversubscribed levels two valid upper bounds are computed: pooling all
// levels together divided by the minimum (most tenant-favorable) ratio,
// and summing per-level ceilings. The smaller of the two is charged.
func (s *Scheduler) usedPes(candidate Consumer, plan []Level) int64 {
	levels := s.knownLevels(plan)

	var dedicated, oversubscribed []Level
	for _, l := range levels {
		if l.Oversubscribed() {
			oversubscribed = append(oversubscribed, l)
		} else {
			dedicated = append(dedicated, l)
		}
	}

	baseline := s.physicalAllocation(dedicated, candidate, plan)
	mutualized := s.physicalAllocation(oversubscribed, candidate, plan)
	var dedicatedSum int64
	for _, l := range oversubscribed {
		dedicatedSum += s.physicalAllocation([]Level{l}, candidate, plan)
	}

	pooled := mutualized
	if dedicatedSum < pooled {
		pooled = dedicatedSum
	}
	return baseline + pooled
}

// knownLevels returns the union of registered levels and the candidate's
// plan, in ascending order for deterministic iteration.
func (s *Scheduler) knownLevels(plan []Level) []Level {
	seen := make(map[Level]struct{}, len(s.demand)+1)
	for l := range s.demand {
		seen[l] = struct{}{}
	}
	for _, l := range plan {
		seen[l] = struct{}{}
	}
	levels := make([]Level, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// physicalAllocation estimates the physical PE need of a set of levels.
// Below the critical distinct-consumer size the raw vCPU sum is returned;
// otherwise the sum is divided by the minimum level of the set, rounded up.
func (s *Scheduler) physicalAllocation(levels []Level, candidate Consumer, plan []Level) int64 {
	if len(levels) == 0 {
		return 0
	}

	inSet := func(l Level) bool {
		for _, entry := range levels {
			if entry == l {
				return true
			}
		}
		return false
	}

	var sum int64
	distinct := make(map[int64]struct{})
	minLevel := levels[0]

	for _, l := range levels {
		sum += s.demand[l]
		for id := range s.consumers[l] {
			distinct[id] = struct{}{}
		}
		if l < minLevel {
			minLevel = l
		}
	}

	if candidate != nil {
		var candVcpus int64
		for _, l := range plan {
			if inSet(l) {
				candVcpus++
			}
		}
		if candVcpus > 0 {
			sum += candVcpus
			distinct[candidate.VMID()] = struct{}{}
		}
	}

	if len(distinct) < s.criticalSize {
		return sum
	}
	return ceilDiv(sum, minLevel)
}

// IsSuitableForVm is the sole CPU admission gate: the VM is admitted if
// and only if the hypothetical usage fits the working PE count. It has no
// side effects.
func (s *Scheduler) IsSuitableForVm(vm Consumer) (bool, error) {
	used, err := s.UsedPesWith(vm)
	if err != nil {
		return false, err
	}
	return used <= s.workingPes, nil
}

// AllocatePesForVm registers the VM's vCPUs under their assigned levels
// and returns the MIPS share actually granted. A migrating VM has its
// request scaled by (1 - migration overhead). Failure leaves all state
// unchanged.
func (s *Scheduler) AllocatePesForVm(vm Consumer, requested domain.MipsShare) (domain.MipsShare, error) {
	plan, err := s.planFor(vm)
	if err != nil {
		return domain.MipsShare{}, err
	}

	used := s.usedPes(vm, plan)
	if used > s.workingPes {
		return domain.MipsShare{}, fmt.Errorf(
			"vm %d needs %d of %d pes: %w", vm.VMID(), used, s.workingPes, domain.ErrResourceExhausted)
	}

	for _, l := range plan {
		if s.consumers[l] == nil {
			s.consumers[l] = make(map[int64]Consumer)
			s.demand[l] = 0
		}
		s.consumers[l][vm.VMID()] = vm
		s.demand[l]++
	}

	granted := requested
	if vm.InMigration() {
		granted.MipsPerPe = requested.MipsPerPe * (1 - s.migrationOverhead)
	}
	if r, ok := vm.(MipsReceiver); ok {
		r.SetAllocatedMips(granted)
	}

	s.logger.Debug("allocated pes",
		zap.Int64("vm_id", vm.VMID()),
		zap.Int("vcpus", vm.VCPUs()),
		zap.Float64("level", vm.OversubscriptionLevel()),
		zap.Int64("used_pes", s.UsedPes()),
		zap.Int64("working_pes", s.workingPes),
	)
	return granted, nil
}

// Registered reports whether the VM is currently registered at every level
// of its plan.
func (s *Scheduler) Registered(vm Consumer) bool {
	plan, err := s.planFor(vm)
	if err != nil {
		return false
	}
	for _, l := range plan {
		if _, ok := s.consumers[l][vm.VMID()]; !ok {
			return false
		}
	}
	return true
}

// DeallocatePesFromVm removes the VM from every level it occupies and
// returns the number of physical PEs notionally freed. The estimator is
// not strictly monotonic under set-membership changes, so the delta is
// clamped at zero. Deallocating an unregistered VM, or driving a demand
// counter negative, is an allocation inconsistency.
func (s *Scheduler) DeallocatePesFromVm(vm Consumer) (int64, error) {
	plan, err := s.planFor(vm)
	if err != nil {
		return 0, err
	}

	perLevel := make(map[Level]int64, 1)
	for _, l := range plan {
		perLevel[l]++
	}
	for l, n := range perLevel {
		if _, ok := s.consumers[l][vm.VMID()]; !ok {
			return 0, fmt.Errorf("vm %d is not registered at level %s: %w", vm.VMID(), l, domain.ErrAllocationInconsistency)
		}
		if s.demand[l] < n {
			return 0, fmt.Errorf("level %s demand %d below vm %d vcpus %d: %w",
				l, s.demand[l], vm.VMID(), n, domain.ErrAllocationInconsistency)
		}
	}

	before := s.UsedPes()
	for l, n := range perLevel {
		delete(s.consumers[l], vm.VMID())
		s.demand[l] -= n
	}
	after := s.UsedPes()

	freed := before - after
	if freed < 0 {
		freed = 0
	}
	s.logger.Debug("deallocated pes",
		zap.Int64("vm_id", vm.VMID()),
		zap.Int64("freed_pes", freed),
		zap.Int64("used_pes", after),
	)
	return freed, nil
}

// AvailabilityFor returns the headroom at a level before its dedicated
// footprint would have to grow, floored at zero.
func (s *Scheduler) AvailabilityFor(level Level) int64 {
	allocation := s.physicalAllocation([]Level{level}, nil, nil)
	threshold := ceilDiv(s.demand[level], level)
	if avail := allocation - threshold; avail > 0 {
		return avail
	}
	return 0
}

// SizeFor returns the raw vCPU demand registered at a level.
func (s *Scheduler) SizeFor(level Level) int64 {
	return s.demand[level]
}

package oversub

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// seedVM derives a small VM shape from one generated int so slices of
// seeds describe whole workloads.
func seedVM(id int64, seed int) *domain.VM {
	vcpus := seed%4 + 1
	levels := []float64{1.0, 2.0, 4.0}
	return domain.NewVM(id, domain.VMSpec{
		VCPUs:       vcpus,
		MipsPerVCPU: 1000,
		Level:       levels[(seed/4)%len(levels)],
	})
}

func Test_UsedPesNeverExceedsRawDemand(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("pooling never charges more than raw vCPU demand", prop.ForAll(
		func(seeds []int) bool {
			s := NewScheduler(DefaultCatalog(), 1<<30, DefaultCriticalSize, DefaultMigrationOverhead, zap.NewNop())
			var raw int64
			for i, seed := range seeds {
				vm := seedVM(int64(i+1), seed)
				if _, err := s.AllocatePesForVm(vm, vm.RequestedMips()); err != nil {
					return false
				}
				raw += int64(vm.Spec.VCPUs)
			}
			used := s.UsedPes()
			return used >= 0 && used <= raw
		},
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.TestingRun(t)
}

func Test_DemandCountersMatchRegisteredConsumers(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("per-level demand equals the vCPU sum of its consumers", prop.ForAll(
		func(seeds []int) bool {
			s := NewScheduler(DefaultCatalog(), 1<<30, DefaultCriticalSize, DefaultMigrationOverhead, zap.NewNop())
			perLevel := make(map[Level]int64)
			for i, seed := range seeds {
				vm := seedVM(int64(i+1), seed)
				if _, err := s.AllocatePesForVm(vm, vm.RequestedMips()); err != nil {
					return false
				}
				perLevel[LevelOf(vm.Spec.Level)] += int64(vm.Spec.VCPUs)
			}
			for _, l := range s.Catalog().Levels() {
				if s.SizeFor(l) != perLevel[l] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.TestingRun(t)
}

func Test_AllocateDeallocateReturnsToEmpty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("releasing every vm leaves the scheduler empty", prop.ForAll(
		func(seeds []int) bool {
			s := NewScheduler(DefaultCatalog(), 1<<30, DefaultCriticalSize, DefaultMigrationOverhead, zap.NewNop())
			vms := make([]*domain.VM, len(seeds))
			for i, seed := range seeds {
				vms[i] = seedVM(int64(i+1), seed)
				if _, err := s.AllocatePesForVm(vms[i], vms[i].RequestedMips()); err != nil {
					return false
				}
			}
			// Release in reverse of the allocation order.
			for i := len(vms) - 1; i >= 0; i-- {
				if _, err := s.DeallocatePesFromVm(vms[i]); err != nil {
					return false
				}
			}
			if s.UsedPes() != 0 {
				return false
			}
			for _, l := range s.Catalog().Levels() {
				if s.SizeFor(l) != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.TestingRun(t)
}

func Test_AdmissionIsSound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("an admitted workload never exceeds the working pes", prop.ForAll(
		func(workingPes int, seeds []int) bool {
			s := NewScheduler(DefaultCatalog(), workingPes, DefaultCriticalSize, DefaultMigrationOverhead, zap.NewNop())
			for i, seed := range seeds {
				vm := seedVM(int64(i+1), seed)
				ok, err := s.IsSuitableForVm(vm)
				if err != nil {
					return false
				}
				_, err = s.AllocatePesForVm(vm, vm.RequestedMips())
				if ok != (err == nil) {
					// The suitability check and the allocation gate must agree.
					return false
				}
				if s.UsedPes() > int64(workingPes) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.TestingRun(t)
}

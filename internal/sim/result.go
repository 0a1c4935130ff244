package sim

import "github.com/vclusterlab/vclustersim/internal/domain"

// Result summarizes a finished run for reporting.
type Result struct {
	Run   domain.SimulationRun
	Clock float64
	VMs   []VMResult
	Hosts []HostResult
}

// VMResult is the per-VM outcome.
type VMResult struct {
	VMID          int64
	VCPUs         int
	Level         float64
	State         domain.VMState
	HostID        int64 // -1 when never placed
	RequestedMips float64
	AllocatedMips float64
	MeanCPU       float64 // percent, from the usage model
}

// HostResult aggregates the utilization samples of one host.
type HostResult struct {
	HostID   int64
	PEs      int
	MinUsage float64 // percent
	AvgUsage float64
	MaxUsage float64
	Samples  int
}

func (s *Service) buildResult(clock float64) *Result {
	result := &Result{Run: s.run, Clock: clock}

	for _, entry := range s.entries {
		vm := entry.vm
		vr := VMResult{
			VMID:          vm.ID,
			VCPUs:         vm.Spec.VCPUs,
			Level:         vm.Spec.Level,
			State:         vm.State(),
			HostID:        entry.hostID,
			RequestedMips: vm.RequestedMips().TotalMips(),
			AllocatedMips: vm.AllocatedMips().TotalMips(),
		}
		if model, ok := s.models[entry.template.Model]; ok {
			from := entry.template.SubmissionDelay
			vr.MeanCPU = model.Mean(from, from+entry.template.Lifetime) * 100
		}
		result.VMs = append(result.VMs, vr)
	}

	perHost := make(map[int64]*HostResult, len(s.hosts))
	for _, h := range s.hosts {
		perHost[h.ID()] = &HostResult{HostID: h.ID(), PEs: h.PEs()}
	}
	for _, sample := range s.samples {
		hr := perHost[sample.HostID]
		if hr == nil || sample.TotalPes == 0 {
			continue
		}
		usage := 100 * float64(sample.UsedPes) / float64(sample.TotalPes)
		if hr.Samples == 0 || usage < hr.MinUsage {
			hr.MinUsage = usage
		}
		if usage > hr.MaxUsage {
			hr.MaxUsage = usage
		}
		hr.AvgUsage += usage
		hr.Samples++
	}
	for _, h := range s.hosts {
		hr := perHost[h.ID()]
		if hr.Samples > 0 {
			hr.AvgUsage /= float64(hr.Samples)
		}
		result.Hosts = append(result.Hosts, *hr)
	}
	return result
}

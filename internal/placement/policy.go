// Package placement implements the vCluster placement policy: it selects
// the host whose CPU:memory balance improves the most by hosting the VM.
package placement

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/host"
)

// Policy chooses a host for an incoming VM.
type Policy struct {
	firstFit bool
	logger   *zap.Logger
}

// New creates a policy. In first-fit mode the scan stops at the first
// suitable host in host-list order, trading placement quality for speed.
func New(firstFit bool, logger *zap.Logger) *Policy {
	return &Policy{
		firstFit: firstFit,
		logger:   logger.With(zap.String("component", "placement")),
	}
}

// FirstFit reports whether first-fit mode is enabled.
func (p *Policy) FirstFit() bool {
	return p.firstFit
}

// FindHostForVm scans the hosts in order and returns the active, suitable
// host with the maximum balance progress; ties keep the first host
// encountered, so the decision is deterministic for a given host order.
// ErrNoSuitableHost is the non-fatal "no placement" result; the caller
// owns retry policy.
func (p *Policy) FindHostForVm(hosts []*host.Host, vm *domain.VM) (*host.Host, error) {
	var best *host.Host
	var bestProgress float64

	for _, h := range hosts {
		if !h.Active() {
			continue
		}
		suitability := h.IsSuitableForVm(vm)
		if !suitability.Suitable() {
			p.logger.Debug("host rejected",
				zap.Int64("host_id", h.ID()),
				zap.Int64("vm_id", vm.ID),
				zap.Bool("for_ram", suitability.ForRam),
				zap.Bool("for_pes", suitability.ForPes),
			)
			continue
		}

		if p.firstFit {
			p.logger.Debug("first-fit selection", zap.Int64("host_id", h.ID()), zap.Int64("vm_id", vm.ID))
			return h, nil
		}

		progress, err := h.ProgressTowardIdeal(vm)
		if err != nil {
			return nil, fmt.Errorf("scoring host %d for vm %d: %w", h.ID(), vm.ID, err)
		}
		p.logger.Debug("host scored",
			zap.Int64("host_id", h.ID()),
			zap.Int64("vm_id", vm.ID),
			zap.Float64("progress", progress),
		)
		if best == nil || progress > bestProgress {
			best = h
			bestProgress = progress
		}
	}

	if best == nil {
		return nil, fmt.Errorf("vm %d (%d vcpus, level %g): %w",
			vm.ID, vm.Spec.VCPUs, vm.Spec.Level, domain.ErrNoSuitableHost)
	}
	p.logger.Debug("host selected",
		zap.Int64("host_id", best.ID()),
		zap.Int64("vm_id", vm.ID),
		zap.Float64("progress", bestProgress),
	)
	return best, nil
}

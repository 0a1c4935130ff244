package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/config"
	"github.com/vclusterlab/vclustersim/internal/domain"
	"github.com/vclusterlab/vclustersim/internal/host"
	"github.com/vclusterlab/vclustersim/internal/kernel"
	"github.com/vclusterlab/vclustersim/internal/oversub"
	"github.com/vclusterlab/vclustersim/internal/placement"
	"github.com/vclusterlab/vclustersim/internal/workload"
)

const (
	tagVMCreate kernel.Tag = iota + 1
	tagVMDestroy
)

// vmEntry pairs a VM descriptor with the template it came from.
type vmEntry struct {
	vm       *domain.VM
	template workload.Template
	hostID   int64 // host that admitted the VM, -1 before placement
}

// Service builds the simulated datacenter and runs a workload through it.
type Service struct {
	cfg     *config.Config
	kernel  *kernel.Kernel
	catalog *oversub.Catalog
	hosts   []*host.Host
	policy  *placement.Policy
	store   RunStore
	logger  *zap.Logger

	entries  []*vmEntry
	models   map[string]*workload.UsageModel
	placedOn map[int64]*host.Host

	ctx     context.Context
	run     domain.SimulationRun
	samples []domain.HostSample
}

// New creates a simulation service from configuration.
func New(cfg *config.Config, store RunStore, logger *zap.Logger) (*Service, error) {
	catalog, err := oversub.NewCatalog(cfg.Catalog.Levels)
	if err != nil {
		return nil, err
	}

	hostCfg := host.Config{
		PEs:               cfg.Simulation.PesPerHost,
		RAMMiB:            cfg.Simulation.HostMemoryMiB,
		BandwidthMbps:     cfg.Simulation.HostBandwidthMbps,
		StorageMiB:        cfg.Simulation.HostStorageMiB,
		CriticalSize:      cfg.Scheduler.CriticalSize,
		MigrationOverhead: cfg.Scheduler.MigrationOverhead,
	}
	hosts := make([]*host.Host, cfg.Simulation.Hosts)
	for i := range hosts {
		hosts[i] = host.New(int64(i), hostCfg, catalog, logger)
	}

	return &Service{
		cfg:      cfg,
		kernel:   kernel.New(logger),
		catalog:  catalog,
		hosts:    hosts,
		policy:   placement.New(cfg.Placement.FirstFit, logger),
		store:    store,
		logger:   logger.With(zap.String("component", "sim")),
		models:   make(map[string]*workload.UsageModel),
		placedOn: make(map[int64]*host.Host),
	}, nil
}

// Hosts returns the simulated hosts.
func (s *Service) Hosts() []*host.Host {
	return s.hosts
}

// Submit validates the templates against the level catalog and queues
// them for placement at their submission delays. A template that cannot
// be expressed with the configured template is rejected here, before any
// scheduling happens.
func (s *Service) Submit(templates []workload.Template, models map[string]*workload.UsageModel) error {
	for name, model := range models {
		s.models[name] = model
	}

	for _, t := range templates {
		if filter := s.cfg.Simulation.LevelFilter; filter != 0 && oversub.LevelOf(t.Level) != oversub.LevelOf(filter) {
			continue
		}
		if _, err := s.catalog.PlanFor(t.Level, t.VCPUs); err != nil {
			return fmt.Errorf("vm %d rejected at submission: %w", t.VMID, err)
		}
		s.entries = append(s.entries, &vmEntry{vm: domain.NewVM(t.VMID, t.Spec()), template: t, hostID: -1})
	}

	s.logger.Info("workload submitted",
		zap.Int("vms", len(s.entries)),
		zap.Int("models", len(s.models)),
	)
	return nil
}

// Run executes the simulation to completion and returns its result.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	s.ctx = ctx
	s.run = domain.SimulationRun{
		ID:           uuid.NewString(),
		StartedAt:    time.Now(),
		Hosts:        len(s.hosts),
		PesPerHost:   s.cfg.Simulation.PesPerHost,
		HostRAMMiB:   s.cfg.Simulation.HostMemoryMiB,
		FirstFit:     s.cfg.Placement.FirstFit,
		SubmittedVMs: len(s.entries),
	}
	if err := s.store.CreateRun(ctx, &s.run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	for _, entry := range s.entries {
		s.kernel.Send(s, entry.vm.Spec.SubmissionDelay, tagVMCreate, entry)
	}
	clock := s.kernel.Run()

	s.run.FinishedAt = time.Now()
	if err := s.store.FinishRun(ctx, &s.run); err != nil {
		s.logger.Warn("finish run", zap.Error(err))
	}

	s.logger.Info("simulation finished",
		zap.String("run_id", s.run.ID),
		zap.Float64("clock", clock),
		zap.Int("placed", s.run.PlacedVMs),
		zap.Int("failed", s.run.FailedVMs),
	)
	return s.buildResult(clock), nil
}

// HandleEvent dispatches kernel events. All handling is synchronous at
// one logical-clock instant; no two mutations of the same host overlap.
func (s *Service) HandleEvent(ev kernel.Event) {
	entry := ev.Data.(*vmEntry)
	switch ev.Tag {
	case tagVMCreate:
		s.handleCreate(entry)
	case tagVMDestroy:
		s.handleDestroy(entry)
	default:
		s.logger.Error("unknown event tag", zap.Int("tag", int(ev.Tag)))
	}
}

func (s *Service) handleCreate(entry *vmEntry) {
	vm := entry.vm
	record := domain.PlacementRecord{
		RunID:  s.run.ID,
		Clock:  s.kernel.Clock(),
		VMID:   vm.ID,
		VCPUs:  vm.Spec.VCPUs,
		Level:  vm.Spec.Level,
		HostID: -1,
	}

	selected, err := s.policy.FindHostForVm(s.hosts, vm)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSuitableHost) {
			s.logger.Error("placement failed", zap.Int64("vm_id", vm.ID), zap.Error(err))
		} else {
			s.logger.Warn("no suitable host", zap.Int64("vm_id", vm.ID), zap.Float64("clock", s.kernel.Clock()))
		}
		s.run.FailedVMs++
		record.Reason = err.Error()
		s.savePlacement(&record)
		return
	}

	if err := selected.AllocateResourcesForVm(vm); err != nil {
		// A suitable host must admit the VM; this is a check/act gap.
		s.logger.Error("allocation failed after suitability",
			zap.Int64("vm_id", vm.ID),
			zap.Int64("host_id", selected.ID()),
			zap.Error(err),
		)
		s.run.FailedVMs++
		record.Reason = err.Error()
		s.savePlacement(&record)
		return
	}

	s.placedOn[vm.ID] = selected
	entry.hostID = selected.ID()
	s.run.PlacedVMs++
	record.Placed = true
	record.HostID = selected.ID()
	record.UsedPes = selected.Scheduler().UsedPes()
	s.savePlacement(&record)

	lifetime := vm.Spec.Lifetime + s.cfg.Simulation.VMDestructionDelay
	s.kernel.Send(s, lifetime, tagVMDestroy, entry)
	s.sampleHosts()
}

func (s *Service) handleDestroy(entry *vmEntry) {
	vm := entry.vm
	h, ok := s.placedOn[vm.ID]
	if !ok {
		s.logger.Error("destroy for unplaced vm", zap.Int64("vm_id", vm.ID))
		return
	}
	if _, err := h.DeallocateResourcesOfVm(vm); err != nil {
		s.logger.Error("deallocation failed", zap.Int64("vm_id", vm.ID), zap.Error(err))
		return
	}
	delete(s.placedOn, vm.ID)
	s.sampleHosts()
}

func (s *Service) sampleHosts() {
	clock := s.kernel.Clock()
	for _, h := range s.hosts {
		sample := domain.HostSample{
			RunID:           s.run.ID,
			Clock:           clock,
			HostID:          h.ID(),
			UsedPes:         h.Scheduler().UsedPes(),
			TotalPes:        h.PEs(),
			RAMAllocatedMiB: h.Ram().Allocated(),
		}
		s.samples = append(s.samples, sample)
		if err := s.store.SaveHostSample(s.ctx, &sample); err != nil {
			s.logger.Warn("save host sample", zap.Error(err))
		}
	}
}

func (s *Service) savePlacement(rec *domain.PlacementRecord) {
	if err := s.store.SavePlacement(s.ctx, rec); err != nil {
		s.logger.Warn("save placement", zap.Error(err))
	}
}

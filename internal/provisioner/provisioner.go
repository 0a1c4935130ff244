// Package provisioner implements simple capacity provisioners for host
// resources such as RAM and bandwidth. A provisioner hands out fixed
// amounts per VM and keeps the per-VM ledger needed to release them.
package provisioner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// Resource provisions one host resource dimension.
type Resource struct {
	name        string
	capacity    int64
	allocated   int64
	allocations map[int64]int64

	logger *zap.Logger
}

// NewResource creates a provisioner for a resource with the given capacity.
func NewResource(name string, capacity int64, logger *zap.Logger) *Resource {
	return &Resource{
		name:        name,
		capacity:    capacity,
		allocations: make(map[int64]int64),
		logger:      logger.With(zap.String("component", "provisioner"), zap.String("resource", name)),
	}
}

// Capacity returns the total capacity.
func (r *Resource) Capacity() int64 {
	return r.capacity
}

// Allocated returns the amount currently allocated across all VMs.
func (r *Resource) Allocated() int64 {
	return r.allocated
}

// Available returns the unallocated remainder.
func (r *Resource) Available() int64 {
	return r.capacity - r.allocated
}

// AllocatedToVm returns the amount held by one VM (zero if none).
func (r *Resource) AllocatedToVm(vmID int64) int64 {
	return r.allocations[vmID]
}

// IsSuitableForVm reports whether the amount would fit, counting any
// allocation the VM already holds as released first.
func (r *Resource) IsSuitableForVm(vmID int64, amount int64) bool {
	if amount < 0 {
		return false
	}
	return amount <= r.Available()+r.allocations[vmID]
}

// AllocateForVm grants the amount to the VM, replacing any previous
// allocation it held.
func (r *Resource) AllocateForVm(vmID int64, amount int64) error {
	if !r.IsSuitableForVm(vmID, amount) {
		return fmt.Errorf("%s: vm %d requests %d with %d available: %w",
			r.name, vmID, amount, r.Available(), domain.ErrResourceExhausted)
	}
	r.allocated += amount - r.allocations[vmID]
	r.allocations[vmID] = amount
	r.logger.Debug("allocated",
		zap.Int64("vm_id", vmID),
		zap.Int64("amount", amount),
		zap.Int64("allocated", r.allocated),
		zap.Int64("capacity", r.capacity),
	)
	return nil
}

// DeallocateForVm releases the VM's allocation and returns the freed
// amount. Releasing a VM that holds nothing is an allocation
// inconsistency.
func (r *Resource) DeallocateForVm(vmID int64) (int64, error) {
	amount, ok := r.allocations[vmID]
	if !ok {
		return 0, fmt.Errorf("%s: vm %d holds no allocation: %w", r.name, vmID, domain.ErrAllocationInconsistency)
	}
	delete(r.allocations, vmID)
	r.allocated -= amount
	r.logger.Debug("deallocated",
		zap.Int64("vm_id", vmID),
		zap.Int64("amount", amount),
		zap.Int64("allocated", r.allocated),
	)
	return amount, nil
}

package domain

import "fmt"

// VMState represents the lifecycle state of a VM resource descriptor.
type VMState string

const (
	VMStateRequested VMState = "REQUESTED"
	VMStatePlaced    VMState = "PLACED"
	VMStateDestroyed VMState = "DESTROYED"
)

// MipsShare is an amount of MIPS requested or granted per virtual CPU.
type MipsShare struct {
	Pes       int     `json:"pes"`
	MipsPerPe float64 `json:"mips_per_pe"`
}

// TotalMips returns the total MIPS across all PEs of the share.
func (s MipsShare) TotalMips() float64 {
	return float64(s.Pes) * s.MipsPerPe
}

// VMSpec describes the resources a VM requests. It is fixed at submission.
type VMSpec struct {
	VCPUs           int     `json:"vcpus"`
	MipsPerVCPU     float64 `json:"mips_per_vcpu"`
	RAMMiB          int64   `json:"ram_mib"`
	BandwidthMbps   int64   `json:"bandwidth_mbps"`
	StorageMiB      int64   `json:"storage_mib"`
	Level           float64 `json:"level"`
	SubmissionDelay float64 `json:"submission_delay"`
	Lifetime        float64 `json:"lifetime"`
}

// VM is the resource descriptor for one virtual machine. It carries the
// declared oversubscription level and, once placed, the allocated MIPS
// share. It holds no scheduling logic; the scheduler's per-level maps are
// the source of truth for which levels a placed VM occupies.
type VM struct {
	ID   int64  `json:"id"`
	Spec VMSpec `json:"spec"`

	state       VMState
	inMigration bool
	allocated   MipsShare
}

// NewVM creates a VM descriptor in the Requested state.
func NewVM(id int64, spec VMSpec) *VM {
	return &VM{ID: id, Spec: spec, state: VMStateRequested}
}

// State returns the current lifecycle state.
func (v *VM) State() VMState {
	return v.state
}

// MarkPlaced transitions Requested -> Placed. Only a successful host
// allocation may drive this transition.
func (v *VM) MarkPlaced() error {
	if v.state != VMStateRequested {
		return fmt.Errorf("vm %d: cannot place from state %s: %w", v.ID, v.state, ErrInvalidTransition)
	}
	v.state = VMStatePlaced
	return nil
}

// MarkDestroyed transitions Placed -> Destroyed. Only a successful host
// deallocation may drive this transition.
func (v *VM) MarkDestroyed() error {
	if v.state != VMStatePlaced {
		return fmt.Errorf("vm %d: cannot destroy from state %s: %w", v.ID, v.state, ErrInvalidTransition)
	}
	v.state = VMStateDestroyed
	return nil
}

// RequestedMips returns the MIPS share the VM asks for.
func (v *VM) RequestedMips() MipsShare {
	return MipsShare{Pes: v.Spec.VCPUs, MipsPerPe: v.Spec.MipsPerVCPU}
}

// AllocatedMips returns the share granted at placement time (zero before).
func (v *VM) AllocatedMips() MipsShare {
	return v.allocated
}

// SetAllocatedMips stores the share granted by the PE scheduler.
func (v *VM) SetAllocatedMips(share MipsShare) {
	v.allocated = share
}

// InMigration reports whether the VM is currently migrating. The flag is
// owned by the external kernel; the core only reads it to apply the
// migration CPU overhead.
func (v *VM) InMigration() bool {
	return v.inMigration
}

// SetInMigration updates the migration flag.
func (v *VM) SetInMigration(m bool) {
	v.inMigration = m
}

// VMID implements the scheduler's consumer capability.
func (v *VM) VMID() int64 {
	return v.ID
}

// VCPUs implements the scheduler's consumer capability.
func (v *VM) VCPUs() int {
	return v.Spec.VCPUs
}

// OversubscriptionLevel implements the scheduler's consumer capability.
func (v *VM) OversubscriptionLevel() float64 {
	return v.Spec.Level
}

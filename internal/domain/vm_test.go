package domain

import (
	"errors"
	"testing"
)

func TestVM_LifecycleTransitions(t *testing.T) {
	vm := NewVM(1, VMSpec{VCPUs: 2, MipsPerVCPU: 1000, Level: 2.0})

	if vm.State() != VMStateRequested {
		t.Fatalf("new vm state = %s, want %s", vm.State(), VMStateRequested)
	}
	if err := vm.MarkPlaced(); err != nil {
		t.Fatalf("place: %v", err)
	}
	if vm.State() != VMStatePlaced {
		t.Fatalf("state = %s after placement, want %s", vm.State(), VMStatePlaced)
	}
	if err := vm.MarkDestroyed(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if vm.State() != VMStateDestroyed {
		t.Fatalf("state = %s after destroy, want %s", vm.State(), VMStateDestroyed)
	}
}

func TestVM_InvalidTransitions(t *testing.T) {
	vm := NewVM(1, VMSpec{VCPUs: 1})

	if err := vm.MarkDestroyed(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("destroy before place: got %v, want ErrInvalidTransition", err)
	}

	if err := vm.MarkPlaced(); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := vm.MarkPlaced(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double place: got %v, want ErrInvalidTransition", err)
	}

	if err := vm.MarkDestroyed(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := vm.MarkDestroyed(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double destroy: got %v, want ErrInvalidTransition", err)
	}
	if err := vm.MarkPlaced(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("place after destroy: got %v, want ErrInvalidTransition", err)
	}
}

func TestVM_MipsShares(t *testing.T) {
	vm := NewVM(1, VMSpec{VCPUs: 4, MipsPerVCPU: 500})

	requested := vm.RequestedMips()
	if requested.Pes != 4 || requested.MipsPerPe != 500 {
		t.Errorf("requested = %+v, want 4 pes at 500", requested)
	}
	if requested.TotalMips() != 2000 {
		t.Errorf("total requested mips = %g, want 2000", requested.TotalMips())
	}

	if vm.AllocatedMips().TotalMips() != 0 {
		t.Error("allocated mips must be zero before placement")
	}
	vm.SetAllocatedMips(MipsShare{Pes: 4, MipsPerPe: 450})
	if vm.AllocatedMips().TotalMips() != 1800 {
		t.Errorf("allocated mips = %g, want 1800", vm.AllocatedMips().TotalMips())
	}
}

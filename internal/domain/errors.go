// Package domain contains the resource descriptors shared by the scheduler,
// host and placement packages, plus the sentinel errors of the core.
package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrNoSuitableHost is returned when no active host satisfies the
	// RAM and PE suitability checks for a VM. It is non-fatal; the caller
	// owns retry or drop policy.
	ErrNoSuitableHost = errors.New("no suitable host")

	// ErrResourceExhausted is returned when an allocation does not fit the
	// remaining capacity of a host resource.
	ErrResourceExhausted = errors.New("resources exhausted")

	// ErrAllocationInconsistency indicates a broken allocate/deallocate
	// pairing: deallocation of a VM that is not registered, or a counter
	// that would go negative. It is a programming-invariant violation,
	// never silently clamped.
	ErrAllocationInconsistency = errors.New("allocation inconsistency")

	// ErrConfigInvalid is returned when a VM request cannot be expressed
	// with the configured oversubscription-level template.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrInvalidTransition is returned on a VM lifecycle transition that
	// violates the Requested -> Placed -> Destroyed state machine.
	ErrInvalidTransition = errors.New("invalid state transition")
)

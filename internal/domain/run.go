package domain

import "time"

// SimulationRun is the persisted record of one simulation execution.
type SimulationRun struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Hosts        int       `json:"hosts"`
	PesPerHost   int       `json:"pes_per_host"`
	HostRAMMiB   int64     `json:"host_ram_mib"`
	FirstFit     bool      `json:"first_fit"`
	SubmittedVMs int       `json:"submitted_vms"`
	PlacedVMs    int       `json:"placed_vms"`
	FailedVMs    int       `json:"failed_vms"`
}

// PlacementRecord is one placement decision made during a run.
type PlacementRecord struct {
	RunID   string  `json:"run_id"`
	Clock   float64 `json:"clock"`
	VMID    int64   `json:"vm_id"`
	VCPUs   int     `json:"vcpus"`
	Level   float64 `json:"level"`
	Placed  bool    `json:"placed"`
	HostID  int64   `json:"host_id"` // -1 when no host was found
	UsedPes int64   `json:"used_pes"`
	Reason  string  `json:"reason"`
}

// HostSample is a point-in-time utilization sample for one host.
type HostSample struct {
	RunID           string  `json:"run_id"`
	Clock           float64 `json:"clock"`
	HostID          int64   `json:"host_id"`
	UsedPes         int64   `json:"used_pes"`
	TotalPes        int     `json:"total_pes"`
	RAMAllocatedMiB int64   `json:"ram_allocated_mib"`
}

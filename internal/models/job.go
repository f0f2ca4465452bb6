package models

import (
	"fmt"
	"time"
)

// RunStatus is the terminal status of one job run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func ParseRunStatus(s string) (RunStatus, error) {
	switch s {
	case "completed":
		return RunStatusCompleted, nil
	case "failed":
		return RunStatusFailed, nil
	case "cancelled":
		return RunStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid run status: %s", s)
	}
}

// JobRun is the history record of one finished job. Only terminal outcomes
// are recorded; pending work is never persisted.
type JobRun struct {
	JobID       uint64
	PoolID      string
	Workload    string
	Status      RunStatus
	Result      string
	Error       string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

func (r JobRun) Duration() time.Duration {
	if r.SubmittedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.SubmittedAt)
}

// PoolStatus aggregates the live pool snapshot with the runner's terminal
// counters for the monitoring surface.
type PoolStatus struct {
	PoolID          string
	Workers         int
	Idle            int
	Pending         int
	Live            int
	Completed       uint64
	Failed          uint64
	Cancelled       uint64
	DroppedProgress uint64
}

package v1

import (
	"time"

	"github.com/taskwell/workpool/internal/models"
)

// StatusResponse is the pool snapshot returned by GET /api/v1/status.
type StatusResponse struct {
	PoolID          string   `json:"poolId"`
	Workers         int      `json:"workers"`
	Idle            int      `json:"idle"`
	Pending         int      `json:"pending"`
	Live            int      `json:"live"`
	Completed       uint64   `json:"completed"`
	Failed          uint64   `json:"failed"`
	Cancelled       uint64   `json:"cancelled"`
	DroppedProgress uint64   `json:"droppedProgress"`
	Workloads       []string `json:"workloads"`
}

func NewStatusResponse(s models.PoolStatus, workloads []string) StatusResponse {
	return StatusResponse{
		PoolID:          s.PoolID,
		Workers:         s.Workers,
		Idle:            s.Idle,
		Pending:         s.Pending,
		Live:            s.Live,
		Completed:       s.Completed,
		Failed:          s.Failed,
		Cancelled:       s.Cancelled,
		DroppedProgress: s.DroppedProgress,
		Workloads:       workloads,
	}
}

// JobRun is the API shape of one persisted terminal outcome.
type JobRun struct {
	JobID       uint64    `json:"jobId"`
	PoolID      string    `json:"poolId"`
	Workload    string    `json:"workload,omitempty"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	DurationMs  int64     `json:"durationMs"`
}

// NewJobRunFromModel converts a models.JobRun to an API JobRun.
func NewJobRunFromModel(run models.JobRun) JobRun {
	return JobRun{
		JobID:       run.JobID,
		PoolID:      run.PoolID,
		Workload:    run.Workload,
		Status:      string(run.Status),
		Result:      run.Result,
		Error:       run.Error,
		SubmittedAt: run.SubmittedAt,
		FinishedAt:  run.FinishedAt,
		DurationMs:  run.Duration().Milliseconds(),
	}
}

// JobListResponse is the paginated run history returned by GET /api/v1/jobs.
type JobListResponse struct {
	Page      int      `json:"page"`
	PageCount int      `json:"pageCount"`
	Total     int      `json:"total"`
	Jobs      []JobRun `json:"jobs"`
}

// SubmitRequest asks the runner to submit one registered workload.
type SubmitRequest struct {
	Workload string         `json:"workload" binding:"required"`
	Params   map[string]any `json:"params"`
}

// SubmitResponse carries the id assigned to the admitted job.
type SubmitResponse struct {
	ID uint64 `json:"id"`
}

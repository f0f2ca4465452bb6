package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/taskwell/workpool/internal/models"
	"github.com/taskwell/workpool/internal/store"
	srvErrors "github.com/taskwell/workpool/pkg/errors"
	"github.com/taskwell/workpool/pkg/pool"
)

const (
	defaultTick    = 100 * time.Millisecond
	persistTimeout = 5 * time.Second
	submitRetries  = 4
)

// Workload builds one unit of submittable work from request parameters,
// returning the work function and its initial resumable state.
type Workload func(params map[string]any) (pool.WorkFunc, any, error)

type jobMeta struct {
	workload    string
	submittedAt time.Time
}

// Runner owns a pool, drives its dispatch tick and persists terminal
// outcomes into the history store.
type Runner struct {
	pool  *pool.Pool
	store *store.Store
	tick  time.Duration
	log   *zap.SugaredLogger

	mu        sync.Mutex
	meta      map[pool.JobID]jobMeta
	workloads map[string]Workload

	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

// NewRunner wires the pool callbacks. st may be nil, in which case terminal
// outcomes are counted but not persisted.
func NewRunner(p *pool.Pool, st *store.Store, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = defaultTick
	}
	r := &Runner{
		pool:      p,
		store:     st,
		tick:      tick,
		log:       zap.S().Named("runner").With("pool", p.ID().String()),
		meta:      make(map[pool.JobID]jobMeta),
		workloads: make(map[string]Workload),
	}
	p.OnProgress(r.handleProgress)
	p.OnComplete(r.handleComplete)
	p.OnError(r.handleError)
	return r
}

// Register adds a named workload kind submittable through SubmitWorkload.
func (r *Runner) Register(name string, w Workload) {
	r.mu.Lock()
	r.workloads[name] = w
	r.mu.Unlock()
}

// Workloads lists the registered workload kinds.
func (r *Runner) Workloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.workloads))
	for name := range r.workloads {
		names = append(names, name)
	}
	return names
}

// Submit hands a raw work function straight to the pool.
func (r *Runner) Submit(fn pool.WorkFunc, initialState any) (pool.JobID, error) {
	id, err := r.pool.Submit(fn, initialState)
	if err != nil {
		return 0, err
	}
	r.trackJob(id, "")
	return id, nil
}

// SubmitWorkload builds the named workload and submits it, retrying with
// exponential backoff while the pool is saturated. Any other submission
// failure is permanent.
func (r *Runner) SubmitWorkload(ctx context.Context, name string, params map[string]any) (pool.JobID, error) {
	r.mu.Lock()
	w, ok := r.workloads[name]
	r.mu.Unlock()
	if !ok {
		return 0, srvErrors.NewWorkloadNotFoundError(name)
	}

	fn, initialState, err := w(params)
	if err != nil {
		return 0, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	operation := func() (pool.JobID, error) {
		id, err := r.pool.Submit(fn, initialState)
		if err != nil {
			if srvErrors.IsPoolSaturatedError(err) {
				return 0, err
			}
			return 0, backoff.Permanent(err)
		}
		return id, nil
	}

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(submitRetries),
	)
	if err != nil {
		return 0, err
	}
	r.trackJob(id, name)
	r.log.Debugw("workload submitted", "workload", name, "job", id)
	return id, nil
}

func (r *Runner) trackJob(id pool.JobID, workload string) {
	r.mu.Lock()
	r.meta[id] = jobMeta{workload: workload, submittedAt: time.Now().UTC()}
	r.mu.Unlock()
}

func (r *Runner) takeMeta(id pool.JobID) jobMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.meta[id]
	delete(r.meta, id)
	return m
}

// Cancel requests cancellation of one job. Always succeeds; cancelling a
// finished or unknown job is a no-op.
func (r *Runner) Cancel(id uint64) {
	r.pool.Cancel(pool.JobID(id))
}

// CancelAll requests cancellation of every non-terminal job.
func (r *Runner) CancelAll() {
	r.pool.CancelAll()
}

// Status aggregates the live pool snapshot with the terminal counters.
func (r *Runner) Status() models.PoolStatus {
	s := r.pool.Stats()
	return models.PoolStatus{
		PoolID:          r.pool.ID().String(),
		Workers:         s.Workers,
		Idle:            s.Idle,
		Pending:         s.Pending,
		Live:            s.Live,
		Completed:       r.completed.Load(),
		Failed:          r.failed.Load(),
		Cancelled:       r.cancelled.Load(),
		DroppedProgress: s.DroppedProgress,
	}
}

// Run drives the pool's dispatch tick until ctx is done, then cancels
// everything still running, closes the pool and flushes the final messages.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.pool.CancelAll()
			r.pool.Close()
			r.pool.Dispatch()
			r.log.Info("runner stopped")
			return
		case <-ticker.C:
			r.pool.Dispatch()
		}
	}
}

func (r *Runner) handleProgress(id pool.JobID, payload any) {
	r.log.Debugw("job progress", "job", id, "payload", payload)
}

func (r *Runner) handleComplete(id pool.JobID, payload any) {
	r.completed.Add(1)
	r.persist(id, models.RunStatusCompleted, render(payload), "")
}

func (r *Runner) handleError(id pool.JobID, f pool.Failure) {
	var status models.RunStatus
	var errText string
	switch f.Kind {
	case pool.FailureCancelled:
		r.cancelled.Add(1)
		status = models.RunStatusCancelled
		errText = "cancelled"
	default:
		r.failed.Add(1)
		status = models.RunStatusFailed
		if f.Err != nil {
			errText = f.Err.Error()
		} else {
			errText = render(f.Payload)
		}
	}
	r.persist(id, status, "", errText)
}

func (r *Runner) persist(id pool.JobID, status models.RunStatus, result, errText string) {
	m := r.takeMeta(id)
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	run := models.JobRun{
		JobID:       uint64(id),
		PoolID:      r.pool.ID().String(),
		Workload:    m.workload,
		Status:      status,
		Result:      result,
		Error:       errText,
		SubmittedAt: m.submittedAt,
		FinishedAt:  time.Now().UTC(),
	}
	if err := r.store.History().Insert(ctx, run); err != nil {
		r.log.Errorw("failed to persist job run", "job", id, "error", err)
	}
}

func render(payload any) string {
	if payload == nil {
		return ""
	}
	return fmt.Sprintf("%v", payload)
}

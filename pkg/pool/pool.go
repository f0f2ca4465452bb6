package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskwell/workpool/pkg/errors"
)

// AdmissionPolicy governs what happens when a submission finds the pool at
// capacity.
type AdmissionPolicy string

const (
	// AdmissionBlock parks the submitter until capacity frees up. Blocked
	// submitters are admitted in FIFO order.
	AdmissionBlock AdmissionPolicy = "block"
	// AdmissionReject fails the submission with a PoolSaturatedError.
	AdmissionReject AdmissionPolicy = "reject"
)

func ParseAdmissionPolicy(s string) (AdmissionPolicy, error) {
	switch s {
	case string(AdmissionBlock):
		return AdmissionBlock, nil
	case string(AdmissionReject):
		return AdmissionReject, nil
	default:
		return "", errors.NewInvalidConfigError("unknown admission policy %q", s)
	}
}

// DefaultIdleTimeout is how long a worker above the MinWorkers floor sits
// without work before it retires.
const DefaultIdleTimeout = 30 * time.Second

type Config struct {
	// MinWorkers is the floor of live workers. They are started eagerly and
	// never retired while the pool is open.
	MinWorkers int
	// MaxWorkers bounds concurrent invocations. Workers above MinWorkers are
	// spawned lazily as load demands.
	MaxWorkers int
	// QueueCapacity bounds the number of admitted, non-terminal jobs
	// (queued plus running). Re-admission of a yielded job never counts
	// against it.
	QueueCapacity int
	// Admission selects blocking or rejecting behavior at capacity.
	// Defaults to AdmissionReject.
	Admission AdmissionPolicy
	// IdleTimeout retires workers above MinWorkers that have had no work for
	// this long. Defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Admission == "" {
		c.Admission = AdmissionReject
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.MaxWorkers < 1 {
		return errors.NewInvalidConfigError("MaxWorkers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MinWorkers < 0 || c.MinWorkers > c.MaxWorkers {
		return errors.NewInvalidConfigError("MinWorkers must be within [0, MaxWorkers], got %d", c.MinWorkers)
	}
	if c.QueueCapacity < 1 {
		return errors.NewInvalidConfigError("QueueCapacity must be at least 1, got %d", c.QueueCapacity)
	}
	if _, err := ParseAdmissionPolicy(string(c.Admission)); err != nil {
		return err
	}
	return nil
}

// waiter is a submitter parked by the blocking admission policy. Its job is
// admitted directly by whoever frees capacity, which keeps admission FIFO.
type waiter struct {
	j        *job
	admitted chan struct{}
	err      error
}

type Pool struct {
	cfg Config
	id  uuid.UUID
	log *zap.SugaredLogger

	mu      sync.Mutex
	cond    *sync.Cond
	runq    queue[*job]
	jobs    map[JobID]*job
	waiters []*waiter
	nextID  JobID
	workers int
	idle    int
	closed  bool

	wg        sync.WaitGroup
	closeOnce sync.Once

	resMu sync.Mutex
	inbox []message

	cbMu       sync.Mutex
	onProgress ProgressFunc
	onComplete CompleteFunc
	onError    ErrorFunc

	droppedProgress atomic.Uint64
}

// New validates cfg and builds a pool with MinWorkers workers already
// running. Invalid configuration is the only synchronous failure mode of the
// pool; everything job-related is reported through Dispatch.
func New(cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:  cfg,
		id:   uuid.New(),
		jobs: make(map[JobID]*job),
	}
	p.cond = sync.NewCond(&p.mu)
	p.log = zap.S().Named("workpool").With("pool", p.id.String())

	p.mu.Lock()
	for range cfg.MinWorkers {
		p.spawnLocked()
	}
	p.mu.Unlock()
	return p, nil
}

// ID returns the pool instance id stamped on its logs.
func (p *Pool) ID() uuid.UUID { return p.id }

// Submit admits one unit of work and returns its id. Under AdmissionReject a
// full pool fails with a PoolSaturatedError; under AdmissionBlock the caller
// is parked until capacity frees up, FIFO among blocked submitters. After
// Close every submission fails with a PoolClosedError.
func (p *Pool) Submit(fn WorkFunc, initialState any) (JobID, error) {
	if fn == nil {
		return 0, errors.NewInvalidConfigError("nil work function")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.NewPoolClosedError()
	}
	j := &job{fn: fn, state: initialState}
	if len(p.jobs) < p.cfg.QueueCapacity {
		id := p.admitLocked(j)
		p.mu.Unlock()
		return id, nil
	}
	if p.cfg.Admission == AdmissionReject {
		p.mu.Unlock()
		return 0, errors.NewPoolSaturatedError(p.cfg.QueueCapacity)
	}
	w := &waiter{j: j, admitted: make(chan struct{})}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	<-w.admitted
	if w.err != nil {
		return 0, w.err
	}
	return j.id, nil
}

// admitLocked assigns the id, queues the job and wakes or spawns a worker.
func (p *Pool) admitLocked(j *job) JobID {
	p.nextID++
	j.id = p.nextID
	p.jobs[j.id] = j
	p.runq.Push(j)
	if p.idle > 0 {
		p.cond.Signal()
	} else if p.workers < p.cfg.MaxWorkers {
		p.spawnLocked()
	}
	return j.id
}

// Cancel sets the cancellation flag of the named job. Cancellation is
// advisory: it takes effect only when the work function next checks the flag.
// Cancelling a finished or unknown job is a silent no-op; the race against
// completion is inherent and tolerated.
func (p *Pool) Cancel(id JobID) {
	p.mu.Lock()
	j, ok := p.jobs[id]
	p.mu.Unlock()
	if ok {
		j.cancelled.Store(true)
	}
}

// CancelAll sets the cancellation flag on every non-terminal job.
func (p *Pool) CancelAll() {
	p.mu.Lock()
	jobs := make([]*job, 0, len(p.jobs))
	for _, j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()
	for _, j := range jobs {
		j.cancelled.Store(true)
	}
}

// Workers reports the live worker count. Informational only; it carries no
// ordering guarantee relative to in-flight submissions.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Pending reports how many admitted jobs are waiting for a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runq.Len()
}

// Stats is a point-in-time monitoring snapshot.
type Stats struct {
	Workers int
	Idle    int
	Pending int
	// Live counts admitted, non-terminal jobs (queued plus running).
	Live int
	// DroppedProgress counts progress reports suppressed because their job
	// had already been cancelled.
	DroppedProgress uint64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Workers: p.workers,
		Idle:    p.idle,
		Pending: p.runq.Len(),
		Live:    len(p.jobs),
	}
	p.mu.Unlock()
	s.DroppedProgress = p.droppedProgress.Load()
	return s
}

// Close stops admissions, fails parked submitters, waits for every in-flight
// invocation to complete or yield, then retires all workers. Jobs that never
// got to run again receive a synthetic Cancelled terminal message, so no
// admitted job ends without one; call Dispatch afterwards to observe them.
// Close does not bound its own latency: a work function that ignores
// cancellation runs until its current invocation returns.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		waiters := p.waiters
		p.waiters = nil
		p.cond.Broadcast()
		p.mu.Unlock()

		for _, w := range waiters {
			w.err = errors.NewPoolClosedError()
			close(w.admitted)
		}

		p.wg.Wait()

		p.mu.Lock()
		abandoned := make([]*job, 0, len(p.jobs))
		for _, j := range p.jobs {
			abandoned = append(abandoned, j)
		}
		p.jobs = make(map[JobID]*job)
		p.runq = nil
		p.mu.Unlock()

		for _, j := range abandoned {
			p.postTerminalError(j, Failure{Kind: FailureCancelled})
		}
		p.log.Infow("pool closed", "abandoned", len(abandoned))
	})
}

package pool

import "sync/atomic"

// JobID identifies one submitted unit of work. IDs are unique and monotonic
// for the lifetime of a pool, in admission order.
type JobID uint64

// WorkFunc is one resumable unit of work. state is whatever the previous
// invocation yielded (the initial state on the first call); the function owns
// it exclusively for the duration of the invocation and hands it back through
// Yield.
//
// Cooperative functions consult step.Cancelled() before each checkpoint and
// return Cancelled() promptly once the flag is set. A function that never
// checks is not incorrect, but for it cancellation degrades to advisory: it
// has no effect until the function finishes naturally. Both behaviors are
// supported and observably different.
type WorkFunc func(step *Step, state any) Outcome

type job struct {
	id          JobID
	fn          WorkFunc
	state       any
	invocations int

	// cancelled is set-once-then-sticky; done guards the single terminal
	// message for this job.
	cancelled atomic.Bool
	done      atomic.Bool
}

// Step is the per-invocation handle a work function uses to report progress
// and observe cancellation.
type Step struct {
	pool *Pool
	job  *job
}

func (s *Step) JobID() JobID { return s.job.id }

// Cancelled reports whether the owner requested cancellation of this job.
// The flag is sticky: once set it never clears.
func (s *Step) Cancelled() bool { return s.job.cancelled.Load() }

// Invocation returns how many times the work function has run for this job,
// the current invocation included.
func (s *Step) Invocation() int { return s.job.invocations }

// Progress posts an intermediate report without ending the invocation.
// Reports issued after the job was cancelled are dropped and counted in
// Stats instead of being delivered.
func (s *Step) Progress(payload any) {
	if s.job.cancelled.Load() {
		s.pool.droppedProgress.Add(1)
		return
	}
	s.pool.post(message{id: s.job.id, kind: msgProgress, payload: payload})
}

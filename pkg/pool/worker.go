package pool

import (
	"fmt"
	"time"
)

func (p *Pool) spawnLocked() {
	p.workers++
	p.wg.Add(1)
	go p.runWorker()
	p.log.Debugw("worker spawned", "workers", p.workers)
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		j, ok := p.next()
		if !ok {
			return
		}
		if crashed := p.invoke(j); crashed {
			p.replaceCrashed()
			return
		}
	}
}

// next blocks until a job is runnable. It returns false when the worker must
// retire: the pool closed, or the worker sat without work past IdleTimeout
// with more than MinWorkers alive. The worker count is already adjusted on a
// false return.
func (p *Pool) next() (*job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(p.cfg.IdleTimeout)
	for {
		if p.closed {
			p.workers--
			return nil, false
		}
		if j, ok := p.runq.Pop(); ok {
			return j, true
		}
		if p.workers > p.cfg.MinWorkers && !time.Now().Before(deadline) {
			p.workers--
			p.log.Debugw("idle worker retired", "workers", p.workers)
			return nil, false
		}
		p.idle++
		if p.workers > p.cfg.MinWorkers {
			p.waitLocked(time.Until(deadline))
		} else {
			p.cond.Wait()
		}
		p.idle--
	}
}

// waitLocked is a timed cond wait: the timer broadcast bounds the sleep, the
// caller re-checks its own deadline after waking.
func (p *Pool) waitLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	t.Stop()
}

// invoke runs exactly one work-function invocation and routes its outcome.
// It reports whether the work function panicked, in which case the calling
// worker must retire and be replaced.
func (p *Pool) invoke(j *job) (crashed bool) {
	j.invocations++
	step := &Step{pool: p, job: j}

	var out Outcome
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				crashed = true
				p.log.Warnw("work function panicked", "job", j.id, "invocation", j.invocations, "panic", rec)
				p.postTerminalError(j, Failure{
					Kind: FailureProtocol,
					Err:  fmt.Errorf("work function panicked: %v", rec),
				})
				p.finish(j)
			}
		}()
		out = j.fn(step, j.state)
	}()
	if crashed {
		return true
	}

	switch out.kind {
	case outcomeYield:
		j.state = out.state
		p.requeue(j)
	case outcomeComplete:
		j.state = nil
		p.postTerminalComplete(j, out.payload)
		p.finish(j)
	case outcomeFail:
		j.state = nil
		p.postTerminalError(j, Failure{Kind: out.failKind, Payload: out.payload})
		p.finish(j)
	default:
		p.postTerminalError(j, Failure{
			Kind: FailureProtocol,
			Err:  fmt.Errorf("ill-formed outcome from work function for job %d: outcomes must be built with Yield, Complete, Fail or Cancelled", j.id),
		})
		p.finish(j)
	}
	return false
}

// requeue puts a yielded job back at the front of the queue. If the pool
// closed while the invocation ran, the job is finished with a synthetic
// cancellation instead; no worker would ever resume it.
func (p *Pool) requeue(j *job) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.postTerminalError(j, Failure{Kind: FailureCancelled})
		p.finish(j)
		return
	}
	p.runq.PushFront(j)
	p.cond.Signal()
	p.mu.Unlock()
}

// finish removes a terminal job from the registry and hands the freed
// capacity to blocked submitters, oldest first. Admitting the waiter's job
// here, rather than waking it to race for the slot, is what keeps blocking
// admission FIFO.
func (p *Pool) finish(j *job) {
	p.mu.Lock()
	delete(p.jobs, j.id)
	var admitted []*waiter
	for len(p.waiters) > 0 && len(p.jobs) < p.cfg.QueueCapacity && !p.closed {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.admitLocked(w.j)
		admitted = append(admitted, w)
	}
	p.mu.Unlock()

	for _, w := range admitted {
		close(w.admitted)
	}
}

// replaceCrashed retires the calling worker and spawns a replacement so the
// live count returns to its pre-crash value.
func (p *Pool) replaceCrashed() {
	p.mu.Lock()
	p.workers--
	if !p.closed {
		p.spawnLocked()
	}
	p.mu.Unlock()
}

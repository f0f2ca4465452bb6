package pool_test

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	srvErrors "github.com/taskwell/workpool/pkg/errors"
	"github.com/taskwell/workpool/pkg/pool"
)

// recorder collects dispatched callbacks so specs can assert on delivery
// counts and per-job ordering.
type recorder struct {
	mu        sync.Mutex
	progress  map[pool.JobID][]any
	completes map[pool.JobID][]any
	errors    map[pool.JobID][]pool.Failure
	order     map[pool.JobID][]string
}

func newRecorder(p *pool.Pool) *recorder {
	r := &recorder{
		progress:  make(map[pool.JobID][]any),
		completes: make(map[pool.JobID][]any),
		errors:    make(map[pool.JobID][]pool.Failure),
		order:     make(map[pool.JobID][]string),
	}
	p.OnProgress(func(id pool.JobID, v any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.progress[id] = append(r.progress[id], v)
		r.order[id] = append(r.order[id], "progress")
	})
	p.OnComplete(func(id pool.JobID, v any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.completes[id] = append(r.completes[id], v)
		r.order[id] = append(r.order[id], "complete")
	})
	p.OnError(func(id pool.JobID, f pool.Failure) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errors[id] = append(r.errors[id], f)
		r.order[id] = append(r.order[id], "error")
	})
	return r
}

func (r *recorder) completeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.completes {
		n += len(c)
	}
	return n
}

func (r *recorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.errors {
		n += len(e)
	}
	return n
}

func (r *recorder) completesFor(id pool.JobID) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.completes[id]...)
}

func (r *recorder) errorsFor(id pool.JobID) []pool.Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pool.Failure(nil), r.errors[id]...)
}

func (r *recorder) progressFor(id pool.JobID) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.progress[id]...)
}

func (r *recorder) orderFor(id pool.JobID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order[id]...)
}

var _ = Describe("Pool", func() {
	var p *pool.Pool

	AfterEach(func() {
		if p != nil {
			p.Close()
			p = nil
		}
	})

	Describe("Configuration", func() {
		It("should reject MaxWorkers below 1", func() {
			_, err := pool.New(pool.Config{MaxWorkers: 0, QueueCapacity: 1})
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsInvalidConfigError(err)).To(BeTrue())
		})

		It("should reject MinWorkers above MaxWorkers", func() {
			_, err := pool.New(pool.Config{MinWorkers: 5, MaxWorkers: 2, QueueCapacity: 1})
			Expect(srvErrors.IsInvalidConfigError(err)).To(BeTrue())
		})

		It("should reject a zero queue capacity", func() {
			_, err := pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 0})
			Expect(srvErrors.IsInvalidConfigError(err)).To(BeTrue())
		})

		It("should reject an unknown admission policy", func() {
			_, err := pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 1, Admission: "drop"})
			Expect(srvErrors.IsInvalidConfigError(err)).To(BeTrue())
		})

		It("should start MinWorkers workers eagerly", func() {
			var err error
			p, err = pool.New(pool.Config{MinWorkers: 2, MaxWorkers: 4, QueueCapacity: 8})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Workers()).To(Equal(2))
		})
	})

	Describe("Completion", func() {
		It("should complete four immediate jobs exactly once each with their own ids", func() {
			var err error
			p, err = pool.New(pool.Config{MinWorkers: 0, MaxWorkers: 2, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			ids := make([]pool.JobID, 0, 4)
			for range 4 {
				id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					return pool.Complete(step.JobID())
				}, nil)
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, id)
			}

			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(4))

			Consistently(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 200*time.Millisecond).Should(Equal(4))

			for _, id := range ids {
				Expect(r.completesFor(id)).To(HaveLen(1))
				Expect(r.completesFor(id)[0]).To(Equal(id))
			}
		})

		It("should allocate unique monotonic ids in admission order", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 16})
			Expect(err).NotTo(HaveOccurred())

			var prev pool.JobID
			for range 8 {
				id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					return pool.Complete(nil)
				}, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(BeNumerically(">", prev))
				prev = id
			}
		})
	})

	Describe("Resumable state", func() {
		type counter struct{ N int }

		It("should resume a yielding job where it left off and never report progress", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 2, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				c := state.(*counter)
				if c.N >= 5 {
					return pool.Complete(c.N)
				}
				c.N++
				return pool.Yield(c)
			}, &counter{})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []any {
				p.Dispatch()
				return r.completesFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal([]any{5}))

			Expect(r.orderFor(id)).To(Equal([]string{"complete"}))
		})

		It("should schedule resumed jobs ahead of fresh submissions", func() {
			var err error
			p, err = pool.New(pool.Config{MinWorkers: 1, MaxWorkers: 1, QueueCapacity: 32})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			var mu sync.Mutex
			finished := make([]pool.JobID, 0, 4)
			record := func(id pool.JobID) {
				mu.Lock()
				finished = append(finished, id)
				mu.Unlock()
			}

			gate := make(chan struct{})
			// holds the single worker until all jobs are queued
			_, err = p.Submit(func(step *pool.Step, state any) pool.Outcome {
				<-gate
				return pool.Complete(nil)
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			yielder, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				c := state.(*counter)
				if c.N >= 3 {
					record(step.JobID())
					return pool.Complete(nil)
				}
				c.N++
				return pool.Yield(c)
			}, &counter{})
			Expect(err).NotTo(HaveOccurred())

			straggler, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				record(step.JobID())
				return pool.Complete(nil)
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			close(gate)

			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))

			// every resumption of the yielder ran before the straggler got a turn
			mu.Lock()
			defer mu.Unlock()
			Expect(finished).To(Equal([]pool.JobID{yielder, straggler}))
		})
	})

	Describe("Progress", func() {
		It("should dispatch progress reports strictly before the terminal message", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 2, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				step.Progress(1)
				step.Progress(2)
				step.Progress(3)
				return pool.Complete("done")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []string {
				p.Dispatch()
				return r.orderFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal([]string{"progress", "progress", "progress", "complete"}))
		})
	})

	Describe("Cancellation", func() {
		It("should surface a cooperative cancellation as a Cancelled failure", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			started := make(chan struct{})
			var once sync.Once
			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				once.Do(func() { close(started) })
				if step.Cancelled() {
					return pool.Cancelled()
				}
				return pool.Yield(state)
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(started, time.Second).Should(BeClosed())
			p.Cancel(id)

			Eventually(func() []pool.Failure {
				p.Dispatch()
				return r.errorsFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(HaveLen(1))

			Expect(r.errorsFor(id)[0].Kind).To(Equal(pool.FailureCancelled))
			Expect(r.completesFor(id)).To(BeEmpty())
		})

		It("should treat cancelling a finished job as a silent no-op", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				return pool.Complete("ok")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []any {
				p.Dispatch()
				return r.completesFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(HaveLen(1))

			p.Cancel(id)
			p.Cancel(pool.JobID(9999))

			Consistently(func() int {
				p.Dispatch()
				return r.completeCount() + r.errorCount()
			}, 200*time.Millisecond).Should(Equal(1))
		})

		It("should let a non-cooperative job finish naturally, dropping late progress", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			gate := make(chan struct{})
			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				<-gate
				n := state.(int)
				step.Progress(n)
				if n >= 4 {
					return pool.Complete(n)
				}
				return pool.Yield(n + 1)
			}, 0)
			Expect(err).NotTo(HaveOccurred())

			gate <- struct{}{}
			gate <- struct{}{}
			Eventually(func() []any {
				p.Dispatch()
				return r.progressFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(HaveLen(2))

			// the third invocation is parked on the gate, so the flag is
			// visible before any further report
			p.Cancel(id)
			for range 3 {
				gate <- struct{}{}
			}

			Eventually(func() []any {
				p.Dispatch()
				return r.completesFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal([]any{4}))

			// the two pre-cancel reports made it through, the rest were dropped
			Expect(r.progressFor(id)).To(HaveLen(2))
			Expect(p.Stats().DroppedProgress).To(BeNumerically("==", 3))
		})

		It("should cancel every non-terminal job on CancelAll", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 2, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			for range 3 {
				_, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					if step.Cancelled() {
						return pool.Cancelled()
					}
					return pool.Yield(state)
				}, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			p.CancelAll()

			Eventually(func() int {
				p.Dispatch()
				return r.errorCount()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))
		})
	})

	Describe("Admission", func() {
		It("should reject excess submissions under the reject policy and recover", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 2, Admission: pool.AdmissionReject})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			unblock := make(chan struct{})
			blocked := func(step *pool.Step, state any) pool.Outcome {
				<-unblock
				return pool.Complete(nil)
			}

			_, err = p.Submit(blocked, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = p.Submit(blocked, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = p.Submit(blocked, nil)
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsPoolSaturatedError(err)).To(BeTrue())

			close(unblock)
			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(2))

			_, err = p.Submit(func(step *pool.Step, state any) pool.Outcome {
				return pool.Complete(nil)
			}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should park blocked submitters and admit them FIFO as capacity frees", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 1, Admission: pool.AdmissionBlock})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			unblock := make(chan struct{})
			first, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				<-unblock
				return pool.Complete(nil)
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			quick := func(step *pool.Step, state any) pool.Outcome {
				return pool.Complete(nil)
			}

			type submission struct {
				id  pool.JobID
				err error
			}
			second := make(chan submission, 1)
			third := make(chan submission, 1)
			go func() {
				id, err := p.Submit(quick, nil)
				second <- submission{id, err}
			}()
			time.Sleep(100 * time.Millisecond)
			go func() {
				id, err := p.Submit(quick, nil)
				third <- submission{id, err}
			}()

			Consistently(second, 200*time.Millisecond).ShouldNot(Receive())

			close(unblock)

			var s2, s3 submission
			Eventually(second, 2*time.Second).Should(Receive(&s2))
			Eventually(third, 2*time.Second).Should(Receive(&s3))
			Expect(s2.err).NotTo(HaveOccurred())
			Expect(s3.err).NotTo(HaveOccurred())
			// ids are allocated at admission, so FIFO admission shows as ordering
			Expect(s2.id).To(BeNumerically(">", first))
			Expect(s3.id).To(BeNumerically(">", s2.id))

			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))
		})
	})

	Describe("Concurrency bounds", func() {
		It("should never run more invocations at once than MaxWorkers", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 3, QueueCapacity: 32})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			var running, peak atomic.Int64
			for range 20 {
				_, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					n := running.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					running.Add(-1)
					return pool.Complete(nil)
				}, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 5*time.Second, 10*time.Millisecond).Should(Equal(20))

			Expect(peak.Load()).To(BeNumerically("<=", 3))
			Expect(p.Workers()).To(BeNumerically("<=", 3))
		})

		It("should retire idle workers back to the MinWorkers floor", func() {
			var err error
			p, err = pool.New(pool.Config{
				MinWorkers:    1,
				MaxWorkers:    3,
				QueueCapacity: 16,
				IdleTimeout:   50 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			gate := make(chan struct{})
			block := func(step *pool.Step, state any) pool.Outcome {
				<-gate
				return pool.Complete(nil)
			}

			_, err = p.Submit(block, nil)
			Expect(err).NotTo(HaveOccurred())
			// Once the queue drains the floor worker is busy, so the next
			// submissions must spawn past the floor.
			Eventually(p.Pending).Should(BeZero())

			for range 2 {
				_, err := p.Submit(block, nil)
				Expect(err).NotTo(HaveOccurred())
			}
			Eventually(p.Workers).Should(Equal(3))

			close(gate)
			Eventually(func() int {
				p.Dispatch()
				return r.completeCount()
			}, 5*time.Second, 10*time.Millisecond).Should(Equal(3))

			Eventually(p.Workers, 5*time.Second, 10*time.Millisecond).Should(Equal(1))
			Consistently(p.Workers, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(1))
		})
	})

	Describe("Worker crash", func() {
		It("should convert a panic into a protocol failure and replace the worker", func() {
			var err error
			p, err = pool.New(pool.Config{MinWorkers: 2, MaxWorkers: 2, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			before := p.Workers()

			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				if step.Invocation() >= 3 {
					panic("third invocation blew up")
				}
				return pool.Yield(state)
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			other, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				time.Sleep(10 * time.Millisecond)
				return pool.Complete("fine")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []pool.Failure {
				p.Dispatch()
				return r.errorsFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(HaveLen(1))

			f := r.errorsFor(id)[0]
			Expect(f.Kind).To(Equal(pool.FailureProtocol))
			Expect(f.Err).To(MatchError(ContainSubstring("panicked")))

			Eventually(func() []any {
				p.Dispatch()
				return r.completesFor(other)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal([]any{"fine"}))

			Eventually(p.Workers, 2*time.Second, 10*time.Millisecond).Should(Equal(before))
		})

		It("should flag an ill-formed outcome as a protocol violation", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 10})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				return pool.Outcome{}
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []pool.Failure {
				p.Dispatch()
				return r.errorsFor(id)
			}, 2*time.Second, 10*time.Millisecond).Should(HaveLen(1))
			Expect(r.errorsFor(id)[0].Kind).To(Equal(pool.FailureProtocol))
		})
	})

	Describe("Dispatch", func() {
		It("should return immediately when the channel is empty", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Dispatch()).To(Equal(0))
		})
	})

	Describe("Close", func() {
		It("should reject submissions after Close", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 1})
			Expect(err).NotTo(HaveOccurred())
			p.Close()

			_, err = p.Submit(func(step *pool.Step, state any) pool.Outcome {
				return pool.Complete(nil)
			}, nil)
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsPoolClosedError(err)).To(BeTrue())
		})

		It("should wait for the in-flight invocation and issue terminals for abandoned jobs", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 8})
			Expect(err).NotTo(HaveOccurred())
			r := newRecorder(p)

			started := make(chan struct{})
			unblock := make(chan struct{})
			inflight, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				close(started)
				<-unblock
				return pool.Complete("slow")
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(started, time.Second).Should(BeClosed())

			queued, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
				return pool.Complete("never runs")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			closeDone := make(chan struct{})
			go func() {
				p.Close()
				close(closeDone)
			}()

			Consistently(closeDone, 200*time.Millisecond).ShouldNot(BeClosed())
			close(unblock)
			Eventually(closeDone, 2*time.Second).Should(BeClosed())

			p.Dispatch()
			Expect(r.completesFor(inflight)).To(Equal([]any{"slow"}))
			Expect(r.errorsFor(queued)).To(HaveLen(1))
			Expect(r.errorsFor(queued)[0].Kind).To(Equal(pool.FailureCancelled))
		})

		It("should fail parked submitters with PoolClosed", func() {
			var err error
			p, err = pool.New(pool.Config{MaxWorkers: 1, QueueCapacity: 1, Admission: pool.AdmissionBlock})
			Expect(err).NotTo(HaveOccurred())

			unblock := make(chan struct{})
			_, err = p.Submit(func(step *pool.Step, state any) pool.Outcome {
				<-unblock
				return pool.Complete(nil)
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			parked := make(chan error, 1)
			go func() {
				_, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					return pool.Complete(nil)
				}, nil)
				parked <- err
			}()
			time.Sleep(100 * time.Millisecond)

			go p.Close()
			var submitErr error
			Eventually(parked, 2*time.Second).Should(Receive(&submitErr))
			Expect(srvErrors.IsPoolClosedError(submitErr)).To(BeTrue())
			close(unblock)
		})

		It("should not leak goroutines after Close under load", func() {
			base := runtime.NumGoroutine()
			var err error
			p, err = pool.New(pool.Config{MinWorkers: 2, MaxWorkers: 4, QueueCapacity: 256})
			Expect(err).NotTo(HaveOccurred())

			for range 200 {
				_, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
					if step.Cancelled() {
						return pool.Cancelled()
					}
					return pool.Complete(nil)
				}, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			p.CancelAll()
			p.Close()
			p.Dispatch()
			p = nil

			Eventually(func() int {
				return runtime.NumGoroutine()
			}, 5*time.Second, 100*time.Millisecond).Should(BeNumerically("<=", base+10))
		})
	})
})

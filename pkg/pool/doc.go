// Package pool implements a bounded, asynchronous, cancellable work pool.
//
// A pool owns a fixed-capacity set of workers that run caller-supplied,
// resumable work functions. Work can be cooperatively interrupted mid-flight
// without corrupting its progress, and completion, progress and error
// notifications flow back to the single owning goroutine through an ordered
// result channel the owner drains explicitly.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                              Pool                                   │
//	│                                                                     │
//	│  ┌──────────────┐      ┌──────────────┐      ┌──────────────┐       │
//	│  │   Worker 1   │      │   Worker 2   │      │   Worker N   │       │
//	│  └──────┬───────┘      └──────┬───────┘      └──────┬───────┘       │
//	│         │ pop                 │ pop                 │ pop           │
//	│  ┌──────┴──────────────────────────────────────────────────┐        │
//	│  │                    Admission Queue (FIFO)               │        │
//	│  │  resumed ──► [job5] [job1] [job2] [job3] ◄── Submit     │        │
//	│  └─────────────────────────────────────────────────────────┘        │
//	│                                                                     │
//	│  ┌─────────────────────────────────────────────────────────┐        │
//	│  │                  Result Channel (inbox)                 │        │
//	│  │  workers append ──► [progress] [complete] [error] ...   │        │
//	│  └──────────────────────────┬──────────────────────────────┘        │
//	│                             │ Dispatch()                            │
//	│                             ▼                                       │
//	│          OnProgress / OnComplete / OnError callbacks                │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Execution Protocol
//
// A work function has the signature func(step *Step, state any) Outcome and
// is invoked repeatedly until it returns a terminal outcome:
//
//  1. Yield(state)    — checkpoint reached; the invocation ends, the pool
//     keeps state and re-queues the job at the FRONT of the admission queue
//     so resumed work is never starved behind fresh submissions.
//  2. Complete(v)     — terminal success; state is discarded.
//  3. Fail(v)         — terminal application failure; v is routed to OnError
//     unchanged.
//  4. Cancelled()     — terminal failure of kind FailureCancelled, returned
//     by cooperative functions once step.Cancelled() reports true.
//
// Mid-invocation, step.Progress(v) posts an intermediate report without
// ending the invocation.
//
// # Cancellation
//
// Cancellation is a sticky flag, not an interrupt. Cancel and CancelAll only
// set it; nothing happens until the running work function next checks
// step.Cancelled(). Two behaviors follow, both valid and observably
// different:
//
//   - Cooperative functions check the flag at every checkpoint and return
//     Cancelled() in bounded time. The owner sees one OnError with kind
//     FailureCancelled.
//   - Non-cooperative functions never check. Cancellation degrades to
//     advisory: the job runs to natural completion, its terminal message is
//     delivered normally, and any progress reports issued after the flag was
//     set are dropped (counted in Stats, not delivered).
//
// Cancelling a finished or unknown job is a silent no-op; the race between
// cancellation and completion is inherent and tolerated.
//
// # Admission
//
// QueueCapacity bounds admitted, non-terminal jobs. At capacity, Submit
// either fails with a PoolSaturatedError (AdmissionReject) or parks the
// caller (AdmissionBlock); parked submitters are admitted strictly FIFO as
// terminal jobs free capacity. Workers are spawned lazily up to MaxWorkers
// while work is queued, and idle workers above MinWorkers retire after
// IdleTimeout.
//
// # Delivery Guarantees
//
//   - Exactly one terminal message (complete or error) per admitted job,
//     never zero, never two. Jobs abandoned by Close receive a synthetic
//     Cancelled terminal.
//   - Per-job order: progress messages strictly before the terminal.
//   - No ordering across different jobs.
//   - A panicking work function is converted into a FailureProtocol error
//     for that job only; the worker is retired and replaced.
//
// Dispatch never blocks and runs callbacks on whatever goroutine calls it, so
// the owner's tick can live in a timer loop, an event loop, or a test poll.
//
// # Usage
//
//	p, err := pool.New(pool.Config{MinWorkers: 1, MaxWorkers: 4, QueueCapacity: 64})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	p.OnComplete(func(id pool.JobID, v any) { fmt.Println(id, "done:", v) })
//	p.OnError(func(id pool.JobID, f pool.Failure) { fmt.Println(id, "failed:", f.Kind) })
//
//	type counter struct{ N int }
//
//	id, err := p.Submit(func(step *pool.Step, state any) pool.Outcome {
//	    if step.Cancelled() {
//	        return pool.Cancelled()
//	    }
//	    c := state.(*counter)
//	    if c.N >= 5 {
//	        return pool.Complete(c.N)
//	    }
//	    c.N++
//	    return pool.Yield(c)
//	}, &counter{})
//
//	for range ticker.C {
//	    p.Dispatch()
//	}
package pool

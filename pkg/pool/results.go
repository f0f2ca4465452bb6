package pool

// FailureKind tags terminal failures so the owner's error callback can match
// on a closed set of kinds instead of type-testing payloads.
type FailureKind string

const (
	// FailureCancelled marks a job that honored its cancellation flag, or
	// was abandoned by Close before it could run.
	FailureCancelled FailureKind = "cancelled"
	// FailureApplication wraps an opaque work-function error payload. The
	// pool routes it unchanged; the owner discriminates its shape.
	FailureApplication FailureKind = "application"
	// FailureProtocol marks a defect in the work function itself: a panic or
	// an ill-formed outcome. Fatal to that job only.
	FailureProtocol FailureKind = "protocol"
)

// Failure is the tagged variant delivered to OnError.
type Failure struct {
	Kind    FailureKind
	Payload any   // application payload, nil for framework kinds
	Err     error // framework detail for protocol failures
}

type (
	ProgressFunc func(id JobID, payload any)
	CompleteFunc func(id JobID, payload any)
	ErrorFunc    func(id JobID, failure Failure)
)

type messageKind int

const (
	msgProgress messageKind = iota
	msgComplete
	msgError
)

type message struct {
	id      JobID
	kind    messageKind
	payload any
	failure Failure
}

// OnProgress registers the progress callback. Each callback slot is single
// and replaceable; register before submitting work whose messages you need.
func (p *Pool) OnProgress(fn ProgressFunc) {
	p.cbMu.Lock()
	p.onProgress = fn
	p.cbMu.Unlock()
}

// OnComplete registers the completion callback.
func (p *Pool) OnComplete(fn CompleteFunc) {
	p.cbMu.Lock()
	p.onComplete = fn
	p.cbMu.Unlock()
}

// OnError registers the terminal-failure callback.
func (p *Pool) OnError(fn ErrorFunc) {
	p.cbMu.Lock()
	p.onError = fn
	p.cbMu.Unlock()
}

// Dispatch atomically drains every message currently queued and fires the
// matching callback for each, on the caller's goroutine. It never blocks on
// an empty channel and returns the number of messages delivered. Messages for
// one job arrive in posting order, progress strictly before the terminal; no
// order is guaranteed across jobs. Callbacks must not depend on a nested
// Dispatch completing; re-entrancy across a dispatch boundary is undefined.
func (p *Pool) Dispatch() int {
	p.resMu.Lock()
	msgs := p.inbox
	p.inbox = nil
	p.resMu.Unlock()
	if len(msgs) == 0 {
		return 0
	}

	p.cbMu.Lock()
	onProgress, onComplete, onError := p.onProgress, p.onComplete, p.onError
	p.cbMu.Unlock()

	for _, m := range msgs {
		switch m.kind {
		case msgProgress:
			if onProgress != nil {
				onProgress(m.id, m.payload)
			}
		case msgComplete:
			if onComplete != nil {
				onComplete(m.id, m.payload)
			}
		case msgError:
			if onError != nil {
				onError(m.id, m.failure)
			}
		}
	}
	return len(msgs)
}

// post appends a message to the pool-wide inbox. Many workers produce, only
// Dispatch consumes; the critical section is a single append.
func (p *Pool) post(m message) {
	p.resMu.Lock()
	p.inbox = append(p.inbox, m)
	p.resMu.Unlock()
}

// postTerminalComplete and postTerminalError deliver at most one terminal
// message per job, whichever path gets there first.
func (p *Pool) postTerminalComplete(j *job, payload any) {
	if j.done.CompareAndSwap(false, true) {
		p.post(message{id: j.id, kind: msgComplete, payload: payload})
	}
}

func (p *Pool) postTerminalError(j *job, f Failure) {
	if j.done.CompareAndSwap(false, true) {
		p.post(message{id: j.id, kind: msgError, failure: f})
	}
}

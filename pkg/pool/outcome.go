package pool

type outcomeKind int

const (
	outcomeInvalid outcomeKind = iota
	outcomeYield
	outcomeComplete
	outcomeFail
)

// Outcome is the value a work function returns from one invocation. Build it
// with Yield, Complete, Fail or Cancelled; the zero value is ill-formed and
// the pool reports it to OnError as a protocol violation.
type Outcome struct {
	kind     outcomeKind
	state    any
	payload  any
	failKind FailureKind
}

// Yield ends the invocation without finishing the job. The pool keeps state
// verbatim and hands it back on the next invocation, which is scheduled ahead
// of freshly submitted jobs.
func Yield(state any) Outcome {
	return Outcome{kind: outcomeYield, state: state}
}

// Complete ends the job successfully. The payload is delivered to the owner's
// OnComplete callback and the job's resumable state is discarded.
func Complete(payload any) Outcome {
	return Outcome{kind: outcomeComplete, payload: payload}
}

// Fail ends the job with an application-defined error payload. The payload is
// routed to OnError unchanged; the pool does not inspect it.
func Fail(payload any) Outcome {
	return Outcome{kind: outcomeFail, payload: payload, failKind: FailureApplication}
}

// Cancelled is the terminal outcome a cooperative work function returns once
// it has observed the job's cancellation flag. It surfaces on OnError with
// kind FailureCancelled, distinguishable from application failures.
func Cancelled() Outcome {
	return Outcome{kind: outcomeFail, failKind: FailureCancelled}
}

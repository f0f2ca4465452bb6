package main

import (
	"fmt"
	"time"

	"github.com/taskwell/workpool/internal/services"
	"github.com/taskwell/workpool/pkg/pool"
)

// fibState is the resumable state of the fibonacci workload. One step
// advances one term, so long computations yield frequently and cancel
// promptly.
type fibState struct {
	n    int
	i    int
	prev uint64
	curr uint64
}

func fibonacci(params map[string]any) (pool.WorkFunc, any, error) {
	n := intParam(params, "n", 30)
	if n < 0 {
		return nil, nil, fmt.Errorf("n must be non-negative, got %d", n)
	}

	fn := func(step *pool.Step, state any) pool.Outcome {
		if step.Cancelled() {
			return pool.Cancelled()
		}
		s := state.(fibState)
		if s.i >= s.n {
			return pool.Complete(s.curr)
		}

		next := fibState{n: s.n, i: s.i + 1, prev: s.curr, curr: s.prev + s.curr}
		if next.i%10 == 0 {
			step.Progress(fmt.Sprintf("term %d of %d", next.i, next.n))
		}
		return pool.Yield(next)
	}
	return fn, fibState{n: n, prev: 1, curr: 0}, nil
}

// sleeper sleeps in one-second slices, checking the cancel flag between
// slices.
func sleeper(params map[string]any) (pool.WorkFunc, any, error) {
	remaining := intParam(params, "seconds", 10)
	if remaining < 0 {
		return nil, nil, fmt.Errorf("seconds must be non-negative, got %d", remaining)
	}

	fn := func(step *pool.Step, state any) pool.Outcome {
		if step.Cancelled() {
			return pool.Cancelled()
		}
		left := state.(int)
		if left <= 0 {
			return pool.Complete("slept")
		}
		time.Sleep(time.Second)
		step.Progress(fmt.Sprintf("%ds left", left-1))
		return pool.Yield(left - 1)
	}
	return fn, remaining, nil
}

func registerWorkloads(r *services.Runner) {
	r.Register("fibonacci", fibonacci)
	r.Register("sleeper", sleeper)
}

func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

// Package errors defines the typed errors returned by the public workpool API.
package errors

import (
	"errors"
	"fmt"
)

// PoolSaturatedError is returned by Submit when the admission queue is full
// and the pool runs a rejecting admission policy. The caller may retry or
// back off; the pool itself is healthy.
type PoolSaturatedError struct {
	Capacity int
}

func NewPoolSaturatedError(capacity int) *PoolSaturatedError {
	return &PoolSaturatedError{Capacity: capacity}
}

func (e *PoolSaturatedError) Error() string {
	return fmt.Sprintf("pool saturated: %d jobs already admitted", e.Capacity)
}

func IsPoolSaturatedError(err error) bool {
	var e *PoolSaturatedError
	return errors.As(err, &e)
}

// PoolClosedError is returned by Submit after Close has been called.
// It is fatal to that submission only, not to the pool.
type PoolClosedError struct{}

func NewPoolClosedError() *PoolClosedError {
	return &PoolClosedError{}
}

func (e *PoolClosedError) Error() string {
	return "pool closed: no new submissions accepted"
}

func IsPoolClosedError(err error) bool {
	var e *PoolClosedError
	return errors.As(err, &e)
}

// InvalidConfigError reports a malformed pool configuration at construction.
type InvalidConfigError struct {
	Reason string
}

func NewInvalidConfigError(format string, args ...any) *InvalidConfigError {
	return &InvalidConfigError{Reason: fmt.Sprintf(format, args...)}
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid pool configuration: %s", e.Reason)
}

func IsInvalidConfigError(err error) bool {
	var e *InvalidConfigError
	return errors.As(err, &e)
}

// WorkloadNotFoundError is returned when a submission names a workload kind
// that was never registered with the runner.
type WorkloadNotFoundError struct {
	Name string
}

func NewWorkloadNotFoundError(name string) *WorkloadNotFoundError {
	return &WorkloadNotFoundError{Name: name}
}

func (e *WorkloadNotFoundError) Error() string {
	return fmt.Sprintf("workload %q not registered", e.Name)
}

func IsWorkloadNotFoundError(err error) bool {
	var e *WorkloadNotFoundError
	return errors.As(err, &e)
}

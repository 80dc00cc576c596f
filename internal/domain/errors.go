package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Handlers map domain errors centrally via this interface.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	// ErrGenerationFailed indicates the generator raised or returned
	// unusable output after all retry attempts.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrDuplicateExhausted indicates every retry attempt produced a
	// duplicate of the existing pool. Callers treat it like a failed
	// generation, not an exception.
	ErrDuplicateExhausted = errors.New("duplicate attempts exhausted")

	// ErrQueueOverflow indicates the gate's queue is past its safety limit
	// and the submission was rejected immediately.
	ErrQueueOverflow = errors.New("generation queue overflow")

	// ErrDrained indicates a queued submission was discarded by DrainQueue
	// before it started.
	ErrDrained = errors.New("queued task drained")

	// ErrLockHeld and ErrTooRecent are normal maintenance skip outcomes,
	// not failures.
	ErrLockHeld  = errors.New("maintenance lock held")
	ErrTooRecent = errors.New("maintenance ran too recently")

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// StoreError wraps a persistence failure. Read paths degrade it to a
// cache-miss; write paths propagate it to the maintenance failure counters.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string   { return "store " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error   { return e.Err }
func (e *StoreError) StatusCode() int { return http.StatusServiceUnavailable }

// NotFoundError indicates a resource was not found
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string        { return e.Message }
func (e *NotFoundError) StatusCode() int      { return http.StatusNotFound }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError indicates invalid input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string        { return e.Message }
func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

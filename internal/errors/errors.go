// Package errors provides centralized error definitions and error handling
// utilities for the Arbor codebase. It defines the semantic error types used
// across tree construction and teardown, error constructors with context
// wrapping, and error classification helpers.
//
// # Error Types
//
//   - AllocationError: a node object could not be created by the store
//   - SpawnError: a worker could not be started by the scheduler
//   - TimeoutError: an operation exceeded its bounded wait
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSpawnError("worker limit reached", errors.ErrWorkerLimit)
//	err = err.WithNode("thread_1_1")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrWorkerLimit) { ... }
//
//	var spawnErr *errors.SpawnError
//	if errors.As(err, &spawnErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Store-related sentinel errors
var (
	// ErrStoreExhausted indicates the node store has reached its capacity.
	ErrStoreExhausted = New("node store exhausted")
)

// Worker-related sentinel errors
var (
	// ErrWorkerLimit indicates the scheduler refused to start another worker.
	ErrWorkerLimit = New("worker limit reached")
	// ErrWorkerNotFound indicates no worker is registered for a node.
	ErrWorkerNotFound = New("no worker registered for node")
	// ErrAlreadySpawned indicates Spawn was called twice for the same node.
	ErrAlreadySpawned = New("worker already spawned for node")
)

// Session-related sentinel errors
var (
	// ErrSessionStarted indicates Start was called on a running session.
	ErrSessionStarted = New("session already started")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// ArborError is the base interface for all Arbor errors. It extends the
// standard error interface with methods for classification.
type ArborError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// AllocationError represents a node object that could not be created.
//
// Example:
//
//	err := errors.NewAllocationError("cannot create node", errors.ErrStoreExhausted)
//	err = err.WithLevel(2)
type AllocationError struct {
	baseError
	Level int
	set   bool
}

// NewAllocationError creates a new AllocationError.
func NewAllocationError(message string, cause error) *AllocationError {
	return &AllocationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithLevel adds the tree level at which allocation failed.
func (e *AllocationError) WithLevel(level int) *AllocationError {
	e.Level = level
	e.set = true
	return e
}

// Error returns the formatted error message.
func (e *AllocationError) Error() string {
	prefix := "allocation error"
	if e.set {
		prefix = fmt.Sprintf("allocation error [level=%d]", e.Level)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AllocationError) Is(target error) bool {
	if _, ok := target.(*AllocationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SpawnError represents a worker that could not be started by the scheduler.
//
// Example:
//
//	err := errors.NewSpawnError("scheduler refused worker", errors.ErrWorkerLimit)
//	err = err.WithNode("thread_1_1")
type SpawnError struct {
	baseError
	Node string
}

// NewSpawnError creates a new SpawnError.
func NewSpawnError(message string, cause error) *SpawnError {
	return &SpawnError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithNode adds the name of the node whose worker failed to start.
func (e *SpawnError) WithNode(name string) *SpawnError {
	e.Node = name
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SpawnError) WithRetryable(r bool) *SpawnError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SpawnError) Error() string {
	prefix := "spawn error"
	if e.Node != "" {
		prefix = fmt.Sprintf("spawn error [node=%s]", e.Node)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SpawnError) Is(target error) bool {
	if _, ok := target.(*SpawnError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that exceeded its bounded wait.
//
// Example:
//
//	err := errors.NewTimeoutError("joining worker thread_2_0", 5*time.Second)
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds an underlying cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timeout after %v: %s", e.Duration, e.Operation)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is transient and the operation may succeed
// on retry. Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var ae ArborError
	if errors.As(err, &ae) {
		return ae.IsRetryable()
	}
	return false
}

// IsUserFacing reports whether err is safe to display to end users.
// Unclassified errors are treated as internal.
func IsUserFacing(err error) bool {
	var ae ArborError
	if errors.As(err, &ae) {
		return ae.IsUserFacing()
	}
	return false
}

// SeverityOf returns the severity of err, defaulting to SeverityError for
// unclassified errors.
func SeverityOf(err error) Severity {
	var ae ArborError
	if errors.As(err, &ae) {
		return ae.Severity()
	}
	return SeverityError
}

package lifecycle

import (
	"errors"
	"fmt"
)

// ConfigError is fatal at startup; pkg/config.Validate returns these.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// TransientBackendError wraps a submit or status command failure. Submit
// errors propagate to the caller; status errors are logged and tolerated
// for one polling tick by pkg/jobqueue's tracker.
type TransientBackendError struct {
	Op  string
	Err error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error during %s: %v", e.Op, e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// LifecycleFailure is satisfied by TimeoutError and BackendFailureError,
// the two failure kinds that drive an entity from its staged-start select
// loop into StatusStopping.
type LifecycleFailure interface {
	error
	Stage() string
}

// TimeoutError reports that a start or connect deadline elapsed before the
// entity reached its next state.
type TimeoutError struct {
	Entity string
	StageName string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out waiting at stage %q", e.Entity, e.StageName)
}

func (e *TimeoutError) Stage() string { return e.StageName }

// BackendFailureError reports that a backend's job-liveness signal or
// status parser declared the entity dead.
type BackendFailureError struct {
	Entity    string
	StageName string
	Reason    string
}

func (e *BackendFailureError) Error() string {
	return fmt.Sprintf("%s: backend reported failure at stage %q: %s", e.Entity, e.StageName, e.Reason)
}

func (e *BackendFailureError) Stage() string { return e.StageName }

// CleanupError reports that StopCluster/StopWorker itself returned an
// error; the entity is marked FAILED (terminal) and never retried
// automatically.
type CleanupError struct {
	Entity string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("%s: cleanup failed: %v", e.Entity, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// RecoveryMismatchError reports that a persisted RUNNING cluster failed its
// startup health check and is being treated as dead.
type RecoveryMismatchError struct {
	Entity string
	Reason string
}

func (e *RecoveryMismatchError) Error() string {
	return fmt.Sprintf("%s: recovery mismatch: %s", e.Entity, e.Reason)
}

// ErrCancelled is wrapped into the result of a staged-start procedure
// whose submitting context was cancelled before the entity confirmed.
var ErrCancelled = errors.New("lifecycle: operation cancelled")

package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrSyncBusy signals that a refresh is already running for the company.
// It is a rejection, not a failure: callers may retry later.
var ErrSyncBusy = errors.New("a sync is already running for this company")

// ConfigurationError reports a missing or invalid company/tenant identity.
// Never retried; surfaced to the caller as a client error.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

func NewConfigurationError(field string) *ConfigurationError {
	return &ConfigurationError{Field: field}
}

// RecalculationError wraps a store-level failure during an analytics
// recompute. The recompute is transactional, so prior derived rows stay
// intact when this is returned.
type RecalculationError struct {
	Op  string
	Err error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("recalculation failed during %s: %v", e.Op, e.Err)
}

func (e *RecalculationError) Unwrap() error { return e.Err }

func NewRecalculationError(op string, err error) *RecalculationError {
	return &RecalculationError{Op: op, Err: err}
}

// SourceUnavailableError reports that the materialized fast-read path is
// absent or broken. Recovered locally by falling back to the legacy path;
// logged, never surfaced to callers.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func NewSourceUnavailableError(source string, err error) *SourceUnavailableError {
	return &SourceUnavailableError{Source: source, Err: err}
}

// StepFailure records which ingestion step aborted a sync run.
type StepFailure struct {
	Step string
	Err  error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("sync step %s failed: %v", e.Step, e.Err)
}

func (e *StepFailure) Unwrap() error { return e.Err }

func NewStepFailure(step string, err error) *StepFailure {
	return &StepFailure{Step: step, Err: err}
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

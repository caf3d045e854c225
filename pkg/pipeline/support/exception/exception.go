// Package exception provides the error taxonomy for the Cascade pipeline.
// Errors raised during ingestion and cascade population are classified by Kind
// so the coordinator can decide whether a failure stops a row, a batch, or the job.
package exception

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies a pipeline error by the blast radius of its failure.
type Kind string

const (
	// KindValidation is a row-level error. The row is rejected and the job continues.
	KindValidation Kind = "VALIDATION"
	// KindBatchCommit is a batch-level error. The batch is rolled back to its
	// savepoint and the job continues; the batch counts toward the circuit breaker.
	KindBatchCommit Kind = "BATCH_COMMIT"
	// KindBreakerTripped is a job-level terminal error. The job is aborted and
	// already committed batches are retained.
	KindBreakerTripped Kind = "BREAKER_TRIPPED"
	// KindStorageUnavailable is a job-level fatal error. The job is failed and
	// no cascade is attempted.
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	// KindCascade is a job-level error recoverable by re-invoking the cascade;
	// the raw data is already durable.
	KindCascade Kind = "CASCADE"
)

// Sentinel errors for errors.Is classification across package boundaries.
var (
	ErrValidation         = errors.New("row validation failed")
	ErrBatchCommit        = errors.New("batch commit failed")
	ErrBreakerTripped     = errors.New("circuit breaker tripped")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCascade            = errors.New("cascade population failed")
)

// sentinelFor maps each Kind to its sentinel error.
func sentinelFor(kind Kind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindBatchCommit:
		return ErrBatchCommit
	case KindBreakerTripped:
		return ErrBreakerTripped
	case KindStorageUnavailable:
		return ErrStorageUnavailable
	case KindCascade:
		return ErrCascade
	default:
		return nil
	}
}

// PipelineError is the error type raised by pipeline components.
// It carries the module where the error occurred, a message, the wrapped
// original error, and its Kind classification.
type PipelineError struct {
	// Module indicates the component where the error occurred (e.g., "writer", "cascade").
	Module string
	// Kind is the blast-radius classification of this error.
	Kind Kind
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace captured at construction time (for debugging).
	StackTrace string
}

// New creates a new PipelineError of the given Kind.
//
// module: The component where the error occurred.
// kind: The blast-radius classification.
// message: The error message.
// originalErr: The original error to wrap (may be nil).
func New(module string, kind Kind, message string, originalErr error) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Kind:        kind,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new PipelineError with a formatted message and no wrapped cause.
func Newf(module string, kind Kind, format string, a ...interface{}) *PipelineError {
	return New(module, kind, fmt.Sprintf(format, a...), nil)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap exposes both the Kind sentinel and the original error to errors.Is/As.
func (e *PipelineError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := sentinelFor(e.Kind); s != nil {
		errs = append(errs, s)
	}
	if e.OriginalErr != nil {
		errs = append(errs, e.OriginalErr)
	}
	return errs
}

// IsRecoverable reports whether the job can continue past this error.
// Row and batch errors are recoverable; breaker trips and storage outages are not.
// Cascade errors are recoverable by re-invocation but still terminate the current run.
func (e *PipelineError) IsRecoverable() bool {
	switch e.Kind {
	case KindValidation, KindBatchCommit:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind of an error, unwrapping as needed.
// It returns the empty Kind for non-pipeline errors.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Aggregate combines multiple errors into one using go-multierror.
// A nil slice or all-nil contents yield nil.
func Aggregate(errs ...error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Messages flattens an aggregated error into its component messages.
// A plain error yields a single-element slice; nil yields nil.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

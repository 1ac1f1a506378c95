package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies terminal job failures.
type ErrorKind string

const (
	// ErrorKindContentMismatch means no candidate cleared the acceptance
	// threshold; retrying with the same input will not help.
	ErrorKindContentMismatch ErrorKind = "content_mismatch"
	// ErrorKindTransient covers unreachable or rate-limited backends;
	// retriable with backoff.
	ErrorKindTransient ErrorKind = "infrastructure_transient"
	// ErrorKindPermanent covers malformed responses and unexpected schemas.
	ErrorKindPermanent ErrorKind = "infrastructure_permanent"
	// ErrorKindCancelled marks caller-initiated cancellation.
	ErrorKindCancelled ErrorKind = "cancelled"
)

var (
	ErrNoMatch      = errors.New("no acceptable match")
	ErrNotReady     = errors.New("job not finished")
	ErrJobNotFound  = errors.New("job not found")
	ErrJobCancelled = errors.New("job was cancelled")
)

// ResolutionError carries the failure taxonomy kind along with the
// human-readable cause.
type ResolutionError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NewResolutionError wraps err with a taxonomy kind and the stage it
// surfaced in.
func NewResolutionError(kind ErrorKind, stage Stage, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the taxonomy kind from err, defaulting to permanent for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, ErrNoMatch) {
		return ErrorKindContentMismatch
	}
	if errors.Is(err, ErrJobCancelled) || errors.Is(err, context.Canceled) {
		return ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTransient
	}
	return ErrorKindPermanent
}

// Retriable reports whether err represents a transient infrastructure
// condition worth retrying with backoff.
func Retriable(err error) bool {
	return KindOf(err) == ErrorKindTransient
}

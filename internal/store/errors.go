package store

import (
	"errors"
	"fmt"
)

// OutcomeCode is the stable machine-readable category of a store
// outcome error.
type OutcomeCode string

const (
	CodeConflict           OutcomeCode = "CONFLICT"
	CodeNotFound           OutcomeCode = "NOT_FOUND"
	CodeGone               OutcomeCode = "GONE"
	CodePreconditionFailed OutcomeCode = "PRECONDITION_FAILED"
	CodeUnavailable        OutcomeCode = "STORE_UNAVAILABLE"
)

// ConflictError reports an optimistic-concurrency failure: the caller's
// version tag no longer names the current version. The caller should
// re-read and retry.
type ConflictError struct {
	ResourceType    string
	ID              string
	ExpectedVersion int64
	CurrentVersion  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s/%s expected version %d, current is %d",
		CodeConflict, e.ResourceType, e.ID, e.ExpectedVersion, e.CurrentVersion)
}

// NotFoundError reports a missing resource. Deleted distinguishes a
// tombstone (the resource existed and was deleted) from an id that was
// never stored.
type NotFoundError struct {
	ResourceType string
	ID           string
	Deleted      bool
}

func (e *NotFoundError) Error() string {
	code := CodeNotFound
	if e.Deleted {
		code = CodeGone
	}
	return fmt.Sprintf("%s: %s/%s", code, e.ResourceType, e.ID)
}

// PreconditionError reports a conditional operation whose criterion
// matched more than one current resource. The store never picks one.
type PreconditionError struct {
	ResourceType string
	Criteria     string
	Matches      int
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s?%s matched %d resources, want exactly 1",
		CodePreconditionFailed, e.ResourceType, e.Criteria, e.Matches)
}

// UnavailableError wraps an infrastructure failure at the database
// boundary. Transient; safe for the caller to retry with backoff. The
// wrapped error never carries query text.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeUnavailable, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a version conflict.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a missing resource, tombstoned or
// never stored.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsGone reports whether err is specifically a tombstone read.
func IsGone(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne) && ne.Deleted
}

// IsPreconditionFailed reports whether err is an ambiguous conditional
// criterion.
func IsPreconditionFailed(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsUnavailable reports whether err is a transient store failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

package redesign

import (
	"errors"
	"fmt"
)

// Kind classifies failures visible to callers.
type Kind string

const (
	KindUnknownStyle     Kind = "unknown_style"
	KindInvalidImage     Kind = "invalid_image"
	KindSubmissionFailed Kind = "submission_failed"
	KindGenerationFailed Kind = "generation_failed"
	KindCanceled         Kind = "canceled"
	KindTimedOut         Kind = "timed_out"
	KindTransport        Kind = "transport"
	KindNotFound         Kind = "not_found"
)

// Error is the typed error returned by every redesign operation.
type Error struct {
	Kind   Kind
	JobID  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.JobID != "" {
		msg = fmt.Sprintf("job %s: %s", e.JobID, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnknownStyle     = &Error{Kind: KindUnknownStyle}
	ErrInvalidImage     = &Error{Kind: KindInvalidImage}
	ErrSubmissionFailed = &Error{Kind: KindSubmissionFailed}
	ErrGenerationFailed = &Error{Kind: KindGenerationFailed}
	ErrCanceled         = &Error{Kind: KindCanceled}
	ErrTimedOut         = &Error{Kind: KindTimedOut}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrJobNotFound      = &Error{Kind: KindNotFound}
)

// KindOf returns the kind of a redesign error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf returns the human readable detail of a redesign error.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

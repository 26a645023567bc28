// Package apperr carries the error taxonomy shared by the store, the
// summarization backends and the HTTP boundary. Errors are classified by Kind
// so the boundary can choose a status code without knowing which component
// failed.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for handling at the boundary.
type Kind int

const (
	// KindInternal is an unexpected defect.
	KindInternal Kind = iota
	// KindInvalid is a client input that failed validation.
	KindInvalid
	// KindNotFound is a missing evaluation.
	KindNotFound
	// KindConfig is a backend that cannot be used because settings are missing.
	KindConfig
	// KindTimeout is a summarization that exceeded its time budget.
	KindTimeout
	// KindProvider is any other summarization failure.
	KindProvider
	// KindStore is an underlying storage failure.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConfig:
		return "config"
	case KindTimeout:
		return "timeout"
	case KindProvider:
		return "provider"
	case KindStore:
		return "store"
	default:
		return "internal"
	}
}

// Error is a classified error. Message is safe to show to callers of the
// kinds that expose it (invalid, not found); Err holds the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound reports a missing evaluation by id.
func NotFound(id fmt.Stringer) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Evaluation %s not found", id)}
}

// Invalid reports rejected client input.
func Invalid(message string, err error) *Error {
	return &Error{Kind: KindInvalid, Message: message, Err: err}
}

// Config reports a missing credential or setting.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// Timeout reports a summarization that ran out of time.
func Timeout(provider string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: provider + " summarization timed out", Err: err}
}

// Provider reports a summarization failure other than timeout.
func Provider(provider string, err error) *Error {
	return &Error{Kind: KindProvider, Message: provider + " summarization failed", Err: err}
}

// Store wraps a storage engine failure.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: "store " + op, Err: err}
}

// KindOf classifies err. Context deadline errors count as timeouts; an
// unclassified error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

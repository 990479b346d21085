// Package errs defines the closed error taxonomy shared by every orchestrator
// component, following the wrapped-error idiom used throughout PedroCLI's
// pkg/database and pkg/jobs packages.
package errs

import (
	"errors"
	"fmt"
)

// Type is the closed taxonomy of orchestrator error kinds.
type Type string

const (
	Validation   Type = "validation"
	NotFound     Type = "not_found"
	Conflict     Type = "conflict"
	Unresolvable Type = "unresolvable"
	Transient    Type = "transient"
	Timeout      Type = "timeout"
	Cancelled    Type = "cancelled"
	CostExceeded Type = "cost_exceeded"
	Provider     Type = "provider"
	Internal     Type = "internal"
)

// Error wraps an underlying cause with a closed Type and optional retryable hint.
type Error struct {
	Kind      Type
	Message   string
	Phase     int
	Agent     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Type, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind wrapping an underlying error.
func Wrap(kind Type, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithPhase attaches phase/agent context used when surfacing task-level errors.
func (e *Error) WithPhase(phase int, agent string) *Error {
	e.Phase = phase
	e.Agent = agent
	return e
}

// Retryable reports whether err should be retried under mode.maxRetries,
// per the classification in spec §7: errors of kind Transient or Provider, or
// any error with Retryable set, are retryable; everything else is not.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		if e.Retryable {
			return true
		}
		switch e.Kind {
		case Transient, Provider:
			return true
		}
	}
	return false
}

// Is reports whether err (or any error it wraps) carries the given Type.
func Is(err error, kind Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Package taskerr defines the closed set of error kinds produced while
// building and running an experiment block.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind categorizes block errors.
type Kind string

const (
	// KindTaskDefinition indicates bad static configuration. Fatal at
	// construction.
	KindTaskDefinition Kind = "TASK_DEFINITION"

	// KindInvalidResource indicates the wrong resource kind was bound to
	// an action. Fatal at construction.
	KindInvalidResource Kind = "INVALID_RESOURCE"

	// KindResourceLoad indicates a resource could not be found or loaded.
	KindResourceLoad Kind = "RESOURCE_LOAD"

	// KindInternal indicates a broken invariant, e.g. a handle that must
	// exist is missing.
	KindInternal Kind = "INTERNAL"

	// KindMedia indicates a decode or playback failure of a stream.
	KindMedia Kind = "MEDIA"

	// KindFlow indicates a failure propagated from an action lifecycle
	// call while the block is running.
	KindFlow Kind = "FLOW"
)

// Error is a block error with structured context.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Action is the id of the affected action, or -1 if none.
	Action int

	// Resource is the affected resource path, if any.
	Resource string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Action >= 0 {
		msg = fmt.Sprintf("%s (action=%d)", msg, e.Action)
	}
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with no action or resource.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Action: -1}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Action: -1, Err: err}
}

// WithAction returns e with its action id set.
func (e *Error) WithAction(id int) *Error {
	e.Action = id
	return e
}

// WithResource returns e with its resource path set.
func (e *Error) WithResource(path string) *Error {
	e.Resource = path
	return e
}

// KindOf returns the kind of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsTaskDefinition reports whether err is a task definition error.
func IsTaskDefinition(err error) bool { return KindOf(err) == KindTaskDefinition }

// IsInvalidResource reports whether err is an invalid resource error.
func IsInvalidResource(err error) bool { return KindOf(err) == KindInvalidResource }

// IsInternal reports whether err is an internal error.
func IsInternal(err error) bool { return KindOf(err) == KindInternal }

// IsMedia reports whether err is a media error.
func IsMedia(err error) bool { return KindOf(err) == KindMedia }

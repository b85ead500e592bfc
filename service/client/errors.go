package client

import (
	"errors"
	"fmt"
)

var (
	ErrLoginInProgress      = errors.New("login is already in progress")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrForbiddenRole        = errors.New("operation is not permitted for the role")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownVoteRequest   = errors.New("unknown vote request")
	ErrStaleBinding         = errors.New("binding was superseded")
	ErrBindingClosed        = errors.New("binding is closed")
	ErrRootKeyMissing       = errors.New("root key is not configured")
)

// ErrorKind classifies failures by the operation boundary they were caught at.
type ErrorKind string

const (
	// KindAuth is an identity provider init / login / logout failure.
	KindAuth ErrorKind = "auth"
	// KindBinding is an actor construction or trust bootstrap failure.
	KindBinding ErrorKind = "binding"
	// KindSync is a read failure during resync.
	KindSync ErrorKind = "sync"
	// KindAction is a mutating call rejection or a local validation failure.
	KindAction ErrorKind = "action"
)

// Error is returned by all the Dashboard operations.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap supports errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind checks if err is an *Error of the kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

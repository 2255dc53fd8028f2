// Package service implements the core engine: the bid lifecycle state
// machine, the monitor topology manager and the wallet ledger.  Every
// public operation runs inside one REPEATABLE READ transaction owned by
// the service for the duration of the call; realtime broadcasts and
// notifications are emitted only after that transaction has committed.
package service

import "fmt"

// Kind classifies a service error so that transport layers can map it to
// a status code without string matching.
type Kind int

const (
	// KindBadRequest marks malformed or missing required input, such as
	// an empty monitor list or a reference to a missing monitor/playlist
	// at creation time.
	KindBadRequest Kind = iota + 1
	// KindNotFound marks a referenced bid/monitor/playlist that does not
	// exist or does not belong to the actor.
	KindNotFound
	// KindNotAcceptable marks a business-rule violation: insufficient
	// funds, invalid group topology, an unpartitionable group.
	KindNotAcceptable
	// KindInternal marks a violated post-condition, e.g. a loaded bid is
	// missing a relation a side effect assumes present.  It signals a bug
	// or data corruption, not a user error.
	KindInternal
)

// Error carries a stable machine-readable kind plus a human message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// BadRequest returns a KindBadRequest error with a formatted message.
func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error with a formatted message.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotAcceptable returns a KindNotAcceptable error with a formatted message.
func NotAcceptable(format string, args ...any) error {
	return &Error{Kind: KindNotAcceptable, Message: fmt.Sprintf(format, args...)}
}

// Internal returns a KindInternal error with a formatted message.
func Internal(format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error.  Errors that did not originate
// from this package report KindInternal, since they indicate unexpected
// storage or collaborator failures.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

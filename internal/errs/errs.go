// Package errs defines the error kinds the server distinguishes at the
// session boundary. Every user-visible failure maps onto exactly one kind;
// callers test with errors.Is and render the message as-is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks malformed input from a session. The session continues.
	ErrInvalid = errors.New("invalid")
	// ErrRejected marks well-formed but disallowed requests (rate limit hit,
	// action slot already used, shop closed, not enough gold).
	ErrRejected = errors.New("rejected")
	// ErrNotFound marks a missing target.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lost optimistic race. Callers absorb it silently.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks a storage or external-service failure. The command
	// fails with a generic message; the server continues.
	ErrTransient = errors.New("transient")
)

// Invalidf returns an ErrInvalid with a formatted user-visible message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalid)...)
}

// Rejectedf returns an ErrRejected with a formatted user-visible message.
func Rejectedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrRejected)...)
}

// NotFoundf returns an ErrNotFound with a formatted user-visible message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Transientf returns an ErrTransient with a formatted user-visible message.
func Transientf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransient)...)
}

// Message strips the trailing kind marker for display to a session.
func Message(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	for _, kind := range []error{ErrInvalid, ErrRejected, ErrNotFound, ErrConflict, ErrTransient} {
		if suffix := ": " + kind.Error(); len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			return s[:len(s)-len(suffix)]
		}
	}
	return s
}

// Package platformerrors provides the sentinel errors shared by every
// command handler and worker. Use cases return one of these (wrapped with
// context via Wrap); transports map them to protocol-specific codes.
package platformerrors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every command handler failure is one of these.
var (
	// ErrValidation indicates a caller-side shape problem. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a uniqueness violation. Never retried.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates the requested aggregate does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCancelled indicates the caller disconnected or shutdown was requested.
	ErrCancelled = errors.New("request cancelled")

	// ErrTransient indicates a retryable failure: database contention, bus
	// unavailability, or a 5xx/timeout from a peer service.
	ErrTransient = errors.New("transient failure")

	// ErrPermanent indicates the payload is unrecoverable or retries are
	// exhausted. Only meaningful inside the outbox publisher/drainer.
	ErrPermanent = errors.New("permanent failure")

	// ErrInternal indicates an unexpected failure with no clearer kind.
	ErrInternal = errors.New("internal error")
)

// Wrap attaches context to err while preserving errors.Is/As against the
// sentinel kinds above.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	all := make([]any, 0, len(args)+1)
	all = append(all, args...)
	all = append(all, err)
	return fmt.Errorf(format+": %w", all...)
}

// Is reports whether err or anything it wraps matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree assignable to target.
func As(err error, target any) bool { return errors.As(err, target) }

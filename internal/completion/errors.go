package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientUnavailable marks failures worth retrying: overload, rate
	// limits, timeouts, dropped connections.
	ErrTransientUnavailable = errors.New("completion capability unavailable")
	// ErrFatalRequest marks failures no retry can fix.
	ErrFatalRequest = errors.New("completion request failed")
)

// Error is what Client.Complete returns. Kind is always ErrFatalRequest once
// the client gives up; Err keeps the last backend failure so a request that
// ran out of retries still matches ErrTransientUnavailable.
type Error struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string   { return c.err.Error() }
func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// Transient tags err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrTransientUnavailable, err: err}
}

// Fatal tags err as not retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrFatalRequest, err: err}
}

// IsTransient reports whether err would be retried. Unclassified errors count.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrFatalRequest)
}

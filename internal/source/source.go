package source

import (
	"errors"
	"fmt"

	"github.com/nhle/shodjinn/internal/model"
)

// ProviderError indicates that a mailbox provider call failed at the
// transport level, returned a non-success status, or returned a body
// without the expected fields. Provider calls are never retried.
type ProviderError struct {
	// Op is the provider function that failed (e.g. "check_email").
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mailbox provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("mailbox provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err (or any error in its chain) is a
// ProviderError.
func IsProviderError(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr)
}

// PollResult is the outcome of a single mailbox check.
type PollResult struct {
	// Messages lists the messages newer than the cursor that was polled.
	Messages []model.MessageSummary

	// Next is the cursor to use for the following poll. It is never lower
	// than the cursor that was polled.
	Next model.Cursor
}

package provision

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenMissing indicates a page that requires an anti-forgery token
	// did not contain one.
	ErrTokenMissing = errors.New("anti-forgery token not found")

	// ErrLoginFailed indicates the login form was not accepted. It is
	// never fatal.
	ErrLoginFailed = errors.New("login failed")

	// ErrInterrupted indicates the operator cancelled the run.
	ErrInterrupted = errors.New("interrupted")
)

// RejectedError reports that the service answered a registration or
// activation request with an unexpected status, or that the request did
// not complete. StatusCode is 0 in the latter case and Err holds the
// transport error.
type RejectedError struct {
	Step       string
	StatusCode int
	Err        error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s rejected: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s rejected: server returned %d", e.Step, e.StatusCode)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// ExtractionError reports that a value was missing from an otherwise
// successful response.
type ExtractionError struct {
	What string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not found: %v", e.What, e.Err)
	}
	return e.What + " not found"
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// LoginError reports a rejected or incomplete login. It matches
// ErrLoginFailed with errors.Is.
type LoginError struct {
	StatusCode int
	Err        error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %v", e.Err)
	}
	return fmt.Sprintf("login failed: server returned %d", e.StatusCode)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for ErrLoginFailed.
func (e *LoginError) Is(target error) bool {
	return target == ErrLoginFailed
}

// Failure is returned by Run when the run ends in StateFailed.
type Failure struct {
	// From is the state the run was in when it failed.
	From   State
	Reason Reason
	Err    error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("%s (in %s): %v", e.Reason, e.From, e.Err)
}

func (e *Failure) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, or "" if err is not
// a *Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

// IsInterrupted reports whether err ends a run cancelled by the operator.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

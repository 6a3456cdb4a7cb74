package downloader

import (
	"errors"
	"fmt"
)

// FatalKind names a condition that ends the whole batch.
type FatalKind string

const (
	FatalMissingAuth      FatalKind = "missing_auth"
	FatalNotReleased      FatalKind = "not_released"
	FatalQuotaExhausted   FatalKind = "quota_exhausted"
	FatalPermissionDenied FatalKind = "permission_denied"
	FatalRefreshFailed    FatalKind = "refresh_failed"
)

// FatalError stops the batch. The session is still logged out afterwards.
type FatalError struct {
	Kind    FatalKind
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("download aborted (%s): %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("download aborted (%s)", e.Kind)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends the batch and returns the fatal error if so.
func IsFatal(err error) (*FatalError, bool) {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal, true
	}

	return nil, false
}

// networkError is a transport-level failure that the network schedule retries.
type networkError struct {
	Err error
}

func (e *networkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *networkError) Unwrap() error {
	return e.Err
}

// rateLimitError is a per-minute limit; the attempt is repeated after a pause
// without consuming a network retry.
type rateLimitError struct {
	Message string
}

func (e *rateLimitError) Error() string {
	return "minute rate limit reached: " + e.Message
}

// readError marks a failure reading the response body, as opposed to writing
// the destination file.
type readError struct {
	Err error
}

func (e *readError) Error() string {
	return "failed to read response body: " + e.Err.Error()
}

func (e *readError) Unwrap() error {
	return e.Err
}

var errStalled = errors.New("no data received within the idle timeout")

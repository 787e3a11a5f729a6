// Package errs defines the error kinds surfaced by the ingestion and statistics core.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// MalformedPayloadError reports an upstream payload missing a required field.
// It is never retried; batch callers log it and move on.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %s: %s", e.Field, e.Reason)
}

// UpstreamAuthError reports a token refresh or authenticated call rejected by Strava.
type UpstreamAuthError struct {
	Status int
	Body   string
}

func (e *UpstreamAuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream auth failed: %s", e.Body)
	}
	return fmt.Sprintf("upstream auth failed: status %d: %s", e.Status, e.Body)
}

// UpstreamError reports any other failed upstream call: 5xx, throttling or a
// transport failure such as a timeout. Callers may retry it.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError reports an unavailable backing store or a failed write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError reports an absent credential or record. It is an expected outcome.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Storage wraps err as a StorageError unless it is nil or already classified.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Kind names the class of err for logs and metrics.
func Kind(err error) string {
	var (
		mp *MalformedPayloadError
		ua *UpstreamAuthError
		ue *UpstreamError
		se *StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mp):
		return "malformed_payload"
	case errors.As(err, &ua):
		return "upstream_auth"
	case errors.As(err, &ue):
		return "upstream"
	case errors.As(err, &se):
		return "storage"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

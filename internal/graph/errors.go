package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Graph API, carrying the service's
// own error code and message when the body had them.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Code is the service error code, e.g. "ErrorItemNotFound".
	Code string
	// Message is the service's human-readable message.
	Message string
	// RequestID identifies the request on the service side, useful when
	// filing support issues.
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("graph api: %d", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// DeltaError is a delta synchronization failure for one folder. The folder's
// cursor state is already consistent when it is returned: either retained
// (transient failure) or cleared (rejected cursor that a full re-sync also
// could not replace).
type DeltaError struct {
	Folder string
	Err    error
}

func (e *DeltaError) Error() string {
	return fmt.Sprintf("delta sync for %s: %v", e.Folder, e.Err)
}

func (e *DeltaError) Unwrap() error { return e.Err }

// cursorRejected reports whether the service refused a delta cursor as
// invalid or expired, which calls for a full re-sync rather than a retry.
func cursorRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusGone
}

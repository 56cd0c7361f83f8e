package gracedb

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that an event, file or document version does not exist
// on the remote server. Callers recover from it locally, by falling back to
// an older document version or by leaving a cached value untouched.
var ErrNotFound = errors.New("not found on GraceDB")

// APIError represents a non-success response from the GraceDB API.
type APIError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GraceDB API error (status %d) for %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("GraceDB API error (status %d) for %s", e.StatusCode, e.URL)
}

func (e *APIError) Unwrap() error { return e.Err }

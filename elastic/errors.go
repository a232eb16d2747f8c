package elastic

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a locator, fragment or dataset is
	// rejected at construction time.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCombination is returned when two fragments cannot be merged.
	ErrInvalidCombination = errors.New("invalid fragment combination")

	// ErrApprovalRequired is returned before any request is sent when a
	// destructive operation was not explicitly approved.
	ErrApprovalRequired = errors.New("approval required")

	// ErrHTTP matches every *HTTPStatusError.
	ErrHTTP = errors.New("http error")
)

// HTTPStatusError represents a non-2xx response from the cluster.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Body == "" {
		return fmt.Sprintf("http %s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("http %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTP
}

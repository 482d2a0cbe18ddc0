package translation

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// HTTPError is a non-success provider response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// ParseError is a provider response that did not match the expected
// candidate-text shape.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse provider response: " + e.Reason
}

// ExhaustedError is returned when every configured credential failed for a
// single translation call. Last carries the final underlying failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d translation credentials exhausted: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsNetworkError reports whether err is a transport failure or timeout, as
// opposed to a definitive provider rejection.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

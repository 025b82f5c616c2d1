package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks failures where the request never reached the backend or no response arrived.
var ErrTransport = errors.New("recommendations service unreachable")

const transportMessage = "Unable to reach the recommendations service. Please try again."

// APIError is a non-success response, or a success response whose body could not be decoded.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrTransport) {
		return transportMessage
	}
	return err.Error()
}

func transportError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// isTemporary reports whether a GET may be retried after err.
func isTemporary(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Err == nil && apiErr.Temporary()
}

// countsAgainstBreaker excludes 4xx rejections, which say nothing about backend health.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

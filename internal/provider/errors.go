package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/allisson/channelvault/internal/errors"
)

var (
	// ErrTransient indicates a provider failure that may succeed later: timeouts,
	// network errors, rate limiting and 5xx responses.
	ErrTransient = errors.Wrap(errors.ErrUnavailable, "transient provider error")

	// ErrRejected indicates the provider refused the request with a 4xx response.
	ErrRejected = errors.Wrap(errors.ErrInvalidInput, "provider rejected request")

	// ErrInvalidResponse indicates a response body that could not be understood.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap classifies the status as transient or rejected.
func (e *StatusError) Unwrap() error {
	if IsTransientStatus(e.StatusCode) {
		return ErrTransient
	}
	return ErrRejected
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// classifyTransport marks timeouts and network failures as transient.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRejected) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %w", ErrTransient, provider, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}

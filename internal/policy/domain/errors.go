package domain

import (
	"fmt"
	"strings"

	"github.com/allisson/channelvault/internal/errors"
)

var (
	// ErrPermissionDenied is the sentinel every PermissionError unwraps to.
	ErrPermissionDenied = errors.Wrap(errors.ErrForbidden, "permission denied")

	// ErrRegistryNotFound indicates a provider in use has no policy registry.
	ErrRegistryNotFound = errors.Wrap(errors.ErrConfiguration, "policy registry not found")

	// ErrUnknownOperation indicates an operation absent from a provider's table.
	ErrUnknownOperation = errors.Wrap(errors.ErrInvalidInput, "unknown operation")

	// ErrInvalidRegistry indicates a registry document that cannot be used.
	ErrInvalidRegistry = errors.Wrap(errors.ErrConfiguration, "invalid policy registry")
)

// PermissionError reports an operation the gate refused. MissingScopes is set when
// the role check passed but the connection's granted scope keys do not cover the
// operation.
type PermissionError struct {
	Role          string
	Operation     string
	Provider      string
	MissingScopes []string
}

func (e *PermissionError) Error() string {
	if len(e.MissingScopes) > 0 {
		return fmt.Sprintf(
			"%s connection lacks scope keys [%s] required for '%s'",
			e.Provider,
			strings.Join(e.MissingScopes, ", "),
			e.Operation,
		)
	}
	return fmt.Sprintf("role '%s' is not allowed to perform '%s'", e.Role, e.Operation)
}

// Unwrap lets errors.Is match ErrPermissionDenied and ErrForbidden.
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

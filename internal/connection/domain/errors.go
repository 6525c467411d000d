package domain

import (
	"github.com/allisson/channelvault/internal/errors"
)

var (
	// ErrConnectionNotFound indicates the connection is missing, inactive or revoked.
	ErrConnectionNotFound = errors.Wrap(errors.ErrNotFound, "connection not found")

	// ErrTokenRefresh indicates the provider refresh call failed.
	ErrTokenRefresh = errors.Wrap(errors.ErrUnauthorized, "token refresh failed")

	// ErrReauthorizationRequired indicates the credentials cannot be refreshed without
	// the user, typically because no refresh token was ever issued.
	ErrReauthorizationRequired = errors.Wrap(ErrTokenRefresh, "re-authorization required")

	// ErrVersionConflict indicates another writer updated the connection first.
	ErrVersionConflict = errors.Wrap(errors.ErrConflict, "connection was modified concurrently")

	// ErrInvalidConnection indicates create input that failed validation.
	ErrInvalidConnection = errors.Wrap(errors.ErrInvalidInput, "invalid connection")
)

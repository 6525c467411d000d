package domain

import (
	"github.com/allisson/channelvault/internal/errors"
)

var (
	// ErrJobNotFound indicates the job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "scheduled job not found")

	// ErrInvalidJob indicates schedule input that failed validation.
	ErrInvalidJob = errors.Wrap(errors.ErrInvalidInput, "invalid scheduled job")

	// ErrPlatformMismatch indicates a job whose platform differs from its connection's provider.
	ErrPlatformMismatch = errors.Wrap(errors.ErrInvalidInput, "job platform does not match connection provider")

	// ErrJobNotClaimed indicates an outcome write for a job this worker does not hold.
	ErrJobNotClaimed = errors.Wrap(errors.ErrConflict, "scheduled job is not in progress")

	// ErrClaimExpired indicates a claim whose outcome was never recorded within the lease.
	ErrClaimExpired = errors.Wrap(errors.ErrUnavailable, "claim expired before the outcome was recorded")

	// ErrNoPublisher indicates no content publisher is configured for the platform.
	ErrNoPublisher = errors.Wrap(errors.ErrConfiguration, "no publisher for platform")
)

package usecase

import (
	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	"github.com/allisson/channelvault/internal/errors"
	policyDomain "github.com/allisson/channelvault/internal/policy/domain"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

var terminalErrors = []error{
	connectionDomain.ErrConnectionNotFound,
	connectionDomain.ErrReauthorizationRequired,
	cryptoDomain.ErrDecryptionFailed,
	policyDomain.ErrPermissionDenied,
	policyDomain.ErrUnknownOperation,
	policyDomain.ErrRegistryNotFound,
	schedulerDomain.ErrPlatformMismatch,
	schedulerDomain.ErrNoPublisher,
}

// IsTerminal reports whether a publish failure must not be retried. Terminal failures
// leave the retry count untouched.
func IsTerminal(err error) bool {
	for _, target := range terminalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

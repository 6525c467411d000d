// Package usecase implements the Connection Store and Token Refresh: creating encrypted
// connections from OAuth callbacks, listing and revoking them, and handing out
// decrypted credentials that are refreshed first when they are close to expiry.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// ConnectionRepository defines persistence operations for connections.
// Implementations must support transaction-aware operations via context propagation.
type ConnectionRepository interface {
	// Create stores a new connection.
	Create(ctx context.Context, conn *connectionDomain.Connection) error

	// Get retrieves a connection by ID regardless of its state. Returns
	// ErrConnectionNotFound if it does not exist.
	Get(ctx context.Context, connectionID uuid.UUID) (*connectionDomain.Connection, error)

	// ListActive returns secret-free summaries of the active, non-revoked connections of
	// a brand user, joined with the user's role. Non-members get an empty role.
	ListActive(ctx context.Context, brandID, userID string) ([]*connectionDomain.ConnectionSummary, error)

	// Revoke soft-deletes a connection. Returns false when nothing was revoked.
	Revoke(ctx context.Context, connectionID uuid.UUID, revokedAt time.Time) (bool, error)

	RevokeByAccount(
		ctx context.Context,
		brandID, userID, provider, oauthAccountID string,
		revokedAt time.Time,
	) (int64, error)

	// UpdateToken persists a re-encrypted token when conn.Version matches the stored
	// row. Returns ErrVersionConflict otherwise.
	UpdateToken(ctx context.Context, conn *connectionDomain.Connection) error

	TouchLastUsed(ctx context.Context, connectionID uuid.UUID, usedAt time.Time) error
}

// MembershipRepository resolves a user's role inside a brand.
type MembershipRepository interface {
	// GetRole returns the member's role or an ErrNotFound-wrapping error.
	GetRole(ctx context.Context, brandID, userID string) (string, error)

	Upsert(ctx context.Context, brandID, userID, role string) error
}

// ScopeMapper converts raw provider scope strings into internal scope keys.
type ScopeMapper interface {
	MapScopes(provider string, raw []string) ([]string, error)
}

// OAuthRefresher exchanges a refresh token for new tokens at one provider. A
// provider may omit the refresh token and scopes in its response.
type OAuthRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*cryptoDomain.TokenPayload, error)
}

// ConnectionUseCase is the Connection Store exposed to callers and to the scheduler.
type ConnectionUseCase interface {
	// Create encrypts the token payload, maps the raw scopes to scope keys and stores an
	// active connection. An older active connection for the same brand, user, provider
	// and OAuth account is revoked in the same transaction.
	Create(
		ctx context.Context,
		input *connectionDomain.CreateConnectionInput,
	) (*connectionDomain.Connection, error)

	// List returns secret-free summaries of the active connections joined with the
	// caller's role in the brand.
	List(ctx context.Context, brandID, userID string) ([]*connectionDomain.ConnectionSummary, error)

	// Revoke soft-deletes a connection. Idempotent: false when already revoked or absent.
	Revoke(ctx context.Context, connectionID uuid.UUID) (bool, error)

	// Get returns a usable connection. Missing, inactive and revoked connections all
	// return ErrConnectionNotFound.
	Get(ctx context.Context, connectionID uuid.UUID) (*connectionDomain.Connection, error)

	// Role returns the connection owner's role in its brand, or "" when the user is
	// not a member.
	Role(ctx context.Context, conn *connectionDomain.Connection) (string, error)

	// Credentials decrypts the connection's token, refreshing it first when it is
	// close to expiry, and records the use.
	Credentials(
		ctx context.Context,
		conn *connectionDomain.Connection,
	) (*cryptoDomain.TokenPayload, error)

	// AddMember grants a user a role in a brand.
	AddMember(ctx context.Context, brandID, userID, role string) error
}

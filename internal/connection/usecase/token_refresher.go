package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	cryptoService "github.com/allisson/channelvault/internal/crypto/service"
	"github.com/allisson/channelvault/internal/errors"
	"github.com/allisson/channelvault/internal/provider"
)

const (
	// DefaultRefreshThreshold is how close to expiry a token may get before it is refreshed.
	DefaultRefreshThreshold = 120 * time.Second

	// DefaultRefreshTimeout bounds one provider token call.
	DefaultRefreshTimeout = 15 * time.Second
)

// RefreshConfig holds token refresh timing.
type RefreshConfig struct {
	Threshold time.Duration
	Timeout   time.Duration
}

// TokenRefresher keeps connection tokens fresh. The read-modify-write is guarded by
// the connection version: when another worker refreshed first, the winner's token is
// reloaded instead of overwriting it.
type TokenRefresher struct {
	config         RefreshConfig
	connectionRepo ConnectionRepository
	envelopeCipher cryptoService.EnvelopeCipher
	scopeMapper    ScopeMapper
	refreshers     map[string]OAuthRefresher
	logger         *slog.Logger
	now            func() time.Time
}

// NewTokenRefresher creates a TokenRefresher. refreshers is keyed by provider name.
func NewTokenRefresher(
	config RefreshConfig,
	connectionRepo ConnectionRepository,
	envelopeCipher cryptoService.EnvelopeCipher,
	scopeMapper ScopeMapper,
	refreshers map[string]OAuthRefresher,
	logger *slog.Logger,
) *TokenRefresher {
	if config.Threshold <= 0 {
		config.Threshold = DefaultRefreshThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshTimeout
	}
	return &TokenRefresher{
		config:         config,
		connectionRepo: connectionRepo,
		envelopeCipher: envelopeCipher,
		scopeMapper:    scopeMapper,
		refreshers:     refreshers,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NeedsRefresh reports whether payload expires within the threshold of now. Tokens
// without an expiry never need a refresh.
func (r *TokenRefresher) NeedsRefresh(payload *cryptoDomain.TokenPayload, now time.Time) bool {
	if payload.ExpiresAt == 0 {
		return false
	}
	return payload.Expiry().Sub(now) < r.config.Threshold
}

// EnsureFresh returns payload unchanged when it is not close to expiry, otherwise the
// refreshed payload.
func (r *TokenRefresher) EnsureFresh(
	ctx context.Context,
	conn *connectionDomain.Connection,
	payload *cryptoDomain.TokenPayload,
) (*cryptoDomain.TokenPayload, error) {
	if !r.NeedsRefresh(payload, r.now()) {
		return payload, nil
	}
	return r.Refresh(ctx, conn, payload)
}

// Refresh exchanges the refresh token at the provider, re-encrypts the result under a
// fresh DEK and persists it. On success conn reflects the stored row. A missing refresh
// token or a grant the provider rejects returns ErrReauthorizationRequired.
func (r *TokenRefresher) Refresh(
	ctx context.Context,
	conn *connectionDomain.Connection,
	payload *cryptoDomain.TokenPayload,
) (*cryptoDomain.TokenPayload, error) {
	if !payload.HasRefreshToken() {
		return nil, connectionDomain.ErrReauthorizationRequired
	}

	refresher, ok := r.refreshers[conn.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: no oauth client for provider %s", connectionDomain.ErrTokenRefresh, conn.Provider)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	refreshed, err := refresher.Refresh(callCtx, payload.RefreshToken)
	cancel()
	if err != nil {
		// A rejected grant stays rejected until the user authorizes again.
		if errors.Is(err, provider.ErrRejected) {
			return nil, fmt.Errorf("%w: %w", connectionDomain.ErrReauthorizationRequired, err)
		}
		return nil, fmt.Errorf("%w: %w", connectionDomain.ErrTokenRefresh, err)
	}

	// Providers may rotate or omit the refresh token and scopes.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = payload.RefreshToken
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = payload.Scopes
	}

	blob, err := r.envelopeCipher.Encrypt(refreshed)
	if err != nil {
		return nil, err
	}

	updated := *conn
	updated.EncryptedToken = *blob
	if len(refreshed.Scopes) > 0 {
		scopeKeys, err := r.scopeMapper.MapScopes(conn.Provider, refreshed.Scopes)
		if err != nil {
			return nil, err
		}
		updated.Scopes = refreshed.Scopes
		updated.ScopeKeys = scopeKeys
	}
	now := r.now()
	updated.LastTokenRefresh = &now
	updated.RefreshCount++
	updated.UpdatedAt = now

	err = r.connectionRepo.UpdateToken(ctx, &updated)
	if errors.Is(err, connectionDomain.ErrVersionConflict) {
		return r.reloadAfterConflict(ctx, conn)
	}
	if err != nil {
		return nil, err
	}

	*conn = updated
	if r.logger != nil {
		r.logger.Info("connection token refreshed",
			slog.String("connection_id", conn.ID.String()),
			slog.String("provider", conn.Provider),
			slog.Int("refresh_count", conn.RefreshCount),
		)
	}
	return refreshed, nil
}

// reloadAfterConflict adopts the token written by the concurrent refresh that won.
func (r *TokenRefresher) reloadAfterConflict(
	ctx context.Context,
	conn *connectionDomain.Connection,
) (*cryptoDomain.TokenPayload, error) {
	latest, err := r.connectionRepo.Get(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	if !latest.IsUsable() {
		return nil, connectionDomain.ErrConnectionNotFound
	}

	payload, err := r.envelopeCipher.Decrypt(&latest.EncryptedToken)
	if err != nil {
		return nil, err
	}
	if r.NeedsRefresh(payload, r.now()) {
		return nil, fmt.Errorf("%w: concurrent refresh left an expiring token", connectionDomain.ErrTokenRefresh)
	}

	if r.logger != nil {
		r.logger.Debug("adopted concurrently refreshed token",
			slog.String("connection_id", conn.ID.String()),
			slog.Int("version", latest.Version),
		)
	}
	*conn = *latest
	return payload, nil
}

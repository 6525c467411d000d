package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	cryptoService "github.com/allisson/channelvault/internal/crypto/service"
	"github.com/allisson/channelvault/internal/database"
	"github.com/allisson/channelvault/internal/errors"
	policyDomain "github.com/allisson/channelvault/internal/policy/domain"
)

type connectionUseCase struct {
	txManager      database.TxManager
	connectionRepo ConnectionRepository
	membershipRepo MembershipRepository
	envelopeCipher cryptoService.EnvelopeCipher
	scopeMapper    ScopeMapper
	tokenRefresher *TokenRefresher
	logger         *slog.Logger
}

// Create implements ConnectionUseCase.
func (c *connectionUseCase) Create(
	ctx context.Context,
	input *connectionDomain.CreateConnectionInput,
) (*connectionDomain.Connection, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	scopes := input.Scopes
	if len(scopes) == 0 {
		scopes = input.Token.Scopes
	}
	if scopes == nil {
		scopes = []string{}
	}

	scopeKeys, err := c.scopeMapper.MapScopes(provider, scopes)
	if err != nil {
		if errors.Is(err, policyDomain.ErrRegistryNotFound) {
			return nil, fmt.Errorf("%w: unsupported provider %q", connectionDomain.ErrInvalidConnection, provider)
		}
		return nil, err
	}

	blob, err := c.envelopeCipher.Encrypt(input.Token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate connection id")
	}

	now := time.Now().UTC()
	conn := &connectionDomain.Connection{
		ID:             id,
		BrandID:        input.BrandID,
		UserID:         input.UserID,
		OAuthAccountID: input.OAuthAccountID,
		Provider:       provider,
		Scopes:         scopes,
		ScopeKeys:      scopeKeys,
		EncryptedToken: *blob,
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = c.txManager.WithTx(ctx, func(ctx context.Context) error {
		revoked, err := c.connectionRepo.RevokeByAccount(
			ctx,
			conn.BrandID,
			conn.UserID,
			conn.Provider,
			conn.OAuthAccountID,
			now,
		)
		if err != nil {
			return err
		}
		if revoked > 0 && c.logger != nil {
			c.logger.Info("replaced existing connection",
				slog.String("brand_id", conn.BrandID),
				slog.String("provider", conn.Provider),
				slog.Int64("revoked", revoked),
			)
		}
		return c.connectionRepo.Create(ctx, conn)
	})
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// List implements ConnectionUseCase.
func (c *connectionUseCase) List(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	summaries, err := c.connectionRepo.ListActive(ctx, brandID, userID)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		summary.Role = policyDomain.NormalizeRole(summary.Role)
	}
	if summaries == nil {
		summaries = []*connectionDomain.ConnectionSummary{}
	}
	return summaries, nil
}

// Revoke implements ConnectionUseCase.
func (c *connectionUseCase) Revoke(ctx context.Context, connectionID uuid.UUID) (bool, error) {
	return c.connectionRepo.Revoke(ctx, connectionID, time.Now().UTC())
}

// Get implements ConnectionUseCase.
func (c *connectionUseCase) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	conn, err := c.connectionRepo.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsUsable() {
		return nil, connectionDomain.ErrConnectionNotFound
	}
	return conn, nil
}

// Role implements ConnectionUseCase.
func (c *connectionUseCase) Role(ctx context.Context, conn *connectionDomain.Connection) (string, error) {
	return c.lookupRole(ctx, conn.BrandID, conn.UserID)
}

// Credentials implements ConnectionUseCase.
func (c *connectionUseCase) Credentials(
	ctx context.Context,
	conn *connectionDomain.Connection,
) (*cryptoDomain.TokenPayload, error) {
	payload, err := c.envelopeCipher.Decrypt(&conn.EncryptedToken)
	if err != nil {
		return nil, err
	}

	payload, err = c.tokenRefresher.EnsureFresh(ctx, conn, payload)
	if err != nil {
		return nil, err
	}

	if err := c.connectionRepo.TouchLastUsed(ctx, conn.ID, time.Now().UTC()); err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to record connection use",
				slog.String("connection_id", conn.ID.String()),
				slog.Any("error", err),
			)
		}
	}
	return payload, nil
}

// AddMember implements ConnectionUseCase.
func (c *connectionUseCase) AddMember(ctx context.Context, brandID, userID, role string) error {
	role = policyDomain.NormalizeRole(role)
	if brandID == "" || userID == "" || role == "" {
		return errors.Wrap(errors.ErrInvalidInput, "brand id, user id and role are required")
	}
	return c.membershipRepo.Upsert(ctx, brandID, userID, role)
}

func (c *connectionUseCase) lookupRole(ctx context.Context, brandID, userID string) (string, error) {
	role, err := c.membershipRepo.GetRole(ctx, brandID, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return policyDomain.NormalizeRole(role), nil
}

// NewConnectionUseCase creates a new ConnectionUseCase.
func NewConnectionUseCase(
	txManager database.TxManager,
	connectionRepo ConnectionRepository,
	membershipRepo MembershipRepository,
	envelopeCipher cryptoService.EnvelopeCipher,
	scopeMapper ScopeMapper,
	tokenRefresher *TokenRefresher,
	logger *slog.Logger,
) ConnectionUseCase {
	return &connectionUseCase{
		txManager:      txManager,
		connectionRepo: connectionRepo,
		membershipRepo: membershipRepo,
		envelopeCipher: envelopeCipher,
		scopeMapper:    scopeMapper,
		tokenRefresher: tokenRefresher,
		logger:         logger,
	}
}

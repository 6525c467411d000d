package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	connectionUseCase "github.com/allisson/channelvault/internal/connection/usecase"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// CreateConnectionParams holds the flags of create-connection.
type CreateConnectionParams struct {
	BrandID        string
	UserID         string
	Provider       string
	OAuthAccountID string
	AccessToken    string
	RefreshToken   string
	TokenType      string
	ExpiresIn      time.Duration
	Scopes         string
}

// RunCreateConnection stores an OAuth connection from tokens obtained out of band.
// The tokens are sealed by the vault before they reach the database.
//
// Requirements: Database must be migrated and ROOT_SECRET must be set.
func RunCreateConnection(
	ctx context.Context,
	useCase connectionUseCase.ConnectionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	params CreateConnectionParams,
	format string,
) error {
	scopes := splitCSV(params.Scopes)

	token := &cryptoDomain.TokenPayload{
		AccessToken:  params.AccessToken,
		RefreshToken: params.RefreshToken,
		TokenType:    params.TokenType,
		Scopes:       scopes,
	}
	if params.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(params.ExpiresIn).Unix()
	}

	conn, err := useCase.Create(ctx, &connectionDomain.CreateConnectionInput{
		BrandID:        params.BrandID,
		UserID:         params.UserID,
		OAuthAccountID: params.OAuthAccountID,
		Provider:       strings.ToLower(params.Provider),
		Token:          token,
		Scopes:         scopes,
	})
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	summary := conn.Summary("")
	err = writeOutput(writer, format, summary, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, "Connection created successfully:")
		_, _ = fmt.Fprintf(w, "  ID:         %s\n", summary.ID)
		_, _ = fmt.Fprintf(w, "  Provider:   %s\n", summary.Provider)
		_, _ = fmt.Fprintf(w, "  Scope keys: %s\n", strings.Join(summary.ScopeKeys, ", "))
	})
	if err != nil {
		return err
	}

	logger.Info("connection created",
		slog.String("connection_id", conn.ID.String()),
		slog.String("provider", conn.Provider),
	)
	return nil
}

// RunListConnections prints the active connections of a brand user with the user's
// role in the brand. Token material is never printed.
func RunListConnections(
	ctx context.Context,
	useCase connectionUseCase.ConnectionUseCase,
	writer io.Writer,
	brandID, userID, format string,
) error {
	summaries, err := useCase.List(ctx, brandID, userID)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}
	if summaries == nil {
		summaries = []*connectionDomain.ConnectionSummary{}
	}

	return writeOutput(writer, format, summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			_, _ = fmt.Fprintln(w, "No active connections")
			return
		}
		for _, s := range summaries {
			_, _ = fmt.Fprintf(w, "%s  %-10s  role=%-8s  account=%s  scopes=%s\n",
				s.ID, s.Provider, s.Role, s.OAuthAccountID, strings.Join(s.ScopeKeys, ","))
		}
	})
}

// RunRevokeConnection revokes a connection. Revoking an already revoked connection
// is not an error.
func RunRevokeConnection(
	ctx context.Context,
	useCase connectionUseCase.ConnectionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	connectionID string,
) error {
	id, err := uuid.Parse(connectionID)
	if err != nil {
		return fmt.Errorf("invalid connection ID format: %w", err)
	}

	revoked, err := useCase.Revoke(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to revoke connection: %w", err)
	}

	if revoked {
		_, _ = fmt.Fprintf(writer, "Connection %s revoked\n", id)
	} else {
		_, _ = fmt.Fprintf(writer, "Connection %s was already revoked or does not exist\n", id)
	}
	logger.Info("revoke connection", slog.String("connection_id", id.String()), slog.Bool("revoked", revoked))
	return nil
}

// RunAddBrandMember grants a user a role in a brand, replacing any previous role.
func RunAddBrandMember(
	ctx context.Context,
	useCase connectionUseCase.ConnectionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	brandID, userID, role string,
) error {
	if err := useCase.AddMember(ctx, brandID, userID, role); err != nil {
		return fmt.Errorf("failed to add brand member: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "User %s is now %s of brand %s\n", userID, role, brandID)
	logger.Info("brand member added",
		slog.String("brand_id", brandID),
		slog.String("user_id", userID),
		slog.String("role", role),
	)
	return nil
}

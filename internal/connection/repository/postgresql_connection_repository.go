// Package repository persists connections and brand memberships for PostgreSQL and
// MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	"github.com/allisson/channelvault/internal/database"
	apperrors "github.com/allisson/channelvault/internal/errors"
)

const pgConnectionColumns = `id, brand_id, user_id, oauth_account_id, provider, scopes, scope_keys,
	token_wrapped_iv, token_wrapped_ct, token_iv, token_ct, token_fp,
	is_active, revoked_at, last_used_at, last_token_refresh, refresh_count, version,
	created_at, updated_at`

// PostgreSQLConnectionRepository implements connection persistence for PostgreSQL.
// Scope lists are stored as TEXT[] columns and the envelope fields as BYTEA.
type PostgreSQLConnectionRepository struct {
	db *sql.DB
}

// Create inserts a new connection.
func (p *PostgreSQLConnectionRepository) Create(
	ctx context.Context,
	conn *connectionDomain.Connection,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO connections (` + pgConnectionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := querier.ExecContext(
		ctx,
		query,
		conn.ID,
		conn.BrandID,
		conn.UserID,
		conn.OAuthAccountID,
		conn.Provider,
		pq.Array(conn.Scopes),
		pq.Array(conn.ScopeKeys),
		conn.EncryptedToken.WrappedIV,
		conn.EncryptedToken.WrappedCiphertext,
		conn.EncryptedToken.IV,
		conn.EncryptedToken.Ciphertext,
		conn.EncryptedToken.Fingerprint,
		conn.IsActive,
		conn.RevokedAt,
		conn.LastUsedAt,
		conn.LastTokenRefresh,
		conn.RefreshCount,
		conn.Version,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create connection")
	}
	return nil
}

// Get loads a connection by id, including revoked ones.
func (p *PostgreSQLConnectionRepository) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgConnectionColumns + ` FROM connections WHERE id = $1`

	var conn connectionDomain.Connection
	err := querier.QueryRowContext(ctx, query, connectionID).Scan(
		&conn.ID,
		&conn.BrandID,
		&conn.UserID,
		&conn.OAuthAccountID,
		&conn.Provider,
		pq.Array(&conn.Scopes),
		pq.Array(&conn.ScopeKeys),
		&conn.EncryptedToken.WrappedIV,
		&conn.EncryptedToken.WrappedCiphertext,
		&conn.EncryptedToken.IV,
		&conn.EncryptedToken.Ciphertext,
		&conn.EncryptedToken.Fingerprint,
		&conn.IsActive,
		&conn.RevokedAt,
		&conn.LastUsedAt,
		&conn.LastTokenRefresh,
		&conn.RefreshCount,
		&conn.Version,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, connectionDomain.ErrConnectionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get connection")
	}
	return &conn, nil
}

// ListActive returns the active connections of a user within a brand, joined with the
// user's role in that brand. Users without a membership get an empty role.
func (p *PostgreSQLConnectionRepository) ListActive(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT c.id, c.brand_id, c.user_id, c.oauth_account_id, c.provider, c.scopes, c.scope_keys,
				COALESCE(m.role, ''), c.last_used_at, c.last_token_refresh, c.created_at
			  FROM connections c
			  LEFT JOIN brand_members m ON m.brand_id = c.brand_id AND m.user_id = c.user_id
			  WHERE c.brand_id = $1 AND c.user_id = $2 AND c.is_active = TRUE AND c.revoked_at IS NULL
			  ORDER BY c.created_at ASC`

	rows, err := querier.QueryContext(ctx, query, brandID, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list connections")
	}
	defer func() {
		_ = rows.Close()
	}()

	summaries := make([]*connectionDomain.ConnectionSummary, 0)
	for rows.Next() {
		var s connectionDomain.ConnectionSummary
		if err := rows.Scan(
			&s.ID,
			&s.BrandID,
			&s.UserID,
			&s.OAuthAccountID,
			&s.Provider,
			pq.Array(&s.Scopes),
			pq.Array(&s.ScopeKeys),
			&s.Role,
			&s.LastUsedAt,
			&s.LastTokenRefresh,
			&s.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan connection")
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate connections")
	}
	return summaries, nil
}

// Revoke soft-deletes a connection. It reports false when the connection is absent or
// already revoked.
func (p *PostgreSQLConnectionRepository) Revoke(
	ctx context.Context,
	connectionID uuid.UUID,
	revokedAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE connections
			  SET is_active = FALSE, revoked_at = $1, updated_at = $1
			  WHERE id = $2 AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, revokedAt, connectionID)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to revoke connection")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected > 0, nil
}

// RevokeByAccount revokes every active connection a brand user holds for the same
// provider account, returning how many were revoked.
func (p *PostgreSQLConnectionRepository) RevokeByAccount(
	ctx context.Context,
	brandID, userID, provider, oauthAccountID string,
	revokedAt time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE connections
			  SET is_active = FALSE, revoked_at = $1, updated_at = $1
			  WHERE brand_id = $2 AND user_id = $3 AND provider = $4 AND oauth_account_id = $5
				AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, revokedAt, brandID, userID, provider, oauthAccountID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke connections by account")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}

// UpdateToken overwrites the envelope and refresh bookkeeping when conn.Version still
// matches the stored row, then bumps the version. A stale version or a revoked row
// returns ErrVersionConflict.
func (p *PostgreSQLConnectionRepository) UpdateToken(
	ctx context.Context,
	conn *connectionDomain.Connection,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE connections
			  SET token_wrapped_iv = $1, token_wrapped_ct = $2, token_iv = $3, token_ct = $4, token_fp = $5,
				scopes = $6, scope_keys = $7, last_token_refresh = $8, refresh_count = $9,
				version = version + 1, updated_at = $10
			  WHERE id = $11 AND version = $12 AND revoked_at IS NULL`

	result, err := querier.ExecContext(
		ctx,
		query,
		conn.EncryptedToken.WrappedIV,
		conn.EncryptedToken.WrappedCiphertext,
		conn.EncryptedToken.IV,
		conn.EncryptedToken.Ciphertext,
		conn.EncryptedToken.Fingerprint,
		pq.Array(conn.Scopes),
		pq.Array(conn.ScopeKeys),
		conn.LastTokenRefresh,
		conn.RefreshCount,
		conn.UpdatedAt,
		conn.ID,
		conn.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update connection token")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return connectionDomain.ErrVersionConflict
	}

	conn.Version++
	return nil
}

// TouchLastUsed records that the connection's credentials were handed out.
func (p *PostgreSQLConnectionRepository) TouchLastUsed(
	ctx context.Context,
	connectionID uuid.UUID,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE connections SET last_used_at = $1 WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, usedAt, connectionID); err != nil {
		return apperrors.Wrap(err, "failed to update connection last used")
	}
	return nil
}

// NewPostgreSQLConnectionRepository creates a new PostgreSQL connection repository.
func NewPostgreSQLConnectionRepository(db *sql.DB) *PostgreSQLConnectionRepository {
	return &PostgreSQLConnectionRepository{db: db}
}

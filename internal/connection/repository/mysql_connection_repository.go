package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	"github.com/allisson/channelvault/internal/database"
	apperrors "github.com/allisson/channelvault/internal/errors"
)

const mysqlConnectionColumns = `id, brand_id, user_id, oauth_account_id, provider, scopes, scope_keys,
	token_wrapped_iv, token_wrapped_ct, token_iv, token_ct, token_fp,
	is_active, revoked_at, last_used_at, last_token_refresh, refresh_count, version,
	created_at, updated_at`

// MySQLConnectionRepository implements connection persistence for MySQL. Ids are
// BINARY(16) and scope lists are JSON columns.
type MySQLConnectionRepository struct {
	db *sql.DB
}

// Create inserts a new connection.
func (m *MySQLConnectionRepository) Create(ctx context.Context, conn *connectionDomain.Connection) error {
	querier := database.GetTx(ctx, m.db)

	id, err := conn.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}
	scopes, scopeKeys, err := marshalScopes(conn.Scopes, conn.ScopeKeys)
	if err != nil {
		return err
	}

	query := `INSERT INTO connections (` + mysqlConnectionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		conn.BrandID,
		conn.UserID,
		conn.OAuthAccountID,
		conn.Provider,
		scopes,
		scopeKeys,
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
func (m *MySQLConnectionRepository) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := connectionID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal connection id")
	}

	query := `SELECT ` + mysqlConnectionColumns + ` FROM connections WHERE id = ?`

	var conn connectionDomain.Connection
	var rawID, scopes, scopeKeys []byte
	err = querier.QueryRowContext(ctx, query, id).Scan(
		&rawID,
		&conn.BrandID,
		&conn.UserID,
		&conn.OAuthAccountID,
		&conn.Provider,
		&scopes,
		&scopeKeys,
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

	if err := conn.ID.UnmarshalBinary(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal connection id")
	}
	if conn.Scopes, conn.ScopeKeys, err = unmarshalScopes(scopes, scopeKeys); err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListActive returns the active connections of a user within a brand, joined with the
// user's role in that brand. Users without a membership get an empty role.
func (m *MySQLConnectionRepository) ListActive(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT c.id, c.brand_id, c.user_id, c.oauth_account_id, c.provider, c.scopes, c.scope_keys,
				COALESCE(m.role, ''), c.last_used_at, c.last_token_refresh, c.created_at
			  FROM connections c
			  LEFT JOIN brand_members m ON m.brand_id = c.brand_id AND m.user_id = c.user_id
			  WHERE c.brand_id = ? AND c.user_id = ? AND c.is_active = TRUE AND c.revoked_at IS NULL
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
		var rawID, scopes, scopeKeys []byte
		if err := rows.Scan(
			&rawID,
			&s.BrandID,
			&s.UserID,
			&s.OAuthAccountID,
			&s.Provider,
			&scopes,
			&scopeKeys,
			&s.Role,
			&s.LastUsedAt,
			&s.LastTokenRefresh,
			&s.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan connection")
		}
		if err := s.ID.UnmarshalBinary(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal connection id")
		}
		if s.Scopes, s.ScopeKeys, err = unmarshalScopes(scopes, scopeKeys); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate connections")
	}
	return summaries, nil
}

// Revoke soft-deletes a connection, reporting false when nothing changed.
func (m *MySQLConnectionRepository) Revoke(
	ctx context.Context,
	connectionID uuid.UUID,
	revokedAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := connectionID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal connection id")
	}

	query := `UPDATE connections
			  SET is_active = FALSE, revoked_at = ?, updated_at = ?
			  WHERE id = ? AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, revokedAt, revokedAt, id)
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
// provider account.
func (m *MySQLConnectionRepository) RevokeByAccount(
	ctx context.Context,
	brandID, userID, provider, oauthAccountID string,
	revokedAt time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE connections
			  SET is_active = FALSE, revoked_at = ?, updated_at = ?
			  WHERE brand_id = ? AND user_id = ? AND provider = ? AND oauth_account_id = ?
				AND revoked_at IS NULL`

	result, err := querier.ExecContext(
		ctx,
		query,
		revokedAt,
		revokedAt,
		brandID,
		userID,
		provider,
		oauthAccountID,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke connections by account")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}

// UpdateToken overwrites the envelope when conn.Version still matches the stored row.
func (m *MySQLConnectionRepository) UpdateToken(ctx context.Context, conn *connectionDomain.Connection) error {
	querier := database.GetTx(ctx, m.db)

	id, err := conn.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}
	scopes, scopeKeys, err := marshalScopes(conn.Scopes, conn.ScopeKeys)
	if err != nil {
		return err
	}

	query := `UPDATE connections
			  SET token_wrapped_iv = ?, token_wrapped_ct = ?, token_iv = ?, token_ct = ?, token_fp = ?,
				scopes = ?, scope_keys = ?, last_token_refresh = ?, refresh_count = ?,
				version = version + 1, updated_at = ?
			  WHERE id = ? AND version = ? AND revoked_at IS NULL`

	result, err := querier.ExecContext(
		ctx,
		query,
		conn.EncryptedToken.WrappedIV,
		conn.EncryptedToken.WrappedCiphertext,
		conn.EncryptedToken.IV,
		conn.EncryptedToken.Ciphertext,
		conn.EncryptedToken.Fingerprint,
		scopes,
		scopeKeys,
		conn.LastTokenRefresh,
		conn.RefreshCount,
		conn.UpdatedAt,
		id,
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
func (m *MySQLConnectionRepository) TouchLastUsed(
	ctx context.Context,
	connectionID uuid.UUID,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := connectionID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}

	if _, err := querier.ExecContext(ctx, `UPDATE connections SET last_used_at = ? WHERE id = ?`, usedAt, id); err != nil {
		return apperrors.Wrap(err, "failed to update connection last used")
	}
	return nil
}

// NewMySQLConnectionRepository creates a new MySQL connection repository.
func NewMySQLConnectionRepository(db *sql.DB) *MySQLConnectionRepository {
	return &MySQLConnectionRepository{db: db}
}

func marshalScopes(scopes, scopeKeys []string) ([]byte, []byte, error) {
	if scopes == nil {
		scopes = []string{}
	}
	if scopeKeys == nil {
		scopeKeys = []string{}
	}
	rawScopes, err := json.Marshal(scopes)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal scopes")
	}
	rawKeys, err := json.Marshal(scopeKeys)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal scope keys")
	}
	return rawScopes, rawKeys, nil
}

func unmarshalScopes(rawScopes, rawKeys []byte) ([]string, []string, error) {
	var scopes, scopeKeys []string
	if err := json.Unmarshal(rawScopes, &scopes); err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to unmarshal scopes")
	}
	if err := json.Unmarshal(rawKeys, &scopeKeys); err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to unmarshal scope keys")
	}
	return scopes, scopeKeys, nil
}

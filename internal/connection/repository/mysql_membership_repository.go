package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/channelvault/internal/database"
	apperrors "github.com/allisson/channelvault/internal/errors"
)

// MySQLMembershipRepository stores each user's role within a brand.
type MySQLMembershipRepository struct {
	db *sql.DB
}

// GetRole returns the user's role in the brand, or ErrNotFound.
func (m *MySQLMembershipRepository) GetRole(ctx context.Context, brandID, userID string) (string, error) {
	querier := database.GetTx(ctx, m.db)

	var role string
	err := querier.QueryRowContext(
		ctx,
		`SELECT role FROM brand_members WHERE brand_id = ? AND user_id = ?`,
		brandID,
		userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", apperrors.Wrap(err, "failed to get brand member role")
	}
	return role, nil
}

// Upsert sets the user's role in the brand.
func (m *MySQLMembershipRepository) Upsert(ctx context.Context, brandID, userID, role string) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO brand_members (brand_id, user_id, role, created_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE role = VALUES(role)`

	if _, err := querier.ExecContext(ctx, query, brandID, userID, role, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to upsert brand member")
	}
	return nil
}

// NewMySQLMembershipRepository creates a new MySQL membership repository.
func NewMySQLMembershipRepository(db *sql.DB) *MySQLMembershipRepository {
	return &MySQLMembershipRepository{db: db}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/channelvault/internal/database"
	apperrors "github.com/allisson/channelvault/internal/errors"
)

// PostgreSQLMembershipRepository stores each user's role within a brand.
type PostgreSQLMembershipRepository struct {
	db *sql.DB
}

// GetRole returns the user's role in the brand, or ErrNotFound.
func (p *PostgreSQLMembershipRepository) GetRole(ctx context.Context, brandID, userID string) (string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT role FROM brand_members WHERE brand_id = $1 AND user_id = $2`

	var role string
	if err := querier.QueryRowContext(ctx, query, brandID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", apperrors.Wrap(err, "failed to get brand member role")
	}
	return role, nil
}

// Upsert sets the user's role in the brand.
func (p *PostgreSQLMembershipRepository) Upsert(ctx context.Context, brandID, userID, role string) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO brand_members (brand_id, user_id, role, created_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (brand_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := querier.ExecContext(ctx, query, brandID, userID, role, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to upsert brand member")
	}
	return nil
}

// NewPostgreSQLMembershipRepository creates a new PostgreSQL membership repository.
func NewPostgreSQLMembershipRepository(db *sql.DB) *PostgreSQLMembershipRepository {
	return &PostgreSQLMembershipRepository{db: db}
}

// Package domain defines OAuth connections: the encrypted link between a brand, a user,
// an OAuth identity and one provider channel.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// Connection is one stored credential set. Raw tokens only ever live inside
// EncryptedToken. Version guards concurrent refreshes.
type Connection struct {
	ID               uuid.UUID
	BrandID          string
	UserID           string
	OAuthAccountID   string
	Provider         string
	Scopes           []string
	ScopeKeys        []string
	EncryptedToken   cryptoDomain.EnvelopeBlob
	IsActive         bool
	RevokedAt        *time.Time
	LastUsedAt       *time.Time
	LastTokenRefresh *time.Time
	RefreshCount     int
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsUsable reports whether the connection may hand out credentials.
func (c *Connection) IsUsable() bool {
	return c.IsActive && c.RevokedAt == nil
}

// Summary returns the secret-free view of the connection.
func (c *Connection) Summary(role string) *ConnectionSummary {
	return &ConnectionSummary{
		ID:               c.ID,
		BrandID:          c.BrandID,
		UserID:           c.UserID,
		OAuthAccountID:   c.OAuthAccountID,
		Provider:         c.Provider,
		Scopes:           c.Scopes,
		ScopeKeys:        c.ScopeKeys,
		Role:             role,
		LastUsedAt:       c.LastUsedAt,
		LastTokenRefresh: c.LastTokenRefresh,
		CreatedAt:        c.CreatedAt,
	}
}

// ConnectionSummary is what listings return. It never carries ciphertext.
type ConnectionSummary struct {
	ID               uuid.UUID  `json:"id"`
	BrandID          string     `json:"brand_id"`
	UserID           string     `json:"user_id"`
	OAuthAccountID   string     `json:"oauth_account_id"`
	Provider         string     `json:"provider"`
	Scopes           []string   `json:"scopes"`
	ScopeKeys        []string   `json:"scope_keys"`
	Role             string     `json:"role"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	LastTokenRefresh *time.Time `json:"last_token_refresh,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

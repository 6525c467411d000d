package domain

import (
	"encoding/json"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/channelvault/internal/errors"
)

// TokenPayload is the OAuth credential set sealed inside an EnvelopeBlob.
// ExpiresAt is a unix timestamp in seconds; zero means the provider did not report one.
type TokenPayload struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	ExpiresAt    int64             `json:"expires_at,omitempty"`
	Scopes       []string          `json:"scopes,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Validate rejects payloads the cipher must never seal.
func (p *TokenPayload) Validate() error {
	if p == nil {
		return errors.Wrap(ErrInvalidTokenPayload, "payload is nil")
	}
	err := validation.ValidateStruct(p,
		validation.Field(&p.AccessToken, validation.Required, validation.Length(1, 8192)),
		validation.Field(&p.RefreshToken, validation.Length(0, 8192)),
		validation.Field(&p.TokenType, validation.Length(0, 64)),
		validation.Field(&p.ExpiresAt, validation.Min(int64(0))),
		validation.Field(&p.Scopes, validation.Each(validation.Required)),
	)
	if err != nil {
		return errors.Wrap(ErrInvalidTokenPayload, err.Error())
	}
	return nil
}

// Canonical returns the compact JSON encoding with a stable key order. Struct fields
// encode in declaration order and map keys are sorted, so equal payloads always
// produce equal bytes.
func (p *TokenPayload) Canonical() ([]byte, error) {
	return json.Marshal(p)
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown.
func (p *TokenPayload) Expiry() time.Time {
	if p.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(p.ExpiresAt, 0).UTC()
}

// HasRefreshToken reports whether the payload can be refreshed without the user.
func (p *TokenPayload) HasRefreshToken() bool {
	return p.RefreshToken != ""
}

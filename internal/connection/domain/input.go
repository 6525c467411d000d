package domain

import (
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	appValidation "github.com/allisson/channelvault/internal/validation"
)

// CreateConnectionInput carries a successful OAuth callback into the store.
type CreateConnectionInput struct {
	BrandID        string
	UserID         string
	OAuthAccountID string
	Provider       string
	Token          *cryptoDomain.TokenPayload
	Scopes         []string
}

// Validate checks identifiers and the token payload.
func (in *CreateConnectionInput) Validate() error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.BrandID, validation.Required, validation.Length(1, 64), appValidation.Identifier),
		validation.Field(&in.UserID, validation.Required, validation.Length(1, 64), appValidation.Identifier),
		validation.Field(&in.OAuthAccountID, validation.Required, validation.Length(1, 255), appValidation.NoWhitespace),
		validation.Field(&in.Provider, validation.Required, appValidation.NotBlank, validation.Length(1, 32)),
		validation.Field(&in.Token, validation.Required, validation.Skip),
		validation.Field(&in.Scopes, validation.Each(validation.Required)),
	)
	if err != nil {
		return appValidation.WrapValidationError(ErrInvalidConnection, err)
	}
	return in.Token.Validate()
}

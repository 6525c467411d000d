// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/channelvault/internal/errors"
)

var (
	// identifierRegex matches external brand, user and account ids
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9._:@|+\-]+$`)

	// providerRegex matches provider and platform names such as "youtube"
	providerRegex = regexp.MustCompile(`^[a-z][a-z0-9_\-]*$`)
)

// WrapValidationError wraps a validation error under sentinel so callers can still
// match it with errors.Is.
func WrapValidationError(sentinel error, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(sentinel, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Identifier validates an opaque external id.
var Identifier = validation.NewStringRuleWithError(
	identifierRegex.MatchString,
	validation.NewError("validation_identifier", "must contain only letters, digits and . _ : @ | + -"),
)

// ProviderName validates a lowercase provider or platform name.
var ProviderName = validation.NewStringRuleWithError(
	providerRegex.MatchString,
	validation.NewError("validation_provider_name", "must be a lowercase provider name"),
)

// NotNilUUID rejects the zero UUID.
var NotNilUUID = validation.By(func(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok {
		return validation.NewError("validation_uuid_type", "must be a UUID")
	}
	if id == uuid.Nil {
		return validation.NewError("validation_uuid_nil", "must be a valid id")
	}
	return nil
})

// JSON validates that a raw message, byte slice or string holds one JSON value.
var JSON = validation.By(func(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return validation.NewError("validation_json_type", "must be JSON data")
	}
	if len(raw) == 0 {
		return nil // Let Required handle empty values
	}
	if !json.Valid(raw) {
		return validation.NewError("validation_json", "must be valid JSON")
	}
	return nil
})

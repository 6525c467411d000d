package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/channelvault/internal/validation"
)

// ScheduleJobInput describes content to publish later. An empty Operation means the
// platform's default operation; zero MaxRetries means DefaultMaxRetries.
type ScheduleJobInput struct {
	Platform      string
	ConnectionID  uuid.UUID
	Operation     string
	Payload       json.RawMessage
	ScheduledTime time.Time
	MaxRetries    int
}

// Validate checks the input before the connection is looked up.
func (in *ScheduleJobInput) Validate() error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Platform, validation.Required, appValidation.NotBlank, validation.Length(1, 32)),
		validation.Field(&in.ConnectionID, appValidation.NotNilUUID),
		validation.Field(&in.Operation, appValidation.NoWhitespace, validation.Length(0, 64)),
		validation.Field(&in.Payload, validation.Required, appValidation.JSON),
		validation.Field(&in.ScheduledTime, validation.Required),
		validation.Field(&in.MaxRetries, validation.Min(0), validation.Max(10)),
	)
	return appValidation.WrapValidationError(ErrInvalidJob, err)
}

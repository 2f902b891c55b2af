package otp

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
)

type Created struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxAttempts *int       `json:"max_attempts,omitempty"`
	Secret      string     `json:"secret"`
}

func (*Created) Kind() string { return "otp.created" }

type ValidationFailed struct{}

func (*ValidationFailed) Kind() string { return "otp.validation_failed" }

type ValidationSucceeded struct{}

func (*ValidationSucceeded) Kind() string { return "otp.validation_succeeded" }

type SoftDeleted struct{}

func (*SoftDeleted) Kind() string { return "otp.deleted" }

// Codec returns the payload registry for one-time-password streams.
func Codec() es.Codec {
	return es.NewJSONCodec(map[string]func() es.Payload{
		"otp.created":              func() es.Payload { return &Created{} },
		"otp.validation_failed":    func() es.Payload { return &ValidationFailed{} },
		"otp.validation_succeeded": func() es.Payload { return &ValidationSucceeded{} },
		"otp.deleted":              func() es.Payload { return &SoftDeleted{} },
	})
}

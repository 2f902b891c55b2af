package session

import (
	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
)

type Created struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
	Secret   *string   `json:"secret,omitempty"` // nil => ephemeral session
}

func (*Created) Kind() string { return "session.created" }

type Renewed struct {
	Secret string `json:"secret"`
}

func (*Renewed) Kind() string { return "session.renewed" }

type SignedOut struct{}

func (*SignedOut) Kind() string { return "session.signed_out" }

type Updated struct {
	SetAttrs    map[string]string `json:"set_attrs,omitempty"`
	RemoveAttrs []string          `json:"remove_attrs,omitempty"`
}

func (*Updated) Kind() string { return "session.updated" }

type SoftDeleted struct{}

func (*SoftDeleted) Kind() string { return "session.deleted" }

// Codec returns the payload registry for session streams.
func Codec() es.Codec {
	return es.NewJSONCodec(map[string]func() es.Payload{
		"session.created":    func() es.Payload { return &Created{} },
		"session.renewed":    func() es.Payload { return &Renewed{} },
		"session.signed_out": func() es.Payload { return &SignedOut{} },
		"session.updated":    func() es.Payload { return &Updated{} },
		"session.deleted":    func() es.Payload { return &SoftDeleted{} },
	})
}

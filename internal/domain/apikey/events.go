package apikey

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
)

type Created struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Secret      string    `json:"secret"`
}

func (*Created) Kind() string { return "apikey.created" }

// Updated is the consolidated diff event Update flushes. Untouched fields
// stay at their zero Change value; empty collections stay nil.
type Updated struct {
	Name        es.Change[string]    `json:"name"`
	Description es.Change[string]    `json:"description"`
	ExpiresAt   es.Change[time.Time] `json:"expires_at"`
	SetAttrs    map[string]string    `json:"set_attrs,omitempty"`
	RemoveAttrs []string             `json:"remove_attrs,omitempty"`
	AddRoles    []uuid.UUID          `json:"add_roles,omitempty"`
	RemoveRoles []uuid.UUID          `json:"remove_roles,omitempty"`
}

func (*Updated) Kind() string { return "apikey.updated" }

type Authenticated struct{}

func (*Authenticated) Kind() string { return "apikey.authenticated" }

type SoftDeleted struct{}

func (*SoftDeleted) Kind() string { return "apikey.deleted" }

// Codec returns the payload registry for API key streams.
func Codec() es.Codec {
	return es.NewJSONCodec(map[string]func() es.Payload{
		"apikey.created":       func() es.Payload { return &Created{} },
		"apikey.updated":       func() es.Payload { return &Updated{} },
		"apikey.authenticated": func() es.Payload { return &Authenticated{} },
		"apikey.deleted":       func() es.Payload { return &SoftDeleted{} },
	})
}

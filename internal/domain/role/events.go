package role

import (
	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/es/uniq"
)

// UniqueNameKey is the constraint key for role names within a realm.
const UniqueNameKey = "role:name"

type Created struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

func (*Created) Kind() string { return "role.created" }

func (e *Created) UniqueClaims() []uniq.Claim {
	t := e.TenantID
	return []uniq.Claim{{Scope: uniq.Scope{Tenant: &t, Key: UniqueNameKey}, Value: e.Name}}
}

// Updated carries the old name next to the rename so the index entry for it
// can be released once the event commits.
type Updated struct {
	TenantID    uuid.UUID         `json:"tenant_id"`
	Name        es.Change[string] `json:"name"`
	PrevName    string            `json:"prev_name,omitempty"`
	Description es.Change[string] `json:"description"`
}

func (*Updated) Kind() string { return "role.updated" }

func (e *Updated) UniqueClaims() []uniq.Claim {
	name, ok := e.Name.Value()
	if !ok {
		return nil
	}
	t := e.TenantID
	return []uniq.Claim{{Scope: uniq.Scope{Tenant: &t, Key: UniqueNameKey}, Value: name}}
}

func (e *Updated) UniqueReleases() []uniq.Claim {
	if _, ok := e.Name.Value(); !ok || e.PrevName == "" {
		return nil
	}
	t := e.TenantID
	return []uniq.Claim{{Scope: uniq.Scope{Tenant: &t, Key: UniqueNameKey}, Value: e.PrevName}}
}

type SoftDeleted struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name,omitempty"`
}

func (*SoftDeleted) Kind() string { return "role.deleted" }

func (e *SoftDeleted) UniqueReleases() []uniq.Claim {
	if e.Name == "" {
		return nil
	}
	t := e.TenantID
	return []uniq.Claim{{Scope: uniq.Scope{Tenant: &t, Key: UniqueNameKey}, Value: e.Name}}
}

// Codec returns the payload registry for role streams.
func Codec() es.Codec {
	return es.NewJSONCodec(map[string]func() es.Payload{
		"role.created": func() es.Payload { return &Created{} },
		"role.updated": func() es.Payload { return &Updated{} },
		"role.deleted": func() es.Payload { return &SoftDeleted{} },
	})
}

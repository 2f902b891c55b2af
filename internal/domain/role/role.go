// Package role models the tenant-scoped roles API keys and users are
// granted. A role's name is unique within its realm.
package role

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
)

const TypeTag = "Role"

var ErrNameRequired = errors.New("role name required")

// Ref points at a role from another aggregate. It keeps the tenant visible
// so cross-realm grants can be rejected without loading the role.
type Ref struct {
	ID     uuid.UUID
	Tenant uuid.UUID
}

type Role struct {
	es.Root

	id          uuid.UUID
	tenant      uuid.UUID
	name        string
	description string

	staged *staged
}

type staged struct {
	name        es.Change[string]
	description es.Change[string]
}

func (s *staged) empty() bool {
	return s == nil || (s.name.IsZero() && s.description.IsZero())
}

// Address computes the stream address of a role.
func Address(id, tenant uuid.UUID) es.StreamAddress {
	t := tenant
	return es.NewStreamAddress(TypeTag, id, &t)
}

// Blank allocates an empty role bound to addr, for replay.
func Blank(addr es.StreamAddress) *Role {
	return &Role{Root: es.NewRoot(addr)}
}

// New creates a role and raises its creation event. Pass a nil id to have
// one generated.
func New(tenant uuid.UUID, name string, actor *uuid.UUID, id *uuid.UUID) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	rid := uuid.New()
	if id != nil {
		rid = *id
	}
	r := Blank(Address(rid, tenant))
	es.Raise(r, &Created{ID: rid, TenantID: tenant, Name: name}, actor)
	return r, nil
}

func (r *Role) ID() uuid.UUID       { return r.id }
func (r *Role) Tenant() uuid.UUID   { return r.tenant }
func (r *Role) Name() string        { return r.name }
func (r *Role) Description() string { return r.description }
func (r *Role) Ref() Ref            { return Ref{ID: r.id, Tenant: r.tenant} }

func (r *Role) stage() *staged {
	if r.staged == nil {
		r.staged = &staged{}
	}
	return r.staged
}

// SetName stages a rename. No-op when the name is unchanged.
func (r *Role) SetName(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return ErrNameRequired
	}
	if v == r.name {
		return nil
	}
	r.stage().name = es.Set(v)
	return nil
}

// SetDescription stages a description change; blank clears it.
func (r *Role) SetDescription(v string) {
	v = strings.TrimSpace(v)
	switch {
	case v == r.description:
	case v == "":
		r.stage().description = es.Clear[string]()
	default:
		r.stage().description = es.Set(v)
	}
}

// Update flushes staged changes as one consolidated event. Returns false
// when nothing was staged.
func (r *Role) Update(actor *uuid.UUID) bool {
	if r.staged.empty() {
		return false
	}
	ev := &Updated{TenantID: r.tenant, Name: r.staged.name, Description: r.staged.description}
	if _, ok := r.staged.name.Value(); ok {
		// r.name sigue siendo el anterior: Raise aplica después
		ev.PrevName = r.name
	}
	r.staged = nil
	es.Raise(r, ev, actor)
	return true
}

// Delete soft-deletes the role and releases its name. Idempotent.
func (r *Role) Delete(actor *uuid.UUID) {
	if r.Deleted() {
		return
	}
	es.Raise(r, &SoftDeleted{TenantID: r.tenant, Name: r.name}, actor)
}

func (r *Role) Apply(env es.Envelope) {
	switch p := env.Payload.(type) {
	case *Created:
		r.id = p.ID
		r.tenant = p.TenantID
		r.name = p.Name
		r.description = p.Description
	case *Updated:
		p.Name.Apply(&r.name)
		p.Description.Apply(&r.description)
	case *SoftDeleted:
		r.MarkDeleted()
	}
}

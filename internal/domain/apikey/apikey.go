// Package apikey models realm-scoped API keys: a bearer secret, an optional
// expiry that can only tighten, role grants and custom attributes.
package apikey

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/domain/attrs"
	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/security/secret"
)

const TypeTag = "ApiKey"

var (
	ErrNameRequired    = errors.New("api key name required")
	ErrSecretRequired  = errors.New("api key secret required")
	ErrExpiryInPast    = errors.New("expiry must be in the future")
	ErrExpiryCleared   = errors.New("expiry cannot be cleared once set")
	ErrExpiryExtended  = errors.New("expiry can only be moved earlier")
	ErrExpired         = errors.New("api key expired")
	ErrIncorrectSecret = errors.New("incorrect secret")
	ErrTenantMismatch  = errors.New("role belongs to a different realm")
)

// timeNow is swapped in tests that need deterministic expiry checks.
var timeNow = time.Now

type APIKey struct {
	es.Root

	id              uuid.UUID
	tenant          uuid.UUID
	name            string
	description     string
	expiresAt       *time.Time
	authenticatedAt *time.Time
	secret          secret.Secret
	attributes      attrs.Map
	roles           map[uuid.UUID]struct{}

	staged *staged
}

type staged struct {
	name        es.Change[string]
	description es.Change[string]
	expiry      es.Change[time.Time]
	attrsSet    map[string]string
	attrsDel    map[string]struct{}
	rolesAdd    map[uuid.UUID]struct{}
	rolesDel    map[uuid.UUID]struct{}
}

func (s *staged) empty() bool {
	return s == nil ||
		(s.name.IsZero() && s.description.IsZero() && s.expiry.IsZero() &&
			len(s.attrsSet) == 0 && len(s.attrsDel) == 0 &&
			len(s.rolesAdd) == 0 && len(s.rolesDel) == 0)
}

// Address computes the stream address of an API key.
func Address(id, tenant uuid.UUID) es.StreamAddress {
	t := tenant
	return es.NewStreamAddress(TypeTag, id, &t)
}

// Blank allocates an empty key bound to addr, for replay.
func Blank(addr es.StreamAddress) *APIKey {
	return &APIKey{Root: es.NewRoot(addr)}
}

// New creates an API key and raises its creation event. Pass a nil id to
// have one generated.
func New(tenant uuid.UUID, sec secret.Secret, name string, actor *uuid.UUID, id *uuid.UUID) (*APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if sec == nil {
		return nil, ErrSecretRequired
	}
	kid := uuid.New()
	if id != nil {
		kid = *id
	}
	k := Blank(Address(kid, tenant))
	es.Raise(k, &Created{ID: kid, TenantID: tenant, Name: name, Secret: sec.Encode()}, actor)
	return k, nil
}

func (k *APIKey) ID() uuid.UUID               { return k.id }
func (k *APIKey) Tenant() uuid.UUID           { return k.tenant }
func (k *APIKey) Name() string                { return k.name }
func (k *APIKey) Description() string         { return k.description }
func (k *APIKey) ExpiresAt() *time.Time       { return k.expiresAt }
func (k *APIKey) AuthenticatedAt() *time.Time { return k.authenticatedAt }
func (k *APIKey) Attributes() attrs.Map       { return k.attributes.Clone() }

// Roles returns the granted role ids, sorted for determinism.
func (k *APIKey) Roles() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(k.roles))
	for id := range k.roles {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (k *APIKey) HasRole(id uuid.UUID) bool {
	_, ok := k.roles[id]
	return ok
}

func (k *APIKey) stage() *staged {
	if k.staged == nil {
		k.staged = &staged{
			attrsSet: make(map[string]string),
			attrsDel: make(map[string]struct{}),
			rolesAdd: make(map[uuid.UUID]struct{}),
			rolesDel: make(map[uuid.UUID]struct{}),
		}
	}
	return k.staged
}

// SetName stages a rename. No-op when unchanged.
func (k *APIKey) SetName(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return ErrNameRequired
	}
	if v == k.name {
		return nil
	}
	k.stage().name = es.Set(v)
	return nil
}

// SetDescription stages a description change; blank clears it.
func (k *APIKey) SetDescription(v string) {
	v = strings.TrimSpace(v)
	switch {
	case v == k.description:
	case v == "":
		k.stage().description = es.Clear[string]()
	default:
		k.stage().description = es.Set(v)
	}
}

// SetExpiry stages a new expiry under the monotonic-tightening rule: an
// unset expiry may be set once to any future instant; a set expiry may only
// move earlier. It can never be cleared, never extended, never put in the
// past. Validation runs against the effective expiry — a staged value counts
// as much as an applied one, so a second call before Update cannot loosen
// the first. Nothing is raised when the value is unchanged.
func (k *APIKey) SetExpiry(v *time.Time) error {
	eff := k.effectiveExpiry()
	if v == nil {
		if eff == nil {
			return nil
		}
		return ErrExpiryCleared
	}
	t := v.UTC()
	if !t.After(timeNow()) {
		return ErrExpiryInPast
	}
	if eff != nil {
		switch {
		case t.Equal(*eff):
			return nil
		case t.After(*eff):
			return ErrExpiryExtended
		}
	}
	k.stage().expiry = es.Set(t)
	return nil
}

// effectiveExpiry folds a staged expiry over the applied one.
func (k *APIKey) effectiveExpiry() *time.Time {
	if k.staged != nil {
		if t, ok := k.staged.expiry.Value(); ok {
			return &t
		}
	}
	return k.expiresAt
}

// AddRole stages a role grant. The role must belong to the key's realm.
// Granting an already-held role is a no-op.
func (k *APIKey) AddRole(ref role.Ref) error {
	if ref.Tenant != k.tenant {
		return ErrTenantMismatch
	}
	if k.effectiveHasRole(ref.ID) {
		return nil
	}
	s := k.stage()
	if _, ok := s.rolesDel[ref.ID]; ok {
		delete(s.rolesDel, ref.ID)
		return nil
	}
	s.rolesAdd[ref.ID] = struct{}{}
	return nil
}

// RemoveRole stages a role revocation. Revoking an absent role is a no-op.
func (k *APIKey) RemoveRole(ref role.Ref) error {
	if ref.Tenant != k.tenant {
		return ErrTenantMismatch
	}
	if !k.effectiveHasRole(ref.ID) {
		return nil
	}
	s := k.stage()
	if _, ok := s.rolesAdd[ref.ID]; ok {
		delete(s.rolesAdd, ref.ID)
		return nil
	}
	s.rolesDel[ref.ID] = struct{}{}
	return nil
}

// SetAttribute stages one attribute change. A blank value removes the key;
// anything else is trimmed and stored. Unchanged values stage nothing.
func (k *APIKey) SetAttribute(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	value = attrs.Clean(value)
	cur, exists := k.effectiveAttr(key)
	if value == "" {
		if !exists {
			return
		}
		s := k.stage()
		delete(s.attrsSet, key)
		if _, wasStored := k.attributes[key]; wasStored {
			s.attrsDel[key] = struct{}{}
		}
		return
	}
	if exists && cur == value {
		return
	}
	s := k.stage()
	delete(s.attrsDel, key)
	s.attrsSet[key] = value
}

// Update flushes every staged change as one consolidated event. Returns
// false when nothing was staged.
func (k *APIKey) Update(actor *uuid.UUID) bool {
	if k.staged.empty() {
		return false
	}
	s := k.staged
	ev := &Updated{
		Name:        s.name,
		Description: s.description,
		ExpiresAt:   s.expiry,
		SetAttrs:    copyAttrs(s.attrsSet),
		RemoveAttrs: sortedKeys(s.attrsDel),
		AddRoles:    sortedIDs(s.rolesAdd),
		RemoveRoles: sortedIDs(s.rolesDel),
	}
	k.staged = nil
	es.Raise(k, ev, actor)
	return true
}

// Authenticate checks candidate against the key's secret and records the
// authentication. A key past its expiry always fails, regardless of the
// candidate. With no actor, the key authenticates itself.
func (k *APIKey) Authenticate(candidate string, actor *uuid.UUID) error {
	if k.expiresAt != nil && !timeNow().Before(*k.expiresAt) {
		return ErrExpired
	}
	if k.secret == nil || !k.secret.Matches(candidate) {
		return ErrIncorrectSecret
	}
	if actor == nil {
		self := k.id
		actor = &self
	}
	es.Raise(k, &Authenticated{}, actor)
	return nil
}

// Delete soft-deletes the key. Idempotent.
func (k *APIKey) Delete(actor *uuid.UUID) {
	if k.Deleted() {
		return
	}
	es.Raise(k, &SoftDeleted{}, actor)
}

func (k *APIKey) Apply(env es.Envelope) {
	switch p := env.Payload.(type) {
	case *Created:
		k.id = p.ID
		k.tenant = p.TenantID
		k.name = p.Name
		k.description = p.Description
		k.secret = secret.Decode(p.Secret)
		k.attributes = make(attrs.Map)
		k.roles = make(map[uuid.UUID]struct{})
	case *Updated:
		p.Name.Apply(&k.name)
		p.Description.Apply(&k.description)
		p.ExpiresAt.ApplyPtr(&k.expiresAt)
		for key, v := range p.SetAttrs {
			k.attributes[key] = v
		}
		for _, key := range p.RemoveAttrs {
			delete(k.attributes, key)
		}
		for _, id := range p.AddRoles {
			k.roles[id] = struct{}{}
		}
		for _, id := range p.RemoveRoles {
			delete(k.roles, id)
		}
	case *Authenticated:
		at := env.At
		k.authenticatedAt = &at
	case *SoftDeleted:
		k.MarkDeleted()
	}
}

// effectiveHasRole folds staged grants and revocations over the applied set.
func (k *APIKey) effectiveHasRole(id uuid.UUID) bool {
	if k.staged != nil {
		if _, ok := k.staged.rolesAdd[id]; ok {
			return true
		}
		if _, ok := k.staged.rolesDel[id]; ok {
			return false
		}
	}
	return k.HasRole(id)
}

func (k *APIKey) effectiveAttr(key string) (string, bool) {
	if k.staged != nil {
		if v, ok := k.staged.attrsSet[key]; ok {
			return v, true
		}
		if _, ok := k.staged.attrsDel[key]; ok {
			return "", false
		}
	}
	v, ok := k.attributes[key]
	return v, ok
}

func copyAttrs(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(m map[uuid.UUID]struct{}) []uuid.UUID {
	if len(m) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

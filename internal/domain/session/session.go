// Package session models user sessions with refresh-token rotation. A
// session is persistent (refresh-capable) iff it carries a secret; exactly
// one refresh secret is valid at any time.
package session

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/domain/attrs"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/security/secret"
)

const TypeTag = "Session"

var (
	ErrNotActive       = errors.New("session is not active")
	ErrNotPersistent   = errors.New("session has no refresh secret")
	ErrIncorrectSecret = errors.New("incorrect refresh secret")
)

type Session struct {
	es.Root

	id         uuid.UUID
	tenant     uuid.UUID
	user       uuid.UUID
	secret     secret.Secret // nil => ephemeral
	active     bool
	attributes attrs.Map

	staged *staged
}

type staged struct {
	attrsSet map[string]string
	attrsDel map[string]struct{}
}

func (s *staged) empty() bool {
	return s == nil || (len(s.attrsSet) == 0 && len(s.attrsDel) == 0)
}

// Address computes the stream address of a session.
func Address(id, tenant uuid.UUID) es.StreamAddress {
	t := tenant
	return es.NewStreamAddress(TypeTag, id, &t)
}

// Blank allocates an empty session bound to addr, for replay.
func Blank(addr es.StreamAddress) *Session {
	return &Session{Root: es.NewRoot(addr)}
}

// New creates a session for user. Supplying a secret makes the session
// persistent (renewable); nil creates an ephemeral one. Pass a nil id to
// have one generated.
func New(tenant, user uuid.UUID, sec secret.Secret, actor *uuid.UUID, id *uuid.UUID) *Session {
	sid := uuid.New()
	if id != nil {
		sid = *id
	}
	var enc *string
	if sec != nil {
		e := sec.Encode()
		enc = &e
	}
	s := Blank(Address(sid, tenant))
	es.Raise(s, &Created{ID: sid, TenantID: tenant, UserID: user, Secret: enc}, actor)
	return s
}

func (s *Session) ID() uuid.UUID         { return s.id }
func (s *Session) Tenant() uuid.UUID     { return s.tenant }
func (s *Session) User() uuid.UUID       { return s.user }
func (s *Session) Active() bool          { return s.active }
func (s *Session) Persistent() bool      { return s.secret != nil }
func (s *Session) Attributes() attrs.Map { return s.attributes.Clone() }

// Renew rotates the refresh secret: current must match the stored secret,
// which next then replaces atomically. After a successful renewal the prior
// secret is permanently invalid; there is no two-token grace window.
func (s *Session) Renew(current string, next secret.Secret, actor *uuid.UUID) error {
	if !s.active {
		return ErrNotActive
	}
	if s.secret == nil {
		return ErrNotPersistent
	}
	if !s.secret.Matches(current) {
		return ErrIncorrectSecret
	}
	es.Raise(s, &Renewed{Secret: next.Encode()}, actor)
	return nil
}

// SignOut deactivates the session. Inactive is terminal; signing out twice
// is a no-op.
func (s *Session) SignOut(actor *uuid.UUID) {
	if !s.active {
		return
	}
	es.Raise(s, &SignedOut{}, actor)
}

// SetAttribute stages one attribute change; blank removes, Update flushes.
func (s *Session) SetAttribute(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	value = attrs.Clean(value)
	cur, exists := s.effectiveAttr(key)
	if value == "" {
		if !exists {
			return
		}
		st := s.stage()
		delete(st.attrsSet, key)
		if _, wasStored := s.attributes[key]; wasStored {
			st.attrsDel[key] = struct{}{}
		}
		return
	}
	if exists && cur == value {
		return
	}
	st := s.stage()
	delete(st.attrsDel, key)
	st.attrsSet[key] = value
}

// Update flushes staged attribute changes as one event.
func (s *Session) Update(actor *uuid.UUID) bool {
	if s.staged.empty() {
		return false
	}
	st := s.staged
	removed := make([]string, 0, len(st.attrsDel))
	for k := range st.attrsDel {
		removed = append(removed, k)
	}
	set := make(map[string]string, len(st.attrsSet))
	for k, v := range st.attrsSet {
		set[k] = v
	}
	s.staged = nil
	es.Raise(s, &Updated{SetAttrs: set, RemoveAttrs: removed}, actor)
	return true
}

// Delete soft-deletes the session. Idempotent.
func (s *Session) Delete(actor *uuid.UUID) {
	if s.Deleted() {
		return
	}
	es.Raise(s, &SoftDeleted{}, actor)
}

func (s *Session) Apply(env es.Envelope) {
	switch p := env.Payload.(type) {
	case *Created:
		s.id = p.ID
		s.tenant = p.TenantID
		s.user = p.UserID
		s.active = true
		s.attributes = make(attrs.Map)
		if p.Secret != nil {
			s.secret = secret.Decode(*p.Secret)
		}
	case *Renewed:
		s.secret = secret.Decode(p.Secret)
	case *SignedOut:
		s.active = false
	case *Updated:
		for k, v := range p.SetAttrs {
			s.attributes[k] = v
		}
		for _, k := range p.RemoveAttrs {
			delete(s.attributes, k)
		}
	case *SoftDeleted:
		s.MarkDeleted()
	}
}

func (s *Session) stage() *staged {
	if s.staged == nil {
		s.staged = &staged{
			attrsSet: make(map[string]string),
			attrsDel: make(map[string]struct{}),
		}
	}
	return s.staged
}

func (s *Session) effectiveAttr(key string) (string, bool) {
	if s.staged != nil {
		if v, ok := s.staged.attrsSet[key]; ok {
			return v, true
		}
		if _, ok := s.staged.attrsDel[key]; ok {
			return "", false
		}
	}
	v, ok := s.attributes[key]
	return v, ok
}

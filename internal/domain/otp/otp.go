// Package otp models attempt-limited one-time-password challenges.
//
// A challenge moves through four observable states: Pending (validation
// still possible), Expired (past its expiry without success), Exhausted
// (attempt ceiling reached without success) and Consumed (a validation
// succeeded; terminal).
package otp

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/security/secret"
)

const TypeTag = "OneTimePassword"

var (
	ErrSecretRequired   = errors.New("one-time password secret required")
	ErrExpiryInPast     = errors.New("expiry must be in the future")
	ErrMaxAttemptsRange = errors.New("max attempts must be at least 1")
	ErrAlreadyUsed      = errors.New("one-time password already used")
	ErrExpired          = errors.New("one-time password expired")
	ErrMaxAttempts      = errors.New("max validation attempts reached")
)

// timeNow is swapped in tests that need deterministic expiry checks.
var timeNow = time.Now

// State names the observable lifecycle position of a challenge.
type State string

const (
	StatePending   State = "pending"
	StateExpired   State = "expired"
	StateExhausted State = "exhausted"
	StateConsumed  State = "consumed"
)

// Options carries the optional creation parameters.
type Options struct {
	ExpiresAt   *time.Time
	MaxAttempts *int
	UserID      *uuid.UUID
}

type OneTimePassword struct {
	es.Root

	id          uuid.UUID
	tenant      uuid.UUID
	user        *uuid.UUID
	expiresAt   *time.Time
	maxAttempts *int
	attempts    int
	succeeded   bool
	secret      secret.Secret
}

// Address computes the stream address of a challenge.
func Address(id, tenant uuid.UUID) es.StreamAddress {
	t := tenant
	return es.NewStreamAddress(TypeTag, id, &t)
}

// Blank allocates an empty challenge bound to addr, for replay.
func Blank(addr es.StreamAddress) *OneTimePassword {
	return &OneTimePassword{Root: es.NewRoot(addr)}
}

// New creates a challenge. The expiry, when given, must be strictly in the
// future; the attempt ceiling, when given, must be at least 1 (absent means
// unlimited). Pass a nil id to have one generated.
func New(tenant uuid.UUID, sec secret.Secret, opts Options, actor *uuid.UUID, id *uuid.UUID) (*OneTimePassword, error) {
	if sec == nil {
		return nil, ErrSecretRequired
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(timeNow()) {
		return nil, ErrExpiryInPast
	}
	if opts.MaxAttempts != nil && *opts.MaxAttempts < 1 {
		return nil, ErrMaxAttemptsRange
	}
	oid := uuid.New()
	if id != nil {
		oid = *id
	}
	o := Blank(Address(oid, tenant))
	es.Raise(o, &Created{
		ID:          oid,
		TenantID:    tenant,
		UserID:      opts.UserID,
		ExpiresAt:   opts.ExpiresAt,
		MaxAttempts: opts.MaxAttempts,
		Secret:      sec.Encode(),
	}, actor)
	return o, nil
}

func (o *OneTimePassword) ID() uuid.UUID         { return o.id }
func (o *OneTimePassword) Tenant() uuid.UUID     { return o.tenant }
func (o *OneTimePassword) User() *uuid.UUID      { return o.user }
func (o *OneTimePassword) Attempts() int         { return o.attempts }
func (o *OneTimePassword) Succeeded() bool       { return o.succeeded }
func (o *OneTimePassword) ExpiresAt() *time.Time { return o.expiresAt }

// State derives the lifecycle position from current state and clock.
func (o *OneTimePassword) State() State {
	switch {
	case o.succeeded:
		return StateConsumed
	case o.expiresAt != nil && !timeNow().Before(*o.expiresAt):
		return StateExpired
	case o.maxAttempts != nil && o.attempts >= *o.maxAttempts:
		return StateExhausted
	default:
		return StatePending
	}
}

// Validate checks candidate against the challenge secret. The guards run in
// a fixed order: consumed, expired, exhausted — each a caller-misuse error
// that raises nothing. A wrong guess is the ordinary path: it burns an
// attempt and returns false with no error. A correct guess burns the
// attempt, marks the challenge consumed and returns true.
func (o *OneTimePassword) Validate(candidate string, actor *uuid.UUID) (bool, error) {
	if o.succeeded {
		return false, ErrAlreadyUsed
	}
	if o.expiresAt != nil && !timeNow().Before(*o.expiresAt) {
		return false, ErrExpired
	}
	if o.maxAttempts != nil && o.attempts >= *o.maxAttempts {
		return false, ErrMaxAttempts
	}
	if !o.secret.Matches(candidate) {
		es.Raise(o, &ValidationFailed{}, actor)
		return false, nil
	}
	es.Raise(o, &ValidationSucceeded{}, actor)
	return true, nil
}

// Delete soft-deletes the challenge. Idempotent.
func (o *OneTimePassword) Delete(actor *uuid.UUID) {
	if o.Deleted() {
		return
	}
	es.Raise(o, &SoftDeleted{}, actor)
}

func (o *OneTimePassword) Apply(env es.Envelope) {
	switch p := env.Payload.(type) {
	case *Created:
		o.id = p.ID
		o.tenant = p.TenantID
		o.user = p.UserID
		o.expiresAt = p.ExpiresAt
		o.maxAttempts = p.MaxAttempts
		o.secret = secret.Decode(p.Secret)
	case *ValidationFailed:
		o.attempts++
	case *ValidationSucceeded:
		o.attempts++
		o.succeeded = true
	case *SoftDeleted:
		o.MarkDeleted()
	}
}

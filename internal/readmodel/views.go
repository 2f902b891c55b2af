package readmodel

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/domain/apikey"
	"github.com/keyfold/keyfold/internal/domain/otp"
	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/domain/session"
)

// APIKeyView is the projection handlers return for an API key. The secret
// never leaves the aggregate.
type APIKeyView struct {
	ID              uuid.UUID         `json:"id"`
	TenantID        uuid.UUID         `json:"tenant_id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	AuthenticatedAt *time.Time        `json:"authenticated_at,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Roles           []uuid.UUID       `json:"roles,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func ReadAPIKey(k *apikey.APIKey) *APIKeyView {
	return &APIKeyView{
		ID:              k.ID(),
		TenantID:        k.Tenant(),
		Name:            k.Name(),
		Description:     k.Description(),
		ExpiresAt:       k.ExpiresAt(),
		AuthenticatedAt: k.AuthenticatedAt(),
		Attributes:      k.Attributes(),
		Roles:           k.Roles(),
		Version:         k.Version(),
		CreatedAt:       k.CreatedOn(),
		UpdatedAt:       k.UpdatedOn(),
	}
}

type RoleView struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ReadRole(r *role.Role) *RoleView {
	return &RoleView{
		ID:          r.ID(),
		TenantID:    r.Tenant(),
		Name:        r.Name(),
		Description: r.Description(),
		Version:     r.Version(),
		CreatedAt:   r.CreatedOn(),
		UpdatedAt:   r.UpdatedOn(),
	}
}

type SessionView struct {
	ID         uuid.UUID         `json:"id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Active     bool              `json:"active"`
	Persistent bool              `json:"persistent"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Version    int64             `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func ReadSession(s *session.Session) *SessionView {
	return &SessionView{
		ID:         s.ID(),
		TenantID:   s.Tenant(),
		UserID:     s.User(),
		Active:     s.Active(),
		Persistent: s.Persistent(),
		Attributes: s.Attributes(),
		Version:    s.Version(),
		CreatedAt:  s.CreatedOn(),
		UpdatedAt:  s.UpdatedOn(),
	}
}

type OTPView struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	State     otp.State  `json:"state"`
	Attempts  int        `json:"attempts"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
}

func ReadOTP(o *otp.OneTimePassword) *OTPView {
	return &OTPView{
		ID:        o.ID(),
		TenantID:  o.Tenant(),
		UserID:    o.User(),
		State:     o.State(),
		Attempts:  o.Attempts(),
		ExpiresAt: o.ExpiresAt(),
		Version:   o.Version(),
		CreatedAt: o.CreatedOn(),
	}
}

package command

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyfold/keyfold/internal/domain/apikey"
	"github.com/keyfold/keyfold/internal/domain/attrs"
	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/observability/logger"
	"github.com/keyfold/keyfold/internal/readmodel"
	"github.com/keyfold/keyfold/internal/security/secret"
	"github.com/keyfold/keyfold/internal/security/token"
)

// ReplaceAPIKeyInput is the full-replacement payload for an API key. Nil
// optional fields are "not carried": the matching aggregate state stays
// untouched. The Attributes and Roles sections only drive a diff when
// non-empty; an explicitly empty collection leaves existing state alone.
type ReplaceAPIKeyInput struct {
	TenantID        uuid.UUID
	ID              *uuid.UUID
	ExpectedVersion *int64
	Name            string
	Description     *string
	ExpiresAt       *time.Time
	Attributes      map[string]string
	Roles           []role.Ref
	Actor           *uuid.UUID
}

// ReplaceAPIKeyResult carries the projection plus, on creation only, the
// bearer token. The raw secret is visible exactly once.
type ReplaceAPIKeyResult struct {
	Key     *readmodel.APIKeyView `json:"key"`
	Created bool                  `json:"created"`
	Token   string                `json:"token,omitempty"`
}

// ReplaceAPIKey creates or fully replaces an API key, emitting only the
// events the diff against the reference snapshot requires.
func (s *Service) ReplaceAPIKey(ctx context.Context, in ReplaceAPIKeyInput) (*ReplaceAPIKeyResult, error) {
	log := logger.From(ctx).With(
		logger.Component("command.apikey"),
		logger.Op("ReplaceAPIKey"),
		logger.TenantID(in.TenantID.String()),
	)

	var bearerToken string
	up := Upsert[*apikey.APIKey]{
		Load: func(ctx context.Context) (*apikey.APIKey, error) {
			return s.keys.Load(ctx, apikey.Address(*in.ID, in.TenantID))
		},
		LoadAt: func(ctx context.Context, version int64) (*apikey.APIKey, error) {
			return s.keys.LoadAt(ctx, apikey.Address(*in.ID, in.TenantID), version)
		},
		Create: func() (*apikey.APIKey, error) {
			sec, raw, err := secret.GenerateBearer(token.SecretLen)
			if err != nil {
				return nil, fmt.Errorf("generate secret: %w", err)
			}
			k, err := apikey.New(in.TenantID, sec, in.Name, in.Actor, in.ID)
			if err != nil {
				return nil, err
			}
			bearerToken = token.APIKey.Encode(k.ID(), raw)
			return k, nil
		},
		Stage: func(target, ref *apikey.APIKey) error {
			return stageAPIKey(target, ref, in)
		},
		Flush: func(target *apikey.APIKey) bool {
			return target.Update(in.Actor)
		},
		Save: func(ctx context.Context, target *apikey.APIKey) error {
			return saveObserved(ctx, s.keys.Save, target)
		},
	}

	key, created, err := up.Run(ctx, in.ID != nil, in.ExpectedVersion)
	if err != nil {
		log.Debug("replace api key failed", logger.Err(err))
		return nil, err
	}
	log.Info("api key replaced", logger.ID(key.ID().String()), zap.Bool("created", created))
	return &ReplaceAPIKeyResult{
		Key:     readmodel.ReadAPIKey(key),
		Created: created,
		Token:   bearerToken,
	}, nil
}

// stageAPIKey diffs the payload against the reference snapshot and stages
// the minimal changes on target. Fields the payload does not carry are left
// alone.
func stageAPIKey(target, ref *apikey.APIKey, in ReplaceAPIKeyInput) error {
	if in.Name != ref.Name() {
		if err := target.SetName(in.Name); err != nil {
			return err
		}
	}
	if in.Description != nil && *in.Description != ref.Description() {
		target.SetDescription(*in.Description)
	}
	if in.ExpiresAt != nil {
		cur := ref.ExpiresAt()
		if cur == nil || !cur.Equal(in.ExpiresAt.UTC()) {
			if err := target.SetExpiry(in.ExpiresAt); err != nil {
				return err
			}
		}
	}
	if len(in.Attributes) > 0 {
		set, removed := attrs.Diff(ref.Attributes(), attrs.Map(in.Attributes))
		for k, v := range set {
			target.SetAttribute(k, v)
		}
		for _, k := range removed {
			target.SetAttribute(k, "")
		}
	}
	if len(in.Roles) > 0 {
		want := make(map[uuid.UUID]role.Ref, len(in.Roles))
		for _, r := range in.Roles {
			want[r.ID] = r
		}
		for id, r := range want {
			if !ref.HasRole(id) {
				if err := target.AddRole(r); err != nil {
					return err
				}
			}
		}
		for _, id := range ref.Roles() {
			if _, ok := want[id]; !ok {
				if err := target.RemoveRole(role.Ref{ID: id, Tenant: target.Tenant()}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DeleteAPIKey soft-deletes a key. Deleting twice commits nothing.
func (s *Service) DeleteAPIKey(ctx context.Context, tenant, id uuid.UUID, actor *uuid.UUID) error {
	key, err := s.keys.Load(ctx, apikey.Address(id, tenant))
	if err != nil {
		return err
	}
	key.Delete(actor)
	return saveObserved(ctx, s.keys.Save, key)
}

// AuthResult is returned after a successful credential check.
type AuthResult struct {
	SubjectID   uuid.UUID `json:"subject_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	AccessToken string    `json:"access_token"`
}

// AuthenticateAPIKey resolves a bearer token within the caller's realm,
// verifies the secret and records the authentication. The realm comes from
// the caller's context, never from the token, so a token replayed under
// another realm resolves to nothing.
func (s *Service) AuthenticateAPIKey(ctx context.Context, tenant uuid.UUID, bearer string) (*AuthResult, error) {
	log := logger.From(ctx).With(
		logger.Component("command.apikey"),
		logger.Op("AuthenticateAPIKey"),
		logger.TenantID(tenant.String()),
	)

	id, sec, err := token.APIKey.Decode(bearer)
	if err != nil {
		metrics.CredentialFailures.WithLabelValues("apikey", "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	key, err := s.keys.Load(ctx, apikey.Address(id, tenant))
	if errors.Is(err, es.ErrNotFound) {
		metrics.CredentialFailures.WithLabelValues("apikey", "unknown").Inc()
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	candidate := base64.RawURLEncoding.EncodeToString(sec)
	if err := key.Authenticate(candidate, nil); err != nil {
		metrics.CredentialFailures.WithLabelValues("apikey", failureReason(err)).Inc()
		log.Debug("api key authentication rejected", logger.Err(err))
		return nil, err
	}
	if err := saveObserved(ctx, s.keys.Save, key); err != nil {
		return nil, err
	}

	access, err := s.access.Issue(key.ID(), tenant, "apikey")
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	log.Info("api key authenticated", logger.ID(key.ID().String()))
	return &AuthResult{SubjectID: key.ID(), TenantID: tenant, AccessToken: access}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apikey.ErrExpired):
		return "expired"
	case errors.Is(err, apikey.ErrIncorrectSecret):
		return "incorrect_secret"
	default:
		return "other"
	}
}

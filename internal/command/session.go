package command

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/domain/session"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/observability/logger"
	"github.com/keyfold/keyfold/internal/readmodel"
	"github.com/keyfold/keyfold/internal/security/secret"
	"github.com/keyfold/keyfold/internal/security/token"
)

// StartSessionInput creates a session for an already-authenticated user.
type StartSessionInput struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Persistent bool
	Attributes map[string]string
	Actor      *uuid.UUID
}

// SessionResult carries the projection plus the credentials minted for it.
// RefreshToken is only set for persistent sessions, and only when the
// underlying secret was (re)generated in this call.
type SessionResult struct {
	Session      *readmodel.SessionView `json:"session"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	AccessToken  string                 `json:"access_token,omitempty"`
}

// StartSession opens a session. Persistent sessions get a rotating refresh
// secret and the matching refresh token.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Component("command.session"),
		logger.Op("StartSession"),
		logger.TenantID(in.TenantID.String()),
	)

	var (
		sec     secret.Secret
		refresh string
	)
	sid := uuid.New()
	if in.Persistent {
		var raw []byte
		var err error
		sec, raw, err = secret.GenerateBearer(token.SecretLen)
		if err != nil {
			return nil, fmt.Errorf("generate refresh secret: %w", err)
		}
		refresh = token.Refresh.Encode(sid, raw)
	}

	sess := session.New(in.TenantID, in.UserID, sec, in.Actor, &sid)
	for k, v := range in.Attributes {
		sess.SetAttribute(k, v)
	}
	sess.Update(in.Actor)

	if err := saveObserved(ctx, s.sessions.Save, sess); err != nil {
		return nil, err
	}

	access, err := s.access.Issue(in.UserID, in.TenantID, "session")
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	log.Info("session started", logger.ID(sid.String()), logger.UserID(in.UserID.String()))
	return &SessionResult{
		Session:      readmodel.ReadSession(sess),
		RefreshToken: refresh,
		AccessToken:  access,
	}, nil
}

// RenewSession rotates a persistent session's refresh secret. The presented
// token must carry the one currently valid secret; after success the prior
// secret is dead even if the new token never reaches the client.
func (s *Service) RenewSession(ctx context.Context, tenant uuid.UUID, refreshToken string) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Component("command.session"),
		logger.Op("RenewSession"),
		logger.TenantID(tenant.String()),
	)

	id, sec, err := token.Refresh.Decode(refreshToken)
	if err != nil {
		metrics.CredentialFailures.WithLabelValues("session", "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sess, err := s.sessions.Load(ctx, session.Address(id, tenant))
	if errors.Is(err, es.ErrNotFound) {
		metrics.CredentialFailures.WithLabelValues("session", "unknown").Inc()
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	next, raw, err := secret.GenerateBearer(token.SecretLen)
	if err != nil {
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	candidate := base64.RawURLEncoding.EncodeToString(sec)
	if err := sess.Renew(candidate, next, nil); err != nil {
		metrics.CredentialFailures.WithLabelValues("session", renewReason(err)).Inc()
		log.Debug("session renewal rejected", logger.Err(err))
		return nil, err
	}
	if err := saveObserved(ctx, s.sessions.Save, sess); err != nil {
		return nil, err
	}

	access, err := s.access.Issue(sess.User(), tenant, "session")
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	log.Info("session renewed", logger.ID(sess.ID().String()))
	return &SessionResult{
		Session:      readmodel.ReadSession(sess),
		RefreshToken: token.Refresh.Encode(sess.ID(), raw),
		AccessToken:  access,
	}, nil
}

// SignOutSession deactivates a session. Signing out an already-inactive
// session commits nothing.
func (s *Service) SignOutSession(ctx context.Context, tenant, id uuid.UUID, actor *uuid.UUID) error {
	sess, err := s.sessions.Load(ctx, session.Address(id, tenant))
	if err != nil {
		return err
	}
	sess.SignOut(actor)
	return saveObserved(ctx, s.sessions.Save, sess)
}

// DeleteSession soft-deletes a session record. The stream survives for
// audit; deleting twice commits nothing.
func (s *Service) DeleteSession(ctx context.Context, tenant, id uuid.UUID, actor *uuid.UUID) error {
	sess, err := s.sessions.Load(ctx, session.Address(id, tenant))
	if err != nil {
		return err
	}
	sess.Delete(actor)
	return saveObserved(ctx, s.sessions.Save, sess)
}

func renewReason(err error) string {
	switch {
	case errors.Is(err, session.ErrNotActive):
		return "not_active"
	case errors.Is(err, session.ErrNotPersistent):
		return "not_persistent"
	case errors.Is(err, session.ErrIncorrectSecret):
		return "incorrect_secret"
	default:
		return "other"
	}
}

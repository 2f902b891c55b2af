package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyfold/keyfold/internal/domain/otp"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/observability/logger"
	"github.com/keyfold/keyfold/internal/readmodel"
	"github.com/keyfold/keyfold/internal/security/secret"
)

// CreateOTPInput creates an attempt-limited challenge. Code is the plain
// value delivered to the user out of band; only its hash is stored.
type CreateOTPInput struct {
	TenantID    uuid.UUID
	Code        string
	ExpiresAt   *time.Time
	MaxAttempts *int
	UserID      *uuid.UUID
	Actor       *uuid.UUID
}

func (s *Service) CreateOTP(ctx context.Context, in CreateOTPInput) (*readmodel.OTPView, error) {
	log := logger.From(ctx).With(
		logger.Component("command.otp"),
		logger.Op("CreateOTP"),
		logger.TenantID(in.TenantID.String()),
	)

	sec, err := secret.FromPlain(in.Code)
	if err != nil {
		return nil, err
	}
	o, err := otp.New(in.TenantID, sec, otp.Options{
		ExpiresAt:   in.ExpiresAt,
		MaxAttempts: in.MaxAttempts,
		UserID:      in.UserID,
	}, in.Actor, nil)
	if err != nil {
		return nil, err
	}
	if err := saveObserved(ctx, s.otps.Save, o); err != nil {
		return nil, err
	}
	log.Info("one-time password created", logger.ID(o.ID().String()))
	return readmodel.ReadOTP(o), nil
}

// ValidateOTP runs one validation attempt. Wrong guesses burn an attempt and
// return false without error; consumed, expired and exhausted challenges
// fail loudly without recording anything.
func (s *Service) ValidateOTP(ctx context.Context, tenant, id uuid.UUID, candidate string, actor *uuid.UUID) (bool, error) {
	log := logger.From(ctx).With(
		logger.Component("command.otp"),
		logger.Op("ValidateOTP"),
		logger.TenantID(tenant.String()),
	)

	o, err := s.otps.Load(ctx, otp.Address(id, tenant))
	if err != nil {
		return false, err
	}
	ok, err := o.Validate(candidate, actor)
	if err != nil {
		metrics.CredentialFailures.WithLabelValues("otp", otpReason(err)).Inc()
		log.Debug("otp validation refused", logger.Err(err))
		return false, err
	}
	if err := saveObserved(ctx, s.otps.Save, o); err != nil {
		return false, err
	}
	if !ok {
		metrics.CredentialFailures.WithLabelValues("otp", "wrong_code").Inc()
	}
	log.Info("otp validation attempt", logger.ID(id.String()), zap.Bool("ok", ok))
	return ok, nil
}

// DeleteOTP soft-deletes a challenge. Deleting twice commits nothing.
func (s *Service) DeleteOTP(ctx context.Context, tenant, id uuid.UUID, actor *uuid.UUID) error {
	o, err := s.otps.Load(ctx, otp.Address(id, tenant))
	if err != nil {
		return err
	}
	o.Delete(actor)
	return saveObserved(ctx, s.otps.Save, o)
}

func otpReason(err error) string {
	switch {
	case errors.Is(err, otp.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, otp.ErrExpired):
		return "expired"
	case errors.Is(err, otp.ErrMaxAttempts):
		return "max_attempts"
	default:
		return "other"
	}
}

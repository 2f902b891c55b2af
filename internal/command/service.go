// Package command implements the write-side operations of the identity
// kernel: create-or-replace reconciliation for realm entities and the three
// credential flows (API key, session, one-time password). Each operation
// loads a fresh aggregate, mutates it locally and saves it; concurrency
// control is purely optimistic and conflicts surface to the caller.
package command

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/domain/apikey"
	"github.com/keyfold/keyfold/internal/domain/otp"
	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/domain/session"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/es/uniq"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/readmodel"
	"github.com/keyfold/keyfold/internal/security/accesstoken"
)

// ErrInvalidToken covers every way a bearer credential can fail to resolve:
// bad encoding, unknown id, or an id replayed under the wrong realm. Kept
// deliberately coarse so responses do not leak which part failed.
var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	keys      *es.Repository[*apikey.APIKey]
	roles     *es.Repository[*role.Role]
	roleGuard *uniq.Guard[*role.Role]
	sessions  *es.Repository[*session.Session]
	otps      *es.Repository[*otp.OneTimePassword]
	index     readmodel.Store
	access    *accesstoken.Issuer
}

// Deps wires the command layer to its collaborators.
type Deps struct {
	Log    es.Log
	Index  readmodel.Store
	Access *accesstoken.Issuer
}

func NewService(d Deps) *Service {
	roles := es.NewRepository(d.Log, role.Codec(), role.Blank)
	return &Service{
		keys:      es.NewRepository(d.Log, apikey.Codec(), apikey.Blank),
		roles:     roles,
		roleGuard: uniq.NewGuard(roles, d.Index, func(r *role.Role) uuid.UUID { return r.ID() }),
		sessions:  es.NewRepository(d.Log, session.Codec(), session.Blank),
		otps:      es.NewRepository(d.Log, otp.Codec(), otp.Blank),
		index:     d.Index,
		access:    d.Access,
	}
}

// saveObserved saves the aggregate and records append/conflict metrics.
func saveObserved[T es.Aggregate](ctx context.Context, save func(context.Context, ...T) error, agg T) error {
	pending := len(agg.Base().Uncommitted())
	err := save(ctx, agg)
	if err == nil {
		metrics.EventsAppended.Add(float64(pending))
	}
	return observeSave(err)
}

// observeSave records conflict metrics and passes the error through.
func observeSave(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, es.ErrVersionConflict) {
		metrics.VersionConflicts.Inc()
		return err
	}
	var conflict *uniq.ConflictError
	if errors.As(err, &conflict) {
		metrics.UniqueConflicts.Inc()
	}
	return err
}

package command

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/observability/logger"
	"github.com/keyfold/keyfold/internal/readmodel"
)

// ReplaceRoleInput is the full-replacement payload for a role.
type ReplaceRoleInput struct {
	TenantID        uuid.UUID
	ID              *uuid.UUID
	ExpectedVersion *int64
	Name            string
	Description     *string
	Actor           *uuid.UUID
}

// ReplaceRole creates or fully replaces a role. The save goes through the
// uniqueness guard: a name already held by another role in the realm aborts
// the commit with a conflict naming the holder.
func (s *Service) ReplaceRole(ctx context.Context, in ReplaceRoleInput) (*readmodel.RoleView, bool, error) {
	log := logger.From(ctx).With(
		logger.Component("command.role"),
		logger.Op("ReplaceRole"),
		logger.TenantID(in.TenantID.String()),
	)

	up := Upsert[*role.Role]{
		Load: func(ctx context.Context) (*role.Role, error) {
			return s.roles.Load(ctx, role.Address(*in.ID, in.TenantID))
		},
		LoadAt: func(ctx context.Context, version int64) (*role.Role, error) {
			return s.roles.LoadAt(ctx, role.Address(*in.ID, in.TenantID), version)
		},
		Create: func() (*role.Role, error) {
			return role.New(in.TenantID, in.Name, in.Actor, in.ID)
		},
		Stage: func(target, ref *role.Role) error {
			if in.Name != ref.Name() {
				if err := target.SetName(in.Name); err != nil {
					return err
				}
			}
			if in.Description != nil && *in.Description != ref.Description() {
				target.SetDescription(*in.Description)
			}
			return nil
		},
		Flush: func(target *role.Role) bool {
			return target.Update(in.Actor)
		},
		Save: func(ctx context.Context, target *role.Role) error {
			return s.saveRole(ctx, target)
		},
	}

	r, created, err := up.Run(ctx, in.ID != nil, in.ExpectedVersion)
	if err != nil {
		log.Debug("replace role failed", logger.Err(err))
		return nil, false, err
	}
	log.Info("role replaced", logger.ID(r.ID().String()), zap.Bool("created", created))
	return readmodel.ReadRole(r), created, nil
}

// saveRole commits through the uniqueness guard and then replays the
// committed claims and releases onto the index, so a renamed or deleted
// role's old name becomes claimable again.
func (s *Service) saveRole(ctx context.Context, r *role.Role) error {
	changes := readmodel.ChangesOf(r)
	if err := saveObserved(ctx, s.roleGuard.Save, r); err != nil {
		return err
	}
	// Index after commit; the read model trails the log by design.
	return readmodel.Apply(ctx, s.index, r.ID(), changes)
}

// DeleteRole soft-deletes a role and frees its name. Deleting an
// already-deleted role commits nothing.
func (s *Service) DeleteRole(ctx context.Context, tenant, id uuid.UUID, actor *uuid.UUID) error {
	r, err := s.roles.Load(ctx, role.Address(id, tenant))
	if err != nil {
		return err
	}
	r.Delete(actor)
	return s.saveRole(ctx, r)
}

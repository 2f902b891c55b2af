package es_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/eventlog/memory"
)

func newRoleRepo() (*es.Repository[*role.Role], *memory.Log) {
	log := memory.New()
	return es.NewRepository[*role.Role](log, role.Codec(), role.Blank), log
}

func TestRepositorySaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()
	tenant := uuid.New()
	actor := uuid.New()

	r, err := role.New(tenant, "  admin  ", &actor, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), r.Version(), "los eventos sin guardar no cuentan")
	require.Len(t, r.Uncommitted(), 1)

	require.NoError(t, repo.Save(ctx, r))
	require.Equal(t, int64(1), r.Version())
	require.Empty(t, r.Uncommitted(), "el buffer se vacía tras guardar")

	got, err := repo.Load(ctx, r.Address())
	require.NoError(t, err)
	require.Equal(t, "admin", got.Name())
	require.Equal(t, tenant, got.Tenant())
	require.Equal(t, int64(1), got.Version())
	require.NotNil(t, got.CreatedBy())
	require.Equal(t, actor, *got.CreatedBy())
	require.False(t, got.CreatedOn().IsZero())
}

func TestRepositoryLoadUnknown(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()

	_, err := repo.Load(ctx, role.Address(uuid.New(), uuid.New()))
	require.ErrorIs(t, err, es.ErrNotFound)
}

func TestRepositoryVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()
	tenant := uuid.New()

	r, err := role.New(tenant, "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, r))

	a, err := repo.Load(ctx, r.Address())
	require.NoError(t, err)
	b, err := repo.Load(ctx, r.Address())
	require.NoError(t, err)

	require.NoError(t, a.SetName("ops"))
	require.True(t, a.Update(nil))
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, b.SetName("audit"))
	require.True(t, b.Update(nil))
	err = repo.Save(ctx, b)
	require.ErrorIs(t, err, es.ErrVersionConflict)

	// el perdedor no contaminó el stream
	got, err := repo.Load(ctx, r.Address())
	require.NoError(t, err)
	require.Equal(t, "ops", got.Name())
	require.Equal(t, int64(2), got.Version())
}

func TestRepositoryLoadAt(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()
	tenant := uuid.New()

	r, err := role.New(tenant, "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, r))

	require.NoError(t, r.SetName("ops"))
	r.Update(nil)
	require.NoError(t, repo.Save(ctx, r))

	old, err := repo.LoadAt(ctx, r.Address(), 1)
	require.NoError(t, err)
	require.Equal(t, "admin", old.Name())
	require.Equal(t, int64(1), old.Version())

	_, err = repo.LoadAt(ctx, r.Address(), 0)
	require.ErrorIs(t, err, es.ErrNotFound)
	_, err = repo.LoadAt(ctx, r.Address(), 7)
	require.ErrorIs(t, err, es.ErrNotFound)
}

func TestRepositorySoftDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()

	r, err := role.New(uuid.New(), "admin", nil, nil)
	require.NoError(t, err)
	r.Delete(nil)
	r.Delete(nil) // idempotente
	require.Len(t, r.Uncommitted(), 2)
	require.NoError(t, repo.Save(ctx, r))

	got, err := repo.Load(ctx, r.Address())
	require.NoError(t, err)
	require.True(t, got.Deleted())
	require.Equal(t, "admin", got.Name(), "borrar es lógico; el estado sobrevive")
	require.Equal(t, int64(2), got.Version())
}

func TestRepositoryLoadManySkipsMissing(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRoleRepo()
	tenant := uuid.New()

	a, err := role.New(tenant, "admin", nil, nil)
	require.NoError(t, err)
	b, err := role.New(tenant, "ops", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, a, b))

	got, err := repo.LoadMany(ctx, []es.StreamAddress{
		a.Address(),
		role.Address(uuid.New(), tenant), // no existe
		b.Address(),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "admin", got[0].Name())
	require.Equal(t, "ops", got[1].Name())
}

func TestRepositorySaveSkipsCleanAggregates(t *testing.T) {
	ctx := context.Background()
	repo, log := newRoleRepo()

	r, err := role.New(uuid.New(), "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, r))
	require.Equal(t, 1, log.Len(r.Address()))

	// sin cambios staged no hay evento ni append
	require.False(t, r.Update(nil))
	require.NoError(t, repo.Save(ctx, r))
	require.Equal(t, 1, log.Len(r.Address()))
	require.Equal(t, int64(1), r.Version())
}

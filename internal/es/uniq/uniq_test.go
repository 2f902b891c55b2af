package uniq_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/es/uniq"
	"github.com/keyfold/keyfold/internal/eventlog/memory"
)

// fakeIndex es un Querier en memoria: scope+value -> holder.
type fakeIndex struct {
	entries map[string]uuid.UUID
}

func newFakeIndex() *fakeIndex { return &fakeIndex{entries: map[string]uuid.UUID{}} }

func (f *fakeIndex) put(scope uniq.Scope, value string, holder uuid.UUID) {
	f.entries[scope.String()+"="+value] = holder
}

func (f *fakeIndex) FindIDByUniqueValue(_ context.Context, scope uniq.Scope, value string) (*uuid.UUID, error) {
	id, ok := f.entries[scope.String()+"="+value]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func newGuard(idx uniq.Querier) *uniq.Guard[*role.Role] {
	repo := es.NewRepository[*role.Role](memory.New(), role.Codec(), role.Blank)
	return uniq.NewGuard(repo, idx, func(r *role.Role) uuid.UUID { return r.ID() })
}

func TestGuardAllowsFreeValue(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(newFakeIndex())

	r, err := role.New(uuid.New(), "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, guard.Save(ctx, r))
	require.Equal(t, int64(1), r.Version())
}

func TestGuardRejectsTakenValue(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	tenant := uuid.New()
	holder := uuid.New()
	idx.put(uniq.Scope{Tenant: &tenant, Key: role.UniqueNameKey}, "admin", holder)

	guard := newGuard(idx)
	r, err := role.New(tenant, "admin", nil, nil)
	require.NoError(t, err)

	err = guard.Save(ctx, r)
	var conflict *uniq.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, holder, conflict.HolderID)
	require.Equal(t, r.ID(), conflict.ClaimantID)
	require.Equal(t, "admin", conflict.Value)

	// nada se persistió para el perdedor
	require.Equal(t, int64(0), r.Version())
	require.Len(t, r.Uncommitted(), 1)
}

func TestGuardIgnoresSelfClaim(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	tenant := uuid.New()

	guard := newGuard(idx)
	r, err := role.New(tenant, "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, guard.Save(ctx, r))

	scope := uniq.Scope{Tenant: &tenant, Key: role.UniqueNameKey}
	idx.put(scope, "admin", r.ID())

	require.NoError(t, r.SetName("ops"))
	require.True(t, r.Update(nil))
	require.NoError(t, guard.Save(ctx, r))
	idx.put(scope, "ops", r.ID())

	// volver a un valor que el índice aún atribuye al propio aggregate
	require.NoError(t, r.SetName("admin"))
	require.True(t, r.Update(nil))
	require.NoError(t, guard.Save(ctx, r))
	require.Equal(t, int64(3), r.Version())
}

func TestGuardScopesPerTenant(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	tenantA := uuid.New()
	tenantB := uuid.New()
	idx.put(uniq.Scope{Tenant: &tenantA, Key: role.UniqueNameKey}, "admin", uuid.New())

	// mismo nombre en otro tenant: scope distinto, sin conflicto
	guard := newGuard(idx)
	r, err := role.New(tenantB, "admin", nil, nil)
	require.NoError(t, err)
	require.NoError(t, guard.Save(ctx, r))
}

package role

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewTrimsAndValidates(t *testing.T) {
	tenant := uuid.New()

	_, err := New(tenant, "   ", nil, nil)
	require.ErrorIs(t, err, ErrNameRequired)

	r, err := New(tenant, "  admin  ", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "admin", r.Name())
	require.Equal(t, tenant, r.Tenant())

	// el id explícito se respeta
	want := uuid.New()
	r, err = New(tenant, "ops", nil, &want)
	require.NoError(t, err)
	require.Equal(t, want, r.ID())
}

func TestCreationClaimsName(t *testing.T) {
	tenant := uuid.New()
	r, err := New(tenant, "admin", nil, nil)
	require.NoError(t, err)

	created, ok := r.Uncommitted()[0].Payload.(*Created)
	require.True(t, ok)
	claims := created.UniqueClaims()
	require.Len(t, claims, 1)
	require.Equal(t, UniqueNameKey, claims[0].Scope.Key)
	require.Equal(t, tenant, *claims[0].Scope.Tenant)
	require.Equal(t, "admin", claims[0].Value)
}

func TestRenameClaimsButDescriptionDoesNot(t *testing.T) {
	r, err := New(uuid.New(), "admin", nil, nil)
	require.NoError(t, err)

	r.SetDescription("acceso total")
	require.True(t, r.Update(nil))
	upd := r.Uncommitted()[1].Payload.(*Updated)
	require.Empty(t, upd.UniqueClaims(), "cambiar la descripción no reclama nada")

	require.NoError(t, r.SetName("ops"))
	require.True(t, r.Update(nil))
	upd = r.Uncommitted()[2].Payload.(*Updated)
	claims := upd.UniqueClaims()
	require.Len(t, claims, 1)
	require.Equal(t, "ops", claims[0].Value)
}

func TestRenameReleasesOldName(t *testing.T) {
	tenant := uuid.New()
	r, err := New(tenant, "admin", nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.SetName("ops"))
	require.True(t, r.Update(nil))

	upd := r.Uncommitted()[1].Payload.(*Updated)
	releases := upd.UniqueReleases()
	require.Len(t, releases, 1)
	require.Equal(t, "admin", releases[0].Value, "el rename suelta el nombre anterior")
	require.Equal(t, UniqueNameKey, releases[0].Scope.Key)
	require.Equal(t, tenant, *releases[0].Scope.Tenant)

	// sin rename no se suelta nada
	r.SetDescription("acceso total")
	require.True(t, r.Update(nil))
	upd = r.Uncommitted()[2].Payload.(*Updated)
	require.Empty(t, upd.UniqueReleases())
}

func TestDeleteReleasesName(t *testing.T) {
	tenant := uuid.New()
	r, err := New(tenant, "admin", nil, nil)
	require.NoError(t, err)

	r.Delete(nil)
	del := r.Uncommitted()[1].Payload.(*SoftDeleted)
	releases := del.UniqueReleases()
	require.Len(t, releases, 1)
	require.Equal(t, "admin", releases[0].Value)
	require.Equal(t, tenant, *releases[0].Scope.Tenant)
}

func TestUpdateNoChanges(t *testing.T) {
	r, err := New(uuid.New(), "admin", nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.SetName("admin")) // sin cambio real
	r.SetDescription("")
	require.False(t, r.Update(nil))
}

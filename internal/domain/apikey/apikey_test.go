package apikey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/security/secret"
)

func fixedClock(t *testing.T, at time.Time) {
	t.Helper()
	old := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = old })
}

func newKey(t *testing.T, tenant uuid.UUID) (*APIKey, string) {
	t.Helper()
	sec, _, err := secret.GenerateBearer(32)
	require.NoError(t, err)
	k, err := New(tenant, sec, "ci-deploy", nil, nil)
	require.NoError(t, err)
	return k, sec.Encode()
}

func TestNewValidation(t *testing.T) {
	sec, _, err := secret.GenerateBearer(32)
	require.NoError(t, err)

	_, err = New(uuid.New(), sec, "   ", nil, nil)
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = New(uuid.New(), nil, "ci-deploy", nil, nil)
	require.ErrorIs(t, err, ErrSecretRequired)
}

func TestSetExpiryMonotonicTightening(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	k, _ := newKey(t, uuid.New())

	past := now.Add(-time.Hour)
	require.ErrorIs(t, k.SetExpiry(&past), ErrExpiryInPast)
	require.ErrorIs(t, k.SetExpiry(&now), ErrExpiryInPast, "el instante actual ya no es futuro")

	// sin expiry, limpiar es un no-op
	require.NoError(t, k.SetExpiry(nil))
	require.False(t, k.Update(nil))

	first := now.Add(48 * time.Hour)
	require.NoError(t, k.SetExpiry(&first))
	require.True(t, k.Update(nil))
	require.NotNil(t, k.ExpiresAt())
	require.True(t, first.Equal(*k.ExpiresAt()))

	// una vez fijado: ni limpiar ni extender
	require.ErrorIs(t, k.SetExpiry(nil), ErrExpiryCleared)
	later := now.Add(72 * time.Hour)
	require.ErrorIs(t, k.SetExpiry(&later), ErrExpiryExtended)

	// mismo valor: no-op sin evento
	same := first
	require.NoError(t, k.SetExpiry(&same))
	require.False(t, k.Update(nil))

	// acortar siempre vale
	earlier := now.Add(24 * time.Hour)
	require.NoError(t, k.SetExpiry(&earlier))
	require.True(t, k.Update(nil))
	require.True(t, earlier.Equal(*k.ExpiresAt()))
}

func TestSetExpiryStagedValueCounts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	k, _ := newKey(t, uuid.New())

	tight := now.Add(24 * time.Hour)
	require.NoError(t, k.SetExpiry(&tight))

	// la expiración staged ya cuenta: no se puede aflojar antes del flush
	loose := now.Add(48 * time.Hour)
	require.ErrorIs(t, k.SetExpiry(&loose), ErrExpiryExtended)
	require.ErrorIs(t, k.SetExpiry(nil), ErrExpiryCleared)

	// acortar sobre lo staged sí vale y gana el último valor
	tighter := now.Add(12 * time.Hour)
	require.NoError(t, k.SetExpiry(&tighter))
	require.True(t, k.Update(nil))
	require.True(t, tighter.Equal(*k.ExpiresAt()))
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	k, canonical := newKey(t, uuid.New())
	raised := len(k.Uncommitted())

	require.ErrorIs(t, k.Authenticate("wrong", nil), ErrIncorrectSecret)
	require.Len(t, k.Uncommitted(), raised, "un fallo no deja rastro en el stream")
	require.Nil(t, k.AuthenticatedAt())

	require.NoError(t, k.Authenticate(canonical, nil))
	require.Len(t, k.Uncommitted(), raised+1)
	require.NotNil(t, k.AuthenticatedAt())

	// sin actor explícito la key se atribuye a sí misma
	last := k.Uncommitted()[len(k.Uncommitted())-1]
	require.NotNil(t, last.Actor)
	require.Equal(t, k.ID(), *last.Actor)
}

func TestAuthenticateExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	k, canonical := newKey(t, uuid.New())
	exp := now.Add(time.Hour)
	require.NoError(t, k.SetExpiry(&exp))
	require.True(t, k.Update(nil))

	// pasada la expiración, ni el secreto correcto entra
	fixedClock(t, now.Add(2*time.Hour))
	require.ErrorIs(t, k.Authenticate(canonical, nil), ErrExpired)
	require.ErrorIs(t, k.Authenticate("wrong", nil), ErrExpired)
}

func TestRoleGrants(t *testing.T) {
	tenant := uuid.New()
	k, _ := newKey(t, tenant)

	other := role.Ref{ID: uuid.New(), Tenant: uuid.New()}
	require.ErrorIs(t, k.AddRole(other), ErrTenantMismatch)
	require.ErrorIs(t, k.RemoveRole(other), ErrTenantMismatch)

	r := role.Ref{ID: uuid.New(), Tenant: tenant}
	require.NoError(t, k.AddRole(r))
	require.NoError(t, k.AddRole(r)) // idempotente
	require.True(t, k.Update(nil))
	require.True(t, k.HasRole(r.ID))
	require.Len(t, k.Roles(), 1)

	require.NoError(t, k.RemoveRole(r))
	require.NoError(t, k.RemoveRole(r))
	require.True(t, k.Update(nil))
	require.False(t, k.HasRole(r.ID))
}

func TestRoleGrantRevokeCancelsStaged(t *testing.T) {
	tenant := uuid.New()
	k, _ := newKey(t, tenant)
	r := role.Ref{ID: uuid.New(), Tenant: tenant}

	// grant y revoke en la misma sesión de edición se anulan
	require.NoError(t, k.AddRole(r))
	require.NoError(t, k.RemoveRole(r))
	require.False(t, k.Update(nil))
}

func TestAttributes(t *testing.T) {
	k, _ := newKey(t, uuid.New())

	k.SetAttribute("env", "  prod  ")
	k.SetAttribute("  team ", "infra")
	k.SetAttribute("", "ignored")
	require.True(t, k.Update(nil))
	require.Equal(t, "prod", k.Attributes()["env"])
	require.Equal(t, "infra", k.Attributes()["team"])
	require.Len(t, k.Attributes(), 2)

	// mismo valor: nada staged
	k.SetAttribute("env", "prod")
	require.False(t, k.Update(nil))

	// valor en blanco elimina
	k.SetAttribute("env", "   ")
	require.True(t, k.Update(nil))
	_, ok := k.Attributes()["env"]
	require.False(t, ok)

	// eliminar un atributo inexistente no genera evento
	k.SetAttribute("nope", "")
	require.False(t, k.Update(nil))
}

func TestUpdateConsolidatesOneEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	tenant := uuid.New()
	k, _ := newKey(t, tenant)
	raised := len(k.Uncommitted())

	require.NoError(t, k.SetName("ci-release"))
	k.SetDescription("pipeline de release")
	exp := now.Add(time.Hour)
	require.NoError(t, k.SetExpiry(&exp))
	k.SetAttribute("env", "prod")
	require.NoError(t, k.AddRole(role.Ref{ID: uuid.New(), Tenant: tenant}))

	require.True(t, k.Update(nil))
	require.Len(t, k.Uncommitted(), raised+1, "todos los cambios viajan en un solo evento")
	require.Equal(t, "ci-release", k.Name())
	require.Equal(t, "pipeline de release", k.Description())

	// segundo flush sin cambios: nada
	require.False(t, k.Update(nil))
}

func TestDeleteIdempotent(t *testing.T) {
	k, _ := newKey(t, uuid.New())
	raised := len(k.Uncommitted())

	k.Delete(nil)
	k.Delete(nil)
	require.True(t, k.Deleted())
	require.Len(t, k.Uncommitted(), raised+1)
}

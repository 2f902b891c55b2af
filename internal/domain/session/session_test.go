package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/security/secret"
)

func newRefreshSecret(t *testing.T) secret.Secret {
	t.Helper()
	sec, _, err := secret.GenerateBearer(32)
	require.NoError(t, err)
	return sec
}

func TestNewPersistent(t *testing.T) {
	tenant := uuid.New()
	user := uuid.New()
	sec := newRefreshSecret(t)

	s := New(tenant, user, sec, nil, nil)
	require.True(t, s.Active())
	require.True(t, s.Persistent())
	require.Equal(t, tenant, s.Tenant())
	require.Equal(t, user, s.User())
	require.Len(t, s.Uncommitted(), 1)
}

func TestNewEphemeral(t *testing.T) {
	s := New(uuid.New(), uuid.New(), nil, nil, nil)
	require.True(t, s.Active())
	require.False(t, s.Persistent())

	// una sesión efímera no se puede renovar
	err := s.Renew("anything", newRefreshSecret(t), nil)
	require.ErrorIs(t, err, ErrNotPersistent)
}

func TestRenewRotation(t *testing.T) {
	first := newRefreshSecret(t)
	s := New(uuid.New(), uuid.New(), first, nil, nil)

	second := newRefreshSecret(t)
	require.NoError(t, s.Renew(first.Encode(), second, nil))

	// el secreto anterior queda invalidado de inmediato, sin ventana de gracia
	third := newRefreshSecret(t)
	require.ErrorIs(t, s.Renew(first.Encode(), third, nil), ErrIncorrectSecret)
	require.NoError(t, s.Renew(second.Encode(), third, nil))
}

func TestRenewWrongSecret(t *testing.T) {
	first := newRefreshSecret(t)
	s := New(uuid.New(), uuid.New(), first, nil, nil)
	raised := len(s.Uncommitted())

	err := s.Renew("not-the-secret", newRefreshSecret(t), nil)
	require.ErrorIs(t, err, ErrIncorrectSecret)
	require.Len(t, s.Uncommitted(), raised, "el fallo no rota nada")

	// y el secreto vigente sigue sirviendo
	require.NoError(t, s.Renew(first.Encode(), newRefreshSecret(t), nil))
}

func TestSignOutTerminal(t *testing.T) {
	first := newRefreshSecret(t)
	s := New(uuid.New(), uuid.New(), first, nil, nil)

	s.SignOut(nil)
	require.False(t, s.Active())
	raised := len(s.Uncommitted())

	s.SignOut(nil) // no-op
	require.Len(t, s.Uncommitted(), raised)

	err := s.Renew(first.Encode(), newRefreshSecret(t), nil)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestAttributes(t *testing.T) {
	s := New(uuid.New(), uuid.New(), nil, nil, nil)

	s.SetAttribute("device", "ios")
	s.SetAttribute("ip", "10.0.0.8")
	require.True(t, s.Update(nil))
	require.Equal(t, "ios", s.Attributes()["device"])

	s.SetAttribute("device", "ios")
	require.False(t, s.Update(nil))

	s.SetAttribute("device", "")
	require.True(t, s.Update(nil))
	_, ok := s.Attributes()["device"]
	require.False(t, ok)
}

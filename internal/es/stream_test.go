package es

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStreamAddressRoundTrip(t *testing.T) {
	id := uuid.New()
	tenant := uuid.New()

	addr := NewStreamAddress("ApiKey", id, &tenant)
	gotID, gotTenant, err := ParseStreamAddress(addr, "ApiKey")
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.NotNil(t, gotTenant)
	require.Equal(t, tenant, *gotTenant)

	// y de vuelta
	require.Equal(t, addr, NewStreamAddress("ApiKey", gotID, gotTenant))
}

func TestStreamAddressGlobal(t *testing.T) {
	id := uuid.New()

	addr := NewStreamAddress("Language", id, nil)
	gotID, gotTenant, err := ParseStreamAddress(addr, "Language")
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Nil(t, gotTenant)
}

func TestParseStreamAddressRejects(t *testing.T) {
	id := uuid.New()
	tenant := uuid.New()
	good := NewStreamAddress("Role", id, &tenant)

	cases := map[string]struct {
		addr StreamAddress
		tag  string
	}{
		"wrong tag":      {good, "ApiKey"},
		"empty":          {StreamAddress(""), "Role"},
		"one part":       {StreamAddress("Role"), "Role"},
		"four parts":     {StreamAddress("Role/a/b/c"), "Role"},
		"bad entity id":  {StreamAddress("Role/nope/" + tenant.String()), "Role"},
		"bad tenant id":  {StreamAddress("Role/" + id.String() + "/nope"), "Role"},
		"tag case drift": {StreamAddress("role/" + id.String()), "Role"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseStreamAddress(tc.addr, tc.tag)
			require.ErrorIs(t, err, ErrBadAddress)
		})
	}
}

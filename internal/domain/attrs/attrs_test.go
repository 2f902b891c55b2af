package attrs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	from := Map{"env": "prod", "team": "infra", "region": "eu"}
	to := Map{"env": "prod", "team": "platform", "owner": "ana"}

	set, removed := Diff(from, to)
	require.Equal(t, Map{"team": "platform", "owner": "ana"}, set)
	require.Equal(t, []string{"region"}, removed)
}

func TestDiffNoChanges(t *testing.T) {
	m := Map{"env": "prod"}
	set, removed := Diff(m, m)
	require.Empty(t, set)
	require.Empty(t, removed)
}

func TestClone(t *testing.T) {
	var nilMap Map
	require.Nil(t, nilMap.Clone())

	m := Map{"env": "prod"}
	c := m.Clone()
	c["env"] = "dev"
	require.Equal(t, "prod", m["env"])
}

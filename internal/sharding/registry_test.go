package sharding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticRegistryOwnerLookup(t *testing.T) {
	reg := NewStaticRegistry(map[string]string{"town": "engine-a", "forest": "engine-b"}, []string{"town"})

	owner, ok, err := reg.Owner(context.Background(), "town")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "engine-a", owner)

	_, ok, err = reg.Owner(context.Background(), "swamp")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStaticRegistryDefaultsToSingleOwner(t *testing.T) {
	reg := NewStaticRegistry(map[string]string{"town": "engine-a"}, []string{"town"})
	require.Equal(t, ReplicatedEntry, reg.ModeFor("town"))
	require.Equal(t, SingleOwner, reg.ModeFor("forest"))
}

package world

import (
	"testing"

	"ambonmud/internal/ids"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, zone, local string) ids.EntityID {
	t.Helper()
	id, err := ids.NewEntityID(zone, local)
	require.NoError(t, err)
	return id
}

func TestWorldValidateRejectsMissingStartRoom(t *testing.T) {
	w := World{Rooms: map[ids.EntityID]Room{}, StartRoom: mustID(t, "demo", "r1")}
	require.Error(t, w.Validate())
}

func TestObviousExitsIsDeterministic(t *testing.T) {
	r1 := mustID(t, "demo", "r1")
	r2 := mustID(t, "demo", "r2")
	room := Room{
		ID: r1,
		Exits: map[Direction]Exit{
			South: {Direction: South, Target: r2},
			North: {Direction: North, Target: r2},
		},
	}
	require.Equal(t, []Direction{North, South}, room.ObviousExits())
}

func TestFindExitByKeywordCaseInsensitive(t *testing.T) {
	r2 := mustID(t, "demo", "r2")
	room := Room{
		Exits: map[Direction]Exit{
			North: {Direction: North, Target: r2, Keywords: []string{"Door"}},
		},
	}
	exit, ok := room.FindExitByKeyword("door")
	require.True(t, ok)
	require.Equal(t, North, exit.Direction)

	_, ok = room.FindExitByKeyword("window")
	require.False(t, ok)
}

func TestExitCrossZone(t *testing.T) {
	e := Exit{Target: mustID(t, "cavez", "mouth")}
	require.True(t, e.CrossZone("hubz"))
	require.False(t, e.CrossZone("cavez"))
}

func TestDirectionOpposite(t *testing.T) {
	pairs := map[Direction]Direction{
		North: South, East: West, Up: Down,
		Northeast: Southwest, Northwest: Southeast,
	}
	for d, want := range pairs {
		require.Equal(t, want, d.Opposite())
		require.Equal(t, d, want.Opposite())
	}
}

func TestWorldValidateDetectsMismatchedRoomKey(t *testing.T) {
	r1 := mustID(t, "demo", "r1")
	other := mustID(t, "demo", "other")
	w := World{
		Rooms:     map[ids.EntityID]Room{r1: {ID: other}},
		StartRoom: r1,
	}
	require.Error(t, w.Validate())
}

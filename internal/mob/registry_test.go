package mob

import (
	"testing"

	"ambonmud/internal/ids"

	"github.com/stretchr/testify/require"
)

func TestRegistryFindInRoomByKeywordSkipsDeadAndOtherRooms(t *testing.T) {
	hall, _ := ids.NewEntityID("zone1", "hall")
	yard, _ := ids.NewEntityID("zone1", "yard")

	r := NewRegistry()
	ratID, _ := ids.NewEntityID("zone1", "rat-1")
	rat := NewFromTemplate(ratID, Template{ID: "rat", Name: "a sewer rat", MaxHP: 5}, hall, 0)
	r.Add(rat)

	deadID, _ := ids.NewEntityID("zone1", "rat-2")
	dead := NewFromTemplate(deadID, Template{ID: "rat", Name: "a sewer rat", MaxHP: 5}, hall, 0)
	dead.Dead = true
	r.Add(dead)

	elsewhereID, _ := ids.NewEntityID("zone1", "rat-3")
	elsewhere := NewFromTemplate(elsewhereID, Template{ID: "rat", Name: "a sewer rat", MaxHP: 5}, yard, 0)
	r.Add(elsewhere)

	found, ok := r.FindInRoomByKeyword(hall, "rat")
	require.True(t, ok)
	require.Equal(t, ratID, found.ID)

	_, ok = r.FindInRoomByKeyword(hall, "goblin")
	require.False(t, ok)
}

func TestRegistryAddGetRemove(t *testing.T) {
	hall, _ := ids.NewEntityID("zone1", "hall")
	r := NewRegistry()
	id, _ := ids.NewEntityID("zone1", "rat-1")
	m := NewFromTemplate(id, Template{ID: "rat", MaxHP: 5}, hall, 0)
	r.Add(m)

	got, ok := r.Get(id)
	require.True(t, ok)
	require.Same(t, m, got)

	require.Len(t, r.InRoom(hall), 1)

	r.Remove(id)
	_, ok = r.Get(id)
	require.False(t, ok)
}

func TestRegistryNextLocalIDIncrementsPerZone(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, "rat-1", r.NextLocalID("zone1", "rat"))
	require.Equal(t, "rat-2", r.NextLocalID("zone1", "rat"))
	require.Equal(t, "rat-1", r.NextLocalID("zone2", "rat"))
}

func TestRegistryAllInZone(t *testing.T) {
	r := NewRegistry()
	hall, _ := ids.NewEntityID("zone1", "hall")
	plaza, _ := ids.NewEntityID("zone2", "plaza")
	id1, _ := ids.NewEntityID("zone1", "rat-1")
	id2, _ := ids.NewEntityID("zone2", "rat-1")
	r.Add(NewFromTemplate(id1, Template{ID: "rat", MaxHP: 5}, hall, 0))
	r.Add(NewFromTemplate(id2, Template{ID: "rat", MaxHP: 5}, plaza, 0))

	require.Len(t, r.AllInZone("zone1"), 1)
	require.Len(t, r.AllInZone("zone2"), 1)
	require.Len(t, r.All(), 2)
}

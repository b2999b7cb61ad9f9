package item

import (
	"testing"

	"ambonmud/internal/ids"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, ids.EntityID) {
	t.Helper()
	r := NewRegistry()
	r.RegisterTemplate(Template{ID: "sword-1", Name: "a rusty sword", Slot: "weapon", Keywords: []string{"sword", "rusty"}})
	id, err := ids.NewEntityID("zone1", "sword-1-inst")
	require.NoError(t, err)
	r.Spawn(id, "sword-1")
	return r, id
}

func TestPlacementIsExclusive(t *testing.T) {
	r, id := newTestRegistry(t)
	hall, _ := ids.NewEntityID("zone1", "hall")

	r.PlaceOnFloor(id, hall)
	require.Len(t, r.OnFloor(hall), 1)

	r.PlaceInInventory(id, "Rin")
	require.Empty(t, r.OnFloor(hall), "placing in inventory must clear the prior floor placement")
	require.Len(t, r.InInventory("Rin"), 1)

	r.PlaceInSlot(id, "Rin", "weapon")
	require.Empty(t, r.InInventory("Rin"), "equipping must clear the prior inventory placement")
	inst, ok := r.InSlot("Rin", "weapon")
	require.True(t, ok)
	require.Equal(t, id, inst.ID)
}

func TestFindOnFloorByKeywordMatchesKeywordsAndName(t *testing.T) {
	r, id := newTestRegistry(t)
	hall, _ := ids.NewEntityID("zone1", "hall")
	r.PlaceOnFloor(id, hall)

	found, ok := r.FindOnFloorByKeyword(hall, "rusty")
	require.True(t, ok)
	require.Equal(t, id, found.ID)

	found, ok = r.FindOnFloorByKeyword(hall, "a rusty sword")
	require.True(t, ok)
	require.Equal(t, id, found.ID)

	_, ok = r.FindOnFloorByKeyword(hall, "shield")
	require.False(t, ok)
}

func TestFindInInventoryAndEquippedByKeyword(t *testing.T) {
	r, id := newTestRegistry(t)
	r.PlaceInInventory(id, "Rin")

	found, ok := r.FindInInventoryByKeyword("Rin", "sword")
	require.True(t, ok)
	require.Equal(t, id, found.ID)

	_, ok = r.FindEquippedByKeyword("Rin", "sword")
	require.False(t, ok, "not yet equipped")

	r.PlaceInSlot(id, "Rin", "weapon")
	found, ok = r.FindEquippedByKeyword("Rin", "sword")
	require.True(t, ok)
	require.Equal(t, id, found.ID)
}

func TestInMobAndRemove(t *testing.T) {
	r, id := newTestRegistry(t)
	mobID, _ := ids.NewEntityID("zone1", "rat-1")
	r.PlaceInMob(id, mobID)
	require.Len(t, r.InMob(mobID), 1)

	r.Remove(id)
	_, ok := r.Get(id)
	require.False(t, ok)
	require.Empty(t, r.InMob(mobID))
}

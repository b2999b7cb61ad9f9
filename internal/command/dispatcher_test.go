package command

import (
	"testing"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/player"
	"ambonmud/internal/world"

	"github.com/stretchr/testify/require"
)

type fakeWorld struct {
	rooms map[ids.EntityID]world.Room
}

func (f fakeWorld) Room(id ids.EntityID) (world.Room, bool) {
	r, ok := f.rooms[id]
	return r, ok
}

type fakeCombat struct {
	engaged    bool
	lastTarget string
	err        error
}

func (f *fakeCombat) Engage(attacker *player.Player, targetKeyword string) error {
	f.engaged = true
	f.lastTarget = targetKeyword
	return f.err
}
func (f *fakeCombat) Flee(attacker *player.Player) error { return nil }

type fakeAbilities struct{}

func (fakeAbilities) Cast(caster *player.Player, spellName, target string) ([]events.Outbound, error) {
	return []events.Outbound{events.SendText(caster.SessionID, "You cast "+spellName)}, nil
}
func (fakeAbilities) Use(user *player.Player, abilityName, target string) ([]events.Outbound, error) {
	return []events.Outbound{events.SendText(user.SessionID, "You use "+abilityName)}, nil
}

type fakeItems struct {
	registry *item.Registry
}

func (f fakeItems) FindOnFloorByKeyword(room ids.EntityID, keyword string) (*item.Instance, bool) {
	return f.registry.FindOnFloorByKeyword(room, keyword)
}
func (f fakeItems) FindInInventoryByKeyword(playerName, keyword string) (*item.Instance, bool) {
	return f.registry.FindInInventoryByKeyword(playerName, keyword)
}
func (f fakeItems) FindEquippedByKeyword(playerName, keyword string) (*item.Instance, bool) {
	return f.registry.FindEquippedByKeyword(playerName, keyword)
}
func (f fakeItems) Template(id string) (item.Template, bool) { return f.registry.Template(id) }
func (f fakeItems) PlaceOnFloor(id ids.EntityID, room ids.EntityID) {
	f.registry.PlaceOnFloor(id, room)
}
func (f fakeItems) PlaceInInventory(id ids.EntityID, playerName string) {
	f.registry.PlaceInInventory(id, playerName)
}
func (f fakeItems) PlaceInSlot(id ids.EntityID, playerName, slot string) {
	f.registry.PlaceInSlot(id, playerName, slot)
}
func (f fakeItems) InInventory(playerName string) []*item.Instance {
	return f.registry.InInventory(playerName)
}

func newTestContext() (*Context, ids.EntityID, ids.EntityID) {
	start, _ := ids.NewEntityID("zone1", "start")
	hall, _ := ids.NewEntityID("zone1", "hall")
	w := fakeWorld{rooms: map[ids.EntityID]world.Room{
		start: {ID: start, Title: "Start", Exits: map[world.Direction]world.Exit{
			world.North: {Direction: world.North, Target: hall},
		}},
		hall: {ID: hall, Title: "Hall"},
	}}

	p := player.NewPlayer("Rin", "rin-account", start)
	registry := player.NewRegistry()
	_ = registry.Add(p)

	items := item.NewRegistry()

	ctx := &Context{
		Player:    p,
		Players:   registry,
		World:     w,
		Combat:    &fakeCombat{},
		Abilities: fakeAbilities{},
		Items:     fakeItems{registry: items},
	}
	return ctx, start, hall
}

func TestDispatchMoveFollowsOpenExit(t *testing.T) {
	ctx, _, hall := newTestContext()
	Dispatch(Command{Kind: KindMove, DirectionName: "north"}, ctx)
	require.Equal(t, hall, ctx.Player.Room)
	require.NotEmpty(t, ctx.Out)
}

func TestDispatchMoveRejectsMissingExit(t *testing.T) {
	ctx, start, _ := newTestContext()
	Dispatch(Command{Kind: KindMove, DirectionName: "south"}, ctx)
	require.Equal(t, start, ctx.Player.Room)
}

func TestDispatchKillRequiresTarget(t *testing.T) {
	ctx, _, _ := newTestContext()
	Dispatch(Command{Kind: KindKill, Target: ""}, ctx)
	fc := ctx.Combat.(*fakeCombat)
	require.False(t, fc.engaged)
}

func TestDispatchKillDelegatesKeywordToCombat(t *testing.T) {
	ctx, _, _ := newTestContext()
	Dispatch(Command{Kind: KindKill, Target: "goblin"}, ctx)
	fc := ctx.Combat.(*fakeCombat)
	require.True(t, fc.engaged)
	require.Equal(t, "goblin", fc.lastTarget)
}

func TestDispatchStaffCommandDeniedWithoutKey(t *testing.T) {
	ctx, _, _ := newTestContext()
	Dispatch(Command{Kind: KindStaffListRooms}, ctx)
	require.Len(t, ctx.Out, 1)
}

func TestDispatchScoreReportsLevel(t *testing.T) {
	ctx, _, _ := newTestContext()
	Dispatch(Command{Kind: KindScore}, ctx)
	require.Len(t, ctx.Out, 1)
}

func TestDispatchGetMovesItemFromFloorToInventory(t *testing.T) {
	ctx, start, _ := newTestContext()
	items := ctx.Items.(fakeItems).registry
	items.RegisterTemplate(item.Template{ID: "sword-1", Name: "a rusty sword", Keywords: []string{"sword", "rusty"}, Slot: "weapon"})
	id, _ := ids.NewEntityID("zone1", "sword-1-inst")
	items.Spawn(id, "sword-1")
	items.PlaceOnFloor(id, start)

	Dispatch(Command{Kind: KindGet, Target: "sword"}, ctx)

	inst, ok := items.Get(id)
	require.True(t, ok)
	require.Equal(t, item.ContainerPlayerInventory, inst.Placement.Kind)
	require.Equal(t, ctx.Player.Name, inst.Placement.PlayerName)
}

func TestDispatchWearEquipsCarriedItem(t *testing.T) {
	ctx, _, _ := newTestContext()
	items := ctx.Items.(fakeItems).registry
	items.RegisterTemplate(item.Template{ID: "sword-1", Name: "a rusty sword", Keywords: []string{"sword"}, Slot: "weapon"})
	id, _ := ids.NewEntityID("zone1", "sword-1-inst")
	items.Spawn(id, "sword-1")
	items.PlaceInInventory(id, ctx.Player.Name)

	Dispatch(Command{Kind: KindWear, Target: "sword"}, ctx)

	inst, ok := items.Get(id)
	require.True(t, ok)
	require.Equal(t, item.ContainerPlayerSlot, inst.Placement.Kind)
	require.Equal(t, "weapon", inst.Placement.Slot)
}

type fakeShop struct {
	goods  []ShopGood
	bought string
}

func (s *fakeShop) Goods() []ShopGood { return s.goods }
func (s *fakeShop) Buy(buyer *player.Player, keyword string) (string, error) {
	s.bought = keyword
	return "You buy " + keyword + ".", nil
}
func (s *fakeShop) Sell(seller *player.Player, keyword string) (string, error) {
	return "Sold.", nil
}

type fakeShops struct {
	shop Shop
	room ids.EntityID
}

func (f fakeShops) InRoom(room ids.EntityID) (Shop, bool) {
	if f.shop != nil && room == f.room {
		return f.shop, true
	}
	return nil, false
}

func TestDispatchListWithoutVendorReportsNothingToTrade(t *testing.T) {
	ctx, _, _ := newTestContext()
	Dispatch(Command{Kind: KindList}, ctx)
	require.Len(t, ctx.Out, 1)
	require.Equal(t, events.KindSendError, ctx.Out[0].Kind)
}

func TestDispatchBuyDelegatesToRoomVendor(t *testing.T) {
	ctx, start, _ := newTestContext()
	shop := &fakeShop{goods: []ShopGood{{Name: "a torch", Price: 5}}}
	ctx.Shops = fakeShops{shop: shop, room: start}

	Dispatch(Command{Kind: KindList}, ctx)
	Dispatch(Command{Kind: KindBuy, Target: "torch"}, ctx)

	require.Equal(t, "torch", shop.bought)
	require.Len(t, ctx.Out, 2)
}

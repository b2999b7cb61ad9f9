package mobai

import (
	"testing"

	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"
	"ambonmud/internal/world"

	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	rooms map[ids.EntityID]world.Room
}

func (f fakeRooms) Room(id ids.EntityID) (world.Room, bool) {
	r, ok := f.rooms[id]
	return r, ok
}

type fakeCombatRooms struct{ start ids.EntityID }

func (f fakeCombatRooms) StartRoomID() ids.EntityID { return f.start }

func newTestWorld() (fakeRooms, ids.EntityID, ids.EntityID) {
	hall, _ := ids.NewEntityID("zone1", "hall")
	yard, _ := ids.NewEntityID("zone1", "yard")
	return fakeRooms{rooms: map[ids.EntityID]world.Room{
		hall: {ID: hall, Exits: map[world.Direction]world.Exit{
			world.North: {Direction: world.North, Target: yard},
		}},
		yard: {ID: yard},
	}}, hall, yard
}

func newTestSubsystem(cfg Config) (*Subsystem, *mob.Registry, *player.Registry, *combat.Subsystem, ids.EntityID, ids.EntityID) {
	rooms, hall, yard := newTestWorld()
	mobs := mob.NewRegistry()
	players := player.NewRegistry()
	items := item.NewRegistry()
	progression := player.ProgressionCurve{BaseXP: 100, Exponent: 1.5, LinearXP: 10, MaxLevel: 50}
	cs := combat.New(combat.Config{MinDamage: 1, MaxDamage: 1, RoundIntervalMs: 1000, MaxCombatsPerTick: 10},
		clock.NewManual(0), players, mobs, items, fakeCombatRooms{start: hall}, nil, progression, nil)
	sub := New(cfg, mobs, rooms, players, cs)
	return sub, mobs, players, cs, hall, yard
}

func TestWanderMovesMobThroughOnlyExit(t *testing.T) {
	sub, mobs, _, _, hall, yard := newTestSubsystem(Config{MinWanderDelayMs: 0, MaxWanderDelayMs: 0, MaxMovesPerTick: 10})
	id, _ := ids.NewEntityID("zone1", "rat-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "rat", Name: "a rat", MaxHP: 10, Behavior: mob.BehaviorWander}, hall, 0)
	mobs.Add(m)

	var out []events.Outbound
	sub.Tick(0, &out)

	require.Equal(t, yard, m.RoomID)
}

func TestAggroGuardEngagesPlayerOnSight(t *testing.T) {
	sub, mobs, players, cs, hall, _ := newTestSubsystem(Config{MinWanderDelayMs: 1000, MaxWanderDelayMs: 1000, MaxMovesPerTick: 10})
	id, _ := ids.NewEntityID("zone1", "guard-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "guard", Name: "a stone guard", MaxHP: 30, Behavior: mob.BehaviorAggroGuard}, hall, 0)
	mobs.Add(m)

	p := player.NewPlayer("Rin", "rin-acct", hall)
	require.NoError(t, players.Add(p))

	var out []events.Outbound
	sub.Tick(0, &out)

	require.True(t, cs.MobEngaged(m.ID))
	require.NotEmpty(t, out)
}

func TestCowardFleesBelowHPThresholdAndDisengages(t *testing.T) {
	sub, mobs, players, cs, hall, yard := newTestSubsystem(Config{MinWanderDelayMs: 1000, MaxWanderDelayMs: 1000, MaxMovesPerTick: 10})
	id, _ := ids.NewEntityID("zone1", "rat-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "rat", Name: "a rat", MaxHP: 10, Behavior: mob.BehaviorCoward, CowardHPPct: 50}, hall, 0)
	mobs.Add(m)
	m.HP = 4 // 40% of max, below the 50% coward threshold

	p := player.NewPlayer("Rin", "rin-acct", hall)
	require.NoError(t, players.Add(p))
	require.NoError(t, cs.EngageMob(p, m))
	require.True(t, cs.MobEngaged(m.ID))

	var out []events.Outbound
	sub.Tick(0, &out)

	require.False(t, cs.MobEngaged(m.ID), "coward must break off the fight once below its flee threshold")
	require.Equal(t, yard, m.RoomID, "coward flees to the only available exit")
}

func TestMobileBehaviorDoesNotWanderWhileEngaged(t *testing.T) {
	sub, mobs, players, cs, hall, _ := newTestSubsystem(Config{MinWanderDelayMs: 0, MaxWanderDelayMs: 0, MaxMovesPerTick: 10})
	id, _ := ids.NewEntityID("zone1", "rat-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "rat", Name: "a rat", MaxHP: 10, Behavior: mob.BehaviorWanderAggro}, hall, 0)
	mobs.Add(m)
	p := player.NewPlayer("Rin", "rin-acct", hall)
	require.NoError(t, players.Add(p))
	require.NoError(t, cs.EngageMob(p, m))

	var out []events.Outbound
	sub.Tick(0, &out)

	require.Equal(t, hall, m.RoomID, "an already-engaged mob does not wander away mid-fight")
}

package combat

import (
	"testing"

	"ambonmud/internal/clock"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"

	"github.com/stretchr/testify/require"
)

type fakeRooms struct{ start ids.EntityID }

func (f fakeRooms) StartRoomID() ids.EntityID { return f.start }

type fakeScheduler struct {
	scheduled []func(nowMillis int64)
}

func (f *fakeScheduler) After(nowMillis, delayMillis int64, fn func(nowMillis int64)) {
	f.scheduled = append(f.scheduled, fn)
}

func newTestSubsystem(t *testing.T) (*Subsystem, *player.Registry, *mob.Registry, *item.Registry, *fakeScheduler, ids.EntityID) {
	t.Helper()
	room, _ := ids.NewEntityID("zone1", "hall")
	players := player.NewRegistry()
	mobs := mob.NewRegistry()
	items := item.NewRegistry()
	sched := &fakeScheduler{}
	cfg := Config{MinDamage: 5, MaxDamage: 5, RoundIntervalMs: 1000, MaxCombatsPerTick: 10}
	progression := player.ProgressionCurve{BaseXP: 100, Exponent: 1.5, LinearXP: 10, MaxLevel: 50}
	sub := New(cfg, clock.NewManual(0), players, mobs, items, fakeRooms{start: room}, sched, progression, nil)
	return sub, players, mobs, items, sched, room
}

func spawnRat(mobs *mob.Registry, room ids.EntityID, hp int) *mob.State {
	id, _ := ids.NewEntityID(room.Zone(), "rat-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "rat", Name: "a sewer rat", MaxHP: hp, MinDamage: 2, MaxDamage: 2, XPReward: 50, GoldMin: 3, GoldMax: 3}, room, 60)
	mobs.Add(m)
	return m
}

func TestEngageEnforcesOneAttackerPerMob(t *testing.T) {
	sub, players, mobs, _, _, room := newTestSubsystem(t)
	rat := spawnRat(mobs, room, 20)

	p1 := player.NewPlayer("Rin", "rin-acct", room)
	p2 := player.NewPlayer("Bo", "bo-acct", room)
	require.NoError(t, players.Add(p1))
	require.NoError(t, players.Add(p2))

	require.NoError(t, sub.Engage(p1, "rat"))
	require.True(t, sub.MobEngaged(rat.ID))
	require.True(t, sub.InFight(p1.Name))

	err := sub.Engage(p2, "rat")
	require.Error(t, err)
}

func TestEngageRejectsWhenAlreadyFighting(t *testing.T) {
	sub, players, mobs, _, _, room := newTestSubsystem(t)
	spawnRat(mobs, room, 20)
	id2, _ := ids.NewEntityID(room.Zone(), "rat-2")
	mobs.Add(mob.NewFromTemplate(id2, mob.Template{ID: "rat", Name: "a sewer rat", MaxHP: 20}, room, 0))

	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))
	require.NoError(t, sub.Engage(p, "rat"))

	err := sub.Engage(p, "rat")
	require.Error(t, err)
}

func TestFleeEndsFightWithoutDeath(t *testing.T) {
	sub, players, mobs, _, _, room := newTestSubsystem(t)
	spawnRat(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))
	require.NoError(t, sub.Engage(p, "rat"))

	require.NoError(t, sub.Flee(p))
	require.False(t, sub.InFight(p.Name))

	err := sub.Flee(p)
	require.Error(t, err, "fleeing twice with no active fight is an error")
}

func TestTickResolvesARoundOfDamageBothWays(t *testing.T) {
	sub, players, mobs, _, _, room := newTestSubsystem(t)
	rat := spawnRat(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))
	require.NoError(t, sub.Engage(p, "rat"))

	var out []events.Outbound
	sub.Tick(1000, func(ids.SessionID) *player.Player { return nil }, players.ByName, &out)

	require.Equal(t, 15, rat.HP, "player hits for configured 5 damage with default strength")
	require.Equal(t, 18, p.HP, "mob hits back for its configured 2 damage")
	require.NotEmpty(t, out)
}

func TestHandleMobDeathGrantsXPGoldAndSchedulesRespawn(t *testing.T) {
	sub, players, mobs, _, sched, room := newTestSubsystem(t)
	rat := spawnRat(mobs, room, 5)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))

	var out []events.Outbound
	sub.HandleMobDeath(p, rat, &out)

	require.Equal(t, int64(50), p.XP)
	require.Equal(t, int64(3), p.Gold)
	require.False(t, p.InCombat)
	_, ok := mobs.Get(rat.ID)
	require.False(t, ok, "dead mob is removed from the registry")
	require.Len(t, sched.scheduled, 1, "a respawn callback is scheduled since RespawnSecs > 0")
}

func TestApplyAbilityDamageKillsMobAndRoutesThroughSharedDeathPath(t *testing.T) {
	sub, players, mobs, _, sched, room := newTestSubsystem(t)
	rat := spawnRat(mobs, room, 10)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))
	require.NoError(t, sub.Engage(p, "rat"))

	var out []events.Outbound
	sub.ApplyAbilityDamage(p, rat, 999, &out)

	require.False(t, sub.InFight(p.Name), "ability kill must tear down the fight same as a melee kill")
	require.Len(t, sched.scheduled, 1)
	require.Equal(t, int64(50), p.XP)
}

func TestEquippedWeaponDamageBonusAddsToMeleeRoll(t *testing.T) {
	sub, players, mobs, items, _, room := newTestSubsystem(t)
	rat := spawnRat(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))

	items.RegisterTemplate(item.Template{ID: "blade", Name: "a keen blade", Slot: "weapon", DamageBonus: 2, Keywords: []string{"blade"}})
	id, _ := ids.NewEntityID(room.Zone(), "blade-1")
	items.Spawn(id, "blade")
	items.PlaceInSlot(id, p.Name, "weapon")

	require.NoError(t, sub.Engage(p, "rat"))
	var out []events.Outbound
	sub.Tick(1000, func(ids.SessionID) *player.Player { return nil }, players.ByName, &out)

	require.Equal(t, 13, rat.HP, "base 5 plus the equipped weapon's 2")
}

func TestShieldAbsorberConsultedBeforePlayerHPReduction(t *testing.T) {
	sub, players, mobs, _, _, room := newTestSubsystem(t)
	spawnRat(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	require.NoError(t, players.Add(p))

	pool := 3
	sub.SetShieldAbsorber(func(name string, incoming int) int {
		require.Equal(t, p.Name, name)
		absorbed := incoming
		if absorbed > pool {
			absorbed = pool
		}
		pool -= absorbed
		return incoming - absorbed
	})

	require.NoError(t, sub.Engage(p, "rat"))
	var out []events.Outbound
	sub.Tick(1000, func(ids.SessionID) *player.Player { return nil }, players.ByName, &out)
	require.Equal(t, 20, p.HP, "the rat's 2 damage lands entirely on the shield")

	sub.Tick(2000, func(ids.SessionID) *player.Player { return nil }, players.ByName, &out)
	require.Equal(t, 19, p.HP, "one point of the second hit spills past the exhausted shield")
	require.Zero(t, pool)
}

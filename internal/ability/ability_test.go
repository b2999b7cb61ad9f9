package ability

import (
	"testing"

	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"

	"github.com/stretchr/testify/require"
)

type fakeRooms struct{ start ids.EntityID }

func (f fakeRooms) StartRoomID() ids.EntityID { return f.start }

func testDefs() ([]Definition, []StatusDefinition) {
	defs := []Definition{
		{
			ID: "firebolt", DisplayName: "Firebolt", ManaCost: 5, CooldownMs: 1000,
			TargetType: TargetEnemy, Effect: Effect{Kind: EffectDirectDamage, Min: 7, Max: 7},
		},
		{
			ID: "heal", DisplayName: "Heal", ManaCost: 5, CooldownMs: 0,
			TargetType: TargetSelf, Effect: Effect{Kind: EffectDirectHeal, Min: 10, Max: 10},
		},
		{
			ID: "poison", DisplayName: "Poison Bolt", ManaCost: 0, CooldownMs: 0,
			TargetType: TargetEnemy, Effect: Effect{Kind: EffectApplyStatus, StatusID: "poison_dot"},
		},
		{
			ID: "stunself", DisplayName: "Brace", ManaCost: 0, CooldownMs: 0,
			TargetType: TargetSelf, Effect: Effect{Kind: EffectApplyStatus, StatusID: "stunned"},
		},
		{
			ID: "barrier", DisplayName: "Barrier", ManaCost: 0, CooldownMs: 0,
			TargetType: TargetSelf, Effect: Effect{Kind: EffectApplyStatus, StatusID: "shieldwall"},
		},
		{
			ID: "might", DisplayName: "Might", ManaCost: 0, CooldownMs: 0,
			TargetType: TargetSelf, Effect: Effect{Kind: EffectApplyStatus, StatusID: "might_buff"},
		},
		{
			ID: "apprentice_spark", DisplayName: "Spark", ManaCost: 1, CooldownMs: 0, LevelRequired: 1,
			TargetType: TargetEnemy, Effect: Effect{Kind: EffectDirectDamage, Min: 1, Max: 1},
		},
		{
			ID: "archmage_nova", DisplayName: "Nova", ManaCost: 1, CooldownMs: 0, LevelRequired: 10,
			TargetType: TargetEnemy, Effect: Effect{Kind: EffectDirectDamage, Min: 1, Max: 1},
		},
	}
	statuses := []StatusDefinition{
		{ID: "poison_dot", DisplayName: "Poison", Kind: StatusDOT, Magnitude: 3, DurationMs: 2000, TickIntervalMs: 1000, Stacking: StackNone},
		{ID: "stunned", DisplayName: "Stunned", Kind: StatusStun, DurationMs: 500, TickIntervalMs: 500, Stacking: StackNone},
		{ID: "shieldwall", DisplayName: "Shieldwall", Kind: StatusShield, Magnitude: 5, DurationMs: 5000, TickIntervalMs: 5000, Stacking: StackRefresh},
		{ID: "might_buff", DisplayName: "Might", Kind: StatusModifier, Magnitude: 2, Attribute: "strength", DurationMs: 2000, TickIntervalMs: 1000, StackCap: 2, Stacking: StackStack},
	}
	return defs, statuses
}

func newTestSubsystem(t *testing.T) (*Subsystem, *player.Registry, *mob.Registry, *clock.Manual, ids.EntityID) {
	t.Helper()
	room, err := ids.NewEntityID("zone1", "hall")
	require.NoError(t, err)

	players := player.NewRegistry()
	mobs := mob.NewRegistry()
	items := item.NewRegistry()
	c := clock.NewManual(0)
	progression := player.ProgressionCurve{BaseXP: 100, Exponent: 1.5, LinearXP: 10, MaxLevel: 50}
	cs := combat.New(combat.Config{MinDamage: 1, MaxDamage: 1, RoundIntervalMs: 1000, MaxCombatsPerTick: 10},
		c, players, mobs, items, fakeRooms{start: room}, nil, progression, nil)

	defs, statuses := testDefs()
	sub, err := New(defs, statuses, players, mobs, cs, c)
	require.NoError(t, err)
	return sub, players, mobs, c, room
}

func spawnTarget(mobs *mob.Registry, room ids.EntityID, hp int) *mob.State {
	id, _ := ids.NewEntityID(room.Zone(), "target-1")
	m := mob.NewFromTemplate(id, mob.Template{ID: "dummy", Name: "a training dummy", MaxHP: hp}, room, 0)
	mobs.Add(m)
	return m
}

func TestCastDealsDamageConsumesManaAndSetsCooldown(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	target := spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 10
	p.KnownAbilities["firebolt"] = true
	require.NoError(t, players.Add(p))

	out, err := sub.Cast(p, "firebolt", "dummy")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, 13, target.HP)
	require.Equal(t, 5, p.Mana)

	_, err = sub.Cast(p, "firebolt", "dummy")
	require.Error(t, err, "still on cooldown")
}

func TestCastFailsWhenUnlearned(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 10
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "firebolt", "dummy")
	require.Error(t, err)
}

func TestCastFailsInsufficientMana(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 2
	p.KnownAbilities["firebolt"] = true
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "firebolt", "dummy")
	require.Error(t, err)
}

func TestResetCooldownsClearsGate(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 10
	p.KnownAbilities["firebolt"] = true
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "firebolt", "dummy")
	require.NoError(t, err)

	_, err = sub.Cast(p, "firebolt", "dummy")
	require.Error(t, err)

	sub.ResetCooldowns(p.Name)
	p.Mana = 10
	_, err = sub.Cast(p, "firebolt", "dummy")
	require.NoError(t, err, "reconnect resets cooldowns since they are session-local")
}

func TestCastHealClampsAtMaxHP(t *testing.T) {
	sub, players, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.HP = 15
	p.MaxHP = 20
	p.Mana = 10
	p.KnownAbilities["heal"] = true
	require.NoError(t, players.Add(p))

	out, err := sub.Cast(p, "heal", "")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, 20, p.HP)
}

func TestUseBypassesKnownAbilityGate(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	target := spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 10
	require.NoError(t, players.Add(p))

	_, err := sub.Use(p, "firebolt", "dummy")
	require.NoError(t, err, "Use is for innate/item-triggered effects, not gated by KnownAbilities")
	require.Equal(t, 13, target.HP)
}

func TestTickAppliesDotDamageThenExpires(t *testing.T) {
	sub, _, mobs, _, room := newTestSubsystem(t)
	target := spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.KnownAbilities["poison"] = true

	_, err := sub.Cast(p, "poison", "dummy")
	require.NoError(t, err)

	var out []events.Outbound
	sub.Tick(1000, &out)
	require.Equal(t, 17, target.HP, "first DOT tick fires at the 1000ms interval")

	out = nil
	sub.Tick(2000, &out)
	require.Equal(t, 14, target.HP, "DOT hasn't expired yet at exactly its 2000ms duration boundary")

	out = nil
	sub.Tick(2001, &out)
	require.Equal(t, 14, target.HP, "expiry removes the effect without a further tick")
}

func TestActionsGatedReflectsActiveStun(t *testing.T) {
	sub, players, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.KnownAbilities["stunself"] = true
	require.NoError(t, players.Add(p))

	stunned, rooted := sub.ActionsGated(p.Name)
	require.False(t, stunned)
	require.False(t, rooted)

	_, err := sub.Cast(p, "stunself", "")
	require.NoError(t, err)

	stunned, rooted = sub.ActionsGated(p.Name)
	require.True(t, stunned)
	require.False(t, rooted)
}

func TestLearnAbilitiesForLevelGrantsOnlyEligible(t *testing.T) {
	sub, _, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Level = 1

	sub.LearnAbilitiesForLevel(p)

	require.True(t, p.KnownAbilities["apprentice_spark"])
	require.False(t, p.KnownAbilities["archmage_nova"], "level requirement not yet met")

	p.Level = 10
	sub.LearnAbilitiesForLevel(p)
	require.True(t, p.KnownAbilities["archmage_nova"])
}

func TestRemoveAllForClearsStatusAndCooldowns(t *testing.T) {
	sub, players, mobs, _, room := newTestSubsystem(t)
	spawnTarget(mobs, room, 20)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.Mana = 10
	p.KnownAbilities["firebolt"] = true
	p.KnownAbilities["stunself"] = true
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "firebolt", "dummy")
	require.NoError(t, err)
	_, err = sub.Cast(p, "stunself", "")
	require.NoError(t, err)

	sub.RemoveAllFor(p.Name)

	stunned, _ := sub.ActionsGated(p.Name)
	require.False(t, stunned, "disconnect clears active status effects")

	p.Mana = 10
	_, err = sub.Cast(p, "firebolt", "dummy")
	require.NoError(t, err, "disconnect also clears cooldowns")
}

func TestShieldAbsorbsIncomingDamageBeforeHP(t *testing.T) {
	sub, players, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.KnownAbilities["barrier"] = true
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "barrier", "")
	require.NoError(t, err)

	require.Equal(t, 0, sub.AbsorbIncoming(p.Name, 3), "the 5-point shield eats the whole hit")
	require.Equal(t, 2, sub.AbsorbIncoming(p.Name, 4), "only 2 of the shield remain for the next 4")
	require.Equal(t, 6, sub.AbsorbIncoming(p.Name, 6), "an exhausted shield absorbs nothing")
}

func TestStatModifierAppliesStacksAndRevertsOnExpiry(t *testing.T) {
	sub, players, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.KnownAbilities["might"] = true
	require.NoError(t, players.Add(p))
	require.Equal(t, 10, p.Attrs.Strength)

	_, err := sub.Cast(p, "might", "")
	require.NoError(t, err)
	require.Equal(t, 12, p.Attrs.Strength, "the modifier applies once on instantiation")

	var out []events.Outbound
	sub.Tick(1000, &out)
	require.Equal(t, 12, p.Attrs.Strength, "the per-tick refresh never double-applies")

	_, err = sub.Cast(p, "might", "")
	require.NoError(t, err)
	require.Equal(t, 14, p.Attrs.Strength, "a second stack raises the applied delta")

	out = nil
	sub.Tick(2001, &out)
	require.Equal(t, 10, p.Attrs.Strength, "expiry reverts the full applied delta")
	require.Empty(t, sub.ActiveOn(p.Name))
}

func TestRemoveAllForRevertsStatModifiers(t *testing.T) {
	sub, players, _, _, room := newTestSubsystem(t)
	p := player.NewPlayer("Rin", "rin-acct", room)
	p.KnownAbilities["might"] = true
	require.NoError(t, players.Add(p))

	_, err := sub.Cast(p, "might", "")
	require.NoError(t, err)
	require.Equal(t, 12, p.Attrs.Strength)

	sub.RemoveAllFor(p.Name)
	require.Equal(t, 10, p.Attrs.Strength, "disconnect reverts buffs before the record can be saved")
}

package ability

import (
	"fmt"
	"math/rand"

	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/gmcp"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"
)

// Subsystem resolves cast/use requests against ability and
// status-effect definitions, tracks per-session cooldowns (session-
// local, never persisted — reset on reconnect), and
// ticks active status effects each engine tick.
type Subsystem struct {
	defs       map[string]Definition
	statusDefs map[string]StatusDefinition

	cooldowns map[string]map[string]int64 // playerName -> abilityID -> readyAtMillis
	tracker   *Tracker

	players *player.Registry
	mobs    *mob.Registry
	combat  *combat.Subsystem
	clock   clock.Clock
	rng     *rand.Rand
}

// New builds an ability subsystem from validated definitions. An
// invalid definition (unknown target type or effect/status kind) is a
// hard load-time error, never a silent skip.
func New(defs []Definition, statusDefs []StatusDefinition, players *player.Registry, mobs *mob.Registry, combat *combat.Subsystem, c clock.Clock) (*Subsystem, error) {
	defMap := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		defMap[d.ID] = d
	}
	statusMap := make(map[string]StatusDefinition, len(statusDefs))
	for _, d := range statusDefs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		statusMap[d.ID] = d
	}
	for _, d := range defMap {
		if d.Effect.Kind == EffectApplyStatus {
			if _, ok := statusMap[d.Effect.StatusID]; !ok {
				return nil, fmt.Errorf("ability %s: references unknown status effect %q", d.ID, d.Effect.StatusID)
			}
		}
	}
	sub := &Subsystem{
		defs:       defMap,
		statusDefs: statusMap,
		cooldowns:  make(map[string]map[string]int64),
		tracker:    newTracker(),
		players:    players,
		mobs:       mobs,
		combat:     combat,
		clock:      c,
		rng:        rand.New(rand.NewSource(3)),
	}
	if combat != nil {
		combat.SetShieldAbsorber(sub.AbsorbIncoming)
	}
	return sub, nil
}

// AbsorbIncoming runs incoming player damage through any active SHIELD
// effects, returning what remains to apply to HP. Registered with the
// combat subsystem so every melee hit consults it.
func (s *Subsystem) AbsorbIncoming(playerName string, incoming int) int {
	return s.tracker.ShieldAbsorb(Target{PlayerName: playerName}, incoming)
}

// Definitions returns every loaded ability definition, for the learned
// abilities walk on level-up (internal/player's progression consults
// this through a small adapter the engine wires).
func (s *Subsystem) Definitions() map[string]Definition { return s.defs }

// ResetCooldowns clears a player's cooldowns on reconnect, since
// cooldowns are session-local by design, not an omission.
func (s *Subsystem) ResetCooldowns(playerName string) {
	delete(s.cooldowns, playerName)
}

// ActionsGated reports whether playerName is currently stunned or
// rooted, consulted at command-handler boundaries.
func (s *Subsystem) ActionsGated(playerName string) (stunned, rooted bool) {
	t := Target{PlayerName: playerName}
	return s.tracker.HasKind(t, StatusStun), s.tracker.HasKind(t, StatusRoot)
}

func (s *Subsystem) cooldownReadyAt(playerName, abilityID string) int64 {
	m, ok := s.cooldowns[playerName]
	if !ok {
		return 0
	}
	return m[abilityID]
}

func (s *Subsystem) setCooldown(playerName, abilityID string, readyAt int64) {
	m, ok := s.cooldowns[playerName]
	if !ok {
		m = make(map[string]int64)
		s.cooldowns[playerName] = m
	}
	m[abilityID] = readyAt
}

// Cast resolves a spell cast known to caster (learned by level-up).
func (s *Subsystem) Cast(caster *player.Player, spellName, targetKeyword string) ([]events.Outbound, error) {
	def, ok := s.defs[spellName]
	if !ok {
		return nil, fmt.Errorf("there is no spell called %q", spellName)
	}
	if !caster.KnownAbilities[def.ID] {
		return nil, fmt.Errorf("you haven't learned %s", def.DisplayName)
	}
	return s.resolveAndApply(caster, def, targetKeyword)
}

// Use resolves an item- or ability-triggered effect that bypasses the
// known-spell gate (consumables, innate racial abilities).
func (s *Subsystem) Use(user *player.Player, abilityID, targetKeyword string) ([]events.Outbound, error) {
	def, ok := s.defs[abilityID]
	if !ok {
		return nil, fmt.Errorf("there is no such ability %q", abilityID)
	}
	return s.resolveAndApply(user, def, targetKeyword)
}

func (s *Subsystem) resolveAndApply(caster *player.Player, def Definition, targetKeyword string) ([]events.Outbound, error) {
	if stunned, rooted := s.ActionsGated(caster.Name); stunned {
		return nil, fmt.Errorf("you are stunned and cannot act")
	} else if rooted && def.TargetType == TargetArea {
		return nil, fmt.Errorf("you are rooted and cannot act")
	}

	if caster.Mana < def.ManaCost {
		return nil, fmt.Errorf("insufficient mana (have %d, need %d)", caster.Mana, def.ManaCost)
	}

	now := s.clock.NowMillis()
	readyAt := s.cooldownReadyAt(caster.Name, def.ID)
	if now < readyAt {
		return nil, fmt.Errorf("%s is on cooldown, %dms remaining", def.DisplayName, readyAt-now)
	}

	var out []events.Outbound
	var targetMob *mob.State
	var targetPlayer *player.Player

	switch def.TargetType {
	case TargetEnemy:
		m, ok := s.mobs.FindInRoomByKeyword(caster.Room, targetKeyword)
		if !ok {
			return nil, fmt.Errorf("they aren't here")
		}
		targetMob = m
	case TargetSelf:
		targetPlayer = caster
	case TargetAlly:
		if targetKeyword == "" || targetKeyword == caster.Name {
			targetPlayer = caster
			break
		}
		p, ok := s.players.ByName(targetKeyword)
		if !ok {
			return nil, fmt.Errorf("no such player is here")
		}
		targetPlayer = p
	case TargetArea:
		// Area resolution happens inside the effect switch below.
	}

	caster.Mana -= def.ManaCost
	if caster.Mana < 0 {
		caster.Mana = 0
	}
	s.setCooldown(caster.Name, def.ID, now+def.CooldownMs)

	switch def.Effect.Kind {
	case EffectDirectDamage:
		if targetMob == nil {
			return nil, fmt.Errorf("%s must target an enemy", def.DisplayName)
		}
		dmg := s.roll(def.Effect.Min, def.Effect.Max)
		out = append(out, events.SendText(caster.SessionID, fmt.Sprintf("You cast %s at the %s for %d damage.", def.DisplayName, targetMob.Name, dmg)))
		s.combat.ApplyAbilityDamage(caster, targetMob, dmg, &out)

	case EffectDirectHeal:
		p := targetPlayer
		if p == nil {
			p = caster
		}
		heal := s.roll(def.Effect.Min, def.Effect.Max)
		p.HP += heal
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
		out = append(out, events.SendText(p.SessionID, fmt.Sprintf("You are healed by %s for %d.", def.DisplayName, heal)))

	case EffectAreaDamage:
		for _, m := range s.mobs.InRoom(caster.Room) {
			if !m.Alive() {
				continue
			}
			dmg := s.roll(def.Effect.Min, def.Effect.Max)
			s.combat.ApplyAbilityDamage(caster, m, dmg, &out)
		}
		out = append(out, events.SendText(caster.SessionID, fmt.Sprintf("You unleash %s!", def.DisplayName)))

	case EffectApplyStatus:
		statusDef := s.statusDefs[def.Effect.StatusID]
		var target Target
		if targetMob != nil {
			target = Target{MobID: targetMob.ID}
		} else {
			p := targetPlayer
			if p == nil {
				p = caster
			}
			target = Target{PlayerName: p.Name}
		}
		applied := s.tracker.Apply(now, statusDef, target, def.ID)
		s.syncStatModifier(applied)
		out = append(out, events.SendText(caster.SessionID, fmt.Sprintf("You cast %s.", def.DisplayName)))

	case EffectTaunt:
		if targetMob != nil {
			s.combat.DisengageMob(targetMob.ID)
			_ = s.combat.EngageMob(caster, targetMob)
		}
		out = append(out, events.SendText(caster.SessionID, fmt.Sprintf("You taunt the %s.", targetMob.Name)))
	}

	return out, nil
}

func (s *Subsystem) roll(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

// Tick advances every active status effect, applying periodic
// contributions and expiring those past their duration.
func (s *Subsystem) Tick(nowMillis int64, out *[]events.Outbound) {
	for _, a := range s.tracker.All() {
		if nowMillis > a.ExpiresAt {
			s.expire(a, out)
			continue
		}
		if nowMillis < a.NextTickAt {
			continue
		}
		s.applyPeriodic(a, out)
		a.NextTickAt = nowMillis + a.Def.TickIntervalMs
	}
}

func (s *Subsystem) applyPeriodic(a *Active, out *[]events.Outbound) {
	switch a.Def.Kind {
	case StatusDOT:
		if a.Target.isMob() {
			if m, ok := s.mobs.Get(a.Target.MobID); ok && m.Alive() {
				m.HP -= a.Magnitude
				if m.HP <= 0 {
					// Attribution to the DoT's source caster is not tracked
					// here; combat's fight loop runs the death handling,
					// crediting the engaged player, when that fight's next
					// round comes due.
				}
			}
		} else if p, ok := s.players.ByName(a.Target.PlayerName); ok {
			dmg := s.tracker.ShieldAbsorb(a.Target, a.Magnitude)
			if dmg == 0 {
				*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("Your shield absorbs %s.", a.Def.DisplayName)))
				return
			}
			p.HP -= dmg
			*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("You suffer %d damage from %s.", dmg, a.Def.DisplayName)))
		}
	case StatusHOT:
		if p, ok := s.players.ByName(a.Target.PlayerName); ok {
			p.HP += a.Magnitude
			if p.HP > p.MaxHP {
				p.HP = p.MaxHP
			}
			*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("You recover %d HP from %s.", a.Magnitude, a.Def.DisplayName)))
		}
	case StatusModifier:
		// Refresh: re-assert the modifier so a stack added since the
		// last tick (or anything that clobbered the attribute) is
		// reflected.
		s.syncStatModifier(a)
	}
}

func (s *Subsystem) expire(a *Active, out *[]events.Outbound) {
	s.revertStatModifier(a)
	s.tracker.Remove(a.Target, a.Def.ID)
	if !a.Target.isMob() {
		if p, ok := s.players.ByName(a.Target.PlayerName); ok {
			*out = append(*out, events.SendInfo(p.SessionID, fmt.Sprintf("%s has worn off.", a.Def.DisplayName)))
		}
	}
}

// syncStatModifier brings a STAT_MODIFIER effect's applied attribute
// delta in line with its current magnitude and stack count. Mobs carry
// no attribute block, so mob-targeted modifiers are inert.
func (s *Subsystem) syncStatModifier(a *Active) {
	if a.Def.Kind != StatusModifier || a.Target.isMob() {
		return
	}
	p, ok := s.players.ByName(a.Target.PlayerName)
	if !ok {
		return
	}
	total := a.Def.Magnitude * a.Stacks
	delta := total - a.StatModifier
	if delta == 0 {
		return
	}
	shiftAttribute(p, a.Def.Attribute, delta)
	a.StatModifier = total
}

// revertStatModifier undoes whatever syncStatModifier applied, on
// expiry, cleanse, or disconnect — before the player's record can be
// saved with a transient buff baked in.
func (s *Subsystem) revertStatModifier(a *Active) {
	if a.StatModifier == 0 || a.Target.isMob() {
		return
	}
	if p, ok := s.players.ByName(a.Target.PlayerName); ok {
		shiftAttribute(p, a.Def.Attribute, -a.StatModifier)
	}
	a.StatModifier = 0
}

func shiftAttribute(p *player.Player, attribute string, delta int) {
	switch attribute {
	case "strength":
		p.Attrs.Strength += delta
	case "dexterity":
		p.Attrs.Dexterity += delta
	case "constitution":
		p.Attrs.Constitution += delta
	case "intelligence":
		p.Attrs.Intelligence += delta
	case "wisdom":
		p.Attrs.Wisdom += delta
	case "charisma":
		p.Attrs.Charisma += delta
	}
}

// ActiveOn adapts the tracker's active effects on playerName into the
// flattened shape internal/gmcp's Char.Status package reports, keeping
// gmcp free of a dependency on this package's internals.
func (s *Subsystem) ActiveOn(playerName string) []gmcp.StatusSummary {
	t := Target{PlayerName: playerName}
	now := s.clock.NowMillis()
	var out []gmcp.StatusSummary
	for _, a := range s.tracker.All() {
		if a.Target != t {
			continue
		}
		remaining := a.ExpiresAt - now
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, gmcp.StatusSummary{
			ID:          a.Def.ID,
			Kind:        string(a.Def.Kind),
			RemainingMs: remaining,
			Magnitude:   a.Magnitude,
			Stacks:      a.Stacks,
		})
	}
	return out
}

// ActiveEffectNames lists the display names of playerName's active
// effects, for the effects command.
func (s *Subsystem) ActiveEffectNames(playerName string) []string {
	t := Target{PlayerName: playerName}
	var out []string
	for _, a := range s.tracker.All() {
		if a.Target != t {
			continue
		}
		out = append(out, a.Def.DisplayName)
	}
	return out
}

// RemoveAllFor clears every active status effect on a player, used on
// disconnect and before a handoff serializes the record — stat
// modifiers are reverted first so transient buffs never persist.
func (s *Subsystem) RemoveAllFor(playerName string) {
	t := Target{PlayerName: playerName}
	for _, a := range s.tracker.All() {
		if a.Target == t {
			s.revertStatModifier(a)
		}
	}
	s.tracker.RemoveAllFor(t)
	delete(s.cooldowns, playerName)
}

// LearnAbilitiesForLevel grants every ability whose levelRequired is
// met and whose class restriction (if any) matches, called on login
// and on level-up.
func (s *Subsystem) LearnAbilitiesForLevel(p *player.Player) {
	for id, def := range s.defs {
		if def.LevelRequired > p.Level {
			continue
		}
		if def.ClassRestriction != "" && def.ClassRestriction != string(p.Class) {
			continue
		}
		p.KnownAbilities[id] = true
	}
}

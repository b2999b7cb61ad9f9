// Package combat implements the 1v1 player-vs-mob combat subsystem:
// engagement exclusivity, per-round damage rolls, dodge, death
// handling (loot, XP, gold, level-up, respawn scheduling), and flee.
// Spells delivered through internal/ability funnel into the same
// HandleMobDeath routine melee rounds use, so death resolution exists
// exactly once.
package combat

import (
	"fmt"
	"math/rand"

	"ambonmud/internal/clock"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"
)

// Config carries the engine.combat configuration group.
type Config struct {
	MinDamage         int
	MaxDamage         int
	RoundIntervalMs   int64
	MaxCombatsPerTick int
}

// Fight is one active 1v1 engagement.
type Fight struct {
	PlayerName  string
	MobID       ids.EntityID
	Room        ids.EntityID
	NextRoundAt int64
}

// DeathPolicy decides what happens to a player who dies in combat —
// an explicit policy hook rather than a hardcoded
// respawn/permadeath choice (see DESIGN.md's Open Question decision).
type DeathPolicy interface {
	OnPlayerDeath(p *player.Player, startRoom ids.EntityID) (events.Outbound, ids.EntityID)
}

// RespawnAtStartRoom is the default policy: the player is moved to
// the world's start room at 1 HP. No gold or XP is deducted.
type RespawnAtStartRoom struct{}

func (RespawnAtStartRoom) OnPlayerDeath(p *player.Player, startRoom ids.EntityID) (events.Outbound, ids.EntityID) {
	p.HP = 1
	return events.SendInfo(p.SessionID, "Your vision fades... you awaken elsewhere, worse for wear."), startRoom
}

// Rooms is the subset of world state combat needs: the configured
// start room a dead player respawns at.
type Rooms interface {
	StartRoomID() ids.EntityID
}

// Broadcaster delivers text to every player in a room; the engine
// wires this to player.Registry.InRoom plus the outbound bus.
type Broadcaster interface {
	InRoom(room ids.EntityID) []*player.Player
}

// RespawnScheduler is the subset of internal/scheduler combat needs to
// bring a dead mob back after its configured delay.
type RespawnScheduler interface {
	After(nowMillis, delayMillis int64, fn func(nowMillis int64))
}

// Subsystem is the engine-owned combat state: the active-fight set and
// the mob-targeted-by index that enforces 1v1 exclusivity.
type Subsystem struct {
	cfg   Config
	clock clock.Clock
	rng   *rand.Rand

	players     Broadcaster
	mobs        *mob.Registry
	items       *item.Registry
	rooms       Rooms
	scheduler   RespawnScheduler
	progression player.ProgressionCurve
	death       DeathPolicy

	fights        map[string]*Fight       // playerName -> Fight
	mobTargetedBy map[ids.EntityID]string // mobID -> playerName
	lookupByName  func(string) (*player.Player, bool)
	shieldAbsorb  func(playerName string, incoming int) int
}

// New builds a combat subsystem.
func New(cfg Config, c clock.Clock, players Broadcaster, mobs *mob.Registry, items *item.Registry, rooms Rooms, sched RespawnScheduler, progression player.ProgressionCurve, death DeathPolicy) *Subsystem {
	if death == nil {
		death = RespawnAtStartRoom{}
	}
	return &Subsystem{
		cfg:           cfg,
		clock:         c,
		rng:           rand.New(rand.NewSource(1)),
		players:       players,
		mobs:          mobs,
		items:         items,
		rooms:         rooms,
		scheduler:     sched,
		progression:   progression,
		death:         death,
		fights:        make(map[string]*Fight),
		mobTargetedBy: make(map[ids.EntityID]string),
	}
}

// MobEngaged reports whether any player currently targets mobID.
func (s *Subsystem) MobEngaged(mobID ids.EntityID) bool {
	_, ok := s.mobTargetedBy[mobID]
	return ok
}

// InFight reports whether p is currently engaged.
func (s *Subsystem) InFight(playerName string) bool {
	_, ok := s.fights[playerName]
	return ok
}

// Engage resolves targetKeyword against mobs in attacker's room and
// starts a fight; on an ambiguous keyword the first match wins.
func (s *Subsystem) Engage(attacker *player.Player, targetKeyword string) error {
	if targetKeyword == "" {
		return fmt.Errorf("kill whom?")
	}
	if s.InFight(attacker.Name) {
		return fmt.Errorf("you are already fighting")
	}
	target, ok := s.mobs.FindInRoomByKeyword(attacker.Room, targetKeyword)
	if !ok {
		return fmt.Errorf("they aren't here")
	}
	if existing, taken := s.mobTargetedBy[target.ID]; taken && existing != attacker.Name {
		return fmt.Errorf("someone else is already fighting that")
	}
	s.startFight(attacker, target)
	return nil
}

// EngageMob starts (or reuses) a fight against an already-resolved
// mob, the entry point mob AI uses for aggro behaviors.
func (s *Subsystem) EngageMob(attacker *player.Player, target *mob.State) error {
	if s.InFight(attacker.Name) {
		return fmt.Errorf("already fighting")
	}
	if existing, taken := s.mobTargetedBy[target.ID]; taken && existing != attacker.Name {
		return fmt.Errorf("target already engaged")
	}
	s.startFight(attacker, target)
	return nil
}

func (s *Subsystem) startFight(attacker *player.Player, target *mob.State) {
	now := s.clock.NowMillis()
	f := &Fight{PlayerName: attacker.Name, MobID: target.ID, Room: attacker.Room, NextRoundAt: now + s.cfg.RoundIntervalMs}
	s.fights[attacker.Name] = f
	s.mobTargetedBy[target.ID] = attacker.Name
	attacker.InCombat = true
	attacker.CombatWith = target.ID
}

// Flee ends attacker's fight immediately with no penalty.
func (s *Subsystem) Flee(attacker *player.Player) error {
	f, ok := s.fights[attacker.Name]
	if !ok {
		return fmt.Errorf("you aren't fighting anything")
	}
	s.endFight(f)
	return nil
}

func (s *Subsystem) endFight(f *Fight) {
	delete(s.fights, f.PlayerName)
	delete(s.mobTargetedBy, f.MobID)
}

// DisengageMob clears whatever player has mobID targeted without
// resolving a death, used by coward mob AI breaking off a fight to
// flee.
func (s *Subsystem) DisengageMob(mobID ids.EntityID) {
	if name, ok := s.mobTargetedBy[mobID]; ok {
		if f, ok2 := s.fights[name]; ok2 && f.MobID == mobID {
			if p, ok3 := s.byNameHook(name); ok3 {
				p.InCombat = false
			}
			s.endFight(f)
		}
	}
}

// byNameHook is overridden by the engine via SetPlayerLookup; kept as
// a field rather than a constructor parameter since mobai and combat
// are wired in either order by the composition root.
var noopLookup = func(string) (*player.Player, bool) { return nil, false }

func (s *Subsystem) byNameHook(name string) (*player.Player, bool) {
	if s.lookupByName != nil {
		return s.lookupByName(name)
	}
	return noopLookup(name)
}

// SetPlayerLookup wires the player-by-name resolver used by
// DisengageMob; the engine calls this once during composition.
func (s *Subsystem) SetPlayerLookup(fn func(string) (*player.Player, bool)) {
	s.lookupByName = fn
}

// SetShieldAbsorber wires the SHIELD consultation run on every hit a
// player takes, before HP is reduced; the ability subsystem registers
// itself here during composition. Nil means no absorption.
func (s *Subsystem) SetShieldAbsorber(fn func(playerName string, incoming int) int) {
	s.shieldAbsorb = fn
}

func (s *Subsystem) absorbShield(playerName string, incoming int) int {
	if s.shieldAbsorb == nil {
		return incoming
	}
	return s.shieldAbsorb(playerName, incoming)
}

// EndFightFor clears a player's engagement without combat resolution,
// used by session teardown on disconnect and handoff.
func (s *Subsystem) EndFightFor(playerName string) {
	if f, ok := s.fights[playerName]; ok {
		s.endFight(f)
	}
}

// rollDamage returns an integer in [min,max] inclusive.
func (s *Subsystem) rollDamage(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

// dodgeChance returns a dexterity-derived dodge probability capped at
// 40%, consulted before applying an incoming attack.
func dodgeChance(dex int) float64 {
	pct := float64(dex-10) * 0.015
	if pct < 0 {
		pct = 0
	}
	if pct > 0.40 {
		pct = 0.40
	}
	return pct
}

// Tick advances every fight whose next round is due, up to
// MaxCombatsPerTick fights per call.
func (s *Subsystem) Tick(nowMillis int64, lookup func(ids.SessionID) *player.Player, byName func(string) (*player.Player, bool), out *[]events.Outbound) {
	processed := 0
	for name, f := range s.fights {
		if processed >= s.cfg.MaxCombatsPerTick {
			break
		}
		if f.NextRoundAt > nowMillis {
			continue
		}
		processed++
		p, ok := byName(name)
		if !ok {
			s.endFight(f)
			continue
		}
		m, ok := s.mobs.Get(f.MobID)
		if ok && !m.Dead && m.HP <= 0 {
			// Killed between rounds (a damage-over-time tick): the
			// engaged player is credited with the kill.
			s.HandleMobDeath(p, m, out)
		}
		if !ok || !m.Alive() {
			s.endFight(f)
			continue
		}
		s.resolveRound(nowMillis, p, m, f, out)
	}
}

func (s *Subsystem) resolveRound(now int64, p *player.Player, m *mob.State, f *Fight, out *[]events.Outbound) {
	// Player attacks first: base roll plus strength and equipped-gear
	// bonuses, less mob armor. Ability buffs land through the strength
	// term via stat-modifier status effects.
	if rand2(s.rng) >= dodgeChance(0) {
		dmg := s.rollDamage(s.cfg.MinDamage, s.cfg.MaxDamage) + (p.Attrs.Strength-10)/2 + s.items.EquippedDamageBonus(p.Name)
		dmg -= m.Armor
		if dmg < 1 {
			dmg = 1
		}
		m.HP -= dmg
		*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("You hit the %s for %d damage.", m.Name, dmg)))
	}

	if m.HP <= 0 {
		s.HandleMobDeath(p, m, out)
		s.endFight(f)
		return
	}

	// Mob attacks back unless the player fled/ended already. Any
	// active SHIELD absorbs the hit before HP is touched.
	if rand2(s.rng) < dodgeChance(p.Attrs.Dexterity) {
		*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("You dodge the %s's attack.", m.Name)))
	} else {
		dmg := s.rollDamage(m.MinDamage, m.MaxDamage)
		if dmg < 1 {
			dmg = 1
		}
		dmg = s.absorbShield(p.Name, dmg)
		if dmg == 0 {
			*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("Your shield absorbs the %s's attack.", m.Name)))
		} else {
			p.HP -= dmg
			*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("The %s hits you for %d damage.", m.Name, dmg)))
			if p.HP <= 0 {
				s.handlePlayerDeath(p, out)
				s.endFight(f)
				return
			}
		}
	}

	f.NextRoundAt = now + s.cfg.RoundIntervalMs
}

func rand2(r *rand.Rand) float64 { return r.Float64() }

// ApplyAbilityDamage delivers ability damage to a mob, bypassing mob
// armor (unlike melee), and routes a resulting death through the
// same HandleMobDeath path melee uses.
func (s *Subsystem) ApplyAbilityDamage(caster *player.Player, m *mob.State, dmg int, out *[]events.Outbound) {
	if dmg < 0 {
		dmg = 0
	}
	m.HP -= dmg
	if m.HP <= 0 {
		s.HandleMobDeath(caster, m, out)
		if f, ok := s.fights[caster.Name]; ok && f.MobID == m.ID {
			s.endFight(f)
		}
	}
}

// HandleMobDeath is the single death-resolution routine: broadcast,
// drop inventory, roll loot, grant XP/gold, check level-up, schedule
// respawn. Called from both the melee round and ability damage paths.
func (s *Subsystem) HandleMobDeath(killer *player.Player, m *mob.State, out *[]events.Outbound) {
	m.Dead = true
	delete(s.mobTargetedBy, m.ID)

	for _, p := range s.players.InRoom(m.RoomID) {
		*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("The %s dies.", m.Name)))
	}

	for _, id := range s.items.InMob(m.ID) {
		s.items.PlaceOnFloor(id.ID, m.RoomID)
	}

	for _, entry := range m.Template.LootTable {
		if s.rng.Float64() <= entry.Chance {
			itemID, err := ids.NewEntityID(m.ID.Zone(), entry.ItemTemplateID+"-drop-"+m.ID.Local())
			if err == nil {
				s.items.Spawn(itemID, entry.ItemTemplateID)
				s.items.PlaceOnFloor(itemID, m.RoomID)
			}
		}
	}

	gold := m.GoldMin
	if m.GoldMax > m.GoldMin {
		gold += int64(s.rng.Intn(int(m.GoldMax - m.GoldMin + 1)))
	}
	killer.Gold += gold
	levelsGained := s.progression.ApplyXP(killer, m.XPReward, true)
	*out = append(*out, events.SendText(killer.SessionID, fmt.Sprintf("You have slain the %s! You gain %d experience and %d gold.", m.Name, m.XPReward, gold)))
	if levelsGained > 0 {
		*out = append(*out, events.SendInfo(killer.SessionID, fmt.Sprintf("You have reached level %d!", killer.Level)))
	}
	killer.InCombat = false

	s.mobs.Remove(m.ID)
	if m.RespawnSecs > 0 && s.scheduler != nil {
		zone := m.ID.Zone()
		tmpl := m.Template
		room := m.RoomID
		respawn := m.RespawnSecs
		s.scheduler.After(s.clock.NowMillis(), int64(respawn)*1000, func(nowMillis int64) {
			newID, err := ids.NewEntityID(zone, tmpl.ID+"-respawn")
			if err != nil {
				return
			}
			fresh := mob.NewFromTemplate(newID, tmpl, room, respawn)
			s.mobs.Add(fresh)
		})
	}
}

func (s *Subsystem) handlePlayerDeath(p *player.Player, out *[]events.Outbound) {
	p.InCombat = false
	msg, room := s.death.OnPlayerDeath(p, s.rooms.StartRoomID())
	p.Room = room
	*out = append(*out, msg)
}

// Package player holds the authoritative in-memory model for a
// logged-in character: identity, location, attributes, combat stats,
// inventory, and the staff-key set gating admin commands. It is owned exclusively by the engine goroutine;
// nothing outside internal/engine may mutate a *Player concurrently.
package player

import (
	"sort"

	"ambonmud/internal/ids"
)

// Attributes is the six-stat block every character carries.
// Constitution drives HP regen interval, Wisdom drives mana regen
// interval, Dexterity drives dodge chance, Strength modifies melee
// damage.
type Attributes struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// Race and Class are open string enums: the world data that defines
// per-race/per-class bonuses lives outside the core (world content is
// outside the core), so the core only carries the selected
// name and looks up modifiers through injected tables.
type Race string
type Class string

// Player is one logged-in (or transiently handed-off) character.
type Player struct {
	Name    string
	Account string

	SessionID ids.SessionID
	Room      ids.EntityID

	Race  Race
	Class Class
	Attrs Attributes

	Level int
	XP    int64
	Gold  int64

	HP      int
	MaxHP   int
	Mana    int
	MaxMana int

	AnsiEnabled bool

	Keys map[string]bool

	KnownAbilities map[string]bool
	Achievements   map[string]bool
	QuestProgress  map[string]string // questID -> stage

	GmcpSubscriptions map[string]bool
	GmcpDirty         map[string]bool

	Group *Group

	InCombat   bool
	CombatWith ids.EntityID
	LastRoundMs int64
}

// NewPlayer builds a fresh level-1 character at the given room.
func NewPlayer(name, account string, room ids.EntityID) *Player {
	return &Player{
		Name:              name,
		Account:           account,
		Room:              room,
		Level:             1,
		HP:                20,
		MaxHP:             20,
		Mana:              10,
		MaxMana:           10,
		AnsiEnabled:       true,
		Attrs:             Attributes{Strength: 10, Dexterity: 10, Constitution: 10, Intelligence: 10, Wisdom: 10, Charisma: 10},
		Keys:              make(map[string]bool),
		KnownAbilities:    make(map[string]bool),
		Achievements:      make(map[string]bool),
		QuestProgress:     make(map[string]string),
		GmcpSubscriptions: make(map[string]bool),
		GmcpDirty:         make(map[string]bool),
	}
}

// IsStaff reports whether the player holds any staff key at all, the
// supplemented replacement for a single boolean bit: individual
// commands still gate on named keys, but score/who display collapses
// to a single flag.
func (p *Player) IsStaff() bool { return len(p.Keys) > 0 }

// HasKey reports whether the player carries a single named staff key,
// the check the room/zone editing commands gate on.
func (p *Player) HasKey(key string) bool {
	return p.Keys[key]
}

// HasAllKeys reports whether the player carries every key listed.
func (p *Player) HasAllKeys(keys ...string) bool {
	for _, k := range keys {
		if !p.Keys[k] {
			return false
		}
	}
	return true
}

// HasAnyKey reports whether the player carries at least one key listed.
func (p *Player) HasAnyKey(keys ...string) bool {
	for _, k := range keys {
		if p.Keys[k] {
			return true
		}
	}
	return false
}

// GrantKey adds a staff key; used by account provisioning and by the
// "promote" staff command.
func (p *Player) GrantKey(key string) { p.Keys[key] = true }

// KeyList returns the player's staff keys in deterministic order, for
// score/who display.
func (p *Player) KeyList() []string {
	out := make([]string, 0, len(p.Keys))
	for k := range p.Keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarkGmcpDirty tags a GMCP package as needing re-emission at the next
// coalesced flush point, unless the session never subscribed to it.
func (p *Player) MarkGmcpDirty(pkg string) {
	if !p.GmcpSubscriptions[pkg] {
		return
	}
	if p.GmcpDirty == nil {
		p.GmcpDirty = make(map[string]bool)
	}
	p.GmcpDirty[pkg] = true
}

// Group is a small party of players who share experience and can be
// addressed together by the group-chat commands.
type Group struct {
	Leader  string
	Members []string
}

// Contains reports whether name is a member (including the leader).
func (g *Group) Contains(name string) bool {
	if g == nil {
		return false
	}
	if g.Leader == name {
		return true
	}
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}

// Package mob holds the mutable runtime state for non-player
// characters: identity, combat stats, behavior handle, and respawn
// bookkeeping. Mob templates (the immutable data a spawn instantiates
// from) are world content and load the same way rooms do; this
// package only carries the live, mutable instance state the engine
// mutates each tick.
package mob

import "ambonmud/internal/ids"

// Behavior is one of the small built-in behavior template set.
type Behavior string

const (
	BehaviorStationary   Behavior = "stationary"
	BehaviorWander       Behavior = "wander"
	BehaviorPatrol       Behavior = "patrol"
	BehaviorAggroGuard   Behavior = "aggro_guard"
	BehaviorPatrolAggro  Behavior = "patrol_aggro"
	BehaviorWanderAggro  Behavior = "wander_aggro"
	BehaviorCoward       Behavior = "coward"
)

// Aggressive reports whether this behavior initiates combat on sight.
func (b Behavior) Aggressive() bool {
	switch b {
	case BehaviorAggroGuard, BehaviorPatrolAggro, BehaviorWanderAggro:
		return true
	default:
		return false
	}
}

// Mobile reports whether this behavior moves between rooms on its own.
func (b Behavior) Mobile() bool {
	switch b {
	case BehaviorWander, BehaviorPatrol, BehaviorPatrolAggro, BehaviorWanderAggro:
		return true
	default:
		return false
	}
}

// Template is the immutable definition a spawn instantiates from.
// World content loading and schema live outside the core;
// the engine only ever consumes an already-resolved Template value.
type Template struct {
	ID          string
	Name        string
	Description string
	Behavior    Behavior

	MaxHP      int
	MinDamage  int
	MaxDamage  int
	Armor      int
	XPReward   int64
	GoldMin    int64
	GoldMax    int64

	PatrolRoute []ids.EntityID // for patrol/patrol_aggro
	CowardHPPct int            // flee threshold, percent of MaxHP

	LootTable []LootEntry
	Inventory []string // item template ids the mob carries at spawn
}

// LootEntry is one row of a mob's drop table.
type LootEntry struct {
	ItemTemplateID string
	Chance         float64 // 0..1
}

// State is one live mob instance.
type State struct {
	ID       ids.EntityID
	Template Template
	Name     string
	RoomID   ids.EntityID

	HP        int
	MaxHP     int
	MinDamage int
	MaxDamage int
	Armor     int
	XPReward  int64
	GoldMin   int64
	GoldMax   int64

	Behavior Behavior

	TargetedBy ids.EntityID // empty if untargeted; the 1v1 combat spec enforces one attacker
	Fleeing    bool

	NextWanderAtMillis int64
	PatrolIndex        int

	Inventory []string

	RespawnSecs int
	Dead        bool
}

// NewFromTemplate instantiates a live mob from its template at roomID.
func NewFromTemplate(id ids.EntityID, tmpl Template, roomID ids.EntityID, respawnSecs int) *State {
	inv := make([]string, len(tmpl.Inventory))
	copy(inv, tmpl.Inventory)
	return &State{
		ID:          id,
		Template:    tmpl,
		Name:        tmpl.Name,
		RoomID:      roomID,
		HP:          tmpl.MaxHP,
		MaxHP:       tmpl.MaxHP,
		MinDamage:   tmpl.MinDamage,
		MaxDamage:   tmpl.MaxDamage,
		Armor:       tmpl.Armor,
		XPReward:    tmpl.XPReward,
		GoldMin:     tmpl.GoldMin,
		GoldMax:     tmpl.GoldMax,
		Behavior:    tmpl.Behavior,
		Inventory:   inv,
		RespawnSecs: respawnSecs,
	}
}

// Alive reports whether the mob still has hit points and hasn't been
// marked dead pending respawn.
func (s *State) Alive() bool { return !s.Dead && s.HP > 0 }

// HPPercent returns HP as a percentage of MaxHP, used by coward
// behavior's flee threshold.
func (s *State) HPPercent() int {
	if s.MaxHP <= 0 {
		return 0
	}
	return s.HP * 100 / s.MaxHP
}

// MatchesKeyword reports whether keyword matches this mob by
// substring on display name (case-insensitive), the same rule the
// kill command resolves targets with.
func (s *State) MatchesKeyword(keyword string) bool {
	return containsFold(s.Name, keyword)
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	h, n := foldLower(haystack), foldLower(needle)
	return indexOf(h, n) >= 0
}

func foldLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

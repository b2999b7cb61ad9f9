// Package ability implements externally defined ability
// (spell) and status-effect data, cast/use resolution against mana and
// cooldown, and per-tick status-effect ticking (DoT/HoT/stat
// modifiers, STUN/ROOT action gating, SHIELD damage absorption).
package ability

import "fmt"

// TargetType is the set of legal cast targets. Unknown values fail
// validation at load time — a hard error, never a silent skip.
type TargetType string

const (
	TargetEnemy TargetType = "ENEMY"
	TargetSelf  TargetType = "SELF"
	TargetAlly  TargetType = "ALLY"
	TargetArea  TargetType = "AREA"
)

func (t TargetType) valid() bool {
	switch t {
	case TargetEnemy, TargetSelf, TargetAlly, TargetArea:
		return true
	default:
		return false
	}
}

// EffectKind tags the tagged-union Effect payload.
type EffectKind string

const (
	EffectDirectDamage EffectKind = "DIRECT_DAMAGE"
	EffectDirectHeal   EffectKind = "DIRECT_HEAL"
	EffectApplyStatus  EffectKind = "APPLY_STATUS"
	EffectAreaDamage   EffectKind = "AREA_DAMAGE"
	EffectTaunt        EffectKind = "TAUNT"
)

func (k EffectKind) valid() bool {
	switch k {
	case EffectDirectDamage, EffectDirectHeal, EffectApplyStatus, EffectAreaDamage, EffectTaunt:
		return true
	default:
		return false
	}
}

// Effect is a tagged union: only the fields relevant to Kind are
// populated.
type Effect struct {
	Kind EffectKind

	Min, Max int    // DirectDamage / DirectHeal / AreaDamage
	Radius   int    // AreaDamage
	StatusID string // ApplyStatus
}

// Definition is one externally defined ability.
type Definition struct {
	ID               string
	DisplayName      string
	Description      string
	ManaCost         int
	CooldownMs       int64
	LevelRequired    int
	TargetType       TargetType
	ClassRestriction string // empty = no restriction
	Effect           Effect
}

// Validate rejects an ability whose target type or effect kind isn't
// one of the known enums — a hard load-time error, not a silent skip.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("ability: definition missing id")
	}
	if !d.TargetType.valid() {
		return fmt.Errorf("ability %s: unknown target type %q", d.ID, d.TargetType)
	}
	if !d.Effect.Kind.valid() {
		return fmt.Errorf("ability %s: unknown effect kind %q", d.ID, d.Effect.Kind)
	}
	if d.Effect.Kind == EffectApplyStatus && d.Effect.StatusID == "" {
		return fmt.Errorf("ability %s: APPLY_STATUS effect missing statusId", d.ID)
	}
	return nil
}

// StackingRule governs what happens when a status effect from the
// same source is applied while one is already active on the target.
type StackingRule string

const (
	StackRefresh StackingRule = "REFRESH"
	StackStack   StackingRule = "STACK"
	StackNone    StackingRule = "NONE"
)

func (s StackingRule) valid() bool {
	switch s {
	case StackRefresh, StackStack, StackNone:
		return true
	default:
		return false
	}
}

// StatusKind tags what a status effect does on tick/apply/expire.
type StatusKind string

const (
	StatusDOT      StatusKind = "DOT"
	StatusHOT      StatusKind = "HOT"
	StatusModifier StatusKind = "STAT_MODIFIER"
	StatusStun     StatusKind = "STUN"
	StatusRoot     StatusKind = "ROOT"
	StatusShield   StatusKind = "SHIELD"
)

func (k StatusKind) valid() bool {
	switch k {
	case StatusDOT, StatusHOT, StatusModifier, StatusStun, StatusRoot, StatusShield:
		return true
	default:
		return false
	}
}

// StatusDefinition is one externally defined status effect.
type StatusDefinition struct {
	ID             string
	DisplayName    string
	Kind           StatusKind
	Magnitude      int
	Attribute      string // which attribute a STAT_MODIFIER shifts
	DurationMs     int64
	TickIntervalMs int64
	StackCap       int // only consulted when Stacking == StackStack
	Stacking       StackingRule
}

// modifiableAttributes is the closed set a STAT_MODIFIER may name.
var modifiableAttributes = map[string]bool{
	"strength": true, "dexterity": true, "constitution": true,
	"intelligence": true, "wisdom": true, "charisma": true,
}

// Validate rejects a status effect definition with an unknown kind,
// stacking rule, or stat-modifier attribute.
func (d StatusDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("status effect: definition missing id")
	}
	if !d.Kind.valid() {
		return fmt.Errorf("status effect %s: unknown kind %q", d.ID, d.Kind)
	}
	if !d.Stacking.valid() {
		return fmt.Errorf("status effect %s: unknown stacking rule %q", d.ID, d.Stacking)
	}
	if d.Kind == StatusModifier && !modifiableAttributes[d.Attribute] {
		return fmt.Errorf("status effect %s: STAT_MODIFIER needs a known attribute, got %q", d.ID, d.Attribute)
	}
	return nil
}

package ability

import "ambonmud/internal/ids"

// Target identifies what an Active status effect is attached to:
// either a player (by name) or a mob (by id), one target-ref shape
// generalized over both participant kinds.
type Target struct {
	PlayerName string
	MobID      ids.EntityID
}

func (t Target) isMob() bool { return t.MobID != "" }

// Active is one instantiated status effect riding on a target.
type Active struct {
	Def             StatusDefinition
	Target          Target
	SourceAbilityID string
	Magnitude       int
	StatModifier    int // attribute delta currently applied to the target, reverted on expiry/cleanse
	Stacks          int

	NextTickAt int64
	ExpiresAt  int64
}

// key identifies the (target, definition) pair stacking rules apply
// over.
func key(t Target, defID string) string {
	if t.isMob() {
		return "mob:" + string(t.MobID) + ":" + defID
	}
	return "player:" + t.PlayerName + ":" + defID
}

// Tracker holds every active status effect, indexed for application
// and per-tick iteration.
type Tracker struct {
	byKey map[string]*Active
}

func newTracker() *Tracker {
	return &Tracker{byKey: make(map[string]*Active)}
}

// Apply instantiates (or, per the definition's stacking rule, merges
// into) a status effect on target.
func (tr *Tracker) Apply(nowMillis int64, def StatusDefinition, target Target, sourceAbilityID string) *Active {
	k := key(target, def.ID)
	existing, ok := tr.byKey[k]

	switch def.Stacking {
	case StackRefresh:
		if ok {
			existing.ExpiresAt = nowMillis + def.DurationMs
			existing.NextTickAt = nowMillis + def.TickIntervalMs
			return existing
		}
	case StackStack:
		if ok {
			if def.StackCap <= 0 || existing.Stacks < def.StackCap {
				existing.Stacks++
			}
			existing.ExpiresAt = nowMillis + def.DurationMs
			return existing
		}
	case StackNone:
		// A fresh instance always replaces any existing one.
	}

	active := &Active{
		Def:             def,
		Target:          target,
		SourceAbilityID: sourceAbilityID,
		Magnitude:       def.Magnitude,
		Stacks:          1,
		NextTickAt:      nowMillis + def.TickIntervalMs,
		ExpiresAt:       nowMillis + def.DurationMs,
	}
	tr.byKey[k] = active
	return active
}

// Remove drops an active effect (expiry, cleanse, target death).
func (tr *Tracker) Remove(target Target, defID string) {
	delete(tr.byKey, key(target, defID))
}

// HasKind reports whether target currently carries an active effect of
// the given kind, used by command handlers to gate STUN/ROOT actions.
func (tr *Tracker) HasKind(target Target, kind StatusKind) bool {
	for _, a := range tr.byKey {
		if a.Target == target && a.Def.Kind == kind {
			return true
		}
	}
	return false
}

// ShieldAbsorb reduces incoming damage by any active SHIELD magnitude
// on target, consuming the shield down to zero: SHIELD absorbs
// incoming damage before HP is reduced.
func (tr *Tracker) ShieldAbsorb(target Target, incoming int) int {
	for _, a := range tr.byKey {
		if a.Target != target || a.Def.Kind != StatusShield || a.Magnitude <= 0 {
			continue
		}
		absorbed := incoming
		if absorbed > a.Magnitude {
			absorbed = a.Magnitude
		}
		a.Magnitude -= absorbed
		incoming -= absorbed
		if incoming <= 0 {
			return 0
		}
	}
	return incoming
}

// All returns every active effect, for tick iteration.
func (tr *Tracker) All() []*Active {
	out := make([]*Active, 0, len(tr.byKey))
	for _, a := range tr.byKey {
		out = append(out, a)
	}
	return out
}

// RemoveAllFor clears every active effect on target, used on
// disconnect/handoff.
func (tr *Tracker) RemoveAllFor(target Target) {
	for k, a := range tr.byKey {
		if a.Target == target {
			delete(tr.byKey, k)
		}
	}
}

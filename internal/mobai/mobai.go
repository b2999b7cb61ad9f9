// Package mobai implements the mob behavior subsystem: randomized
// wandering within a delay window, aggro
// variants initiating combat, coward mobs fleeing below an HP
// threshold, and a per-tick movement cap so a large mob population
// can't starve the tick. Mobs never traverse cross-zone exits — those
// are a handoff boundary for players only.
package mobai

import (
	"fmt"
	"math/rand"

	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"
	"ambonmud/internal/world"
)

// Config carries the engine.mob configuration group.
type Config struct {
	MinWanderDelayMs int64
	MaxWanderDelayMs int64
	MaxMovesPerTick  int
}

// Rooms is the subset of world.World the AI subsystem needs.
type Rooms interface {
	Room(id ids.EntityID) (world.Room, bool)
}

// Players is the subset of player.Registry the AI subsystem needs to
// find aggro targets and broadcast movement.
type Players interface {
	InRoom(room ids.EntityID) []*player.Player
}

// Subsystem drives every live mob's behavior once per tick.
type Subsystem struct {
	cfg     Config
	rng     *rand.Rand
	mobs    *mob.Registry
	rooms   Rooms
	players Players
	combat  *combat.Subsystem
}

// New builds a mob AI subsystem.
func New(cfg Config, mobs *mob.Registry, rooms Rooms, players Players, combat *combat.Subsystem) *Subsystem {
	return &Subsystem{cfg: cfg, rng: rand.New(rand.NewSource(2)), mobs: mobs, rooms: rooms, players: players, combat: combat}
}

// Tick advances every mob's behavior, emitting room-broadcast
// Outbound events for movement and engagement.
func (s *Subsystem) Tick(nowMillis int64, out *[]events.Outbound) {
	moves := 0
	for _, m := range s.mobs.All() {
		if !m.Alive() {
			continue
		}

		if m.Behavior == mob.BehaviorCoward && m.HPPercent() <= m.Template.CowardHPPct && s.combat.MobEngaged(m.ID) {
			s.combat.DisengageMob(m.ID)
			if moves < s.cfg.MaxMovesPerTick {
				if s.fleeMove(m, out) {
					moves++
					continue
				}
			}
		}

		if m.Behavior.Aggressive() && !s.combat.MobEngaged(m.ID) {
			s.tryAggro(m, out)
		}

		if m.Behavior.Mobile() && !s.combat.MobEngaged(m.ID) && nowMillis >= m.NextWanderAtMillis {
			if moves < s.cfg.MaxMovesPerTick {
				if s.wander(m, out) {
					moves++
				}
			}
			s.scheduleNextWander(m, nowMillis)
		}
	}
}

func (s *Subsystem) scheduleNextWander(m *mob.State, now int64) {
	span := s.cfg.MaxWanderDelayMs - s.cfg.MinWanderDelayMs
	delay := s.cfg.MinWanderDelayMs
	if span > 0 {
		delay += int64(s.rng.Intn(int(span) + 1))
	}
	m.NextWanderAtMillis = now + delay
}

func (s *Subsystem) tryAggro(m *mob.State, out *[]events.Outbound) {
	for _, p := range s.players.InRoom(m.RoomID) {
		if p.InCombat {
			continue
		}
		if err := s.combat.EngageMob(p, m); err == nil {
			for _, other := range s.players.InRoom(m.RoomID) {
				*out = append(*out, events.SendText(other.SessionID, fmt.Sprintf("The %s attacks %s!", m.Name, p.Name)))
			}
			return
		}
	}
}

// wander picks a legal, same-zone adjacent room and moves m there,
// broadcasting the leave/enter lines to both rooms.
func (s *Subsystem) wander(m *mob.State, out *[]events.Outbound) bool {
	room, ok := s.rooms.Room(m.RoomID)
	if !ok || len(room.Exits) == 0 {
		return false
	}

	var candidates []world.Exit
	for _, exit := range room.Exits {
		if exit.Locked || exit.Closed {
			continue
		}
		if exit.CrossZone(m.RoomID.Zone()) {
			continue
		}
		candidates = append(candidates, exit)
	}
	if len(candidates) == 0 {
		return false
	}
	exit := candidates[s.rng.Intn(len(candidates))]

	for _, p := range s.players.InRoom(m.RoomID) {
		*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("%s leaves %s.", m.Name, directionWord(exit.Direction))))
	}
	m.RoomID = exit.Target
	for _, p := range s.players.InRoom(m.RoomID) {
		*out = append(*out, events.SendText(p.SessionID, fmt.Sprintf("%s enters from %s.", m.Name, directionWord(exit.Direction.Opposite()))))
	}
	return true
}

// fleeMove moves a coward mob to any legal adjacent room regardless of
// wander timing, since fleeing is urgent.
func (s *Subsystem) fleeMove(m *mob.State, out *[]events.Outbound) bool {
	return s.wander(m, out)
}

func directionWord(d world.Direction) string {
	switch d {
	case world.North:
		return "north"
	case world.South:
		return "south"
	case world.East:
		return "east"
	case world.West:
		return "west"
	case world.Up:
		return "up"
	case world.Down:
		return "down"
	case world.Northeast:
		return "northeast"
	case world.Northwest:
		return "northwest"
	case world.Southeast:
		return "southeast"
	case world.Southwest:
		return "southwest"
	default:
		return string(d)
	}
}

// Package command turns a raw input line into a typed Command and
// dispatches it against the engine's world state. Commands are a
// tagged variant rather than a string-keyed registry so the engine's
// tick loop switches on Kind instead of resolving an interface method
// by name; the alias table and staff-key gating carry over unchanged.
package command

import "ambonmud/internal/world"

// Kind tags which variant a Command carries.
type Kind int

const (
	KindLook Kind = iota
	KindMove
	KindSay
	KindTell
	KindShout
	KindEmote
	KindWho
	KindQuit
	KindInventory
	KindGet
	KindDrop
	KindWear
	KindRemove
	KindGive
	KindScore
	KindKill
	KindFlee
	KindCast
	KindUseAbility
	KindRest
	KindBuy
	KindSell
	KindList
	KindGossip
	KindGroupInvite
	KindGroupJoin
	KindGroupLeave
	KindGroupDisband
	KindGroupTell
	KindBalance
	KindAchievements
	KindEffects
	KindSpells
	KindQuestLog
	KindTalk
	KindChoice
	KindClearScreen
	KindAnsi
	KindColors
	KindPhase
	KindHelp
	KindStaffTeleport
	KindStaffRoomEdit
	KindStaffExitEdit
	KindStaffZoneEdit
	KindStaffListRooms
	KindStaffListZones
	KindUnknown
)

// Command is the tagged variant every parsed line collapses to. Only
// the fields relevant to Kind are populated; callers switch on Kind
// before reading them, mirroring the sealed-event-type pattern used in
// the event bus.
type Command struct {
	Kind Kind
	Raw  string

	DirectionName string
	Target        string
	Args          []string
	Text          string

	// Staff sub-operation fields, populated only for KindStaff*.
	StaffOp     string // create/edit/info/delete/list
	RoomID      string
	ExitID      string
	ZoneID      string
	Title       string
	Description string
}

// aliasDirections expands short direction forms to their canonical
// name before parsing.
var aliasDirections = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
	"u": "up", "d": "down",
}

var directionWords = map[string]bool{
	"north": true, "south": true, "east": true, "west": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
	"up": true, "down": true,
}

func expandDirection(word string) (string, bool) {
	if full, ok := aliasDirections[word]; ok {
		return full, true
	}
	if directionWords[word] {
		return word, true
	}
	return "", false
}

var directionCodes = map[string]world.Direction{
	"north": world.North, "south": world.South, "east": world.East, "west": world.West,
	"up": world.Up, "down": world.Down,
	"northeast": world.Northeast, "northwest": world.Northwest,
	"southeast": world.Southeast, "southwest": world.Southwest,
}

// directionCode maps a full direction word (as produced by
// expandDirection) to the abbreviated code the world package keys
// Room.Exits by.
func directionCode(name string) world.Direction {
	return directionCodes[name]
}

// DirectionCode is directionCode for callers outside the dispatcher;
// the engine uses it to resolve a parsed move's exit before deciding
// whether the move crosses a shard boundary.
func DirectionCode(name string) world.Direction {
	return directionCode(name)
}

package command

import (
	"fmt"
	"sort"
	"strings"

	"ambonmud/internal/ids"
	"ambonmud/internal/world"
)

// Editor is the subset of world.Editor the staff commands use,
// interfaced so command stays decoupled from the concrete overlay
// type the engine wires in.
type Editor interface {
	CreateRoom(id ids.EntityID, title string) error
	EditRoomDescription(id ids.EntityID, description string) error
	DeleteRoom(id ids.EntityID) error
	CreateExit(from ids.EntityID, dir world.Direction, target ids.EntityID) error
	DeleteExit(from ids.EntityID, dir world.Direction) error
	CreateZone(name string) error
	Snapshot() world.World
}

// requiredStaffKey is the single key gating every KindStaff* command,
// the same key the room/exit/zone building commands have always
// required.
const requiredStaffKey = "builder"

func dispatchStaff(cmd Command, ctx *Context) {
	if !ctx.Player.HasKey(requiredStaffKey) {
		ctx.err("You don't have permission to do that.")
		return
	}
	editor, ok := ctx.World.(interface{ AsEditor() Editor })
	var ed Editor
	if ok {
		ed = editor.AsEditor()
	}

	switch cmd.Kind {
	case KindStaffTeleport:
		dispatchStaffTeleport(cmd, ctx)
	case KindStaffListRooms:
		dispatchStaffListRooms(ed, ctx)
	case KindStaffListZones:
		dispatchStaffListZones(ed, ctx)
	case KindStaffRoomEdit:
		dispatchStaffRoomEdit(cmd, ed, ctx)
	case KindStaffExitEdit:
		dispatchStaffExitEdit(cmd, ed, ctx)
	case KindStaffZoneEdit:
		dispatchStaffZoneEdit(cmd, ed, ctx)
	}
}

func dispatchStaffTeleport(cmd Command, ctx *Context) {
	target := ids.EntityID(cmd.RoomID)
	if _, ok := ctx.World.Room(target); !ok {
		ctx.err("No such room.")
		return
	}
	ctx.Player.Room = target
	dispatchLook(Command{Kind: KindLook}, ctx)
}

func dispatchStaffListRooms(ed Editor, ctx *Context) {
	if ed == nil {
		ctx.err("World editing is unavailable.")
		return
	}
	w := ed.Snapshot()
	names := make([]string, 0, len(w.Rooms))
	for id := range w.Rooms {
		names = append(names, string(id))
	}
	sort.Strings(names)
	ctx.tell("Rooms: " + strings.Join(names, ", "))
}

func dispatchStaffListZones(ed Editor, ctx *Context) {
	if ed == nil {
		ctx.err("World editing is unavailable.")
		return
	}
	w := ed.Snapshot()
	names := make([]string, 0, len(w.Zones))
	for name := range w.Zones {
		names = append(names, name)
	}
	sort.Strings(names)
	ctx.tell("Zones: " + strings.Join(names, ", "))
}

func dispatchStaffRoomEdit(cmd Command, ed Editor, ctx *Context) {
	if ed == nil {
		ctx.err("World editing is unavailable.")
		return
	}
	var err error
	switch cmd.StaffOp {
	case "create":
		err = ed.CreateRoom(ids.EntityID(cmd.RoomID), cmd.Title)
	case "edit":
		err = ed.EditRoomDescription(ids.EntityID(cmd.RoomID), cmd.Description)
	case "delete":
		err = ed.DeleteRoom(ids.EntityID(cmd.RoomID))
	case "info":
		room, ok := ctx.World.Room(ids.EntityID(cmd.RoomID))
		if !ok {
			ctx.err("No such room.")
			return
		}
		ctx.tell(fmt.Sprintf("%s: %s", room.ID, room.Title))
		return
	}
	if err != nil {
		ctx.err(err.Error())
		return
	}
	ctx.tell("Done.")
}

func dispatchStaffExitEdit(cmd Command, ed Editor, ctx *Context) {
	if ed == nil {
		ctx.err("World editing is unavailable.")
		return
	}
	dir := directionCode(cmd.DirectionName)
	var err error
	switch cmd.StaffOp {
	case "create":
		err = ed.CreateExit(ctx.Player.Room, dir, ids.EntityID(cmd.RoomID))
	case "delete":
		err = ed.DeleteExit(ctx.Player.Room, dir)
	case "list":
		room, ok := ctx.World.Room(ctx.Player.Room)
		if !ok {
			ctx.err("You are nowhere.")
			return
		}
		ctx.tell(fmt.Sprintf("Exits: %v", room.ObviousExits()))
		return
	}
	if err != nil {
		ctx.err(err.Error())
		return
	}
	ctx.tell("Done.")
}

func dispatchStaffZoneEdit(cmd Command, ed Editor, ctx *Context) {
	if ed == nil {
		ctx.err("World editing is unavailable.")
		return
	}
	if cmd.StaffOp == "create" {
		if err := ed.CreateZone(cmd.ZoneID); err != nil {
			ctx.err(err.Error())
			return
		}
		ctx.tell("Done.")
	}
}

package world

import (
	"fmt"
	"sync"

	"ambonmud/internal/ids"
)

// Editor wraps a World with the mutation operations the
// CmdRoom/CmdExit/CmdZone staff commands performed directly on a
// package-level RoomManager. Its methods are lock-guarded and change
// the wrapped World in place, so every holder of that World (whose
// room and zone maps are shared) sees the edits; they stay in memory
// until an operator persists them back to the zone file.
type Editor struct {
	mu sync.Mutex
	w  *World
}

// NewEditor wraps w for staff editing. w is mutated in place; callers
// that need the pre-edit value should keep their own copy.
func NewEditor(w *World) *Editor {
	return &Editor{w: w}
}

// CreateRoom adds a new room to the given zone.
func (e *Editor) CreateRoom(id ids.EntityID, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.w.Rooms[id]; exists {
		return fmt.Errorf("world: room %q already exists", id)
	}
	e.w.Rooms[id] = Room{ID: id, Title: title, Exits: make(map[Direction]Exit)}
	return nil
}

// EditRoomDescription updates a room's description text.
func (e *Editor) EditRoomDescription(id ids.EntityID, description string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.w.Rooms[id]
	if !ok {
		return fmt.Errorf("world: room %q does not exist", id)
	}
	room.Description = description
	e.w.Rooms[id] = room
	return nil
}

// DeleteRoom removes a room, refusing if it is the configured start
// room.
func (e *Editor) DeleteRoom(id ids.EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == e.w.StartRoom {
		return fmt.Errorf("world: cannot delete the start room")
	}
	if _, ok := e.w.Rooms[id]; !ok {
		return fmt.Errorf("world: room %q does not exist", id)
	}
	delete(e.w.Rooms, id)
	return nil
}

// CreateExit adds an exit from a room in the given direction.
func (e *Editor) CreateExit(from ids.EntityID, dir Direction, target ids.EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.w.Rooms[from]
	if !ok {
		return fmt.Errorf("world: room %q does not exist", from)
	}
	if room.Exits == nil {
		room.Exits = make(map[Direction]Exit)
	}
	room.Exits[dir] = Exit{Direction: dir, Target: target}
	e.w.Rooms[from] = room
	return nil
}

// DeleteExit removes an exit.
func (e *Editor) DeleteExit(from ids.EntityID, dir Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.w.Rooms[from]
	if !ok {
		return fmt.Errorf("world: room %q does not exist", from)
	}
	delete(room.Exits, dir)
	e.w.Rooms[from] = room
	return nil
}

// CreateZone registers a new zone name.
func (e *Editor) CreateZone(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.w.Zones[name]; exists {
		return fmt.Errorf("world: zone %q already exists", name)
	}
	e.w.Zones[name] = Zone{Name: name}
	return nil
}

// Snapshot returns a read-only copy of the current world for
// room/zone listing commands.
func (e *Editor) Snapshot() World {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.w
}

package world

import (
	"fmt"
	"os"

	"ambonmud/internal/ids"
	"gopkg.in/yaml.v3"
)

// fileWorld mirrors the on-disk YAML shape of a world file. World
// content loading and its schema are outside the core's concerns; this
// loader exists only so the standalone composition root can produce an
// immutable World value to hand the engine. The engine itself only ever
// sees the resulting World, never this intermediate shape.
type fileWorld struct {
	StartRoom string `yaml:"startRoom"`
	Zones     []struct {
		Name            string `yaml:"name"`
		LifespanMinutes int    `yaml:"lifespanMinutes"`
	} `yaml:"zones"`
	Rooms []struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Darkness    bool   `yaml:"darkness"`
		Terrain     string `yaml:"terrain"`
		HasTrap     bool   `yaml:"hasTrap"`
		TrapDamage  int    `yaml:"trapDamage"`
		BlocksMagic bool   `yaml:"blocksMagic"`
		Exits       []struct {
			Direction   string   `yaml:"direction"`
			Target      string   `yaml:"target"`
			Keywords    []string `yaml:"keywords"`
			Locked      bool     `yaml:"locked"`
			RequiredKey string   `yaml:"requiredKey"`
		} `yaml:"exits"`
	} `yaml:"rooms"`
	MobSpawns []struct {
		TemplateID  string `yaml:"templateId"`
		RoomID      string `yaml:"roomId"`
		RespawnSecs int    `yaml:"respawnSecs"`
	} `yaml:"mobSpawns"`
	ItemSpawns []struct {
		TemplateID string `yaml:"templateId"`
		RoomID     string `yaml:"roomId"`
	} `yaml:"itemSpawns"`
}

// LoadFile reads a YAML world file from disk and builds an immutable
// World value, failing loudly on any malformed id or dangling
// reference rather than silently dropping content.
func LoadFile(path string) (World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return World{}, fmt.Errorf("world: reading %s: %w", path, err)
	}

	var fw fileWorld
	if err := yaml.Unmarshal(raw, &fw); err != nil {
		return World{}, fmt.Errorf("world: parsing %s: %w", path, err)
	}

	w := World{
		Rooms: make(map[ids.EntityID]Room, len(fw.Rooms)),
		Zones: make(map[string]Zone, len(fw.Zones)),
	}

	for _, z := range fw.Zones {
		w.Zones[z.Name] = Zone{Name: z.Name, LifespanMinutes: z.LifespanMinutes}
	}

	for _, r := range fw.Rooms {
		id, err := ids.ParseEntityID(r.ID)
		if err != nil {
			return World{}, fmt.Errorf("world: room: %w", err)
		}
		room := Room{
			ID:          id,
			Title:       r.Title,
			Description: r.Description,
			Exits:       make(map[Direction]Exit, len(r.Exits)),
			Darkness:    r.Darkness,
			Terrain:     r.Terrain,
			HasTrap:     r.HasTrap,
			TrapDamage:  r.TrapDamage,
			BlocksMagic: r.BlocksMagic,
		}
		for _, e := range r.Exits {
			target, err := ids.ParseEntityID(e.Target)
			if err != nil {
				return World{}, fmt.Errorf("world: exit in room %s: %w", r.ID, err)
			}
			dir := Direction(e.Direction)
			room.Exits[dir] = Exit{
				Direction:   dir,
				Target:      target,
				Keywords:    e.Keywords,
				Locked:      e.Locked,
				RequiredKey: e.RequiredKey,
			}
		}
		w.Rooms[id] = room
	}

	start, err := ids.ParseEntityID(fw.StartRoom)
	if err != nil {
		return World{}, fmt.Errorf("world: startRoom: %w", err)
	}
	w.StartRoom = start

	for _, m := range fw.MobSpawns {
		roomID, err := ids.ParseEntityID(m.RoomID)
		if err != nil {
			return World{}, fmt.Errorf("world: mobSpawn: %w", err)
		}
		w.MobSpawns = append(w.MobSpawns, MobSpawn{TemplateID: m.TemplateID, RoomID: roomID, RespawnSecs: m.RespawnSecs})
	}
	for _, it := range fw.ItemSpawns {
		roomID, err := ids.ParseEntityID(it.RoomID)
		if err != nil {
			return World{}, fmt.Errorf("world: itemSpawn: %w", err)
		}
		w.ItemSpawns = append(w.ItemSpawns, ItemSpawn{TemplateID: it.TemplateID, RoomID: roomID})
	}

	if err := w.Validate(); err != nil {
		return World{}, err
	}

	return w, nil
}

// Package gmcp composes the structured side-channel snapshots
// subscribed clients mirror: a gameplay change tags a player's package
// dirty, and at a tick boundary the emitter builds a fresh snapshot
// and wraps it in a GmcpData outbound event. It applies the same
// coalescing idea as the gateway's writePump, which folds every queued
// outbound message into a single frame write per wake-up — the same
// coalesce-at-flush-point shape, applied to structured data instead of
// raw text frames.
package gmcp

import (
	"encoding/json"
	"fmt"
	"sort"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/player"
	"ambonmud/internal/world"
)

// Package name constants. Real GMCP implementations namespace these as
// dotted strings; the set here covers the snapshot families the
// engine mirrors (vitals, mob hp, room, inventory, chat) plus group
// state, which rides the same coalesced-vitals path.
const (
	PackageVitals    = "Char.Vitals"
	PackageStatus    = "Char.Status"
	PackageInventory = "Char.Items.Inv"
	PackageRoom      = "Room.Info"
	PackageGroup     = "Char.Group"
	PackageChat      = "Comm.Channel"
)

// CorePackages is what a WebSocket-class session auto-subscribes to on
// connect; telnet-class sessions subscribe explicitly.
var CorePackages = []string{PackageVitals, PackageRoom}

// immediate names the immediate-emission packages, as opposed to the
// tick-coalesced ones. Nothing in this package reads it, and
// Comm.Channel has no snapshot composer.
var immediate = map[string]bool{
	PackageInventory: true,
	PackageChat:      true,
}

// Rooms is the world lookup the emitter needs to compose Room.Info.
type Rooms interface {
	Room(id ids.EntityID) (world.Room, bool)
}

// Mobs is the mob lookup the emitter needs to report who else is
// present in a room.
type Mobs interface {
	InRoom(room ids.EntityID) []*mob.State
}

// Players is the player lookup the emitter needs to report who else
// is present in a room.
type Players interface {
	InRoom(room ids.EntityID) []*player.Player
}

// Items is the item lookup the emitter needs to compose
// Char.Items.Inv.
type Items interface {
	InInventory(playerName string) []*item.Instance
	Template(id string) (item.Template, bool)
}

// StatusSource reports the active status effects on a target, backed
// by internal/ability's Tracker.
type StatusSource interface {
	ActiveOn(playerName string) []StatusSummary
}

// StatusSummary is the flattened view of one active status effect the
// Char.Status package reports; internal/ability adapts its Active
// values into this shape so this package stays free of a dependency
// on ability's internals.
type StatusSummary struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	RemainingMs  int64  `json:"remainingMs"`
	Magnitude    int    `json:"magnitude"`
	Stacks       int    `json:"stacks"`
}

// Emitter composes GMCP snapshots and drives subscription state on
// Player values.
type Emitter struct {
	rooms   Rooms
	mobs    Mobs
	players Players
	items   Items
	status  StatusSource
}

// NewEmitter builds an Emitter backed by the given lookups. status may
// be nil if the deployment never wires ability status effects.
func NewEmitter(rooms Rooms, mobs Mobs, players Players, items Items, status StatusSource) *Emitter {
	return &Emitter{rooms: rooms, mobs: mobs, players: players, items: items, status: status}
}

// AutoSubscribeCore marks p subscribed to every core package and tags
// each dirty, for the initial snapshot burst a WebSocket-class login
// sends.
func (e *Emitter) AutoSubscribeCore(p *player.Player) {
	for _, pkg := range CorePackages {
		e.Subscribe(p, pkg)
	}
}

// Subscribe adds pkg to p's subscription set and marks it dirty so the
// next flush sends an initial snapshot.
func (e *Emitter) Subscribe(p *player.Player, pkg string) {
	p.GmcpSubscriptions[pkg] = true
	p.MarkGmcpDirty(pkg)
}

// Unsubscribe removes pkg from p's subscription set; unsubscribed
// packages are never emitted again until resubscribed.
func (e *Emitter) Unsubscribe(p *player.Player, pkg string) {
	delete(p.GmcpSubscriptions, pkg)
	delete(p.GmcpDirty, pkg)
}

// HandleSubscriptionRequest applies a GmcpReceived inbound event whose
// package name is the client's subscribe/unsubscribe control channel
// ("Core.Supports.Set" style payloads list package names to add;
// "Core.Supports.Remove" lists ones to drop). Any other package name
// received from a client is ignored; GMCP is an outbound-only side
// channel for everything but subscription control.
func (e *Emitter) HandleSubscriptionRequest(p *player.Player, in events.Inbound) {
	switch in.Package {
	case "Core.Supports.Set":
		var pkgs []string
		if err := json.Unmarshal([]byte(in.JSONPayload), &pkgs); err != nil {
			return
		}
		for _, pkg := range pkgs {
			e.Subscribe(p, pkg)
		}
	case "Core.Supports.Remove":
		var pkgs []string
		if err := json.Unmarshal([]byte(in.JSONPayload), &pkgs); err != nil {
			return
		}
		for _, pkg := range pkgs {
			e.Unsubscribe(p, pkg)
		}
	}
}

// EmitNow composes pkg's current snapshot for p immediately, bypassing
// the dirty flag, for immediate-emission changes such as an inventory
// change rather than waiting for the next tick flush. Returns the zero
// Outbound and false if p never subscribed to pkg or pkg has no
// snapshot composer (Comm.Channel has none).
func (e *Emitter) EmitNow(p *player.Player, pkg string) (events.Outbound, bool) {
	if !p.GmcpSubscriptions[pkg] {
		return events.Outbound{}, false
	}
	payload, err := e.compose(p, pkg)
	if err != nil {
		return events.Outbound{}, false
	}
	return events.GmcpData(p.SessionID, pkg, payload), true
}

// FlushDirty composes a GmcpData event for every package p has tagged
// dirty since the last flush and clears the dirty set, the tick-
// boundary coalescing step. Packages in the immediate set are composed
// here too when dirty (Subscribe marks them, for the initial snapshot);
// a dirty package with no composer is dropped without an event.
func (e *Emitter) FlushDirty(p *player.Player) []events.Outbound {
	if len(p.GmcpDirty) == 0 {
		return nil
	}
	pkgs := make([]string, 0, len(p.GmcpDirty))
	for pkg := range p.GmcpDirty {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	out := make([]events.Outbound, 0, len(pkgs))
	for _, pkg := range pkgs {
		payload, err := e.compose(p, pkg)
		if err != nil {
			continue
		}
		out = append(out, events.GmcpData(p.SessionID, pkg, payload))
	}
	for _, pkg := range pkgs {
		delete(p.GmcpDirty, pkg)
	}
	return out
}

func (e *Emitter) compose(p *player.Player, pkg string) (string, error) {
	switch pkg {
	case PackageVitals:
		return e.vitals(p)
	case PackageStatus:
		return e.statusJSON(p)
	case PackageInventory:
		return e.inventory(p)
	case PackageRoom:
		return e.room(p)
	case PackageGroup:
		return e.group(p)
	default:
		return "", fmt.Errorf("gmcp: unknown package %q", pkg)
	}
}

type vitalsPayload struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"maxhp"`
	Mana    int `json:"mana"`
	MaxMana int `json:"maxmana"`
}

func (e *Emitter) vitals(p *player.Player) (string, error) {
	return marshal(vitalsPayload{HP: p.HP, MaxHP: p.MaxHP, Mana: p.Mana, MaxMana: p.MaxMana})
}

func (e *Emitter) statusJSON(p *player.Player) (string, error) {
	if e.status == nil {
		return marshal([]StatusSummary{})
	}
	return marshal(e.status.ActiveOn(p.Name))
}

type inventoryItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *Emitter) inventory(p *player.Player) (string, error) {
	var out []inventoryItem
	if e.items != nil {
		for _, inst := range e.items.InInventory(p.Name) {
			name := inst.TemplateID
			if t, ok := e.items.Template(inst.TemplateID); ok {
				name = t.Name
			}
			out = append(out, inventoryItem{ID: string(inst.ID), Name: name})
		}
	}
	return marshal(out)
}

type roomPayload struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Exits   []string `json:"exits"`
	Players []string `json:"players"`
	Mobs    []string `json:"mobs"`
}

func (e *Emitter) room(p *player.Player) (string, error) {
	r, ok := e.rooms.Room(p.Room)
	if !ok {
		return marshal(roomPayload{})
	}

	payload := roomPayload{ID: string(r.ID), Title: r.Title}
	for _, d := range r.ObviousExits() {
		payload.Exits = append(payload.Exits, string(d))
	}
	if e.players != nil {
		for _, other := range e.players.InRoom(p.Room) {
			if other.Name == p.Name {
				continue
			}
			payload.Players = append(payload.Players, other.Name)
		}
	}
	if e.mobs != nil {
		for _, m := range e.mobs.InRoom(p.Room) {
			payload.Mobs = append(payload.Mobs, m.Name)
		}
	}
	return marshal(payload)
}

type groupPayload struct {
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

func (e *Emitter) group(p *player.Player) (string, error) {
	if p.Group == nil {
		return marshal(groupPayload{})
	}
	return marshal(groupPayload{Leader: p.Group.Leader, Members: p.Group.Members})
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("gmcp: marshal: %w", err)
	}
	return string(b), nil
}

package mob

import (
	"sync"

	"ambonmud/internal/ids"
)

// Registry indexes every live mob instance by id and by room,
// avoiding a package-level singleton in favor of an
// explicit value the engine owns per shard (mirroring
// player.Registry).
type Registry struct {
	mu      sync.RWMutex
	byID    map[ids.EntityID]*State
	nextSeq map[string]int // zone -> next local-id sequence for spawned instances
}

// NewRegistry builds an empty mob registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[ids.EntityID]*State),
		nextSeq: make(map[string]int),
	}
}

// Add registers a mob instance.
func (r *Registry) Add(s *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
}

// Remove drops a mob instance (on death, pending respawn, or zone
// reset teardown).
func (r *Registry) Remove(id ids.EntityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Get looks up a mob by id.
func (r *Registry) Get(id ids.EntityID) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// InRoom returns every live mob currently in room.
func (r *Registry) InRoom(room ids.EntityID) []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*State
	for _, s := range r.byID {
		if s.RoomID == room {
			out = append(out, s)
		}
	}
	return out
}

// FindInRoomByKeyword resolves a player-typed keyword against mobs in
// room: case-insensitive substring match on display name, first match
// wins on ambiguity.
func (r *Registry) FindInRoomByKeyword(room ids.EntityID, keyword string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []*State
	for _, s := range r.byID {
		if s.RoomID == room && s.Alive() {
			candidates = append(candidates, s)
		}
	}
	// Deterministic tie-break: stable order by id string.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].ID < candidates[j-1].ID; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	for _, s := range candidates {
		if s.MatchesKeyword(keyword) {
			return s, true
		}
	}
	return nil, false
}

// All returns every live mob instance, for tick iteration.
func (r *Registry) All() []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*State, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// AllInZone returns every mob instance whose id carries the given
// zone prefix, used on zone reset.
func (r *Registry) AllInZone(zone string) []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*State
	for _, s := range r.byID {
		if s.ID.Zone() == zone {
			out = append(out, s)
		}
	}
	return out
}

// NextLocalID returns the next spawn-instance local id for zone,
// incrementing its sequence counter, used when a respawn timer fires
// and a fresh instance id is needed.
func (r *Registry) NextLocalID(zone, templateID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq[zone]++
	n := r.nextSeq[zone]
	return templateID + "-" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

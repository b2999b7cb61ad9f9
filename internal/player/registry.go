package player

import (
	"fmt"
	"sync"

	"ambonmud/internal/ids"
)

// Registry indexes every connected player by name and by session, an
// explicit constructor-injected value the engine owns rather than a
// package-level singleton.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Player
	bySession map[ids.SessionID]*Player
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]*Player),
		bySession: make(map[ids.SessionID]*Player),
	}
}

// Add registers a newly logged-in player. It returns an error if the
// name is already connected, since only one session per character
// name may be active at a time.
func (r *Registry) Add(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[p.Name]; exists {
		return fmt.Errorf("player: %q is already connected", p.Name)
	}
	r.byName[p.Name] = p
	r.bySession[p.SessionID] = p
	return nil
}

// RemoveBySession drops the player bound to session, if any, returning it.
func (r *Registry) RemoveBySession(session ids.SessionID) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.bySession[session]
	if !ok {
		return nil, false
	}
	delete(r.bySession, session)
	delete(r.byName, p.Name)
	return p, true
}

// ByName looks up a connected player by character name.
func (r *Registry) ByName(name string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// BySession looks up a connected player by session id.
func (r *Registry) BySession(session ids.SessionID) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bySession[session]
	return p, ok
}

// Rebind updates the session bound to an already-registered player,
// used when a handed-off player is re-attached to a new gateway
// connection after a zone transfer.
func (r *Registry) Rebind(p *Player, session ids.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySession, p.SessionID)
	p.SessionID = session
	r.bySession[session] = p
}

// Names returns every currently connected player's name, for the "who"
// command.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Sessions snapshots name -> session for every connected player,
// taken under the lock so background publishers (the player location
// index heartbeat) never race the engine's rebinds.
func (r *Registry) Sessions() map[string]ids.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ids.SessionID, len(r.byName))
	for name, p := range r.byName {
		out[name] = p.SessionID
	}
	return out
}

// InRoom returns every connected player currently in room.
func (r *Registry) InRoom(room ids.EntityID) []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Player
	for _, p := range r.byName {
		if p.Room == room {
			out = append(out, p)
		}
	}
	return out
}

// Count reports the number of connected players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

package sharding

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Location is one entry of the player location index: which engine
// currently holds which session for a player name.
type Location struct {
	EngineID  string
	SessionID uint64
}

// LocationIndex is the optional distributed name -> location map that
// gives cross-engine tell an O(1) routing hint. Entries are heartbeat
// TTL'd: a missing or stale entry means the caller falls back to
// broadcast-and-collect, so every method degrades to "not found"
// rather than returning an error the engine would have to handle.
type LocationIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocationIndex builds an index over client with the given
// heartbeat TTL.
func NewLocationIndex(client *redis.Client, ttl time.Duration) *LocationIndex {
	return &LocationIndex{client: client, ttl: ttl}
}

func locationKey(name string) string { return "player:location:" + strings.ToLower(name) }

// Publish records (or refreshes) where a player currently lives. A
// background heartbeat goroutine in the engine composition root calls
// this for every connected player; the engine tick never does.
func (i *LocationIndex) Publish(ctx context.Context, name string, loc Location) error {
	value := loc.EngineID + "|" + strconv.FormatUint(loc.SessionID, 10)
	return i.client.Set(ctx, locationKey(name), value, i.ttl).Err()
}

// Remove drops a player's entry on disconnect or handoff-out.
func (i *LocationIndex) Remove(ctx context.Context, name string) error {
	return i.client.Del(ctx, locationKey(name)).Err()
}

// Lookup resolves a player's location. Absent, expired, or malformed
// entries — and any redis error — report false.
func (i *LocationIndex) Lookup(ctx context.Context, name string) (Location, bool) {
	raw, err := i.client.Get(ctx, locationKey(name)).Result()
	if err != nil {
		return Location{}, false
	}
	engineID, sessionStr, ok := strings.Cut(raw, "|")
	if !ok || engineID == "" {
		return Location{}, false
	}
	session, err := strconv.ParseUint(sessionStr, 10, 64)
	if err != nil {
		return Location{}, false
	}
	return Location{EngineID: engineID, SessionID: session}, true
}

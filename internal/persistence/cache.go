package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheDecorator is the optional second-level cache between the
// coalescer and the durable backend: TTL'd JSON blobs plus a name->id
// index in Redis. Every
// cache fault (connection error, corrupt blob) degrades to the
// delegate without propagating, since the cache is strictly an
// optimization — the delegate remains the source of truth.
type CacheDecorator struct {
	delegate Repository
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewCacheDecorator wraps delegate with a Redis-backed read cache.
func NewCacheDecorator(delegate Repository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CacheDecorator {
	return &CacheDecorator{delegate: delegate, rdb: rdb, ttl: ttl, log: log}
}

func recordKey(id string) string { return "player:record:" + id }
func nameKey(name string) string { return "player:name:" + lower(name) }

// FindByName implements Repository: consult the name index, fall
// through to the delegate on a miss or any Redis error, then
// back-fill the cache.
func (c *CacheDecorator) FindByName(name string) (*PlayerRecord, bool, error) {
	ctx := context.Background()
	if id, err := c.rdb.Get(ctx, nameKey(name)).Result(); err == nil {
		if rec, ok, cerr := c.readCached(ctx, id); cerr == nil && ok {
			return rec, true, nil
		}
	}
	rec, ok, err := c.delegate.FindByName(name)
	if err == nil && ok {
		c.backfill(ctx, rec)
	}
	return rec, ok, err
}

// FindByID implements Repository, same fallthrough-and-backfill shape
// as FindByName.
func (c *CacheDecorator) FindByID(id string) (*PlayerRecord, bool, error) {
	ctx := context.Background()
	if rec, ok, err := c.readCached(ctx, id); err == nil && ok {
		return rec, true, nil
	}
	rec, ok, err := c.delegate.FindByID(id)
	if err == nil && ok {
		c.backfill(ctx, rec)
	}
	return rec, ok, err
}

func (c *CacheDecorator) readCached(ctx context.Context, id string) (*PlayerRecord, bool, error) {
	data, err := c.rdb.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		return nil, false, err
	}
	var rec PlayerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.Warn().Err(err).Str("playerId", id).Msg("persistence cache: corrupt cached record, falling through")
		return nil, false, err
	}
	return &rec, true, nil
}

func (c *CacheDecorator) backfill(ctx context.Context, rec *PlayerRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, recordKey(rec.ID), data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("persistence cache: backfill failed, degrading to delegate")
		return
	}
	c.rdb.Set(ctx, nameKey(rec.Name), rec.ID, c.ttl)
}

// Create implements Repository: creation always goes to the delegate
// (it allocates the id), then backfills the cache on success.
func (c *CacheDecorator) Create(rec *PlayerRecord) (*PlayerRecord, error) {
	created, err := c.delegate.Create(rec)
	if err != nil {
		return nil, err
	}
	c.backfill(context.Background(), created)
	return created, nil
}

// Save implements Repository: writes through to the delegate, then
// refreshes the cache so subsequent reads are not stale.
func (c *CacheDecorator) Save(rec *PlayerRecord) error {
	if err := c.delegate.Save(rec); err != nil {
		return err
	}
	c.backfill(context.Background(), rec)
	return nil
}

var _ Repository = (*CacheDecorator)(nil)

package persistence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Coalescer is the write-coalescing layer of the persistence stack:
// save() marks a record dirty and updates an in-memory cache without
// touching the delegate; reads check the dirty cache first; a
// background worker flushes dirty records on flushInterval, writing
// only changed rows; Shutdown forces a full synchronous flush.
// Persistence failures are retried with exponential backoff rather
// than dropped, with the dirty entry retained across attempts.
type Coalescer struct {
	delegate      Repository
	flushInterval time.Duration
	log           zerolog.Logger

	mu     sync.Mutex
	dirty  map[string]*PlayerRecord // id -> record
	byName map[string]string        // lowercase name -> id, for reads that only have a name

	stop chan struct{}
	done chan struct{}
}

// NewCoalescer wraps delegate with a write-coalescing layer and starts
// its background flusher.
func NewCoalescer(delegate Repository, flushInterval time.Duration, log zerolog.Logger) *Coalescer {
	c := &Coalescer{
		delegate:      delegate,
		flushInterval: flushInterval,
		log:           log,
		dirty:         make(map[string]*PlayerRecord),
		byName:        make(map[string]string),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Coalescer) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

// flush writes every dirty record to the delegate, retrying failures
// with backoff while leaving the entry dirty for the next pass.
func (c *Coalescer) flush() {
	c.mu.Lock()
	pending := make([]*PlayerRecord, 0, len(c.dirty))
	for _, rec := range c.dirty {
		pending = append(pending, rec)
	}
	c.mu.Unlock()

	for _, rec := range pending {
		if err := c.saveWithBackoff(rec); err != nil {
			c.log.Error().Err(err).Str("playerId", rec.ID).Msg("persistence: flush failed, record stays dirty")
			continue
		}
		c.mu.Lock()
		if cur, ok := c.dirty[rec.ID]; ok && cur == rec {
			delete(c.dirty, rec.ID)
		}
		c.mu.Unlock()
	}
}

func (c *Coalescer) saveWithBackoff(rec *PlayerRecord) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = c.delegate.Save(rec); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// FindByName implements Repository, consulting the dirty cache first.
func (c *Coalescer) FindByName(name string) (*PlayerRecord, bool, error) {
	c.mu.Lock()
	if id, ok := c.byName[lower(name)]; ok {
		if rec, ok := c.dirty[id]; ok {
			c.mu.Unlock()
			return rec, true, nil
		}
	}
	c.mu.Unlock()
	return c.delegate.FindByName(name)
}

// FindByID implements Repository, consulting the dirty cache first.
func (c *Coalescer) FindByID(id string) (*PlayerRecord, bool, error) {
	c.mu.Lock()
	if rec, ok := c.dirty[id]; ok {
		c.mu.Unlock()
		return rec, true, nil
	}
	c.mu.Unlock()
	return c.delegate.FindByID(id)
}

// Create implements Repository. Creation allocates an id, so it always
// goes straight to the delegate rather than through the dirty cache.
func (c *Coalescer) Create(rec *PlayerRecord) (*PlayerRecord, error) {
	created, err := c.delegate.Create(rec)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byName[lower(created.Name)] = created.ID
	c.mu.Unlock()
	return created, nil
}

// Save implements Repository: marks rec dirty and returns immediately,
// no I/O performed on the caller's goroutine.
func (c *Coalescer) Save(rec *PlayerRecord) error {
	c.mu.Lock()
	c.dirty[rec.ID] = rec
	c.byName[lower(rec.Name)] = rec.ID
	c.mu.Unlock()
	return nil
}

// Flush forces an immediate synchronous flush of the dirty set,
// used before a player handoff so the target engine's view of durable
// storage is current.
func (c *Coalescer) Flush() {
	c.flush()
}

// Shutdown stops the background flusher and performs one final
// synchronous full flush so no dirty record outlives the process.
func (c *Coalescer) Shutdown() {
	close(c.stop)
	<-c.done
}

func lower(s string) string {
	b := []byte(s)
	for i, r := range b {
		if 'A' <= r && r <= 'Z' {
			b[i] = r + ('a' - 'A')
		}
	}
	return string(b)
}

var _ Repository = (*Coalescer)(nil)

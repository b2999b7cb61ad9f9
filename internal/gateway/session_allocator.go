// Package gateway terminates client connections, allocates session
// ids, and routes each session's events to the correct engine. It owns
// no authentication state — that lives in internal/login — and no game
// state; it is pure transport plus routing, adapted from the
// websocket Client/Server pair that used to own both
// transport and auth together.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ambonmud/internal/ids"

	"github.com/redis/go-redis/v9"
)

// SessionAllocator mints globally unique session ids. Single-gateway
// deployments use a monotonic counter; multi-gateway deployments lease
// an exclusive 16-bit gateway id from redis and pack Snowflake-style
// ids against it.
type SessionAllocator struct {
	gatewayID uint16
	seq       uint32
	curSecond uint32
	mu        sync.Mutex
	monotonic uint64
}

// NewMonotonicAllocator builds a single-process allocator that never
// touches redis.
func NewMonotonicAllocator() *SessionAllocator {
	return &SessionAllocator{}
}

// NewSnowflakeAllocator builds an allocator bound to an already-leased
// gateway id.
func NewSnowflakeAllocator(gatewayID uint16) *SessionAllocator {
	return &SessionAllocator{gatewayID: gatewayID}
}

// Next allocates the next session id. now is injected rather than read
// from time.Now so wall-clock regressions can be tested deterministically.
func (a *SessionAllocator) Next(now time.Time) (ids.SessionID, error) {
	if a.gatewayID == 0 {
		return ids.SessionID(atomic.AddUint64(&a.monotonic, 1)), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	sec := uint32(now.Unix())
	switch {
	case sec < a.curSecond:
		return 0, fmt.Errorf("gateway: wall clock regressed from %d to %d", a.curSecond, sec)
	case sec > a.curSecond:
		a.curSecond = sec
		a.seq = 0
	default:
		a.seq++
		if a.seq > 0xFFFF {
			// Sequence exhausted within this second; caller should
			// retry after the next tick of the wall clock.
			return 0, fmt.Errorf("gateway: session sequence exhausted for second %d", sec)
		}
	}

	return ids.PackSessionID(a.gatewayID, a.curSecond, uint16(a.seq)), nil
}

// GatewayIDLease exclusively leases a 16-bit gateway id from redis with
// a renewable TTL, using SET NX PX the way a distributed zone-ownership
// claim does — implemented on the same redis
// dependency.
type GatewayIDLease struct {
	client *redis.Client
	prefix string
	id     uint16
	ttl    time.Duration
}

// AcquireGatewayIDLease tries candidate ids starting at seed until one
// is exclusively claimed, linear-probing on collision.
func AcquireGatewayIDLease(ctx context.Context, client *redis.Client, keyPrefix string, seed uint16, ttl time.Duration) (*GatewayIDLease, error) {
	for offset := uint32(0); offset < 0xFFFF; offset++ {
		candidate := uint16((uint32(seed) + offset) % 0xFFFF)
		key := fmt.Sprintf("%s:gateway-id:%d", keyPrefix, candidate)
		ok, err := client.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("gateway: lease candidate %d: %w", candidate, err)
		}
		if ok {
			return &GatewayIDLease{client: client, prefix: keyPrefix, id: candidate, ttl: ttl}, nil
		}
	}
	return nil, fmt.Errorf("gateway: no free gateway id after exhausting candidate space")
}

// ID returns the leased gateway id.
func (l *GatewayIDLease) ID() uint16 { return l.id }

// Renew extends the lease's TTL; callers should call this well before
// expiry on a periodic ticker.
func (l *GatewayIDLease) Renew(ctx context.Context) error {
	key := fmt.Sprintf("%s:gateway-id:%d", l.prefix, l.id)
	ok, err := l.client.Expire(ctx, key, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("gateway: renew lease for id %d: %w", l.id, err)
	}
	if !ok {
		return fmt.Errorf("gateway: lease for id %d was lost", l.id)
	}
	return nil
}

// Release gives up the lease immediately.
func (l *GatewayIDLease) Release(ctx context.Context) error {
	key := fmt.Sprintf("%s:gateway-id:%d", l.prefix, l.id)
	return l.client.Del(ctx, key).Err()
}

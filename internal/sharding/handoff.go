package sharding

import (
	"sync"

	"ambonmud/internal/events"
	"ambonmud/internal/scheduler"
)

// pendingHandoff tracks one in-flight cross-engine player move from
// the source engine's side.
type pendingHandoff struct {
	id             string
	playerName     string
	sourceRoomID   string
	targetEngineID string
	cancel         scheduler.Handle
}

// Coordinator drives the source-engine half of the handoff protocol:
// arm a timeout when a PlayerHandoff is sent,
// commit (cancel the timeout) on HandoffAck, or roll the player back
// to their source room if the ack never arrives. The target-engine
// half (deserialize, admit to local registries, reply HandoffAck) is
// engine-owned state (rooms, player registry) and lives in
// internal/engine's inbound dispatch instead of here, keeping live
// state partitioned by owner — this type only tracks timers and
// in-flight bookkeeping, never touches a Player or World directly.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*pendingHandoff

	sched         *scheduler.Scheduler
	timeoutMillis int64
	send          func(events.InterEngineMessage)
	nextID        func() string
}

// NewCoordinator builds a Coordinator. send publishes a message onto
// the inter-engine bus (typically InterEngineBus.TrySend); nextID
// mints a unique handoff id (the engine wires its uuid.NewString or
// equivalent generator).
func NewCoordinator(sched *scheduler.Scheduler, timeoutMillis int64, send func(events.InterEngineMessage), nextID func() string) *Coordinator {
	return &Coordinator{
		pending:       make(map[string]*pendingHandoff),
		sched:         sched,
		timeoutMillis: timeoutMillis,
		send:          send,
		nextID:        nextID,
	}
}

// Begin starts a handoff: the caller must already have flushed the
// player's record to durable storage and removed them from local
// registries before calling this. It sends
// the PlayerHandoff message, arms the timeout, and returns the
// generated handoff id. onTimeout is invoked with the player's name
// and source room if no HandoffAck arrives in time, so the caller can
// restore the player locally and notify the gateway to re-route.
func (c *Coordinator) Begin(nowMillis int64, sourceEngineID, targetEngineID, playerName, sourceRoomID string, payload []byte, onTimeout func(playerName, sourceRoomID string)) string {
	id := c.nextID()

	c.mu.Lock()
	handle := c.sched.After(nowMillis, c.timeoutMillis, func(int64) {
		c.mu.Lock()
		p, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if ok && onTimeout != nil {
			onTimeout(p.playerName, p.sourceRoomID)
		}
	})
	c.pending[id] = &pendingHandoff{
		id:             id,
		playerName:     playerName,
		sourceRoomID:   sourceRoomID,
		targetEngineID: targetEngineID,
		cancel:         handle,
	}
	c.mu.Unlock()

	c.send(events.InterEngineMessage{
		Kind:           events.KindPlayerHandoff,
		SenderEngineID: sourceEngineID,
		TargetEngineID: targetEngineID,
		HandoffID:      id,
		PlayerPayload:  payload,
	})
	return id
}

// Ack commits a pending handoff on HandoffAck receipt, cancelling its
// timeout. Reports whether handoffID was actually pending (a late ack
// for an already-timed-out handoff is a no-op).
func (c *Coordinator) Ack(handoffID string) bool {
	c.mu.Lock()
	p, ok := c.pending[handoffID]
	if ok {
		delete(c.pending, handoffID)
	}
	c.mu.Unlock()
	if ok {
		p.cancel.Cancel()
	}
	return ok
}

// Pending reports how many handoffs are currently in flight, for load
// telemetry's in-transit-handoffs component.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// AckMessage builds the HandoffAck reply a target engine sends back
// once it has admitted the incoming player to its local registries.
func AckMessage(handoffID, senderEngineID, targetEngineID string) events.InterEngineMessage {
	return events.InterEngineMessage{
		Kind:           events.KindHandoffAck,
		SenderEngineID: senderEngineID,
		TargetEngineID: targetEngineID,
		HandoffID:      handoffID,
	}
}

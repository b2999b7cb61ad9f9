package sharding

import (
	"ambonmud/internal/bus"
	"ambonmud/internal/events"

	"github.com/rs/zerolog"
)

// NewInterEngineBus builds the inter-engine message bus: the same
// msgpack-envelope-over-NATS-Streaming machinery internal/bus's
// Distributed[T] already implements for the player-facing event bus,
// parameterized on InterEngineMessage and given its own channel so the
// two buses never cross-deliver.
func NewInterEngineBus(capacity int, cfg bus.PubSubConfig, log zerolog.Logger) *bus.Distributed[events.InterEngineMessage] {
	return bus.NewDistributed[events.InterEngineMessage](capacity, bus.MsgpackCodec[events.InterEngineMessage](), cfg, log)
}

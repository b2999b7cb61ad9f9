package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/stan.go"
	"github.com/rs/zerolog"
)

// Codec converts a typed event to and from bytes for the wire. The
// distributed and streamed buses are generic over T but still need a
// concrete encoding, so callers supply one (events.Inbound/Outbound use
// msgpack-friendly struct tags already).
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// PubSubConfig configures a Distributed bus.
type PubSubConfig struct {
	NatsAddress string
	ClusterID   string
	ClientID    string
	Channel     string
	SharedSecret string
	InstanceID   string
}

// Distributed wraps a Local bus: every event sent is also published,
// msgpack-encoded inside a signed envelope, to a NATS Streaming
// channel; a subscriber goroutine decodes incoming envelopes, rejects
// the process's own echoes, verifies the HMAC, and delivers accepted
// events into the local delegate. Publish failures are logged and
// never propagate upward — the local delegate remains authoritative.
// Modeled on the dedicated-goroutine channel-drain pattern used by a
// Discord-gateway shard manager in the reference corpus.
type Distributed[T any] struct {
	*Local[T]

	codec  Codec[T]
	cfg    PubSubConfig
	log    zerolog.Logger
	secret []byte

	nc   *nats.Conn
	sc   stan.Conn
	sub  stan.Subscription

	produce chan T
	done    chan struct{}
}

// NewDistributed builds the bus without connecting; Open connects to
// NATS/NATS-Streaming and starts the forward/consume goroutines. The
// local delegate is usable even if Open fails; Open reports the
// connection error so the caller can decide whether to run degraded
// (local-only).
func NewDistributed[T any](capacity int, codec Codec[T], cfg PubSubConfig, log zerolog.Logger) *Distributed[T] {
	return &Distributed[T]{
		Local:   NewLocal[T](capacity),
		codec:   codec,
		cfg:     cfg,
		log:     log,
		secret:  []byte(cfg.SharedSecret),
		produce: make(chan T, capacity),
		done:    make(chan struct{}),
	}
}

// Open establishes the NATS/STAN connections and starts the forwarding
// goroutines. It does not block.
func (d *Distributed[T]) Open() error {
	nc, err := nats.Connect(d.cfg.NatsAddress)
	if err != nil {
		return err
	}
	sc, err := stan.Connect(d.cfg.ClusterID, d.cfg.ClientID, stan.NatsConn(nc))
	if err != nil {
		nc.Close()
		return err
	}
	d.nc = nc
	d.sc = sc

	sub, err := sc.Subscribe(d.cfg.Channel, d.onMessage)
	if err != nil {
		sc.Close()
		nc.Close()
		return err
	}
	d.sub = sub

	go d.forwardProduce()
	return nil
}

// Send both enqueues locally and schedules the event for publication.
func (d *Distributed[T]) Send(ctx context.Context, event T) error {
	if err := d.Local.Send(ctx, event); err != nil {
		return err
	}
	select {
	case d.produce <- event:
	case <-ctx.Done():
	default:
		d.log.Warn().Msg("produce channel full, dropping distribution of event")
	}
	return nil
}

// TrySend mirrors Send without blocking.
func (d *Distributed[T]) TrySend(event T) bool {
	if !d.Local.TrySend(event) {
		return false
	}
	select {
	case d.produce <- event:
	default:
		d.log.Warn().Msg("produce channel full, dropping distribution of event")
	}
	return true
}

func (d *Distributed[T]) forwardProduce() {
	for {
		select {
		case event := <-d.produce:
			payload, err := d.codec.Encode(event)
			if err != nil {
				d.log.Warn().Err(err).Msg("failed to encode event for distribution")
				continue
			}
			signed, err := signEnvelope(d.secret, d.cfg.InstanceID, "event", payload)
			if err != nil {
				d.log.Warn().Err(err).Msg("failed to sign envelope")
				continue
			}
			if err := d.sc.Publish(d.cfg.Channel, signed); err != nil {
				d.log.Warn().Err(err).Msg("failed to publish event")
			}
		case <-d.done:
			return
		}
	}
}

func (d *Distributed[T]) onMessage(msg *stan.Msg) {
	env, err := openEnvelope(d.secret, msg.Data)
	if err != nil {
		d.log.Warn().Err(err).Msg("rejecting envelope")
		return
	}
	if env.InstanceID == d.cfg.InstanceID {
		return // own echo
	}
	event, err := d.codec.Decode(env.Payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to decode distributed event")
		return
	}
	if !d.Local.TrySend(event) {
		d.log.Warn().Msg("local queue full, dropping inbound distributed event")
	}
}

// Close stops the forwarder, gives a publish already in flight a
// moment, then releases the NATS/STAN connections. Events still queued
// for distribution when Close runs are not published.
func (d *Distributed[T]) Close() {
	close(d.done)
	time.Sleep(100 * time.Millisecond)
	if d.sub != nil {
		_ = d.sub.Unsubscribe()
	}
	if d.sc != nil {
		_ = d.sc.Close()
	}
	if d.nc != nil {
		d.nc.Close()
	}
	d.Local.Close()
}

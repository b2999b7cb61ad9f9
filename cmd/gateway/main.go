// Gateway terminates client connections (telnet and WebSocket),
// allocates cluster-unique session ids, and routes each session's
// events over a gRPC stream to its engine shard. It holds no
// simulation state; a lost stream triggers the bounded reconnect loop
// and, on exhaustion, process shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ambonmud/internal/bus"
	"ambonmud/internal/config"
	"ambonmud/internal/events"
	"ambonmud/internal/gateway"
	"ambonmud/internal/ids"
)

// router keeps the sessionId -> engine route table. With a single
// configured engine stream every route resolves to it; SessionRedirect
// still updates the table so a multi-stream gateway only has to add
// link management, not routing.
type router struct {
	mu      sync.RWMutex
	routes  map[ids.SessionID]string
	defLink *bus.Streamed[events.StreamFrame]
	log     zerolog.Logger
}

func (r *router) Dispatch(ev events.Inbound) {
	if !r.defLink.TrySend(events.InboundFrame(ev)) {
		r.log.Warn().Uint64("session", uint64(ev.SessionID)).Msg("engine stream backlog, event dropped")
	}
	if ev.Kind == events.KindDisconnected {
		r.mu.Lock()
		delete(r.routes, ev.SessionID)
		r.mu.Unlock()
	}
}

func (r *router) Redirect(session ids.SessionID, engineID string) {
	r.mu.Lock()
	r.routes[session] = engineID
	r.mu.Unlock()
	r.log.Info().Uint64("session", uint64(session)).Str("engine", engineID).Msg("session re-routed")
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		startupLog := zerolog.New(os.Stderr)
		startupLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("gateway", cfg.GatewayID).Logger()
	cfg.LogConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	allocator := buildAllocator(ctx, cfg, log)

	frames := bus.NewStreamed[events.StreamFrame](cfg.MaxInboundEventsPerTick*4, bus.MsgpackCodec[events.StreamFrame](), cfg.BusSharedSecret, cfg.InstanceID)
	rtr := &router{routes: make(map[ids.SessionID]string), defLink: frames, log: log}

	server := gateway.NewServer(allocator, rtr, log, nil)

	// Unwrap outbound frames onto a local bus the render pump drains;
	// SessionRedirect is consumed here as a routing update, never
	// rendered.
	rendered := bus.NewLocal[events.Outbound](cfg.SessionOutboundQueueCapacity * 64)
	go func() {
		for {
			frame, ok := frames.TryReceive()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Millisecond):
				}
				continue
			}
			if frame.Outbound == nil {
				continue
			}
			if frame.Outbound.Kind == events.KindSessionRedirect {
				rtr.Redirect(frame.Outbound.SessionID, frame.Outbound.TargetEngineID)
				continue
			}
			rendered.TrySend(*frame.Outbound)
		}
	}()
	go server.Pump(ctx, rendered)

	go func() {
		if err := server.ListenTelnet(ctx, cfg.GetTelnetAddress()); err != nil {
			log.Error().Err(err).Msg("telnet listener stopped")
		}
	}()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWebSocket)
	httpServer := &http.Server{Addr: cfg.GetWebAddress(), Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http listener stopped")
		}
	}()

	streamDone := make(chan error, 1)
	go func() { streamDone <- driveStream(ctx, cfg, log, frames, server) }()

	log.Info().Int("telnet", cfg.TelnetPort).Int("web", cfg.WebPort).Msg("gateway up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down")
	case err := <-streamDone:
		// Reconnect exhausted: the gateway cannot serve anyone, so it
		// stops rather than black-holing connections.
		log.Error().Err(err).Msg("engine stream unrecoverable, shutting down")
	}

	server.Shutdown("The server is shutting down. Goodbye.")
	httpServer.Close()
	cancel()
}

// driveStream owns the engine stream's lifecycle: dial, pump until
// failure, disconnect the now-orphaned sessions, and re-enter the
// bounded backoff loop. It returns only when reconnection is
// exhausted or ctx ends.
func driveStream(ctx context.Context, cfg *config.Config, log zerolog.Logger, frames *bus.Streamed[events.StreamFrame], server *gateway.Server) error {
	policy := gateway.ReconnectPolicy{
		MaxAttempts:    cfg.ReconnectMaxAttempts,
		InitialDelay:   time.Duration(cfg.ReconnectInitialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.ReconnectMaxDelayMs) * time.Millisecond,
		JitterFactor:   cfg.ReconnectJitterFactor,
		StreamVerifyMs: time.Duration(cfg.ReconnectStreamVerifyMs) * time.Millisecond,
	}
	reconnector := gateway.NewReconnector(policy, log)
	addr := fmt.Sprintf("%s:%d", cfg.GRPCClientHost, cfg.GRPCClientPort)

	for {
		var stream bus.EngineStream_StreamClient
		var conn *grpc.ClientConn

		dial := func(ctx context.Context) error {
			cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			st, err := bus.NewEngineStreamClient(ctx, cc)
			if err != nil {
				cc.Close()
				return err
			}
			conn, stream = cc, st
			return nil
		}
		verify := func(ctx context.Context) error {
			// The stream is healthy if it survives the verify window
			// without the connection dropping.
			<-ctx.Done()
			return nil
		}

		if err := reconnector.Run(ctx, dial, verify); err != nil {
			return err
		}

		log.Info().Str("addr", addr).Msg("engine stream connected")
		err := frames.Pump(ctx, stream)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("engine stream lost; disconnecting sessions and reconnecting")
		server.Shutdown("Connection to the world was lost. Please reconnect.")
	}
}

// buildAllocator picks the session-id scheme: a redis-leased snowflake
// gateway id when redis is available (multi-gateway safe), a local
// monotonic counter otherwise.
func buildAllocator(ctx context.Context, cfg *config.Config, log zerolog.Logger) *gateway.SessionAllocator {
	if !cfg.CacheEnabled {
		return gateway.NewMonotonicAllocator()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.CacheURI})
	seed := uint16(xxhash.Sum64String(cfg.GatewayID))
	lease, err := gateway.AcquireGatewayIDLease(ctx, rdb, "gateway:id", seed, time.Duration(cfg.GatewayIDLeaseTTLSeconds)*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway id lease unobtainable")
	}
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.GatewayIDLeaseTTLSeconds) * time.Second / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				lease.Release(context.Background())
				return
			case <-ticker.C:
				if err := lease.Renew(ctx); err != nil {
					log.Error().Err(err).Msg("gateway id lease renewal failed")
				}
			}
		}
	}()
	return gateway.NewSnowflakeAllocator(lease.ID())
}

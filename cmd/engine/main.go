// Engine runs one simulation shard: it serves the gateway stream over
// gRPC, joins the inter-engine bus, claims its owned zones, and ticks
// the world. Client connections terminate at a gateway process, never
// here.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"ambonmud/internal/boot"
	"ambonmud/internal/bus"
	"ambonmud/internal/config"
	"ambonmud/internal/events"
	"ambonmud/internal/sharding"
)

// streamServer bridges the gRPC bidirectional stream into the frame
// bus; one gateway pair exists per stream.
type streamServer struct {
	frames *bus.Streamed[events.StreamFrame]
	log    zerolog.Logger
}

func (s *streamServer) Stream(stream bus.EngineStream_StreamServer) error {
	s.log.Info().Msg("gateway stream attached")
	err := s.frames.Pump(stream.Context(), stream)
	s.log.Warn().Err(err).Msg("gateway stream detached")
	return err
}

// staticLoad is the telemetry stub used until engines publish real
// load snapshots; always stale, so the selector falls back to random
// choice among healthy candidates.
type staticLoad struct{}

func (staticLoad) Load(string) (int, bool) { return 0, false }

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		startupLog := zerolog.New(os.Stderr)
		startupLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("engine", cfg.EngineID).Logger()
	cfg.LogConfig()

	coalescer, err := boot.OpenRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("persistence startup failed")
	}
	defer coalescer.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gateway-facing stream: StreamFrame carries Inbound frames in and
	// Outbound frames back; small adapters bridge them onto the
	// engine's typed local buses.
	frames := bus.NewStreamed[events.StreamFrame](cfg.MaxInboundEventsPerTick*4, bus.MsgpackCodec[events.StreamFrame](), cfg.BusSharedSecret, cfg.InstanceID)
	inbound := bus.NewLocal[events.Inbound](cfg.MaxInboundEventsPerTick * 4)
	outbound := bus.NewLocal[events.Outbound](cfg.SessionOutboundQueueCapacity * 64)
	go bridgeFrames(ctx, frames, inbound, outbound)

	// Inter-engine bus over NATS Streaming, when enabled.
	var inter bus.Bus[events.InterEngineMessage]
	if cfg.BusEnabled {
		dist := sharding.NewInterEngineBus(1024, bus.PubSubConfig{
			NatsAddress:  cfg.BusURI,
			ClusterID:    "ambonmud",
			ClientID:     cfg.EngineID,
			Channel:      cfg.BusChannelName + ".engines",
			SharedSecret: cfg.BusSharedSecret,
			InstanceID:   cfg.InstanceID,
		}, log)
		if err := dist.Open(); err != nil {
			log.Error().Err(err).Msg("inter-engine bus connect failed, running local-only")
		}
		inter = dist
	}

	zoneReg, selector := buildSharding(ctx, cfg, log)

	rt, err := boot.BuildRuntime(cfg, log, inbound, outbound, inter, zoneReg, selector, cfg.OwnedZones, coalescer)
	if err != nil {
		log.Fatal().Err(err).Msg("engine startup failed")
	}

	go rt.Engine.Run(ctx)
	go publishLocations(ctx, cfg, log, rt)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCServerPort))
	if err != nil {
		log.Fatal().Err(err).Msg("grpc listen failed")
	}
	grpcServer := grpc.NewServer()
	bus.RegisterEngineStreamServer(grpcServer, &streamServer{frames: frames, log: log})
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	log.Info().Int("grpc", cfg.GRPCServerPort).Strs("zones", cfg.OwnedZones).Msg("engine shard up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	grpcServer.GracefulStop()
	cancel()
	rt.Engine.Stop()
}

// bridgeFrames moves inbound frames off the gateway stream onto the
// engine's inbound bus and engine output back onto the stream.
func bridgeFrames(ctx context.Context, frames *bus.Streamed[events.StreamFrame], inbound bus.Bus[events.Inbound], outbound bus.Bus[events.Outbound]) {
	for {
		moved := false
		if frame, ok := frames.TryReceive(); ok {
			if frame.Inbound != nil {
				inbound.TrySend(*frame.Inbound)
			}
			moved = true
		}
		if ev, ok := outbound.TryReceive(); ok {
			frames.TrySend(events.OutboundFrame(ev))
			moved = true
		}
		if !moved {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
		}
	}
}

// buildSharding assembles the zone registry and instance selector. A
// static owner map in config wins; otherwise a redis-leased registry
// claims the owned zones and renews them in the background.
func buildSharding(ctx context.Context, cfg *config.Config, log zerolog.Logger) (sharding.Registry, *sharding.Selector) {
	if len(cfg.ZoneOwners) > 0 {
		reg := sharding.NewStaticRegistry(cfg.ZoneOwners, cfg.ShardingReplicatedZones)
		engineIDs := make(map[string]bool)
		for _, id := range cfg.ZoneOwners {
			engineIDs[id] = true
		}
		var candidates []string
		for id := range engineIDs {
			candidates = append(candidates, id)
		}
		return reg, sharding.NewSelector(candidates, staticLoad{})
	}
	if !cfg.CacheEnabled {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.CacheURI})
	ttl := time.Duration(cfg.ShardingLoadTTLSeconds) * time.Second
	reg := sharding.NewRedisRegistry(rdb, ttl, cfg.ShardingReplicatedZones)

	for _, zone := range cfg.OwnedZones {
		claimed, err := reg.ClaimOwnership(ctx, zone, cfg.EngineID)
		if err != nil || (!claimed && reg.ModeFor(zone) == sharding.SingleOwner) {
			// A SINGLE_OWNER zone this engine cannot claim is fatal at
			// startup, before any traffic is accepted.
			log.Fatal().Err(err).Str("zone", zone).Msg("zone claim failed")
		}
		if reg.ModeFor(zone) == sharding.ReplicatedEntry {
			if err := reg.JoinReplicaSet(ctx, zone, cfg.EngineID); err != nil {
				log.Error().Err(err).Str("zone", zone).Msg("replica set join failed")
			}
		}
	}
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, zone := range cfg.OwnedZones {
					if err := reg.RenewOwnership(ctx, zone, cfg.EngineID); err != nil {
						log.Error().Err(err).Str("zone", zone).Msg("zone lease renewal failed")
					}
				}
			}
		}
	}()
	return reg, nil
}

// publishLocations heartbeats the player location index so remote
// engines can route tells without broadcasting, when redis is
// available. Best-effort: failures only cost the O(1) lookup path.
func publishLocations(ctx context.Context, cfg *config.Config, log zerolog.Logger, rt *boot.Runtime) {
	if !cfg.CacheEnabled {
		return
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.CacheURI})
	ttl := time.Duration(cfg.ShardingLoadTTLSeconds) * time.Second
	index := sharding.NewLocationIndex(rdb, ttl)

	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, session := range rt.Players.Sessions() {
				if err := index.Publish(ctx, name, sharding.Location{EngineID: cfg.EngineID, SessionID: uint64(session)}); err != nil {
					log.Debug().Err(err).Msg("location heartbeat failed")
					break
				}
			}
		}
	}
}

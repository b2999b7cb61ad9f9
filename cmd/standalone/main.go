// Standalone runs the whole server in one process: gateway transports,
// login, and the simulation engine wired back-to-back over local
// buses. This is the single-shard deployment and the local development
// entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"ambonmud/internal/boot"
	"ambonmud/internal/bus"
	"ambonmud/internal/config"
	"ambonmud/internal/events"
	"ambonmud/internal/gateway"
)

// busSink adapts the engine's inbound bus to the gateway's Sink. A
// full queue drops the event; the transport's own disconnect handling
// recovers the session on the next read.
type busSink struct {
	bus bus.Bus[events.Inbound]
	log zerolog.Logger
}

func (s busSink) Dispatch(ev events.Inbound) {
	if !s.bus.TrySend(ev) {
		s.log.Warn().Uint64("session", uint64(ev.SessionID)).Msg("inbound queue full, event dropped")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		startupLog := zerolog.New(os.Stderr)
		startupLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg.LogConfig()

	coalescer, err := boot.OpenRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("persistence startup failed")
	}
	defer coalescer.Shutdown()

	inbound := bus.NewLocal[events.Inbound](cfg.MaxInboundEventsPerTick * 4)
	outbound := bus.NewLocal[events.Outbound](cfg.SessionOutboundQueueCapacity * 64)

	rt, err := boot.BuildRuntime(cfg, log, inbound, outbound, nil, nil, nil, nil, coalescer)
	if err != nil {
		log.Fatal().Err(err).Msg("engine startup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := gateway.NewServer(gateway.NewMonotonicAllocator(), busSink{bus: inbound, log: log}, log, nil)

	go rt.Engine.Run(ctx)
	go server.Pump(ctx, outbound)
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

	log.Info().Int("telnet", cfg.TelnetPort).Int("web", cfg.WebPort).Msg("standalone server up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	server.Shutdown("The server is shutting down. Goodbye.")
	httpServer.Close()
	cancel()
	rt.Engine.Stop()
}

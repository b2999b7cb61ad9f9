package gateway

import (
	"context"
	"net"
	"time"
)

// ListenTelnet accepts raw TCP connections on addr and admits each one
// as a telnet-transport Conn, the legacy entry point kept
// alongside the WebSocket gateway for clients like PuTTY or TinTin++.
// It blocks until ctx is cancelled or the listener fails, mirroring
// the lifecycle of an http.Server's ListenAndServe call the WebSocket
// side already uses.
func (s *Server) ListenTelnet(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn().Err(err).Msg("telnet accept failed")
				continue
			}
		}
		go s.acceptTelnet(conn)
	}
}

func (s *Server) acceptTelnet(conn net.Conn) {
	session, err := s.allocator.Next(time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("session id allocation failed")
		conn.Close()
		return
	}

	c := &Conn{session: session, t: newTelnetTransport(conn), send: make(chan []byte, 256)}
	s.admit(c, false)
}

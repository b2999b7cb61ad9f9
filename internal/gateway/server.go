package gateway

import (
	"net/http"
	"sync"
	"time"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Sink is how the gateway hands inbound events to whatever routes
// them to an engine (directly to a local EventBus in standalone mode,
// or across the gRPC stream bus in split gateway/engine mode).
type Sink interface {
	Dispatch(events.Inbound)
}

// transport is the wire-protocol-specific half of a connection: read
// one line of client input, write one already-coalesced frame back,
// send a keepalive, and close. wsTransport and telnetTransport are the
// two implementations; Conn and its read/write pumps never know which
// one they're driving.
type transport interface {
	ReadLine() (string, error)
	WriteFrame(text string) error
	Ping() error
	Close() error
}

// Conn is a single client connection, independent of transport. It
// owns no authentication state; the login FSM and engine own
// everything past Connected/LineReceived.
type Conn struct {
	session   ids.SessionID
	t         transport
	send      chan []byte
	closeOnce sync.Once

	mu   sync.Mutex
	ansi bool
	isWS bool
}

// Server terminates client connections (WebSocket or telnet) and
// forwards decoded lines to a Sink. It follows the usual
// register/unregister channel pattern, stripped of any auth
// state: login lives entirely behind the event bus.
type Server struct {
	allocator *SessionAllocator
	sink      Sink
	log       zerolog.Logger

	mu    sync.RWMutex
	conns map[ids.SessionID]*Conn

	upgrader websocket.Upgrader
}

// NewServer builds a gateway server. checkOrigin should validate the
// request's Origin header in production; passing nil accepts all
// origins (development only).
func NewServer(allocator *SessionAllocator, sink Sink, log zerolog.Logger, checkOrigin func(*http.Request) bool) *Server {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		allocator: allocator,
		sink:      sink,
		log:       log,
		conns:     make(map[ids.SessionID]*Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleWebSocket is the http.HandlerFunc to mount at the WebSocket
// endpoint.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session, err := s.allocator.Next(time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("session id allocation failed")
		socket.Close()
		return
	}

	conn := &Conn{session: session, t: newWSTransport(socket), send: make(chan []byte, 256), ansi: true, isWS: true}
	s.admit(conn, true)
}

// admit registers a freshly accepted connection, dispatches Connected,
// and spawns its read/write pumps. defaultAnsi distinguishes WebSocket
// clients (ANSI on by default) from telnet clients (off until the
// login flow negotiates it).
func (s *Server) admit(conn *Conn, defaultAnsi bool) {
	s.mu.Lock()
	s.conns[conn.session] = conn
	s.mu.Unlock()

	s.sink.Dispatch(events.Connected(conn.session, defaultAnsi))

	go s.writePump(conn)
	go s.readPump(conn)
}

func (s *Server) readPump(c *Conn) {
	defer s.teardown(c, "read_error")

	for {
		line, err := c.t.ReadLine()
		if err != nil {
			return
		}
		s.sink.Dispatch(events.LineReceived(c.session, line))
	}
}

func (s *Server) writePump(c *Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.t.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			frame := string(message)

			// Coalesce any messages already queued behind this one into
			// the same frame, draining the
			// channel before closing the writer.
			n := len(c.send)
			for i := 0; i < n; i++ {
				frame += "\n" + string(<-c.send)
			}
			if err := c.t.WriteFrame(frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.t.Ping(); err != nil {
				return
			}
		}
	}
}

// Render delivers an OutboundEvent to its session's connection. It
// writes every SendPrompt it is given; Pump collapses consecutive
// prompts for a session before they reach it.
func (s *Server) Render(event events.Outbound) {
	s.mu.RLock()
	conn, ok := s.conns[event.SessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	switch event.Kind {
	case events.KindSendText, events.KindSendInfo:
		conn.write(event.Text)
	case events.KindSendError:
		if conn.ansiEnabled() {
			conn.write("\x1b[31m" + event.Text + "\x1b[0m")
		} else {
			conn.write(event.Text)
		}
	case events.KindSendPrompt:
		conn.write("> ")
	case events.KindShowLoginScreen:
		conn.write("Welcome to AmbonMUD.")
	case events.KindSetAnsi:
		conn.setAnsi(event.AnsiEnabled)
	case events.KindClearScreen:
		if conn.ansiEnabled() {
			conn.write("\x1b[2J\x1b[H")
		}
	case events.KindGmcpData:
		// WebSocket clients receive GMCP as a tagged frame; the telnet
		// subnegotiation encoding is the transport adapter's concern and
		// telnet sessions only subscribe explicitly.
		if conn.isWS {
			conn.write("GMCP " + event.GmcpPackage + " " + event.GmcpJSON)
		}
	case events.KindClose:
		conn.write(event.CloseReason)
		s.teardown(conn, event.CloseReason)
	}
}

func (c *Conn) ansiEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ansi
}

func (c *Conn) setAnsi(on bool) {
	c.mu.Lock()
	c.ansi = on
	c.mu.Unlock()
}

func (c *Conn) write(text string) {
	select {
	case c.send <- []byte(text):
	default:
		// Caller (engine backpressure policy) is responsible for
		// disconnecting on overflow; the gateway itself never blocks.
	}
}

func (s *Server) teardown(c *Conn, reason string) {
	c.closeOnce.Do(func() {
		s.mu.Lock()
		delete(s.conns, c.session)
		s.mu.Unlock()
		close(c.send)
		c.t.Close()
		s.sink.Dispatch(events.Disconnected(c.session, reason))
	})
}

// Shutdown closes every connection with a user-visible message.
func (s *Server) Shutdown(message string) {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.write(message)
		s.teardown(c, "shutdown")
	}
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

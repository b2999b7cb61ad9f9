package gateway

import (
	"bufio"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport adapts a gorilla/websocket connection to the transport
// interface.
type wsTransport struct {
	socket *websocket.Conn
}

func newWSTransport(socket *websocket.Conn) *wsTransport {
	socket.SetReadDeadline(time.Now().Add(60 * time.Second))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &wsTransport{socket: socket}
}

func (t *wsTransport) ReadLine() (string, error) {
	_, message, err := t.socket.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(message), nil
}

func (t *wsTransport) WriteFrame(text string) error {
	t.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
	w, err := t.socket.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return err
	}
	return w.Close()
}

func (t *wsTransport) Ping() error {
	t.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.socket.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.socket.Close()
}

// telnetNOP is the two-byte IAC NOP sequence, used as a keepalive; raw
// telnet has no ping frame, so a no-op negotiation byte stands in for
// one the way real telnet daemons idle-probe a client.
var telnetNOP = []byte{0xFF, 0xF1}

// telnetTransport adapts a raw net.Conn-backed line reader to the
// transport interface for legacy telnet clients (PuTTY, TinTin++,
// Mudlet). It does no option negotiation beyond the bare minimum: it
// reads newline-delimited lines and writes CRLF-terminated frames.
type telnetTransport struct {
	conn   netConn
	reader *bufio.Reader
}

// netConn is the subset of net.Conn the telnet transport needs,
// interfaced so tests can substitute an in-memory pipe.
type netConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

func newTelnetTransport(conn netConn) *telnetTransport {
	return &telnetTransport{conn: conn, reader: bufio.NewReader(conn)}
}

func (t *telnetTransport) ReadLine() (string, error) {
	t.conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

func (t *telnetTransport) WriteFrame(text string) error {
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := t.conn.Write([]byte(text + "\r\n"))
	return err
}

func (t *telnetTransport) Ping() error {
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := t.conn.Write(telnetNOP)
	return err
}

func (t *telnetTransport) Close() error {
	return t.conn.Close()
}

// Package wstest provides a fake graphql-transport-ws server for tests.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const subprotocol = "graphql-transport-ws"

// Frame is a protocol frame as seen by the server.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscribe is the decoded payload of a subscribe frame.
type Subscribe struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// Options tweaks the handshake behaviour.
type Options struct {
	// SkipAck leaves the client waiting for connection_ack.
	SkipAck bool
}

// Server is a websocket server driving one Session per connection.
type Server struct {
	*httptest.Server

	// URL is the ws:// address of the server.
	URL string

	t        testing.TB
	upgrader websocket.Upgrader
	opts     Options
	handle   func(s *Session)

	mu       sync.Mutex
	sessions []*Session
}

// NewServer starts a server that runs handle for every accepted connection
// after the connection_init handshake.
func NewServer(t testing.TB, opts Options, handle func(s *Session)) *Server {
	t.Helper()

	srv := &Server{
		t: t,
		upgrader: websocket.Upgrader{
			CheckOrigin:  func(r *http.Request) bool { return true },
			Subprotocols: []string{subprotocol},
		},
		opts:   opts,
		handle: handle,
	}
	srv.Server = httptest.NewServer(http.HandlerFunc(srv.serve))
	srv.URL = "ws" + strings.TrimPrefix(srv.Server.URL, "http")
	t.Cleanup(srv.Close)

	return srv
}

// Sessions returns the sessions accepted so far.
func (srv *Server) Sessions() []*Session {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]*Session(nil), srv.sessions...)
}

func (srv *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.t.Logf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s := &Session{conn: conn, Header: r.Header.Clone(), frames: make(chan Frame, 64)}
	srv.mu.Lock()
	srv.sessions = append(srv.sessions, s)
	srv.mu.Unlock()

	var init Frame
	if err := conn.ReadJSON(&init); err != nil || init.Type != "connection_init" {
		return
	}
	s.InitPayload = init.Payload

	if srv.opts.SkipAck {
		// hold the socket open until the client gives up
		_, _, _ = conn.ReadMessage()
		return
	}
	if err := s.Send(Frame{Type: "connection_ack"}); err != nil {
		return
	}

	go s.readFrames()
	if srv.handle != nil {
		srv.handle(s)
	}
	<-s.closed()
}

// Session is one accepted client connection.
type Session struct {
	Header      http.Header
	InitPayload json.RawMessage

	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan Frame

	doneOnce sync.Once
	done     chan struct{}
	mu       sync.Mutex
}

func (s *Session) closed() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

func (s *Session) readFrames() {
	done := s.closed()
	defer s.doneOnce.Do(func() { close(done) })
	defer close(s.frames)

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			return
		}
		s.frames <- f
	}
}

// Send writes a raw frame.
func (s *Session) Send(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

// Expect returns the next client frame of type typ, skipping pings and pongs.
// ok is false if the client went away or nothing arrived within a second.
func (s *Session) Expect(typ string) (Frame, bool) {
	timeout := time.After(time.Second)
	for {
		select {
		case f, open := <-s.frames:
			if !open {
				return Frame{}, false
			}
			if f.Type == typ {
				return f, true
			}
			if f.Type == "ping" || f.Type == "pong" {
				continue
			}
			return f, false
		case <-timeout:
			return Frame{}, false
		}
	}
}

// ExpectSubscribe waits for a subscribe frame and decodes its payload.
func (s *Session) ExpectSubscribe() (string, Subscribe, bool) {
	f, ok := s.Expect("subscribe")
	if !ok {
		return "", Subscribe{}, false
	}
	var sub Subscribe
	if err := json.Unmarshal(f.Payload, &sub); err != nil {
		return "", Subscribe{}, false
	}
	return f.ID, sub, true
}

// Next sends an execution result with the given data.
func (s *Session) Next(id string, data any) error {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return err
	}
	return s.Send(Frame{ID: id, Type: "next", Payload: payload})
}

// Error fails the subscription with the given messages.
func (s *Session) Error(id string, messages ...string) error {
	errs := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		errs = append(errs, map[string]any{"message": m})
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	return s.Send(Frame{ID: id, Type: "error", Payload: payload})
}

// Complete ends the subscription from the server side.
func (s *Session) Complete(id string) error {
	return s.Send(Frame{ID: id, Type: "complete"})
}

// Ping sends a protocol ping.
func (s *Session) Ping() error {
	return s.Send(Frame{Type: "ping"})
}

// CloseWith sends a close frame with code and reason, then closes the socket.
func (s *Session) CloseWith(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return err
	}
	return s.conn.Close()
}

// Drop closes the socket without a close frame.
func (s *Session) Drop() error {
	return s.conn.Close()
}

// Package server implements the daemon side of the protocol (C6): it
// listens on a Unix socket, dispatches ping/create/list/destroy/attach
// requests against a session registry, and drives the attach handshake
// that guarantees a newly attached subscriber sees exactly one snapshot
// before any delta.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/palog"
	"github.com/ianremillard/pane/internal/registry"
	"github.com/ianremillard/pane/internal/subscriber"
	"github.com/ianremillard/pane/internal/wire"
)

// Server owns the listening socket and the session registry for one
// daemon lifetime.
type Server struct {
	log        *palog.Logger
	reg        *registry.Registry
	socketPath string
	info       wire.ServerInfo

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a Server bound to socketPath, ready to Run. reg is the
// session registry this server dispatches requests against.
func New(socketPath string, reg *registry.Registry, log *palog.Logger) *Server {
	return &Server{
		log:        log,
		reg:        reg,
		socketPath: socketPath,
		info: wire.ServerInfo{
			PID:        os.Getpid(),
			StartedAt:  time.Now(),
			SocketPath: socketPath,
		},
	}
}

// Run removes any stale socket at socketPath, listens, chmods the socket
// to 0600, and accepts connections until the listener is closed. It
// blocks until Close is called or Accept fails.
func (s *Server) Run() error {
	os.Remove(s.socketPath)

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("server: chmod %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.log.Printf("listening on %s (pid %d)", s.socketPath, s.info.PID)

	for {
		conn, err := l.Accept()
		if err != nil {
			return nil
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(nc net.Conn) {
	conn := connio.New(nc)

	msg, err := conn.ReadMessage()
	if err != nil || msg == nil || msg.Type != wire.TypeRequest || msg.Request == nil {
		conn.Close()
		return
	}
	req := msg.Request

	switch req.Command {
	case wire.CmdPing:
		s.respond(conn, wire.Response{OK: true})
		conn.Close()

	case wire.CmdCreateSession:
		s.handleCreate(conn, req)
		conn.Close()

	case wire.CmdListSessions:
		s.handleList(conn)
		conn.Close()

	case wire.CmdDestroySession:
		s.handleDestroy(conn, req)
		conn.Close()

	case wire.CmdAttachSession:
		s.handleAttach(conn, req) // blocks; owns conn's lifetime from here

	default:
		s.respond(conn, wire.Response{OK: false, Message: "unknown command: " + req.Command})
		conn.Close()
	}
}

func (s *Server) respond(conn *connio.Conn, resp wire.Response) {
	resp.Server = s.info
	conn.Send(&wire.WireMessage{Type: wire.TypeResponse, Response: &resp})
}

func (s *Server) handleCreate(conn *connio.Conn, req *wire.Request) {
	sess, err := s.reg.Create(req.Name, req.CommandLine)
	if err != nil {
		s.respond(conn, wire.Response{OK: false, Message: err.Error()})
		return
	}
	info := sess.Info()
	s.respond(conn, wire.Response{OK: true, Session: &info})
}

func (s *Server) handleList(conn *connio.Conn) {
	s.respond(conn, wire.Response{OK: true, Sessions: s.reg.List()})
}

func (s *Server) handleDestroy(conn *connio.Conn, req *wire.Request) {
	if err := s.reg.Destroy(req.SessionID); err != nil {
		s.respond(conn, wire.Response{OK: false, Message: destroyErrorMessage(err)})
		return
	}
	s.respond(conn, wire.Response{OK: true})
}

func destroyErrorMessage(err error) string {
	if errors.Is(err, registry.ErrNotFound) {
		return "session not found"
	}
	return err.Error()
}

// handleAttach registers a new subscriber on the requested session — which
// atomically enqueues its initial snapshot, see Session.AddSubscriber — then
// sends the attach response and starts the subscriber's reader/writer
// goroutines.
func (s *Server) handleAttach(conn *connio.Conn, req *wire.Request) {
	sess, err := s.reg.Lookup(req.SessionID)
	if err != nil {
		s.respond(conn, wire.Response{OK: false, Message: "session not found"})
		conn.Close()
		return
	}

	if req.Cols > 0 && req.Rows > 0 {
		sess.Resize(req.Cols, req.Rows)
	}

	sub := subscriber.New(conn, sess)
	sess.AddSubscriber(sub)

	info := sess.Info()
	s.respond(conn, wire.Response{OK: true, Session: &info})

	sub.Start()
}

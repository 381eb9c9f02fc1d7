package server

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/emulator/simple"
	"github.com/ianremillard/pane/internal/palog"
	"github.com/ianremillard/pane/internal/registry"
	"github.com/ianremillard/pane/internal/session"
	"github.com/ianremillard/pane/internal/wire"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	reg := registry.New(func(cols, rows int) session.Emulator { return simple.New(cols, rows) })
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	srv := New(socketPath, reg, palog.New("test", nil))

	go srv.Run()
	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, time.Second, 5*time.Millisecond)

	t.Cleanup(func() { srv.Close() })
	return srv, socketPath
}

func dial(t *testing.T, socketPath string) *connio.Conn {
	t.Helper()
	nc, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	return connio.New(nc)
}

func request(t *testing.T, conn *connio.Conn, req *wire.Request) *wire.Response {
	t.Helper()
	require.NoError(t, conn.Send(&wire.WireMessage{Type: wire.TypeRequest, Request: req}))
	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, wire.TypeResponse, msg.Type)
	return msg.Response
}

func TestPing(t *testing.T) {
	_, socketPath := startTestServer(t)
	conn := dial(t, socketPath)

	resp := request(t, conn, &wire.Request{Command: wire.CmdPing})
	assert.True(t, resp.OK)
	assert.NotZero(t, resp.Server.PID)
}

func TestCreateListDestroy(t *testing.T) {
	_, socketPath := startTestServer(t)
	conn := dial(t, socketPath)

	created := request(t, conn, &wire.Request{Command: wire.CmdCreateSession, Name: "work", CommandLine: []string{"/bin/cat"}})
	require.True(t, created.OK)
	require.NotNil(t, created.Session)
	id := created.Session.ID

	listConn := dial(t, socketPath)
	listed := request(t, listConn, &wire.Request{Command: wire.CmdListSessions})
	require.True(t, listed.OK)
	require.Len(t, listed.Sessions, 1)
	assert.Equal(t, id, listed.Sessions[0].ID)

	destroyConn := dial(t, socketPath)
	destroyed := request(t, destroyConn, &wire.Request{Command: wire.CmdDestroySession, SessionID: id})
	assert.True(t, destroyed.OK)

	missingConn := dial(t, socketPath)
	again := request(t, missingConn, &wire.Request{Command: wire.CmdDestroySession, SessionID: id})
	assert.False(t, again.OK)
	assert.Equal(t, "session not found", again.Message)
}

func TestAttachUnknownSession(t *testing.T) {
	_, socketPath := startTestServer(t)
	conn := dial(t, socketPath)

	resp := request(t, conn, &wire.Request{Command: wire.CmdAttachSession, SessionID: "nope"})
	assert.False(t, resp.OK)
	assert.Equal(t, "session not found", resp.Message)
}

func TestAttachSendsSnapshotBeforeDelta(t *testing.T) {
	_, socketPath := startTestServer(t)
	createConn := dial(t, socketPath)
	created := request(t, createConn, &wire.Request{Command: wire.CmdCreateSession, CommandLine: []string{"/bin/cat"}})
	require.True(t, created.OK)

	attachConn := dial(t, socketPath)
	require.NoError(t, attachConn.Send(&wire.WireMessage{
		Type:    wire.TypeRequest,
		Request: &wire.Request{Command: wire.CmdAttachSession, SessionID: created.Session.ID},
	}))

	msg, err := attachConn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, wire.TypeResponse, msg.Type)
	require.True(t, msg.Response.OK)

	next, err := attachConn.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, wire.TypeSnapshot, next.Type)
}

// TestAttachOrderingUnderConcurrentOutput attaches to a session whose
// child is continuously producing PTY output, so the pump's delta fan-out
// is racing the server's handleAttach on every connection. It guards the
// end-to-end path (not just the session-package unit) for the invariant
// that the first message any newly attached client reads is a snapshot.
func TestAttachOrderingUnderConcurrentOutput(t *testing.T) {
	_, socketPath := startTestServer(t)
	createConn := dial(t, socketPath)
	created := request(t, createConn, &wire.Request{
		Command:     wire.CmdCreateSession,
		CommandLine: []string{"/bin/sh", "-c", "while true; do echo spam; done"},
	})
	require.True(t, created.OK)

	for i := 0; i < 10; i++ {
		attachConn := dial(t, socketPath)
		require.NoError(t, attachConn.Send(&wire.WireMessage{
			Type:    wire.TypeRequest,
			Request: &wire.Request{Command: wire.CmdAttachSession, SessionID: created.Session.ID},
		}))

		msg, err := attachConn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, wire.TypeResponse, msg.Type)
		require.True(t, msg.Response.OK)

		next, err := attachConn.ReadMessage()
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, wire.TypeSnapshot, next.Type, "iteration %d: first message must be a snapshot", i)

		attachConn.Close()
	}
}

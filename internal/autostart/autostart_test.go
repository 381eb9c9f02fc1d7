package autostart

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/wire"
)

// fakeServer answers ping requests on a Unix socket, standing in for a
// real pane server so autostart's dial/ping path can be tested without
// spawning a process.
func fakeServer(t *testing.T, respondOK bool) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "fake.sock")
	l, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				conn := connio.New(nc)
				defer conn.Close()
				msg, err := conn.ReadMessage()
				if err != nil || msg == nil {
					return
				}
				conn.Send(&wire.WireMessage{Type: wire.TypeResponse, Response: &wire.Response{OK: respondOK}})
			}()
		}
	}()

	return socketPath
}

func TestPingTrueWhenServerResponds(t *testing.T) {
	socketPath := fakeServer(t, true)
	assert.True(t, Ping(socketPath))
}

func TestPingFalseWhenServerRejects(t *testing.T) {
	socketPath := fakeServer(t, false)
	assert.False(t, Ping(socketPath))
}

func TestPingFalseWhenNothingListening(t *testing.T) {
	assert.False(t, Ping(filepath.Join(t.TempDir(), "absent.sock")))
}

func TestDialSkipsLaunchWhenServerAlreadyUp(t *testing.T) {
	socketPath := fakeServer(t, true)
	conn, err := Dial(Options{SocketPath: socketPath})
	require.NoError(t, err)
	conn.Close()
}

func TestDialReturnsErrorWhenNoAutoStartAndNothingListening(t *testing.T) {
	_, err := Dial(Options{SocketPath: filepath.Join(t.TempDir(), "absent.sock"), NoAutoStart: true})
	assert.Error(t, err)
}

func TestShouldAutoStartOnMissingSocket(t *testing.T) {
	_, err := tryDial(filepath.Join(t.TempDir(), "absent.sock"))
	require.Error(t, err)
	assert.True(t, shouldAutoStart(err))
}

func TestShouldAutoStartOnConnectionRefused(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "refused.sock")
	l, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	l.Close() // socket file remains, but nothing is listening

	_, err = tryDial(socketPath)
	require.Error(t, err)
	assert.True(t, shouldAutoStart(err))
}

func TestShouldAutoStartFalseForOtherErrors(t *testing.T) {
	assert.False(t, shouldAutoStart(errors.New("some unrelated failure")))
	assert.False(t, shouldAutoStart(&net.OpError{Op: "dial", Net: "unix", Err: os.ErrPermission}))
}

// TestDialDoesNotLaunchOnNonAutoStartError confirms Dial propagates a
// dial error that isn't ENOENT/ECONNREFUSED without attempting to launch
// a server — a ping that reaches a process but gets an invalid reply
// should not trigger a second server to be forked alongside it.
func TestDialDoesNotLaunchOnNonAutoStartError(t *testing.T) {
	socketPath := fakeServer(t, false)
	_, err := Dial(Options{SocketPath: socketPath})
	require.Error(t, err)
	assert.False(t, shouldAutoStart(err))
}

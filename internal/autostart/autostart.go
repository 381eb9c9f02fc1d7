// Package autostart implements the connect-or-launch handshake (C7): a
// client tries to dial the daemon's socket, and if nothing answers, forks
// the same executable with the hidden --server flag and retries until the
// new daemon is ready or a retry budget is exhausted.
package autostart

import (
	"errors"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/wire"
)

// retryAttempts and retryInterval bound how long autostart waits for a
// freshly forked server to come up before giving up.
const (
	retryAttempts = 25
	retryInterval = 100 * time.Millisecond
	dialTimeout   = 500 * time.Millisecond
)

// Options configures how a freshly forked server is launched.
type Options struct {
	SocketPath  string
	LogPath     string // empty: the server logs to pane.log in the runtime directory
	NoAutoStart bool
}

// Dial connects to the server at opts.SocketPath, starting one first if the
// socket is absent (ENOENT) or nothing is listening on it (ECONNREFUSED),
// unless opts.NoAutoStart is set. Any other connect error — a permission
// error, a timeout, a ping that reached a process but got an unexpected
// reply — is propagated immediately rather than triggering a launch, since
// forking another server on top of a problem autostart can't fix would
// only compound it.
func Dial(opts Options) (*connio.Conn, error) {
	conn, err := tryDial(opts.SocketPath)
	if err == nil {
		return conn, nil
	}

	if opts.NoAutoStart || !shouldAutoStart(err) {
		return nil, err
	}

	if err := launch(opts); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < retryAttempts; i++ {
		time.Sleep(retryInterval)
		conn, err := tryDial(opts.SocketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// shouldAutoStart reports whether err is the kind of connect failure that
// means "nothing is there yet" — a missing socket file or a refused
// connection — as opposed to some other dial or protocol failure that a
// freshly launched server would not fix either.
func shouldAutoStart(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	return errors.Is(opErr.Err, syscall.ENOENT) || errors.Is(opErr.Err, syscall.ECONNREFUSED)
}

// tryDial dials the socket and pings it, closing the connection and
// returning an error if either step fails.
func tryDial(socketPath string) (*connio.Conn, error) {
	nc, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, err
	}
	conn := connio.New(nc)
	if err := conn.Send(&wire.WireMessage{Type: wire.TypeRequest, Request: &wire.Request{Command: wire.CmdPing}}); err != nil {
		conn.Close()
		return nil, err
	}
	msg, err := conn.ReadMessage()
	if err != nil || msg == nil || msg.Response == nil || !msg.Response.OK {
		conn.Close()
		return nil, os.ErrInvalid
	}
	return conn, nil
}

// Ping reports whether a server is listening and responsive at
// socketPath, without starting one.
func Ping(socketPath string) bool {
	conn, err := tryDial(socketPath)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// launch forks the current executable in --server mode, detached from the
// client's controlling terminal and session, so it survives the client
// exiting.
func launch(opts Options) error {
	exe, err := resolveExecutable()
	if err != nil {
		return err
	}

	args := []string{"--server", "--socket", opts.SocketPath}
	if opts.LogPath != "" {
		args = append(args, "--log", opts.LogPath)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd.Start()
}

// resolveExecutable finds the path to the current binary, falling back to
// argv[0] resolved against PATH if os.Executable fails.
func resolveExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		return exe, nil
	}
	return exec.LookPath(os.Args[0])
}

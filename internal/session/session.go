// Package session implements the core of a terminal session: it owns one
// PTY master, one child process, and one emulator-backed screen, and fans
// out screen deltas to whatever subscribers are currently attached.
package session

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/ianremillard/pane/internal/wire"
)

const defaultCols, defaultRows = 80, 24

// Subscriber is the narrow interface a Session needs from an attached
// client adapter: an id to key the subscriber set on, a non-blocking send
// of an outbound message, and an idempotent close. The concrete type lives
// in package subscriber; Session never imports it, avoiding a cyclic
// subscriber⇄session reference — Session only ever holds subscribers by id.
type Subscriber interface {
	ID() string
	Send(msg *wire.WireMessage)
	Close()
}

// Session owns one child process attached to a PTY, plus the emulator that
// turns its output into a cell grid.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mu           sync.Mutex // single-writer guard: emulator, subscribers, pty, process state
	emulator     Emulator
	ptm          *os.File
	cmd          *exec.Cmd
	pid          int
	running      bool
	lastExitCode *int
	cols, rows   int
	subscribers  map[string]Subscriber

	exited chan struct{} // closed once the child has been reaped
}

// New constructs a Session that has not yet started a child process.
func New(id, name string, emu Emulator) *Session {
	return &Session{
		ID:          id,
		Name:        name,
		CreatedAt:   time.Now(),
		emulator:    emu,
		cols:        defaultCols,
		rows:        defaultRows,
		subscribers: make(map[string]Subscriber),
		exited:      make(chan struct{}),
	}
}

// defaultShell resolves the process environment's SHELL, falling back to
// an OS-appropriate shell.
func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Start spawns the child attached to a new PTY master/slave pair. An empty
// commandLine spawns the default shell; otherwise commandLine[0] is the
// executable and the rest are arguments passed verbatim.
func (s *Session) Start(commandLine []string) error {
	name := defaultShell()
	var args []string
	if len(commandLine) > 0 {
		name = commandLine[0]
		args = commandLine[1:]
	}

	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	s.mu.Lock()
	cols, rows := s.cols, s.rows
	s.mu.Unlock()

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return fmt.Errorf("session %s: start: %w", s.ID, err)
	}

	s.mu.Lock()
	s.ptm = ptm
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.running = true
	s.emulator.Resize(cols, rows)
	s.mu.Unlock()

	go s.pump()

	return nil
}

// SendInput writes bytes to the PTY master, i.e. to the child's stdin.
func (s *Session) SendInput(data []byte) {
	s.mu.Lock()
	ptm := s.ptm
	s.mu.Unlock()
	if ptm == nil {
		return
	}
	ptm.Write(data)
}

// Resize resizes the emulator's screen and issues the winsize ioctl on the
// PTY master. It is a no-op if cols or rows is <= 0.
func (s *Session) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.emulator.Resize(cols, rows)
	ptm := s.ptm
	s.mu.Unlock()

	if ptm != nil {
		pty.Setsize(ptm, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	}
}

// AddSubscriber registers sub on this session and sends it an initial
// snapshot, both under the same critical section that guards feed's
// delta fan-out. A newly added subscriber must receive exactly one
// snapshot before any delta; ordering is fixed at enqueue time, not at
// drain time, so registering sub and enqueueing its snapshot have to
// happen atomically with respect to feed — otherwise a delta produced by
// the PTY pump between the two steps could be enqueued ahead of the
// snapshot. The subscriber's own send queue may still be unstarted when
// this returns; that only affects when the messages are drained, not the
// order they were enqueued in.
func (s *Session) AddSubscriber(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub.ID()] = sub
	snap := s.snapshotLocked()
	sub.Send(&wire.WireMessage{Type: wire.TypeSnapshot, Snapshot: snap})
}

// RemoveSubscriber unregisters the subscriber with the given id, if present.
func (s *Session) RemoveSubscriber(id string) {
	s.mu.Lock()
	delete(s.subscribers, id)
	s.mu.Unlock()
}

// Snapshot builds a full snapshot of the current screen state.
func (s *Session) Snapshot() *wire.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *wire.Snapshot {
	cols, rows := s.emulator.Cols(), s.emulator.Rows()
	cx, cy := s.emulator.Cursor()
	lines := make([][]wire.Cell, rows)
	for y := 0; y < rows; y++ {
		lines[y] = s.buildLineLocked(y, cols)
	}
	return &wire.Snapshot{
		Cols:        uint16(cols),
		Rows:        uint16(rows),
		CursorX:     uint16(cx),
		CursorY:     uint16(cy),
		IsAlternate: s.emulator.Alternate(),
		Lines:       lines,
	}
}

// buildLineLocked emits one cell per column, padding with spaces if the
// emulator returns fewer cells than cols. Must be called with mu held.
func (s *Session) buildLineLocked(y, cols int) []wire.Cell {
	row := s.emulator.Row(y)
	line := make([]wire.Cell, cols)
	for x := 0; x < cols; x++ {
		if x < len(row) {
			line[x] = normalizeCell(row[x])
		} else {
			line[x] = wire.Cell{Char: " ", Width: 1}
		}
	}
	return line
}

// normalizeCell displays an empty or NUL character as a single space,
// leaving width and attribute untouched.
func normalizeCell(c wire.Cell) wire.Cell {
	if c.Char == "" || c.Char == "\x00" {
		c.Char = " "
	}
	return c
}

// Terminate sends the child a termination signal and closes the PTY master.
func (s *Session) Terminate() {
	s.mu.Lock()
	pid := s.pid
	ptm := s.ptm
	s.mu.Unlock()

	if pid > 0 {
		if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			syscall.Kill(pid, syscall.SIGKILL)
		}
	}
	if ptm != nil {
		ptm.Close()
	}
}

// Info returns a serializable snapshot of the session's metadata.
func (s *Session) Info() wire.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wire.SessionInfo{
		ID:           s.ID,
		Name:         s.Name,
		IsRunning:    s.running,
		ProcessID:    s.pid,
		CreatedAt:    s.CreatedAt,
		LastExitCode: s.lastExitCode,
	}
}

// Exited returns a channel that is closed once the child has been reaped.
func (s *Session) Exited() <-chan struct{} { return s.exited }

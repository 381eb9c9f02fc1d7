package session

import (
	"github.com/ianremillard/pane/internal/wire"
)

// pump reads PTY output in a tight loop, feeds it to the emulator, and fans
// out deltas to subscribers. It runs for the lifetime of the child process
// and reaps it once the PTY read returns an error (slave side closed).
func (s *Session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptm.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if err != nil {
			break
		}
	}

	s.reap()
}

// feed applies one batch of PTY output to the emulator and, if it produced
// a dirty range, builds and fans out a delta. The dirty range is always
// cleared afterward (even with no subscribers) so it cannot grow unbounded.
func (s *Session) feed(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emulator.Feed(chunk)

	start, end, ok := s.emulator.DirtyRange()
	if !ok {
		return
	}

	if len(s.subscribers) > 0 {
		if delta := s.buildDeltaLocked(start, end); delta != nil {
			msg := &wire.WireMessage{Type: wire.TypeDelta, Delta: delta}
			for _, sub := range s.subscribers {
				sub.Send(msg)
			}
		}
	}

	s.emulator.ClearDirty()
}

// buildDeltaLocked clips [start,end] to [0,rows-1] and builds the delta for
// that range. It returns nil if the clipped range is empty, since a delta
// entirely outside the screen must never be sent.
func (s *Session) buildDeltaLocked(start, end int) *wire.Delta {
	cols, rows := s.emulator.Cols(), s.emulator.Rows()
	if start < 0 {
		start = 0
	}
	if end > rows-1 {
		end = rows - 1
	}
	if start > end {
		return nil
	}

	cx, cy := s.emulator.Cursor()
	lines := make([][]wire.Cell, end-start+1)
	for y := start; y <= end; y++ {
		lines[y-start] = s.buildLineLocked(y, cols)
	}
	return &wire.Delta{
		StartY:  uint16(start),
		EndY:    uint16(end),
		CursorX: uint16(cx),
		CursorY: uint16(cy),
		Lines:   lines,
	}
}

// reap runs once the PTY read has errored: it waits for the child with
// cmd.Wait, then records the exit code, marks the session not running, and
// closes the PTY master.
func (s *Session) reap() {
	var code int
	if s.cmd != nil {
		err := s.cmd.Wait()
		code = exitCode(err)
	}

	s.mu.Lock()
	s.running = false
	s.lastExitCode = &code
	if s.ptm != nil {
		s.ptm.Close()
		s.ptm = nil
	}
	s.mu.Unlock()

	close(s.exited)
}

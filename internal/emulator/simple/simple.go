// Package simple is a minimal in-process terminal emulator used in tests
// that want to exercise session.Session's snapshot/delta plumbing without
// depending on a real ANSI parser. It understands \r, \n and \b, strips (but
// does not interpret) CSI/OSC escape sequences, and stores every other byte
// as one width-1 cell; multi-byte UTF-8 is not decoded.
package simple

import (
	"sync"

	"github.com/ianremillard/pane/internal/wire"
)

// Emulator is a tiny VT-ish screen model satisfying session.Emulator.
type Emulator struct {
	mu   sync.Mutex
	cols int
	rows int
	grid [][]wire.Cell
	curX int
	curY int

	dirty    bool
	dirtyMin int
	dirtyMax int
}

// New constructs an Emulator with the given dimensions.
func New(cols, rows int) *Emulator {
	e := &Emulator{cols: cols, rows: rows}
	e.grid = makeGrid(cols, rows)
	return e
}

func makeGrid(cols, rows int) [][]wire.Cell {
	grid := make([][]wire.Cell, rows)
	for y := range grid {
		grid[y] = blankRow(cols)
	}
	return grid
}

func blankRow(cols int) []wire.Cell {
	row := make([]wire.Cell, cols)
	for x := range row {
		row[x] = wire.Cell{Char: " ", Width: 1}
	}
	return row
}

// Feed parses p and updates the screen model.
func (e *Emulator) Feed(p []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := 0
	for i < len(p) {
		b := p[i]
		switch {
		case b == 0x1b: // ESC: strip a CSI/OSC sequence or a lone escape.
			i += e.skipEscape(p[i:])
		case b == '\r':
			e.curX = 0
			i++
		case b == '\n':
			e.lineFeedLocked()
			i++
		case b == '\b':
			if e.curX > 0 {
				e.curX--
			}
			i++
		default:
			e.printLocked(rune(b))
			i++
		}
	}
}

// skipEscape consumes one escape sequence starting at p[0]=='\x1b' and
// returns its length. Unknown/short sequences consume just the ESC byte.
func (e *Emulator) skipEscape(p []byte) int {
	if len(p) < 2 {
		return 1
	}
	switch p[1] {
	case '[': // CSI: ESC '[' params... final byte in 0x40-0x7E
		for i := 2; i < len(p); i++ {
			if p[i] >= 0x40 && p[i] <= 0x7e {
				return i + 1
			}
		}
		return len(p)
	case ']': // OSC: ESC ']' ... terminated by BEL or ST (ESC \)
		for i := 2; i < len(p); i++ {
			if p[i] == 0x07 {
				return i + 1
			}
			if p[i] == 0x1b && i+1 < len(p) && p[i+1] == '\\' {
				return i + 2
			}
		}
		return len(p)
	default:
		return 2
	}
}

func (e *Emulator) printLocked(r rune) {
	if e.curX >= e.cols {
		e.lineFeedLocked()
		e.curX = 0
	}
	e.grid[e.curY][e.curX] = wire.Cell{Char: string(r), Width: 1}
	e.markDirtyLocked(e.curY)
	e.curX++
}

func (e *Emulator) lineFeedLocked() {
	if e.curY >= e.rows-1 {
		// Scroll the screen up by one line.
		copy(e.grid, e.grid[1:])
		e.grid[e.rows-1] = blankRow(e.cols)
		e.markDirtyRangeLocked(0, e.rows-1)
		return
	}
	e.curY++
	e.markDirtyLocked(e.curY)
}

func (e *Emulator) markDirtyLocked(y int) {
	e.markDirtyRangeLocked(y, y)
}

func (e *Emulator) markDirtyRangeLocked(start, end int) {
	if !e.dirty {
		e.dirty = true
		e.dirtyMin, e.dirtyMax = start, end
		return
	}
	if start < e.dirtyMin {
		e.dirtyMin = start
	}
	if end > e.dirtyMax {
		e.dirtyMax = end
	}
}

// Resize changes the emulator's screen dimensions, preserving the top-left
// region of the existing grid.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cols == e.cols && rows == e.rows {
		return
	}
	newGrid := makeGrid(cols, rows)
	for y := 0; y < rows && y < e.rows; y++ {
		for x := 0; x < cols && x < e.cols; x++ {
			newGrid[y][x] = e.grid[y][x]
		}
	}
	e.grid = newGrid
	e.cols, e.rows = cols, rows
	if e.curX >= cols {
		e.curX = cols - 1
	}
	if e.curY >= rows {
		e.curY = rows - 1
	}
	e.markDirtyRangeLocked(0, rows-1)
}

// Cols returns the current column count.
func (e *Emulator) Cols() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cols
}

// Rows returns the current row count.
func (e *Emulator) Rows() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows
}

// Cursor returns the current cursor position.
func (e *Emulator) Cursor() (x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curX, e.curY
}

// Alternate always reports false: this emulator has no alternate buffer.
func (e *Emulator) Alternate() bool { return false }

// Row returns a copy of row y's cells.
func (e *Emulator) Row(y int) []wire.Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	if y < 0 || y >= len(e.grid) {
		return nil
	}
	row := make([]wire.Cell, len(e.grid[y]))
	copy(row, e.grid[y])
	return row
}

// DirtyRange returns the contiguous row range touched since the last
// ClearDirty call.
func (e *Emulator) DirtyRange() (start, end int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirtyMin, e.dirtyMax, e.dirty
}

// ClearDirty resets the accumulated dirty range.
func (e *Emulator) ClearDirty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = false
}

// Package midterm adapts github.com/vito/midterm's *midterm.Terminal to the
// session.Emulator interface (NewTerminal(rows, cols), Write, Resize, Cursor,
// the Content rune grid, and Format.Regions for per-cell styling).
//
// midterm does not expose a direct "cells changed since last clear"
// primitive, so this adapter derives one itself by diffing the Content grid
// against the previous feed's snapshot, which is equivalent in effect and
// keeps the session pump's dirty-range contract intact.
package midterm

import (
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	mt "github.com/vito/midterm"

	"github.com/ianremillard/pane/internal/wire"
)

// Emulator adapts a *mt.Terminal to session.Emulator.
type Emulator struct {
	mu   sync.Mutex
	term *mt.Terminal
	cols int
	rows int

	prev [][]rune // previous Content snapshot, for dirty diffing

	dirty    bool
	dirtyMin int
	dirtyMax int
}

// New constructs an Emulator with the given dimensions.
func New(cols, rows int) *Emulator {
	e := &Emulator{
		term: mt.NewTerminal(rows, cols),
		cols: cols,
		rows: rows,
	}
	// The blank screen is the diff baseline, so the first Feed marks only
	// the rows it changes.
	e.prev = make([][]rune, len(e.term.Content))
	for y, row := range e.term.Content {
		e.prev[y] = append([]rune(nil), row...)
	}
	return e
}

// Feed parses p and updates the screen model.
func (e *Emulator) Feed(p []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.term.Write(p)
	e.diffLocked()
}

// diffLocked compares the terminal's current Content grid against the
// snapshot taken after the previous Feed, marking every differing row
// dirty, then refreshes the snapshot.
func (e *Emulator) diffLocked() {
	content := e.term.Content
	if e.prev == nil || len(e.prev) != len(content) {
		e.markRangeLocked(0, len(content)-1)
	} else {
		for y := range content {
			if !runesEqual(e.prev[y], content[y]) {
				e.markRangeLocked(y, y)
			}
		}
	}

	snap := make([][]rune, len(content))
	for y, row := range content {
		snap[y] = append([]rune(nil), row...)
	}
	e.prev = snap
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Emulator) markRangeLocked(start, end int) {
	if start > end {
		return
	}
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

// Resize changes the emulator's screen dimensions.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.term.Resize(rows, cols)
	e.cols, e.rows = cols, rows
	e.prev = nil // force a full redraw diff on the next Feed
	e.markRangeLocked(0, rows-1)
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
	return e.term.Cursor.X, e.term.Cursor.Y
}

// Alternate always reports false: *mt.Terminal does not expose an
// alternate-screen-buffer indicator.
func (e *Emulator) Alternate() bool { return false }

// Row returns the cells of row y, built by walking the terminal's styled
// regions for that row and splitting each rune into one or two wire.Cell
// entries (the second a width-0 companion for east-asian-wide runes) so
// the combined width always accounts for every display column.
func (e *Emulator) Row(y int) []wire.Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	if y < 0 || y >= len(e.term.Content) {
		return nil
	}
	line := e.term.Content[y]

	cells := make([]wire.Cell, 0, e.cols)
	pos := 0
	consumed := 0
	for region := range e.term.Format.Regions(y) {
		attr := parseSGR(region.F.Render())
		end := pos + region.Size
		for i := pos; i < end && i < len(line); i++ {
			if consumed >= e.cols {
				break
			}
			r := line[i]
			w := runewidth.RuneWidth(r)
			if w <= 0 {
				w = 1
			}
			if consumed+w > e.cols {
				w = e.cols - consumed
			}
			cells = append(cells, wire.Cell{Char: string(r), Width: int8(w), Attr: attr})
			consumed += w
			if w == 2 {
				cells = append(cells, wire.Cell{Char: "", Width: 0, Attr: attr})
			}
		}
		pos = end
	}
	return cells
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

// parseSGR turns an ANSI SGR escape sequence (as produced by
// mt.Format.Render()) into a wire.Attribute. Unrecognized parameters are
// ignored; malformed input yields the default attribute.
func parseSGR(seq string) wire.Attribute {
	var attr wire.Attribute
	for _, esc := range splitEscapes(seq) {
		params := strings.Split(esc, ";")
		i := 0
		for i < len(params) {
			code, err := strconv.Atoi(params[i])
			if err != nil {
				i++
				continue
			}
			switch {
			case code == 0:
				attr = wire.Attribute{}
			case code == 1:
				attr.Style |= wire.StyleBold
			case code == 2:
				attr.Style |= wire.StyleDim
			case code == 3:
				attr.Style |= wire.StyleItalic
			case code == 4:
				attr.Style |= wire.StyleUnderline
			case code == 5:
				attr.Style |= wire.StyleBlink
			case code == 7:
				attr.Style |= wire.StyleInvert
			case code == 8:
				attr.Style |= wire.StyleInvisible
			case code == 9:
				attr.Style |= wire.StyleCrossedOut
			case code >= 30 && code <= 37:
				attr.Foreground = wire.AnsiColor(uint8(code - 30))
			case code == 38:
				color, consumed := parseExtendedColor(params[i+1:])
				attr.Foreground = color
				i += consumed
			case code == 39:
				attr.Foreground = wire.Color{Variant: wire.ColorDefault}
			case code >= 40 && code <= 47:
				attr.Background = wire.AnsiColor(uint8(code - 40))
			case code == 48:
				color, consumed := parseExtendedColor(params[i+1:])
				attr.Background = color
				i += consumed
			case code == 49:
				attr.Background = wire.Color{Variant: wire.ColorDefault}
			case code >= 90 && code <= 97:
				attr.Foreground = wire.AnsiColor(uint8(code-90) + 8)
			case code >= 100 && code <= 107:
				attr.Background = wire.AnsiColor(uint8(code-100) + 8)
			}
			i++
		}
	}
	return attr
}

// parseExtendedColor parses the parameters following a 38/48 SGR code:
// either "5;N" (ansi 256) or "2;R;G;B" (truecolor). It returns the
// resulting color and how many of params it consumed.
func parseExtendedColor(params []string) (wire.Color, int) {
	if len(params) == 0 {
		return wire.Color{}, 0
	}
	mode, err := strconv.Atoi(params[0])
	if err != nil {
		return wire.Color{}, 0
	}
	switch mode {
	case 5:
		if len(params) < 2 {
			return wire.Color{}, 1
		}
		idx, _ := strconv.Atoi(params[1])
		return wire.AnsiColor(uint8(idx)), 2
	case 2:
		if len(params) < 4 {
			return wire.Color{}, 1
		}
		r, _ := strconv.Atoi(params[1])
		g, _ := strconv.Atoi(params[2])
		b, _ := strconv.Atoi(params[3])
		return wire.TrueColor(uint8(r), uint8(g), uint8(b)), 4
	default:
		return wire.Color{}, 1
	}
}

// splitEscapes extracts the parameter portion of every "\x1b[...m" sequence
// found in s.
func splitEscapes(s string) []string {
	var out []string
	for {
		start := strings.Index(s, "\x1b[")
		if start < 0 {
			return out
		}
		s = s[start+2:]
		end := strings.IndexByte(s, 'm')
		if end < 0 {
			return out
		}
		out = append(out, s[:end])
		s = s[end+1:]
	}
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ianremillard/pane/internal/wire"
)

// renderer draws snapshot/delta cell grids directly to an io.Writer using
// cursor-addressed ANSI escapes. It tracks the last attribute it emitted so
// runs of cells with the same style only cost one SGR sequence.
type renderer struct {
	w       io.Writer
	lastSGR string
}

func newRenderer(w io.Writer) *renderer { return &renderer{w: w} }

// drawSnapshot repaints the whole screen.
func (r *renderer) drawSnapshot(s *wire.Snapshot) {
	fmt.Fprint(r.w, "\x1b[2J\x1b[H")
	r.lastSGR = ""
	for y, line := range s.Lines {
		r.drawLine(y, line)
	}
	r.moveCursor(int(s.CursorX), int(s.CursorY))
}

// drawDelta repaints only the rows the delta covers.
func (r *renderer) drawDelta(d *wire.Delta) {
	for i, line := range d.Lines {
		r.drawLine(int(d.StartY)+i, line)
	}
	r.moveCursor(int(d.CursorX), int(d.CursorY))
}

func (r *renderer) drawLine(y int, cells []wire.Cell) {
	fmt.Fprintf(r.w, "\x1b[%d;1H\x1b[K", y+1)
	var b strings.Builder
	for _, c := range cells {
		if c.Width == 0 {
			continue // companion half of a wide cell; already drawn
		}
		sgr := sgrFor(c.Attr)
		if sgr != r.lastSGR {
			b.WriteString(sgr)
			r.lastSGR = sgr
		}
		ch := c.Char
		if ch == "" {
			ch = " "
		}
		b.WriteString(ch)
	}
	io.WriteString(r.w, b.String())
}

func (r *renderer) moveCursor(x, y int) {
	fmt.Fprintf(r.w, "\x1b[%d;%dH", y+1, x+1)
}

// sgrFor renders an Attribute to its SGR escape sequence, always starting
// from reset (0) so a renderer need not track incremental state itself.
func sgrFor(a wire.Attribute) string {
	codes := []string{"0"}
	if a.Style&wire.StyleBold != 0 {
		codes = append(codes, "1")
	}
	if a.Style&wire.StyleDim != 0 {
		codes = append(codes, "2")
	}
	if a.Style&wire.StyleItalic != 0 {
		codes = append(codes, "3")
	}
	if a.Style&wire.StyleUnderline != 0 {
		codes = append(codes, "4")
	}
	if a.Style&wire.StyleBlink != 0 {
		codes = append(codes, "5")
	}
	if a.Style&wire.StyleInvert != 0 {
		codes = append(codes, "7")
	}
	if a.Style&wire.StyleInvisible != 0 {
		codes = append(codes, "8")
	}
	if a.Style&wire.StyleCrossedOut != 0 {
		codes = append(codes, "9")
	}
	codes = append(codes, colorCodes(a.Foreground, true)...)
	codes = append(codes, colorCodes(a.Background, false)...)
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorCodes(c wire.Color, fg bool) []string {
	base := 30
	if !fg {
		base = 40
	}
	switch c.Variant {
	case wire.ColorANSI:
		switch {
		case c.Index < 8:
			return []string{fmt.Sprintf("%d", base+int(c.Index))}
		case c.Index < 16:
			return []string{fmt.Sprintf("%d", base+60+int(c.Index)-8)}
		default:
			return []string{fmt.Sprintf("%d", base+8), "5", fmt.Sprintf("%d", c.Index)}
		}
	case wire.ColorTrueColor:
		return []string{fmt.Sprintf("%d", base+8), "2", fmt.Sprintf("%d", c.R), fmt.Sprintf("%d", c.G), fmt.Sprintf("%d", c.B)}
	case wire.ColorDefaultInverted:
		return []string{"7"}
	default:
		return nil
	}
}

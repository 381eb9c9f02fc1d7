package session

import "github.com/ianremillard/pane/internal/wire"

// Emulator is the only foreign collaborator a Session depends on: an
// in-process terminal screen model that consumes raw PTY bytes and exposes
// cursor position, buffer contents, cell attributes, and dirty-line ranges.
// The concrete screen-parsing implementation is deliberately out of scope
// here; this interface names exactly the operations the session core calls.
type Emulator interface {
	// Feed parses p and updates the screen model.
	Feed(p []byte)

	// Resize changes the emulator's screen dimensions.
	Resize(cols, rows int)

	Cols() int
	Rows() int

	// Cursor returns the current cursor position.
	Cursor() (x, y int)

	// Alternate reports whether the alternate screen buffer is active.
	Alternate() bool

	// Row returns the cells of row y, left to right. The returned slice may
	// be shorter than Cols(); the session pads it with space cells.
	Row(y int) []wire.Cell

	// DirtyRange returns the contiguous row range touched since the last
	// ClearDirty call. ok is false if nothing is dirty.
	DirtyRange() (start, end int, ok bool)

	// ClearDirty resets the accumulated dirty range.
	ClearDirty()
}

// Package wire defines the messages exchanged between a pane client and the
// pane daemon, and the two encodings used to carry them: JSON for the
// request/response control plane, and a compact big-endian binary form for
// high-frequency screen traffic (snapshots, deltas, input, resize).
package wire

import "time"

// Message types carried in the JSON envelope's "type" discriminator.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeSnapshot = "snapshot"
	TypeDelta    = "delta"
	TypeInput    = "input"
	TypeResize   = "resize"
)

// Request commands.
const (
	CmdPing           = "ping"
	CmdCreateSession  = "createSession"
	CmdListSessions   = "listSessions"
	CmdAttachSession  = "attachSession"
	CmdDestroySession = "destroySession"
)

// WireMessage is the JSON object form of every message on the wire. Exactly
// one of the body fields is populated, matching Type.
type WireMessage struct {
	Type string `json:"type"`

	Request  *Request  `json:"request,omitempty"`
	Response *Response  `json:"response,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Delta    *Delta    `json:"delta,omitempty"`
	Input    *Input    `json:"input,omitempty"`
	Resize   *Resize   `json:"resize,omitempty"`
}

// Request is the body of a type=request message.
type Request struct {
	Command     string   `json:"command"`
	SessionID   string   `json:"sessionID,omitempty"`
	Name        string   `json:"name,omitempty"`
	CommandLine []string `json:"commandLine,omitempty"`
	Cols        int      `json:"cols,omitempty"`
	Rows        int      `json:"rows,omitempty"`
}

// ServerInfo decorates every response so a client can identify which server
// answered it.
type ServerInfo struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"startedAt"`
	SocketPath string    `json:"socketPath"`
}

// SessionInfo is a point-in-time snapshot of a session's metadata.
type SessionInfo struct {
	ID           string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	IsRunning    bool      `json:"isRunning"`
	ProcessID    int       `json:"processID,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastExitCode *int      `json:"lastExitCode,omitempty"`
}

// Response is the body of a type=response message.
type Response struct {
	OK       bool          `json:"ok"`
	Message  string        `json:"message,omitempty"`
	Server   ServerInfo    `json:"server"`
	Session  *SessionInfo  `json:"session,omitempty"`
	Sessions []SessionInfo `json:"sessions,omitempty"`
}

// ColorVariant identifies which of Color's four variants is populated.
type ColorVariant uint8

const (
	ColorDefault ColorVariant = iota
	ColorDefaultInverted
	ColorANSI
	ColorTrueColor
)

// Color is a tagged value over four variants: defaultColor,
// defaultInvertedColor, ansi(index), trueColor(r,g,b).
type Color struct {
	Variant ColorVariant `json:"variant"`
	Index   uint8        `json:"index,omitempty"`
	R       uint8        `json:"r,omitempty"`
	G       uint8        `json:"g,omitempty"`
	B       uint8        `json:"b,omitempty"`
}

// AnsiColor builds an ansi(index) color.
func AnsiColor(index uint8) Color { return Color{Variant: ColorANSI, Index: index} }

// TrueColor builds a trueColor(r,g,b) color.
func TrueColor(r, g, b uint8) Color { return Color{Variant: ColorTrueColor, R: r, G: g, B: b} }

// Style is a bitmask over text attributes, one byte on the wire. Bits
// 1/2/4/8/32 are contractually fixed; decoders must tolerate unknown bits.
type Style uint8

const (
	StyleBold       Style = 1 << 0 // 1
	StyleUnderline  Style = 1 << 1 // 2
	StyleBlink      Style = 1 << 2 // 4
	StyleInvert     Style = 1 << 3 // 8
	StyleItalic     Style = 1 << 4 // 16
	StyleDim        Style = 1 << 5 // 32
	StyleCrossedOut Style = 1 << 6 // 64
	StyleInvisible  Style = 1 << 7 // 128
)

// Attribute describes the visual styling of one cell.
type Attribute struct {
	Foreground Color  `json:"foreground"`
	Background Color  `json:"background"`
	Style      Style  `json:"style"`
	Underline  *Color `json:"underline,omitempty"`
}

// Cell is one screen position: a displayed grapheme, its east-asian width
// in cells (0, 1, or 2), and its attribute.
type Cell struct {
	Char  string    `json:"char"`
	Width int8      `json:"width"`
	Attr  Attribute `json:"attr"`
}

// Snapshot is a full-screen capture sent once when a subscriber attaches.
type Snapshot struct {
	Cols        uint16   `json:"cols"`
	Rows        uint16   `json:"rows"`
	CursorX     uint16   `json:"cursorX"`
	CursorY     uint16   `json:"cursorY"`
	IsAlternate bool     `json:"isAlternate"`
	Lines       [][]Cell `json:"lines"`
}

// Delta is a contiguous row range changed since the last emission. The
// range is inclusive: EndY >= StartY.
type Delta struct {
	StartY  uint16   `json:"startY"`
	EndY    uint16   `json:"endY"`
	CursorX uint16   `json:"cursorX"`
	CursorY uint16   `json:"cursorY"`
	Lines   [][]Cell `json:"lines"`
}

// Input carries bytes to write into a session's PTY.
type Input struct {
	Data []byte `json:"data"`
}

// Resize carries a new terminal size for a session.
type Resize struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// Package connio implements a framed duplex connection: one byte-stream
// file descriptor wrapped with per-connection write serialization,
// single-consumer reads, and idempotent close.
package connio

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/ianremillard/pane/internal/wire"
)

// ErrClosed is returned by Send/SendBinary after Close. ReadMessage after
// Close returns the error from reading the closed net.Conn, not a clean EOF.
var ErrClosed = errors.New("connio: connection closed")

// Conn wraps one net.Conn and provides the framed message operations the
// rest of the daemon and client use. Writes are serialized with a mutex so
// two goroutines sending on the same Conn never interleave frame bytes.
// Reads are single-consumer by contract: callers must only ever run
// ReadMessage from one goroutine at a time.
type Conn struct {
	nc net.Conn

	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

// New wraps nc in a Conn.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Raw returns the underlying net.Conn, for code that needs to read raw
// bytes outside the framed protocol (nothing in this module does).
func (c *Conn) Raw() net.Conn { return c.nc }

// Send writes msg as a JSON frame.
func (c *Conn) Send(msg *wire.WireMessage) error {
	payload, err := wire.EncodeJSON(msg)
	if err != nil {
		return err
	}
	return c.writeFrame(wire.FormatJSON, payload)
}

// SendBinary writes msg as a binary frame.
func (c *Conn) SendBinary(msg *wire.WireMessage) error {
	payload, err := wire.EncodeBinary(msg)
	if err != nil {
		return err
	}
	return c.writeFrame(wire.FormatBinary, payload)
}

func (c *Conn) writeFrame(format byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	if err := wire.WriteFrame(c.nc, format, payload); err != nil {
		// A write failure is fatal for the connection.
		c.Close()
		return err
	}
	return nil
}

// ReadMessage reads and decodes the next frame, auto-detecting JSON vs.
// binary from the frame's format tag. It returns (nil, nil) on clean EOF.
func (c *Conn) ReadMessage() (*wire.WireMessage, error) {
	format, payload, err := wire.ReadFrame(c.nc)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	switch format {
	case wire.FormatJSON:
		return wire.DecodeJSON(payload)
	case wire.FormatBinary:
		return wire.DecodeBinary(payload)
	default:
		return nil, &wire.CodecError{Kind: wire.ErrInvalidTag}
	}
}

// Close closes the underlying connection. It is safe to call more than
// once; only the first call has effect.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}

func (c *Conn) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame format tags.
const (
	FormatJSON   byte = 0
	FormatBinary byte = 1
)

const maxFrameLength = 16 << 20 // sanity cap: 16 MiB

// WriteFrame writes one frame to w: a 4-byte big-endian length (covering the
// format byte and payload), the 1-byte format tag, then the payload.
func WriteFrame(w io.Writer, format byte, payload []byte) error {
	length := uint32(len(payload) + 1)
	hdr := make([]byte, 5)
	binary.BigEndian.PutUint32(hdr[0:4], length)
	hdr[4] = format
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads exactly one frame from r. It returns io.EOF only when the
// stream is cleanly closed before any byte of a new frame is read.
func ReadFrame(r io.Reader) (format byte, payload []byte, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, errUnexpectedEnd("frame missing format byte")
	}
	if length > maxFrameLength {
		return 0, nil, fmt.Errorf("wire: frame too large: %d bytes", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

// ReadExact consumes exactly n bytes from r, or returns io.EOF if the stream
// closes before any bytes are read and io.ErrUnexpectedEOF on a partial read.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

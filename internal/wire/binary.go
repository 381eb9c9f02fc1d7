package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Binary message tags (distinct from the frame format tag in frame.go).
const (
	tagRequest byte = iota
	tagResponse
	tagSnapshot
	tagDelta
	tagInput
	tagResize
)

// EncodeBinary serializes msg using the compact binary layout. Only
// snapshot, delta, input, and resize messages may be binary-encoded;
// request/response are JSON-only.
func EncodeBinary(msg *WireMessage) ([]byte, error) {
	var buf []byte
	switch msg.Type {
	case TypeSnapshot:
		if msg.Snapshot == nil {
			return nil, fmt.Errorf("wire: snapshot message missing body")
		}
		buf = append(buf, tagSnapshot)
		buf = appendSnapshot(buf, msg.Snapshot)
	case TypeDelta:
		if msg.Delta == nil {
			return nil, fmt.Errorf("wire: delta message missing body")
		}
		buf = append(buf, tagDelta)
		buf = appendDelta(buf, msg.Delta)
	case TypeInput:
		if msg.Input == nil {
			return nil, fmt.Errorf("wire: input message missing body")
		}
		buf = append(buf, tagInput)
		buf = appendInput(buf, msg.Input)
	case TypeResize:
		if msg.Resize == nil {
			return nil, fmt.Errorf("wire: resize message missing body")
		}
		buf = append(buf, tagResize)
		buf = appendResize(buf, msg.Resize)
	case TypeRequest, TypeResponse:
		return nil, fmt.Errorf("wire: %s must not be binary-encoded", msg.Type)
	default:
		return nil, fmt.Errorf("wire: unknown message type %q", msg.Type)
	}
	return buf, nil
}

// DecodeBinary parses the compact binary layout back into a WireMessage.
func DecodeBinary(data []byte) (*WireMessage, error) {
	r := &cursor{data: data}
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagSnapshot:
		snap, err := readSnapshot(r)
		if err != nil {
			return nil, err
		}
		return &WireMessage{Type: TypeSnapshot, Snapshot: snap}, nil
	case tagDelta:
		d, err := readDelta(r)
		if err != nil {
			return nil, err
		}
		return &WireMessage{Type: TypeDelta, Delta: d}, nil
	case tagInput:
		in, err := readInput(r)
		if err != nil {
			return nil, err
		}
		return &WireMessage{Type: TypeInput, Input: in}, nil
	case tagResize:
		rs, err := readResize(r)
		if err != nil {
			return nil, err
		}
		return &WireMessage{Type: TypeResize, Resize: rs}, nil
	case tagRequest, tagResponse:
		return nil, errInvalidTag("request/response must not be sent in binary")
	default:
		return nil, errInvalidTag(fmt.Sprintf("unknown tag %d", tag))
	}
}

// ─── encoding helpers ──────────────────────────────────────────────────────

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendColor(buf []byte, c Color) []byte {
	buf = append(buf, byte(c.Variant))
	switch c.Variant {
	case ColorANSI:
		buf = append(buf, c.Index)
	case ColorTrueColor:
		buf = append(buf, c.R, c.G, c.B)
	}
	return buf
}

func appendAttribute(buf []byte, a Attribute) []byte {
	buf = appendColor(buf, a.Foreground)
	buf = appendColor(buf, a.Background)
	buf = append(buf, byte(a.Style))
	if a.Underline != nil {
		buf = append(buf, 1)
		buf = appendColor(buf, *a.Underline)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendCell(buf []byte, c Cell) []byte {
	charBytes := []byte(c.Char)
	buf = append(buf, byte(len(charBytes)))
	buf = append(buf, charBytes...)
	buf = append(buf, byte(int8(c.Width)))
	buf = appendAttribute(buf, c.Attr)
	return buf
}

func appendLines(buf []byte, lines [][]Cell) []byte {
	buf = appendU16(buf, uint16(len(lines)))
	for _, row := range lines {
		buf = appendU16(buf, uint16(len(row)))
		for _, c := range row {
			buf = appendCell(buf, c)
		}
	}
	return buf
}

func appendSnapshot(buf []byte, s *Snapshot) []byte {
	buf = appendU16(buf, s.Cols)
	buf = appendU16(buf, s.Rows)
	buf = appendU16(buf, s.CursorX)
	buf = appendU16(buf, s.CursorY)
	if s.IsAlternate {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendLines(buf, s.Lines)
	return buf
}

func appendDelta(buf []byte, d *Delta) []byte {
	buf = appendU16(buf, d.StartY)
	buf = appendU16(buf, d.EndY)
	buf = appendU16(buf, d.CursorX)
	buf = appendU16(buf, d.CursorY)
	buf = appendLines(buf, d.Lines)
	return buf
}

func appendInput(buf []byte, in *Input) []byte {
	buf = appendU32(buf, uint32(len(in.Data)))
	buf = append(buf, in.Data...)
	return buf
}

func appendResize(buf []byte, r *Resize) []byte {
	buf = appendU16(buf, r.Cols)
	buf = appendU16(buf, r.Rows)
	return buf
}

// ─── decoding helpers ──────────────────────────────────────────────────────

// cursor is a minimal bounds-checked reader over an in-memory byte slice.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) u8() (byte, error) {
	if c.pos+1 > len(c.data) {
		return 0, errUnexpectedEnd("u8")
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) i8() (int8, error) {
	v, err := c.u8()
	return int8(v), err
}

func (c *cursor) u16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, errUnexpectedEnd("u16")
	}
	v := binary.BigEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, errUnexpectedEnd("u32")
	}
	v := binary.BigEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, errUnexpectedEnd("bytes")
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func readColor(r *cursor) (Color, error) {
	variant, err := r.u8()
	if err != nil {
		return Color{}, err
	}
	switch ColorVariant(variant) {
	case ColorDefault, ColorDefaultInverted:
		return Color{Variant: ColorVariant(variant)}, nil
	case ColorANSI:
		idx, err := r.u8()
		if err != nil {
			return Color{}, err
		}
		return AnsiColor(idx), nil
	case ColorTrueColor:
		rgb, err := r.bytes(3)
		if err != nil {
			return Color{}, err
		}
		return TrueColor(rgb[0], rgb[1], rgb[2]), nil
	default:
		return Color{}, errInvalidTag(fmt.Sprintf("color variant %d", variant))
	}
}

func readAttribute(r *cursor) (Attribute, error) {
	fg, err := readColor(r)
	if err != nil {
		return Attribute{}, err
	}
	bg, err := readColor(r)
	if err != nil {
		return Attribute{}, err
	}
	styleByte, err := r.u8()
	if err != nil {
		return Attribute{}, err
	}
	style := Style(styleByte)
	hasUnderline, err := r.u8()
	if err != nil {
		return Attribute{}, err
	}
	attr := Attribute{Foreground: fg, Background: bg, Style: style}
	if hasUnderline != 0 {
		uc, err := readColor(r)
		if err != nil {
			return Attribute{}, err
		}
		attr.Underline = &uc
	}
	return attr, nil
}

func readCell(r *cursor) (Cell, error) {
	charLen, err := r.u8()
	if err != nil {
		return Cell{}, err
	}
	charBytes, err := r.bytes(int(charLen))
	if err != nil {
		return Cell{}, err
	}
	if !utf8.Valid(charBytes) {
		return Cell{}, errInvalidUTF8("cell character")
	}
	width, err := r.i8()
	if err != nil {
		return Cell{}, err
	}
	attr, err := readAttribute(r)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Char: string(charBytes), Width: width, Attr: attr}, nil
}

func readLines(r *cursor) ([][]Cell, error) {
	lineCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	lines := make([][]Cell, lineCount)
	for i := range lines {
		cellCount, err := r.u16()
		if err != nil {
			return nil, err
		}
		row := make([]Cell, cellCount)
		for j := range row {
			cell, err := readCell(r)
			if err != nil {
				return nil, err
			}
			row[j] = cell
		}
		lines[i] = row
	}
	return lines, nil
}

func readSnapshot(r *cursor) (*Snapshot, error) {
	cols, err := r.u16()
	if err != nil {
		return nil, err
	}
	rows, err := r.u16()
	if err != nil {
		return nil, err
	}
	cx, err := r.u16()
	if err != nil {
		return nil, err
	}
	cy, err := r.u16()
	if err != nil {
		return nil, err
	}
	alt, err := r.u8()
	if err != nil {
		return nil, err
	}
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Cols: cols, Rows: rows, CursorX: cx, CursorY: cy, IsAlternate: alt != 0, Lines: lines}, nil
}

func readDelta(r *cursor) (*Delta, error) {
	startY, err := r.u16()
	if err != nil {
		return nil, err
	}
	endY, err := r.u16()
	if err != nil {
		return nil, err
	}
	cx, err := r.u16()
	if err != nil {
		return nil, err
	}
	cy, err := r.u16()
	if err != nil {
		return nil, err
	}
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return &Delta{StartY: startY, EndY: endY, CursorX: cx, CursorY: cy, Lines: lines}, nil
}

func readInput(r *cursor) (*Input, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	data, err := r.bytes(int(n))
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Input{Data: cp}, nil
}

func readResize(r *cursor) (*Resize, error) {
	cols, err := r.u16()
	if err != nil {
		return nil, err
	}
	rows, err := r.u16()
	if err != nil {
		return nil, err
	}
	return &Resize{Cols: cols, Rows: rows}, nil
}

package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttr() Attribute {
	u := AnsiColor(3)
	return Attribute{
		Foreground: TrueColor(10, 20, 30),
		Background: AnsiColor(7),
		Style:      StyleBold | StyleUnderline | StyleDim,
		Underline:  &u,
	}
}

func sampleSnapshot() *WireMessage {
	return &WireMessage{
		Type: TypeSnapshot,
		Snapshot: &Snapshot{
			Cols: 3, Rows: 2, CursorX: 1, CursorY: 0, IsAlternate: true,
			Lines: [][]Cell{
				{{Char: "a", Width: 1, Attr: sampleAttr()}, {Char: "世", Width: 2, Attr: sampleAttr()}, {Char: "", Width: 0, Attr: sampleAttr()}},
				{{Char: " ", Width: 1}, {Char: " ", Width: 1}, {Char: " ", Width: 1}},
			},
		},
	}
}

func TestBinaryRoundTripSnapshot(t *testing.T) {
	msg := sampleSnapshot()
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	got, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestBinaryRoundTripDelta(t *testing.T) {
	msg := &WireMessage{
		Type: TypeDelta,
		Delta: &Delta{
			StartY: 2, EndY: 3, CursorX: 5, CursorY: 3,
			Lines: [][]Cell{
				{{Char: "x", Width: 1}},
				{{Char: "y", Width: 1}},
			},
		},
	}
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	got, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestBinaryRoundTripInput(t *testing.T) {
	msg := &WireMessage{Type: TypeInput, Input: &Input{Data: []byte("ls -la\r")}}
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	got, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestBinaryRoundTripEmptyInput(t *testing.T) {
	msg := &WireMessage{Type: TypeInput, Input: &Input{Data: []byte{}}}
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	got, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got.Input.Data)
}

func TestBinaryRoundTripResize(t *testing.T) {
	msg := &WireMessage{Type: TypeResize, Resize: &Resize{Cols: 120, Rows: 40}}
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	got, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestBinaryRejectsRequestResponse(t *testing.T) {
	_, err := EncodeBinary(&WireMessage{Type: TypeRequest, Request: &Request{Command: CmdPing}})
	assert.Error(t, err)
	_, err = EncodeBinary(&WireMessage{Type: TypeResponse, Response: &Response{OK: true}})
	assert.Error(t, err)
}

func TestJSONRoundTripRequestResponse(t *testing.T) {
	req := &WireMessage{Type: TypeRequest, Request: &Request{Command: CmdCreateSession, Name: "a"}}
	data, err := EncodeJSON(req)
	require.NoError(t, err)
	got, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	resp := &WireMessage{Type: TypeResponse, Response: &Response{OK: true, Message: "pong"}}
	data, err = EncodeJSON(resp)
	require.NoError(t, err)
	got, err = DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestDecodeBinaryShortBufferIsUnexpectedEnd(t *testing.T) {
	_, err := DecodeBinary([]byte{tagSnapshot, 0x00})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnexpectedEnd, ce.Kind)
}

func TestDecodeBinaryUnknownTag(t *testing.T) {
	_, err := DecodeBinary([]byte{0xFF})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidTag, ce.Kind)
}

func TestDecodeBinaryInvalidUTF8InCell(t *testing.T) {
	msg := &WireMessage{Type: TypeSnapshot, Snapshot: &Snapshot{
		Cols: 1, Rows: 1,
		Lines: [][]Cell{{{Char: "a", Width: 1}}},
	}}
	data, err := EncodeBinary(msg)
	require.NoError(t, err)
	// Corrupt the single-byte "a" character into an invalid UTF-8 byte.
	// Layout: tag(1) cols(2) rows(2) cx(2) cy(2) alt(1) lineCount(2) cellCount(2) charLen(1) char(1)...
	idx := 1 + 2 + 2 + 2 + 2 + 1 + 2 + 2 + 1
	data[idx] = 0xFF
	_, err = DecodeBinary(data)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidUTF8, ce.Kind)
}

// TestAppendAttributeWireLayout pins the binary attribute layout to
// fg-color, bg-color, a single style byte, then a hasUnderline byte — a
// round-trip test alone can't catch an encoder/decoder that agree with
// each other but disagree with the wire format.
func TestAppendAttributeWireLayout(t *testing.T) {
	attr := Attribute{
		Foreground: Color{Variant: ColorDefault},
		Background: Color{Variant: ColorDefault},
		Style:      StyleBold | StyleInvisible,
	}
	buf := appendAttribute(nil, attr)
	// fg variant(1) + bg variant(1) + style(1) + hasUnderline(1) = 4 bytes.
	require.Len(t, buf, 4)
	assert.Equal(t, byte(0), buf[0], "fg variant")
	assert.Equal(t, byte(0), buf[1], "bg variant")
	assert.Equal(t, byte(StyleBold|StyleInvisible), buf[2], "style must be a single wire byte")
	assert.Equal(t, byte(0), buf[3], "hasUnderline")
}

func TestFrameRoundTripMultiple(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("one"), {}, []byte("three-longer-payload")}
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, FormatJSON, p))
	}
	for _, want := range payloads {
		format, payload, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, format)
		assert.Equal(t, want, payload)
	}
}

func TestFrameCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	_, _, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

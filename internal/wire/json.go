package wire

import "encoding/json"

// EncodeJSON serializes msg as its JSON WireMessage form.
func EncodeJSON(msg *WireMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeJSON parses a JSON WireMessage.
func DecodeJSON(data []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// IsBinaryOnly reports whether typ is screen traffic (snapshot, delta,
// input, resize), which senders encode in binary; request/response are
// JSON-only. Receivers still decode these types from JSON frames.
func IsBinaryOnly(typ string) bool {
	switch typ {
	case TypeSnapshot, TypeDelta, TypeInput, TypeResize:
		return true
	default:
		return false
	}
}

// IsJSONOnly reports whether typ must never be sent in the binary encoding.
func IsJSONOnly(typ string) bool {
	switch typ {
	case TypeRequest, TypeResponse:
		return true
	default:
		return false
	}
}

package frames

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"
)

// Event names carried in the envelope.
const (
	EventFrame     = "frame"
	EventUpdate    = "update"
	EventError     = "error"
	EventConnected = "connected"
	EventWarning   = "warning"
)

const (
	MsgFrameRequired  = "Frame data required"
	MsgInvalidMessage = "Invalid message"
)

// Envelope is the JSON text message exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UpdatePayload wraps one analysis outcome. The capitalised key is part of
// the client contract.
type UpdatePayload struct {
	Result any `json:"Result"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type ConnectedPayload struct {
	ID string `json:"id"`
}

type WarningPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Inbound is a decoded client message. Frame is empty when the message
// carried no usable frame data.
type Inbound struct {
	Event string
	Frame string
}

var errInvalidMessage = errors.New(MsgInvalidMessage)

// DecodeClientMessage decodes one WebSocket message. Binary messages are raw
// image bytes and count as a frame event.
func DecodeClientMessage(messageType int, raw []byte) (Inbound, error) {
	if messageType == websocket.BinaryMessage {
		return Inbound{Event: EventFrame, Frame: encodeBytes(raw)}, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, errInvalidMessage
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return Inbound{}, errInvalidMessage
	}
	if env.Event != EventFrame {
		return Inbound{Event: env.Event}, nil
	}
	return Inbound{Event: EventFrame, Frame: coerceFrame(env.Data)}, nil
}

// coerceFrame accepts a string, an array of byte values, or a serialized
// Node Buffer ({"type":"Buffer","data":[...]}). Anything else yields "".
func coerceFrame(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case '[':
		b, ok := decodeByteArray(data)
		if !ok {
			return ""
		}
		return encodeBytes(b)
	case '{':
		var buf struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &buf); err != nil || buf.Type != "Buffer" {
			return ""
		}
		b, ok := decodeByteArray(buf.Data)
		if !ok {
			return ""
		}
		return encodeBytes(b)
	}
	return ""
}

func decodeByteArray(data json.RawMessage) ([]byte, bool) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}

func encodeBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

// EncodeEvent builds a server envelope.
func EncodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

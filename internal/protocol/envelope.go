package protocol

import "encoding/json"

// MessageType tags an Envelope with its payload kind.
type MessageType string

// Message types on the view wire.
const (
	// Handshake.
	MessageHello   MessageType = "hello"
	MessageWelcome MessageType = "welcome"

	// Frame stream from the session to viewers.
	MessageSnapshot MessageType = "snapshot"
	MessageDiff     MessageType = "diff"

	// Viewer events toward the session.
	MessageIn      MessageType = "in"
	MessageResize  MessageType = "resize"
	MessageControl MessageType = "control"

	// Rejections and faults, in either direction.
	MessageError MessageType = "error"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	// Seq orders snapshot and diff frames; other types leave it zero.
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope constructs an envelope around a marshaled payload. A nil
// payload leaves the envelope body empty.
func NewEnvelope(msgType MessageType, sessionID string, seq uint64, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, SessionID: sessionID, Seq: seq}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}

// DecodePayload unmarshals the payload into out. An empty payload
// decodes to nothing.
func (e Envelope) DecodePayload(out any) error {
	if len(e.Payload) > 0 {
		return json.Unmarshal(e.Payload, out)
	}
	return nil
}

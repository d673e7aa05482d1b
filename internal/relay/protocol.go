// Package relay hosts pond documents over websockets and provides a client
// that implements remote.Gateway against it.
//
// Every frame is a JSON envelope {t, rid, pond, p}. Requests carry a
// client-chosen rid and get exactly one reply with the same rid: "doc" for
// load, "ack" for save/subscribe/unsubscribe, or "error". Subscription
// deliveries are "doc" frames without a rid.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope types.
const (
	TypeLoad        = "load"
	TypeSave        = "save"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeDoc         = "doc"
	TypeAck         = "ack"
	TypeError       = "error"
)

// Envelope is one websocket frame.
type Envelope struct {
	T    string          `json:"t"`
	RID  string          `json:"rid,omitempty"`
	Pond string          `json:"pond,omitempty"`
	P    json.RawMessage `json:"p,omitempty"`
}

// Ack confirms a request. UpdatedAt is set for saves.
type Ack struct {
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// ErrorPayload carries a request failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode builds a frame. A nil payload encodes as JSON null.
func Encode(t, rid, pond string, payload any) ([]byte, error) {
	if t == "" {
		return nil, errors.New("encode envelope: empty type")
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, RID: rid, Pond: pond, P: pb})
}

// DecodeEnvelope parses a frame.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, errors.New("decode envelope: empty frame")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.T == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return e, nil
}

// DecodePayload parses the envelope payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.T, err)
	}
	return out, nil
}

// isNull reports whether the payload is absent or JSON null.
func isNull(p json.RawMessage) bool {
	return len(p) == 0 || string(p) == "null"
}

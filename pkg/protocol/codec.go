package protocol

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrUnknownKind is returned when a decoded message carries an unrecognized type.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// Encode marshals a protocol value (Message, HandshakeRequest or HandshakeResponse).
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}

// DecodeMessage unmarshals a steady-state message and checks its kind.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	if !msg.Kind.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
	if msg.Kind == KindJoin && msg.User == nil {
		return Message{}, errors.New("protocol: join without user")
	}
	return msg, nil
}

// DecodeHandshakeRequest unmarshals a client handshake.
func DecodeHandshakeRequest(data []byte) (HandshakeRequest, error) {
	var req HandshakeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return HandshakeRequest{}, fmt.Errorf("protocol: unmarshal handshake: %w", err)
	}
	return req, nil
}

// DecodeHandshakeResponse unmarshals a server handshake reply.
func DecodeHandshakeResponse(data []byte) (HandshakeResponse, error) {
	var resp HandshakeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return HandshakeResponse{}, fmt.Errorf("protocol: unmarshal handshake response: %w", err)
	}
	switch resp.Status {
	case StatusSuccess, StatusFailed, StatusFull:
		return resp, nil
	default:
		return HandshakeResponse{}, fmt.Errorf("protocol: unknown handshake status %q", resp.Status)
	}
}

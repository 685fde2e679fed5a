// Package network defines the client wire protocol: an envelope of
// {type, payload} sent as JSON text frames or MessagePack binary frames.
package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownCodec   = errors.New("unknown codec")
)

// Codec selects the frame encoding of a connection.
type Codec int

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

// ParseCodec maps the ?codec= query value to a Codec. Empty means JSON.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "json":
		return CodecJSON, nil
	case "msgpack":
		return CodecMsgpack, nil
	}
	return CodecJSON, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// Binary reports whether frames must be sent as binary websocket messages.
func (c Codec) Binary() bool {
	return c == CodecMsgpack
}

// Message is a decoded inbound envelope whose payload is still encoded.
type Message struct {
	Type    string
	payload []byte
}

// Protocol encodes and decodes envelopes with one codec.
type Protocol struct {
	codec Codec
}

// NewProtocol creates a protocol handler for codec.
func NewProtocol(codec Codec) *Protocol {
	return &Protocol{codec: codec}
}

// Codec returns the frame encoding.
func (p *Protocol) Codec() Codec {
	return p.codec
}

// Encode wraps payload in an envelope of type msgType.
func (p *Protocol) Encode(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType, Payload: payload}
	if p.codec == CodecMsgpack {
		return msgpack.Marshal(&env)
	}
	return json.Marshal(&env)
}

// Decode reads an envelope.
func (p *Protocol) Decode(data []byte) (*Message, error) {
	var (
		msgType string
		payload []byte
	)
	if p.codec == CodecMsgpack {
		var env struct {
			Type    string             `msgpack:"type"`
			Payload msgpack.RawMessage `msgpack:"payload"`
		}
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		msgType, payload = env.Type, env.Payload
	} else {
		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		msgType, payload = env.Type, env.Payload
	}
	if msgType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return &Message{Type: msgType, payload: payload}, nil
}

func (p *Protocol) decodePayload(m *Message, v interface{}) error {
	if len(m.payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrInvalidMessage, m.Type)
	}
	var err error
	if p.codec == CodecMsgpack {
		err = msgpack.Unmarshal(m.payload, v)
	} else {
		err = json.Unmarshal(m.payload, v)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMessage, m.Type, err)
	}
	return nil
}

// DecodeInput decodes the payload of an input message.
func (p *Protocol) DecodeInput(m *Message) (*InputMessage, error) {
	if m.Type != MsgTypeInput {
		return nil, ErrInvalidMessage
	}
	var in InputMessage
	if err := p.decodePayload(m, &in); err != nil {
		return nil, err
	}
	switch in.Direction {
	case DirectionLeft, DirectionRight, DirectionNone:
	default:
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidMessage, in.Direction)
	}
	return &in, nil
}

// DecodePing decodes a ping. A ping without payload has timestamp zero.
func (p *Protocol) DecodePing(m *Message) (*PingMessage, error) {
	if m.Type != MsgTypePing {
		return nil, ErrInvalidMessage
	}
	var ping PingMessage
	if len(m.payload) == 0 {
		return &ping, nil
	}
	if err := p.decodePayload(m, &ping); err != nil {
		return nil, err
	}
	return &ping, nil
}

// encode is Encode for payloads that always marshal.
func (p *Protocol) encode(msgType string, payload interface{}) []byte {
	data, err := p.Encode(msgType, payload)
	if err != nil {
		log.Errorf("Failed to encode %s: %v", msgType, err)
		return nil
	}
	return data
}

// EncodeConnection greets a new connection.
func (p *Protocol) EncodeConnection(connID, userID string) []byte {
	return p.encode(MsgTypeConnection, ConnectionMessage{
		ConnectionID: connID,
		UserID:       userID,
		Message:      fmt.Sprintf("Connected as %s", userID),
	})
}

// EncodeQueued tells a client it waits in the queue.
func (p *Protocol) EncodeQueued(position int) []byte {
	return p.encode(MsgTypeQueued, QueuedMessage{
		Position: position,
		Message:  "Waiting for an opponent...",
	})
}

// EncodeGame encodes a lifecycle notification of type msgType.
func (p *Protocol) EncodeGame(msgType string, msg GameMessage) []byte {
	return p.encode(msgType, msg)
}

// EncodePlayerDisconnected announces the grace period.
func (p *Protocol) EncodePlayerDisconnected(msg PlayerDisconnectedMessage) []byte {
	return p.encode(MsgTypePlayerDisconnected, msg)
}

// EncodeGameEnded reports the end of a match.
func (p *Protocol) EncodeGameEnded(msg GameEndedMessage) []byte {
	return p.encode(MsgTypeGameEnded, msg)
}

// EncodeGameState encodes a tick broadcast.
func (p *Protocol) EncodeGameState(state GameStateMessage) []byte {
	return p.encode(MsgTypeGameUpdate, state)
}

// EncodePong answers a ping.
func (p *Protocol) EncodePong(timestamp, serverTime float64) []byte {
	return p.encode(MsgTypePong, PongMessage{Timestamp: timestamp, ServerTime: serverTime})
}

// EncodeError encodes an error message.
func (p *Protocol) EncodeError(code int, message string) []byte {
	return p.encode(MsgTypeError, ErrorMessage{Code: code, Message: message})
}

// Package wire implements the JSON-framed wire protocol: message
// shape, dht_type -> type mapping, and the validation/replay-window rules.
// Grounded on ipfs/parser.go's parseConfig / parseNodestxt style (bounded
// reads, tolerant parsing, defaultConfig-style fallbacks) generalised from
// ad-hoc text framing to a typed JSON envelope.
package wire

import (
	"encoding/json"
	"time"
)

// Type is the outer message classification.
type Type string

const (
	TypeQuery    Type = "query"
	TypeResponse Type = "response"
	TypeUpdate   Type = "update"
	TypeAnnounce Type = "announce"
)

// DHTType is the RPC kind carried by the message.
type DHTType string

const (
	FindNode  DHTType = "FIND_NODE"
	FindValue DHTType = "FIND_VALUE"
	Store     DHTType = "STORE"
	Delete    DHTType = "DELETE"
	Ping      DHTType = "PING"
)

// Protocol and Version are the fixed wire constants.
const (
	Protocol       = "dht"
	ProtocolVersion = "1.0.0"
)

// ReplayWindow is the ±5 minute timestamp tolerance.
const ReplayWindow = 5 * time.Minute

// Payload is the payload body. Key, if present, is 64 lowercase hex
// characters (a blueprint.Key rendered as a string, kept as a string here
// so the wire package has no dependency on blueprint's binary Key type).
type Payload struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver,omitempty"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Message is the full wire message.
type Message struct {
	Type     Type    `json:"type"`
	DHTType  DHTType `json:"dht_type"`
	Protocol string  `json:"protocol"`
	Version  string  `json:"version"`
	Payload  Payload `json:"payload"`
}

// TypeFor implements the dht_type -> type mapping table.
func TypeFor(dt DHTType) Type {
	switch dt {
	case FindNode, FindValue, Ping:
		return TypeQuery
	case Store, Delete:
		return TypeUpdate
	default:
		return TypeQuery
	}
}

// NewRequest builds a query/update message for dt with TypeFor's mapping
// and the fixed protocol/version constants.
func NewRequest(dt DHTType, payload Payload) Message {
	return Message{
		Type:     TypeFor(dt),
		DHTType:  dt,
		Protocol: Protocol,
		Version:  ProtocolVersion,
		Payload:  payload,
	}
}

// NewResponse builds a response to req, carrying req.Payload.ID so the
// caller can correlate it.
func NewResponse(req Message, payload Payload) Message {
	payload.ID = req.Payload.ID
	return Message{
		Type:     TypeResponse,
		DHTType:  req.DHTType,
		Protocol: Protocol,
		Version:  ProtocolVersion,
		Payload:  payload,
	}
}

// Marshal/Unmarshal are thin json wrappers kept here so every caller uses
// the same encoding (no component hand-rolls its own framing).
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Unmarshal(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

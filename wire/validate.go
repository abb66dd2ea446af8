package wire

import (
	"errors"
	"time"

	"github.com/blang/semver/v4"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Validation errors.
var (
	ErrMissingDHTType = errors.New("wire: dht_type is required")
	ErrMissingSender  = errors.New("wire: sender is required")
	ErrMalformedKey   = errors.New("wire: key must be 64 lowercase hex characters")
	ErrReplay         = blueprint.ErrReplay
	ErrIncompatible   = errors.New("wire: incompatible protocol version")
)

// Validate applies the rejection rules against now. A replay
// violation and all other violations return distinct errors so a caller
// can apply "drop silently" vs "surface" split.
func Validate(m Message, now time.Time) error {
	if m.DHTType == "" {
		return ErrMissingDHTType
	}
	if m.Payload.Sender == "" {
		return ErrMissingSender
	}
	if m.Payload.Key != "" {
		if _, err := blueprint.KeyFromHex(m.Payload.Key); err != nil {
			return ErrMalformedKey
		}
	}
	if d := now.Sub(m.Payload.Timestamp); d > ReplayWindow || d < -ReplayWindow {
		return ErrReplay
	}
	return nil
}

// IsKnownType reports whether dt is one of the dht_types this build
// understands. Unknown types are dropped silently by the dispatcher
// (forward compatibility, ) rather than surfaced as validation
// errors.
func IsKnownType(dt DHTType) bool {
	switch dt {
	case FindNode, FindValue, Store, Delete, Ping:
		return true
	default:
		return false
	}
}

// CompatibleVersion reports whether a peer-advertised version string is
// compatible with ProtocolVersion: same major version, per semver's usual
// backward-compatibility convention. A malformed version is treated as
// incompatible rather than panicking the caller.
func CompatibleVersion(v string) bool {
	peer, err := semver.Parse(v)
	if err != nil {
		return false
	}
	mine := semver.MustParse(ProtocolVersion)
	return peer.Major == mine.Major
}

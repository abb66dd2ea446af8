// Package blueprint defines the contracts and value types shared by every
// component of kadstore. Concrete implementations (routing table, DHT node,
// storage providers, transport adapters) all depend on blueprint; blueprint
// depends on nothing else in this module.
package blueprint

import (
	"encoding/hex"
	"errors"

	sha256 "github.com/minio/sha256-simd"
)

// KeySize is the width of the XOR-metric space in bytes (256 bits).
const KeySize = 32

// Key is a 256-bit identifier shared by node ids and DHT value keys. The
// wire form is always a 64-character lowercase hex string; routing
// decisions must use the raw bytes and never the string form.
type Key [KeySize]byte

// ErrMalformedKey is returned when a hex string cannot be parsed into a Key.
var ErrMalformedKey = errors.New("blueprint: key is not 64 lowercase hex characters")

// NodeId is a Key interpreted as a node identity.
type NodeId = Key

// KeyFromHex parses a lowercase 64-hex-character string into a Key.
func KeyFromHex(s string) (Key, error) {
	var k Key
	if len(s) != KeySize*2 {
		return k, ErrMalformedKey
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return k, ErrMalformedKey
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, ErrMalformedKey
	}
	copy(k[:], b)
	return k, nil
}

// String renders the Key as a 64-character lowercase hex string.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the Key is the all-zero value.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Equal reports whether two Keys are byte-identical.
func (k Key) Equal(other Key) bool {
	return k == other
}

// DeriveKey hashes a logical name (e.g. "metadata:"+artifactID) into the
// 256-bit key space with SHA-256, Key derivation rule.
func DeriveKey(name string) Key {
	return Key(sha256.Sum256([]byte(name)))
}

// XOR returns the bitwise XOR distance between two keys, big-endian.
func XOR(a, b Key) Key {
	var out Key
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less compares two keys lexicographically over their 32 bytes, which is
// the ordering XOR distances must be compared under.
func (k Key) Less(other Key) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// BucketIndex returns the index of the most-significant set bit of
// XOR(self, peer), counting bit 0 as the least-significant bit of the
// 256-bit distance: a distance of 1 (the closest possible non-self pair)
// has its highest set bit at position 0, and a distance with only the
// top bit of the first byte set (the farthest possible pair) has its
// highest set bit at position 255. Identity (self == peer) has no
// defined bucket and callers must special case it (the routing table
// never stores self).
func BucketIndex(self, peer Key) int {
	d := XOR(self, peer)
	for i := 0; i < KeySize; i++ {
		if d[i] == 0 {
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if d[i]&(1<<uint(bit)) != 0 {
				return (KeySize-1-i)*8 + bit
			}
		}
	}
	return 0
}

// Package keystore implements the optional envelope-signing collaborator
//, resolving Open Question 1: a node without a Keystore degrades to
// unsigned last-writer-wins; a node with one signs every STORE envelope
// with ECDSA over secp256k1 and verifies on receipt.
package keystore

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	sha256 "github.com/minio/sha256-simd"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Keystore implements blueprint.Keystore over a single secp256k1 keypair.
type Keystore struct {
	priv *secp256k1.PrivateKey
	id   string
}

// New generates a fresh keypair. The signer id is the hex-encoded
// compressed public key, so a peer can Verify without a separate lookup.
func New() (*Keystore, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return fromPrivateKey(priv), nil
}

// FromSeed derives a deterministic keypair from seed, for tests and for
// nodes that persist their identity seed (see identity.Load) and want the
// signing key tied to it.
func FromSeed(seed []byte) *Keystore {
	digest := sha256.Sum256(seed)
	priv := secp256k1.PrivKeyFromBytes(digest[:])
	return fromPrivateKey(priv)
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *Keystore {
	pub := priv.PubKey().SerializeCompressed()
	return &Keystore{priv: priv, id: hex.EncodeToString(pub)}
}

// SignerID returns this keystore's public signer id.
func (k *Keystore) SignerID() string { return k.id }

// Sign implements blueprint.Keystore.
func (k *Keystore) Sign(data []byte) (signature []byte, signerID string, err error) {
	digest := sha256.Sum256(data)
	sig := ecdsa.Sign(k.priv, digest[:])
	return sig.Serialize(), k.id, nil
}

// Verify implements blueprint.Keystore. signerID is the hex-encoded
// compressed public key produced by Sign.
func (k *Keystore) Verify(data, signature []byte, signerID string) (bool, error) {
	pubBytes, err := hex.DecodeString(signerID)
	if err != nil {
		return false, fmt.Errorf("keystore: malformed signer id: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false, fmt.Errorf("keystore: malformed public key: %w", err)
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false, fmt.Errorf("keystore: malformed signature: %w", err)
	}
	digest := sha256.Sum256(data)
	return sig.Verify(digest[:], pub), nil
}

var _ blueprint.Keystore = (*Keystore)(nil)

// Package identity generates and persists the node's 256-bit identity.
// Generation is random at first start; the id is then persisted and
// reused across restarts, matching KelvinWu602-immutable-storage's "global
// state initialised once at start" convention (blueprint/immutableStorage.go's
// Key, grown from 48 bytes to the 256-bit space the whole overlay shares).
package identity

import (
	"crypto/rand"
	"fmt"
	"log"
	"os"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/multiformats/go-multihash"
)

// Load reads the node id from path, generating and persisting a fresh
// random one if the file does not exist. This is a blocking call executed
// once at process start.
func Load(path string) (blueprint.NodeId, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		id, perr := blueprint.KeyFromHex(string(b))
		if perr != nil {
			log.Println("[identity]: stored id is malformed, regenerating:", perr)
		} else {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		log.Println("[identity]: failed to read id file:", err)
		return blueprint.NodeId{}, err
	}

	id, err := generate()
	if err != nil {
		log.Println("[identity]: failed to generate id:", err)
		return blueprint.NodeId{}, err
	}
	if err := os.WriteFile(path, []byte(id.String()), 0o600); err != nil {
		log.Println("[identity]: failed to persist id:", err)
		return blueprint.NodeId{}, err
	}
	return id, nil
}

func generate() (blueprint.NodeId, error) {
	var id blueprint.NodeId
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("identity: generate: %w", err)
	}
	return id, nil
}

// Multihash wraps an already-computed SHA-256 digest (a blueprint.Key) in
// the canonical multihash encoding, used internally wherever content
// addresses are logged or exchanged with multihash/CID-aware collaborators.
// It does not re-hash k: k is the digest.
func Multihash(k blueprint.Key) (multihash.Multihash, error) {
	return multihash.Encode(k[:], multihash.SHA2_256)
}

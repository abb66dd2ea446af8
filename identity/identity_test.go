package identity

import (
	"path/filepath"
	"testing"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/multiformats/go-multihash"
)

func TestLoadPersistsAndReuses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.id")

	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.IsZero() {
		t.Fatal("expected a non-zero generated id")
	}

	second, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected Load to reuse the persisted id across calls")
	}
}

func TestMultihashWrapsWithoutRehashing(t *testing.T) {
	k := blueprint.DeriveKey("chunk:deadbeef")
	mh, err := Multihash(k)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded.Digest) != string(k[:]) {
		t.Fatal("expected the decoded digest to equal the original key bytes")
	}
}

package local

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/artifactmesh/kadstore/blueprint"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	dir, err := os.MkdirTemp("", "kadstore-local-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	p, err := New(dir, clock.New())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	data := []byte("hello world, this is an artifact")

	meta, err := p.Store(ctx, data, blueprint.StoreOptions{ChunkSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Retrieve(ctx, meta.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("retrieved data does not match: got %q", got)
	}
}

func TestRetrieveUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	if _, err := p.Retrieve(ctx, "does-not-exist"); !errors.Is(err, blueprint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown id, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	meta, err := p.Store(ctx, []byte("some bytes"), blueprint.StoreOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := p.Delete(ctx, meta.ID)
	if err != nil || !ok {
		t.Fatalf("expected first delete to report existed=true, got %v, %v", ok, err)
	}
	ok, err = p.Delete(ctx, meta.ID)
	if err != nil || ok {
		t.Fatalf("expected second delete to report existed=false, got %v, %v", ok, err)
	}
}

func TestUpdateMetadataPatchesReplicas(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	meta, err := p.Store(ctx, []byte("patch me"), blueprint.StoreOptions{})
	if err != nil {
		t.Fatal(err)
	}
	replicas := 3
	if err := p.UpdateMetadata(ctx, meta.ID, blueprint.MetadataPatch{Replicas: &replicas}); err != nil {
		t.Fatal(err)
	}
	got, err := p.GetMetadata(ctx, meta.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Replicas != 3 {
		t.Fatalf("expected Replicas=3, got %d", got.Replicas)
	}
}

func TestValidateChecksumDetectsTampering(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	meta, err := p.Store(ctx, []byte("validate me"), blueprint.StoreOptions{ChunkSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := p.ValidateChecksum(ctx, meta.ID)
	if err != nil || !ok {
		t.Fatalf("expected a fresh write to validate cleanly, got %v, %v", ok, err)
	}

	chunkPath := p.chunkDir(meta.ID) + "/0"
	if err := os.WriteFile(chunkPath, []byte("XXXX"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = p.ValidateChecksum(ctx, meta.ID)
	if ok {
		t.Fatalf("expected tampered chunk to fail validation, err=%v", err)
	}
}

func TestGetStatsCountsArtifacts(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	if _, err := p.Store(ctx, []byte("one"), blueprint.StoreOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Store(ctx, []byte("two"), blueprint.StoreOptions{}); err != nil {
		t.Fatal(err)
	}
	stats, err := p.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ArtifactCount != 2 {
		t.Fatalf("expected 2 artifacts, got %d", stats.ArtifactCount)
	}
	if stats.Writes != 2 {
		t.Fatalf("expected 2 writes, got %d", stats.Writes)
	}
}

package cache

import (
	"testing"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
)

func TestLRUSetGetInvalidate(t *testing.T) {
	c, err := NewLRU(4)
	if err != nil {
		t.Fatal(err)
	}
	meta := blueprint.ArtifactMetadata{ID: "artifact-1", Size: 10, Created: time.Now()}

	if _, ok := c.Get("artifact-1"); ok {
		t.Fatal("expected a miss before Set")
	}
	c.Set("artifact-1", meta)
	got, ok := c.Get("artifact-1")
	if !ok || got.ID != "artifact-1" {
		t.Fatalf("expected a hit with ID artifact-1, got %+v, %v", got, ok)
	}
	c.Invalidate("artifact-1")
	if _, ok := c.Get("artifact-1"); ok {
		t.Fatal("expected a miss after Invalidate")
	}
}

func TestLRUEvictsOldestBeyondCapacity(t *testing.T) {
	c, err := NewLRU(2)
	if err != nil {
		t.Fatal(err)
	}
	c.Set("a", blueprint.ArtifactMetadata{ID: "a"})
	c.Set("b", blueprint.ArtifactMetadata{ID: "b"})
	c.Set("c", blueprint.ArtifactMetadata{ID: "c"})

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected the least recently used entry to be evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected the most recently added entry to survive")
	}
}

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artifactmesh/kadstore/blueprint"
)

// memProvider is a minimal in-memory blueprint.Provider for exercising the
// strategy router without touching disk or the network.
type memProvider struct {
	name string
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemProvider(name string) *memProvider {
	return &memProvider{name: name, data: make(map[string][]byte)}
}

func (m *memProvider) Name() string { return m.name }

func (m *memProvider) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	if m.fail {
		return blueprint.ArtifactMetadata{}, blueprint.ErrNetworkStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.name + "-artifact"
	m.data[id] = append([]byte{}, data...)
	return blueprint.ArtifactMetadata{ID: id, Size: int64(len(data))}, nil
}

func (m *memProvider) Retrieve(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return nil, blueprint.ErrNotFound
	}
	return b, nil
}

func (m *memProvider) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[id]
	delete(m.data, id)
	return ok, nil
}

func (m *memProvider) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return blueprint.ArtifactMetadata{}, blueprint.ErrNotFound
	}
	return blueprint.ArtifactMetadata{ID: id, Size: int64(len(b))}, nil
}

func (m *memProvider) UpdateMetadata(ctx context.Context, id string, patch blueprint.MetadataPatch) error {
	return nil
}

func (m *memProvider) ValidateChecksum(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (m *memProvider) GetStats(ctx context.Context) (blueprint.ProviderStats, error) {
	return blueprint.ProviderStats{}, nil
}

func (m *memProvider) Cleanup(ctx context.Context) error { return nil }

func TestLocalOnlyStoreRetrieve(t *testing.T) {
	local := newMemProvider("local")
	m := New(LocalOnly, local, nil, nil, nil)

	meta, err := m.Store(context.Background(), []byte("payload"), blueprint.StoreOptions{})
	require.NoError(t, err)

	data, err := m.Retrieve(context.Background(), meta.ID)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestNetworkOnlyWithoutProviderErrors(t *testing.T) {
	m := New(NetworkOnly, nil, nil, nil, nil)
	if _, err := m.Store(context.Background(), []byte("x"), blueprint.StoreOptions{}); err == nil {
		t.Fatal("expected error when network provider missing")
	}
}

func TestHybridReplicatesToSecondaryAndReportsFailure(t *testing.T) {
	local := newMemProvider("local")
	network := newMemProvider("network")
	network.fail = true

	var mu sync.Mutex
	var gotFailure bool
	bus := &fakeBus{onEmit: func(event blueprint.Event, payload any) {
		if event == blueprint.EventReplicationFailed {
			mu.Lock()
			gotFailure = true
			mu.Unlock()
		}
	}}

	m := New(Hybrid, local, network, nil, bus)
	if _, err := m.Store(context.Background(), []byte("payload"), blueprint.StoreOptions{}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		ok := gotFailure
		mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected EventReplicationFailed to be emitted")
}

type fakeBus struct {
	onEmit func(event blueprint.Event, payload any)
}

func (f *fakeBus) Subscribe(event blueprint.Event, handler func(payload any)) {}

func (f *fakeBus) Emit(event blueprint.Event, payload any) {
	if f.onEmit != nil {
		f.onEmit(event, payload)
	}
}

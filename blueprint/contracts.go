package blueprint

import (
	"context"
	"time"
)

// StoreOptions configures a single Provider.Store call.
type StoreOptions struct {
	ChunkSize   int64
	Replicas    int
	Encryption  *EncryptionInfo
	Compression *CompressionInfo
}

// MetadataPatch is a partial update applied by Provider.UpdateMetadata.
type MetadataPatch struct {
	Replicas    *int
	StorageType *string
}

// ProviderStats is returned by Provider.GetStats.
type ProviderStats struct {
	ArtifactCount int64
	BytesStored   int64
	Reads         int64
	Writes        int64
	Failures      int64
}

// Provider is the uniform storage contract. Local, Network and
// P2P backends all implement it; the storage manager holds an ordered
// list of Providers per configured Strategy.
type Provider interface {
	Store(ctx context.Context, data []byte, opts StoreOptions) (ArtifactMetadata, error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetMetadata(ctx context.Context, id string) (ArtifactMetadata, error)
	UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error
	ValidateChecksum(ctx context.Context, id string) (bool, error)
	GetStats(ctx context.Context) (ProviderStats, error)
	Cleanup(ctx context.Context) error
	Name() string
}

// Transport is the collaborator: send/receive of framed messages to an
// addressed peer. The bulk byte transfer for chunk bodies is explicitly
// out of scope; Transport only carries the JSON wire protocol.
type Transport interface {
	Send(ctx context.Context, addr string, payload []byte) ([]byte, error)
	Dial(ctx context.Context, addr string) error
	Close() error
}

// Clock is the collaborator providing monotonic time, abstracted so
// tests can control T_stale/T_refresh/T_republish and announce intervals
// deterministically. Its method set is a subset of
// github.com/benbjohnson/clock's Clock interface, so both clock.New and
// clock.NewMock satisfy it directly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

// Keystore is the optional signing collaborator, resolving Open
// Question 1: a nil Keystore disables signing and the envelope trust
// boundary degrades to "last-writer-wins, unsigned".
type Keystore interface {
	Sign(data []byte) (signature []byte, signerID string, err error)
	Verify(data, signature []byte, signerID string) (bool, error)
}

// Event is one of the named events an EventBus subscriber can observe.
type Event string

const (
	EventStarted            Event = "started"
	EventStopped            Event = "stopped"
	EventError              Event = "error"
	EventPeerConnect        Event = "peer:connect"
	EventPeerDisconnect     Event = "peer:disconnect"
	EventMessageReceived    Event = "message:received"
	EventMessageSent        Event = "message:sent"
	EventStored             Event = "stored"
	EventRetrieved          Event = "retrieved"
	EventDeleted            Event = "deleted"
	EventReplicated         Event = "replicated"
	EventReplicationFailed  Event = "replication-failed"
	EventContentPublished   Event = "content:published"
	EventVersionCreated     Event = "version:created"
)

// EventBus is the typed subscription list: synchronous FIFO emission,
// no shared-mutable-object cross talk between components.
type EventBus interface {
	Subscribe(event Event, handler func(payload any))
	Emit(event Event, payload any)
}

// Node is the external surface exposed to callers.
type Node interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Put(ctx context.Context, key Key, value []byte) (int, error)
	Get(ctx context.Context, key Key) ([]byte, error)
	Delete(ctx context.Context, key Key) (int, error)
	FindClosest(ctx context.Context, key Key, count int) ([]PeerRecord, error)
	PublishContent(ctx context.Context, data []byte, meta ContentMeta) (string, error)
	RetrieveContent(ctx context.Context, id string) ([]byte, ArtifactMetadata, error)
	Subscribe(event Event, handler func(payload any))
}

// ContentMeta is the semantic metadata a caller attaches to PublishContent;
// it feeds the index keys.
type ContentMeta struct {
	Type   string
	Region string
	Tags   []string
	Extra  map[string]string
}

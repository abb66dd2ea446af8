package blueprint

import (
	"time"

	"github.com/multiformats/go-multiaddr"
)

// PeerType classifies a peer's role in the overlay.
type PeerType string

const (
	PeerGlobal   PeerType = "global"
	PeerRegional PeerType = "regional"
	PeerLocal    PeerType = "local"
	PeerUnknown  PeerType = "unknown"
)

// PeerMetadata is the descriptive, slowly-changing half of a peer record.
type PeerMetadata struct {
	Type         PeerType  `json:"type"`
	Region       string    `json:"region,omitempty"`
	Version      string    `json:"version,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Uptime       int64     `json:"uptime"`
	LastSeen     time.Time `json:"last_seen"`
}

// StorageStats describes a peer's reported storage capacity.
type StorageStats struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

// PeerMetrics is the mutable, frequently-updated half of a peer record.
type PeerMetrics struct {
	Latency     time.Duration `json:"latency"`
	Bandwidth   float64       `json:"bandwidth"`
	Reliability float64       `json:"reliability"`
	Storage     StorageStats  `json:"storage"`
}

// PeerState is the Peer state machine.
type PeerState string

const (
	PeerUnknownState PeerState = "unknown"
	PeerConnecting   PeerState = "connecting"
	PeerConnected    PeerState = "connected"
	PeerStale        PeerState = "stale"
	PeerEvicted      PeerState = "evicted"
)

// PeerRecord is the arena entry described in: routing buckets hold only
// the NodeId; the full record lives in the routing table's arena, keyed by
// NodeId, so eviction is a single map delete with no dangling references.
type PeerRecord struct {
	ID        NodeId               `json:"id"`
	Addresses []multiaddr.Multiaddr `json:"-"`
	// AddressStrings is the wire-serialisable form of Addresses.
	AddressStrings []string     `json:"addresses"`
	Protocols      []string     `json:"protocols,omitempty"`
	Metadata       PeerMetadata `json:"metadata"`
	Metrics        PeerMetrics  `json:"metrics"`
	State          PeerState    `json:"-"`
}

// ChunkLocation describes one holder of a chunk.
type ChunkLocation struct {
	NodeID       NodeId    `json:"node_id"`
	StorageType  string    `json:"storage_type"` // local | network | p2p
	Endpoint     string    `json:"endpoint,omitempty"`
	Region       string    `json:"region,omitempty"`
	Availability float64   `json:"availability"`
	LastSeen     time.Time `json:"last_seen"`
	Health       float64   `json:"health"`
}

// EncryptionInfo records the (optional) encryption applied to a chunk.
type EncryptionInfo struct {
	IV        string `json:"iv"`
	Algorithm string `json:"algorithm"`
}

// CompressionInfo records the (optional) compression applied to a chunk.
type CompressionInfo struct {
	Algorithm    string `json:"algorithm"`
	OriginalSize int64  `json:"original_size"`
}

// ChunkDescriptor is the chunk descriptor.
type ChunkDescriptor struct {
	Index       int              `json:"index"`
	Size        int64            `json:"size"`
	Checksum    string           `json:"checksum"` // SHA-256 hex
	Location    ChunkLocation    `json:"location"`
	Replicas    int              `json:"replicas"`
	Encryption  *EncryptionInfo  `json:"encryption,omitempty"`
	Compression *CompressionInfo `json:"compression,omitempty"`
}

// ArtifactMetadata is the artifact metadata record.
type ArtifactMetadata struct {
	ID          string            `json:"id"`
	Size        int64             `json:"size"`
	Chunks      []ChunkDescriptor `json:"chunks"`
	Created     time.Time         `json:"created"`
	Modified    time.Time         `json:"modified"`
	Checksum    string            `json:"checksum"` // SHA-256 hex over full bytes
	StorageType string            `json:"storage_type"`
	Replicas    int               `json:"replicas"`
	Encryption  *EncryptionInfo   `json:"encryption,omitempty"`
	Compression *CompressionInfo  `json:"compression,omitempty"`
}

// ContentStats is the content record's aggregate counters.
type ContentStats struct {
	TotalDownloads  int64   `json:"total_downloads"`
	ActiveProviders int     `json:"active_providers"`
	TotalSize       int64   `json:"total_size"`
	Reliability     float64 `json:"reliability"`
}

// ProviderRef is one entry in a ContentRecord's provider list.
type ProviderRef struct {
	NodeID   NodeId    `json:"node_id"`
	LastSeen time.Time `json:"last_seen"`
}

// ContentRecord is the content record: artifact metadata plus the
// provider set and aggregate stats.
type ContentRecord struct {
	ArtifactMetadata
	Providers []ProviderRef `json:"providers"`
	Stats     ContentStats  `json:"stats"`
}

// Envelope is the DHT value envelope: last-writer-wins by Timestamp,
// optionally signed when the node carries a Keystore.
type Envelope struct {
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"ts"`
	Signature []byte    `json:"signature,omitempty"`
	SignerID  string    `json:"signer_id,omitempty"`
}

// Package chunk implements deterministic splitting and recombination with
// per-chunk integrity. Grounded on blueprint.ValidateKey's
// checksum-compare pattern (hash, then bytes.Equal), generalised from a
// single fixed-size key to an arbitrary ordered chunk set.
package chunk

import (
	"fmt"
	"time"

	sha256 "github.com/minio/sha256-simd"

	"github.com/artifactmesh/kadstore/blueprint"
)

// DefaultSize is C, the default chunk size (1 MiB).
const DefaultSize int64 = 1 << 20

// Chunk is one split piece of an artifact, paired with its descriptor.
type Chunk struct {
	Descriptor blueprint.ChunkDescriptor
	Bytes      []byte
}

// Split divides data into ordered chunks of size C (DefaultSize if c <= 0),
// byte-range and checksum rule. An empty buffer yields zero
// chunks, matching boundary behaviour.
func Split(data []byte, c int64) []Chunk {
	if c <= 0 {
		c = DefaultSize
	}
	n := int64(len(data))
	if n == 0 {
		return nil
	}
	count := (n + c - 1) / c
	chunks := make([]Chunk, 0, count)
	for i := int64(0); i < count; i++ {
		start := i * c
		end := start + c
		if end > n {
			end = n
		}
		b := data[start:end]
		sum := sha256.Sum256(b)
		chunks = append(chunks, Chunk{
			Descriptor: blueprint.ChunkDescriptor{
				Index:    int(i),
				Size:     int64(len(b)),
				Checksum: fmt.Sprintf("%x", sum),
			},
			Bytes: append([]byte(nil), b...),
		})
	}
	return chunks
}

// Combine verifies each chunk against its descriptor, sorts by index, and
// concatenates. Any integrity failure aborts with blueprint.ErrChunkValidation and never
// returns partial data.
func Combine(chunks []Chunk) ([]byte, error) {
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sortByIndex(ordered)

	for i, c := range ordered {
		if i != c.Descriptor.Index {
			return nil, fmt.Errorf("%w: expected contiguous index %d, got %d", blueprint.ErrChunkValidation, i, c.Descriptor.Index)
		}
		if int64(len(c.Bytes)) != c.Descriptor.Size {
			return nil, fmt.Errorf("%w: chunk %d size mismatch", blueprint.ErrChunkValidation, c.Descriptor.Index)
		}
		sum := sha256.Sum256(c.Bytes)
		if fmt.Sprintf("%x", sum) != c.Descriptor.Checksum {
			return nil, fmt.Errorf("%w: chunk %d checksum mismatch", blueprint.ErrChunkValidation, c.Descriptor.Index)
		}
	}

	var total int64
	for _, c := range ordered {
		total += c.Descriptor.Size
	}
	out := make([]byte, 0, total)
	for _, c := range ordered {
		out = append(out, c.Bytes...)
	}
	return out, nil
}

// Checksum computes the SHA-256 hex digest over the concatenation of the
// given chunks in index order, matching ArtifactMetadata.Checksum's
// invariant.
func Checksum(chunks []Chunk) (string, error) {
	data, err := Combine(chunks)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

func sortByIndex(chunks []Chunk) {
	// Insertion sort: chunk counts per artifact are small (single digits
	// to low thousands at 1 MiB chunking), so sort.Slice would be overkill
	// for a combine that is already O(total bytes).
	for i := 1; i < len(chunks); i++ {
		j := i
		for j > 0 && chunks[j-1].Descriptor.Index > chunks[j].Descriptor.Index {
			chunks[j-1], chunks[j] = chunks[j], chunks[j-1]
			j--
		}
	}
}

// BuildMetadata assembles the ArtifactMetadata for a freshly split
// artifact, content-addressed: id = SHA-256(bytes || now_ms).
func BuildMetadata(id string, data []byte, chunks []Chunk, storageType string, replicas int, now time.Time) (blueprint.ArtifactMetadata, error) {
	sum := sha256.Sum256(data)
	descs := make([]blueprint.ChunkDescriptor, len(chunks))
	for i, c := range chunks {
		descs[i] = c.Descriptor
	}
	return blueprint.ArtifactMetadata{
		ID:          id,
		Size:        int64(len(data)),
		Chunks:      descs,
		Created:     now,
		Modified:    now,
		Checksum:    fmt.Sprintf("%x", sum),
		StorageType: storageType,
		Replicas:    replicas,
	}, nil
}

// VerifyMetadata checks the artifact invariants: size equals the sum
// of chunk sizes, chunks are contiguous from 0, and the checksum matches
// the concatenation in index order.
func VerifyMetadata(meta blueprint.ArtifactMetadata, data []byte) error {
	var total int64
	for i, c := range meta.Chunks {
		if c.Index != i {
			return fmt.Errorf("%w: chunk list has a gap or is out of order at %d", blueprint.ErrInvalidMetadata, i)
		}
		total += c.Size
	}
	if total != meta.Size {
		return fmt.Errorf("%w: size %d does not equal sum of chunk sizes %d", blueprint.ErrInvalidMetadata, meta.Size, total)
	}
	sum := sha256.Sum256(data)
	if fmt.Sprintf("%x", sum) != meta.Checksum {
		return fmt.Errorf("%w: artifact checksum mismatch", blueprint.ErrChunkValidation)
	}
	return nil
}

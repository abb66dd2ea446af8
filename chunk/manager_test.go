package chunk

import (
	"bytes"
	"testing"
	"time"
)

func TestSplitEmptyBufferYieldsNoChunks(t *testing.T) {
	if got := Split(nil, DefaultSize); got != nil {
		t.Fatalf("expected nil chunks for empty buffer, got %d", len(got))
	}
}

func TestSplitCombineRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		size int64
		c    int64
	}{
		{"single byte", 1, DefaultSize},
		{"exactly one chunk", DefaultSize, DefaultSize},
		{"k chunks exactly", 4 * DefaultSize, DefaultSize},
		{"k chunks plus one byte", 4*DefaultSize + 1, DefaultSize},
		{"small chunk size", 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, int(tc.size))
			chunks := Split(data, tc.c)
			combined, err := Combine(chunks)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(combined, data) {
				t.Fatal("combine(split(x)) != x")
			}
		})
	}
}

// TestChunkCountForKnownSize checks the chunk count formula at both ends:
// a buffer smaller than DefaultSize yields exactly one chunk, and a
// buffer spanning several chunk boundaries yields one chunk per full
// DefaultSize plus a final partial chunk for the remainder.
func TestChunkCountForKnownSize(t *testing.T) {
	data := bytes.Repeat([]byte("hello world"), 400000/11+1)[:400000]
	chunks := Split(data, DefaultSize)
	if len(chunks) != 1 {
		t.Fatalf("400000 bytes at 1 MiB chunks should yield 1 chunk, got %d", len(chunks))
	}

	big := bytes.Repeat([]byte("hello world"), 1)
	bigBuf := make([]byte, 0, 4*DefaultSize+600000)
	for int64(len(bigBuf)) < 4*DefaultSize+600000 {
		bigBuf = append(bigBuf, big...)
	}
	bigBuf = bigBuf[:4*DefaultSize+600000]
	chunks = Split(bigBuf, DefaultSize)
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks for a 4*C+600000 byte buffer, got %d", len(chunks))
	}
	for i, c := range chunks[:4] {
		if c.Descriptor.Size != DefaultSize {
			t.Fatalf("expected chunk %d to be exactly C bytes, got %d", i, c.Descriptor.Size)
		}
	}
	if chunks[4].Descriptor.Size != 600000 {
		t.Fatalf("expected final chunk to hold the remainder, got %d", chunks[4].Descriptor.Size)
	}
}

func TestCombineRejectsTamperedChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, int(DefaultSize)+10)
	chunks := Split(data, DefaultSize)
	chunks[0].Bytes[0] ^= 0xFF // corrupt without updating the checksum

	if _, err := Combine(chunks); err == nil {
		t.Fatal("expected Combine to reject a tampered chunk")
	}
}

func TestCombineNeverReturnsPartialDataOnFailure(t *testing.T) {
	data := bytes.Repeat([]byte{0x02}, int(DefaultSize)+10)
	chunks := Split(data, DefaultSize)
	chunks[1].Descriptor.Checksum = "0000000000000000000000000000000000000000000000000000000000000000"

	out, err := Combine(chunks)
	if err == nil {
		t.Fatal("expected an error")
	}
	if out != nil {
		t.Fatal("expected no partial data on failure")
	}
}

func TestVerifyMetadataDetectsSizeMismatch(t *testing.T) {
	data := []byte("hello world")
	chunks := Split(data, DefaultSize)
	meta, err := BuildMetadata("artifact-1", data, chunks, "local", 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	meta.Size++
	if err := VerifyMetadata(meta, data); err == nil {
		t.Fatal("expected a size-mismatch error")
	}
}

func TestVerifyMetadataAcceptsConsistentArtifact(t *testing.T) {
	data := []byte("hello world, this is a small artifact")
	chunks := Split(data, 8)
	meta, err := BuildMetadata("artifact-2", data, chunks, "local", 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyMetadata(meta, data); err != nil {
		t.Fatal(err)
	}
}

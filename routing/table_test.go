package routing

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/artifactmesh/kadstore/blueprint"
)

// sameBucketID makes peers that all land in the same bucket relative to a
// zero self id: every id is zero except for the last byte, whose top bit
// is always set, fixing the XOR distance's highest set bit at position 7
// (bucket 7) while the low bits disambiguate individual peers.
func sameBucketID(i int) blueprint.NodeId {
	var id blueprint.NodeId
	id[blueprint.KeySize-1] = 0x80 | byte(i)
	return id
}

func newPeer(id blueprint.NodeId, lastSeen time.Time) blueprint.PeerRecord {
	return blueprint.PeerRecord{
		ID:       id,
		Metadata: blueprint.PeerMetadata{LastSeen: lastSeen},
		State:    blueprint.PeerConnected,
	}
}

func TestAddPeerNeverStoresSelf(t *testing.T) {
	self := blueprint.NodeId{}
	tbl := New(self, nil)
	if tbl.AddPeer(newPeer(self, time.Now())) {
		t.Fatal("expected self to be rejected")
	}
	if tbl.Size() != 0 {
		t.Fatal("expected self to never occupy a bucket")
	}
}

func TestBucketCapacityAndStaleReplacement(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	self := blueprint.NodeId{}
	tbl := New(self, mock)
	tbl.SetStaleAfter(time.Hour)

	// Fill bucket 7 to capacity (K=20).
	for i := 0; i < K; i++ {
		if !tbl.AddPeer(newPeer(sameBucketID(i), mock.Now())) {
			t.Fatalf("expected peer %d to be added while bucket has room", i)
		}
	}
	if tbl.Size() != K {
		t.Fatalf("expected %d peers, got %d", K, tbl.Size())
	}

	// A fresh peer at the same distance prefix is rejected: bucket is full
	// and nothing is stale yet.
	fresh := sameBucketID(K)
	if tbl.AddPeer(newPeer(fresh, mock.Now())) {
		t.Fatal("expected insert into a full, non-stale bucket to be rejected")
	}

	// Age peer 0 past T_stale; now the new peer should displace exactly it.
	mock.Add(2 * time.Hour)
	if !tbl.AddPeer(newPeer(fresh, mock.Now())) {
		t.Fatal("expected insert to succeed once the oldest peer is stale")
	}
	if tbl.Size() != K {
		t.Fatalf("expected size to remain %d after replacement, got %d", K, tbl.Size())
	}
	if _, ok := tbl.Peer(sameBucketID(0)); ok {
		t.Fatal("expected the stale peer to have been evicted")
	}
	for i := 1; i < K; i++ {
		if _, ok := tbl.Peer(sameBucketID(i)); !ok {
			t.Fatalf("expected peer %d to remain untouched", i)
		}
	}
}

func TestGetClosestOrdersByXORDistance(t *testing.T) {
	self := blueprint.NodeId{}
	tbl := New(self, nil)
	ids := []blueprint.NodeId{
		sameBucketID(5),
		sameBucketID(1),
		sameBucketID(9),
	}
	for _, id := range ids {
		tbl.AddPeer(newPeer(id, time.Now()))
	}

	closest := tbl.GetClosest(self, 3)
	if len(closest) != 3 {
		t.Fatalf("expected 3 results, got %d", len(closest))
	}
	if closest[0].ID != sameBucketID(1) || closest[1].ID != sameBucketID(5) || closest[2].ID != sameBucketID(9) {
		t.Fatal("expected results ordered by ascending XOR distance to self")
	}
}

func TestRemovePeerIsIdempotent(t *testing.T) {
	self := blueprint.NodeId{}
	tbl := New(self, nil)
	id := sameBucketID(1)
	tbl.AddPeer(newPeer(id, time.Now()))
	tbl.RemovePeer(id)
	tbl.RemovePeer(id)
	if tbl.Size() != 0 {
		t.Fatal("expected peer to be gone after removal")
	}
}

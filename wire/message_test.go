package wire

import (
	"testing"
	"time"
)

func TestTypeForMapping(t *testing.T) {
	cases := map[DHTType]Type{
		FindNode:  TypeQuery,
		FindValue: TypeQuery,
		Ping:      TypeQuery,
		Store:     TypeUpdate,
		Delete:    TypeUpdate,
	}
	for dt, want := range cases {
		if got := TypeFor(dt); got != want {
			t.Fatalf("TypeFor(%s) = %s, want %s", dt, got, want)
		}
	}
}

func TestValidateRejectsMissingDHTType(t *testing.T) {
	m := Message{Payload: Payload{Sender: "n1", Timestamp: time.Now()}}
	if err := Validate(m, time.Now()); err != ErrMissingDHTType {
		t.Fatalf("expected ErrMissingDHTType, got %v", err)
	}
}

func TestValidateRejectsMalformedKey(t *testing.T) {
	m := NewRequest(FindValue, Payload{Sender: "n1", Timestamp: time.Now(), Key: "not-hex"})
	if err := Validate(m, time.Now()); err != ErrMalformedKey {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
}

// TestValidateRejectsReplay checks that a STORE with ts = now-10min is
// rejected as a replay.
func TestValidateRejectsReplay(t *testing.T) {
	now := time.Now()
	m := NewRequest(Store, Payload{Sender: "n1", Timestamp: now.Add(-10 * time.Minute)})
	if err := Validate(m, now); err != ErrReplay {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
}

func TestValidateAcceptsWithinReplayWindow(t *testing.T) {
	now := time.Now()
	m := NewRequest(Ping, Payload{Sender: "n1", Timestamp: now.Add(-4 * time.Minute)})
	if err := Validate(m, now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestIsKnownTypeDropsUnknown(t *testing.T) {
	if IsKnownType("BOGUS") {
		t.Fatal("expected unknown dht_type to be reported as unknown")
	}
	if !IsKnownType(FindNode) {
		t.Fatal("expected FIND_NODE to be known")
	}
}

func TestCompatibleVersion(t *testing.T) {
	if !CompatibleVersion("1.0.0") {
		t.Fatal("expected exact version match to be compatible")
	}
	if !CompatibleVersion("1.4.2") {
		t.Fatal("expected same-major minor bump to be compatible")
	}
	if CompatibleVersion("2.0.0") {
		t.Fatal("expected major version bump to be incompatible")
	}
	if CompatibleVersion("not-a-version") {
		t.Fatal("expected malformed version to be incompatible")
	}
}

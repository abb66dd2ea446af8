package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/artifactmesh/kadstore/blueprint"
)

type scriptedDialer struct {
	mu      sync.Mutex
	results map[string][]error // per-addr queue of results, consumed in order
}

func (d *scriptedDialer) Dial(ctx context.Context, addr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.results[addr]
	if len(q) == 0 {
		return fmt.Errorf("scriptedDialer: no more scripted results for %s", addr)
	}
	err := q[0]
	d.results[addr] = q[1:]
	return err
}

func advanceClockInBackground(t *testing.T, mock *clock.Mock, stop <-chan struct{}) {
	t.Helper()
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				mock.Add(BackoffBase)
			}
		}
	}()
}

func TestConnectSucceedsOnFirstEndpoint(t *testing.T) {
	mock := clock.NewMock()
	dialer := &scriptedDialer{results: map[string][]error{"local-ipc-addr": {nil}}}
	b := New(dialer, mock, nil)

	err := b.Connect(context.Background(), []Endpoint{{Kind: "local-ipc", Addr: "local-ipc-addr"}})
	if err != nil {
		t.Fatal(err)
	}
	if b.State() != Connected {
		t.Fatalf("expected Connected, got %s", b.State())
	}
}

func TestConnectFallsThroughToNextEndpoint(t *testing.T) {
	mock := clock.NewMock()
	dialer := &scriptedDialer{results: map[string][]error{
		"local-ipc-addr": {fmt.Errorf("x"), fmt.Errorf("x"), fmt.Errorf("x")},
		"network-addr":   {nil},
	}}
	b := New(dialer, mock, nil)

	stop := make(chan struct{})
	advanceClockInBackground(t, mock, stop)
	defer close(stop)

	err := b.Connect(context.Background(), []Endpoint{
		{Kind: "local-ipc", Addr: "local-ipc-addr"},
		{Kind: "network", Addr: "network-addr"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.State() != Connected {
		t.Fatalf("expected Connected, got %s", b.State())
	}
}

func TestConnectRejectedUnlessDisconnected(t *testing.T) {
	mock := clock.NewMock()
	dialer := &scriptedDialer{results: map[string][]error{"addr": {nil}}}
	b := New(dialer, mock, nil)

	if err := b.Connect(context.Background(), []Endpoint{{Kind: "local-ipc", Addr: "addr"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect(context.Background(), []Endpoint{{Kind: "local-ipc", Addr: "addr"}}); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDisconnectReturnsToDisconnected(t *testing.T) {
	mock := clock.NewMock()
	dialer := &scriptedDialer{results: map[string][]error{"addr": {nil}}}
	var emitted blueprint.Event
	bus := &recordingBus{onEmit: func(e blueprint.Event, _ any) { emitted = e }}
	b := New(dialer, mock, bus)

	if err := b.Connect(context.Background(), []Endpoint{{Kind: "local-ipc", Addr: "addr"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Disconnect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", b.State())
	}
	if emitted != blueprint.EventPeerDisconnect {
		t.Fatalf("expected EventPeerDisconnect, got %s", emitted)
	}
}

type recordingBus struct {
	onEmit func(event blueprint.Event, payload any)
}

func (r *recordingBus) Subscribe(event blueprint.Event, handler func(payload any)) {}

func (r *recordingBus) Emit(event blueprint.Event, payload any) {
	if r.onEmit != nil {
		r.onEmit(event, payload)
	}
}

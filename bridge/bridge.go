// Package bridge implements the bridge state machine: the network
// transport adapter's connection lifecycle, with an ordered transport
// preference and bounded exponential-backoff retries. Grounded on
// KelvinWu602-immutable-storage's isIPFSDaemonAlive retry loop in
// ipfs/client_ipfs.go, generalised from a single daemon health check to a
// ranked list of dialable endpoints with real backoff between attempts.
package bridge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
)

// State is the bridge connection state.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Disconnecting State = "disconnecting"
)

// MaxRetries bounds the exponential-backoff dial loop.
const MaxRetries = 3

// BackoffBase is the base delay for the exponential backoff between
// dial attempts (base * 2^attempt).
const BackoffBase = 500 * time.Millisecond

// ErrInvalidTransition reports a Connect call outside Disconnected.
var ErrInvalidTransition = fmt.Errorf("bridge: connect only valid from disconnected")

// Endpoint is one candidate transport target, tried in order.
type Endpoint struct {
	Kind string // "local-ipc" | "network" | "bootstrap"
	Addr string
}

// Dialer abstracts the transport used to test an Endpoint, so this
// package never depends on transport/grpc directly.
type Dialer interface {
	Dial(ctx context.Context, addr string) error
}

// Bridge is the connection-lifecycle state machine.
type Bridge struct {
	dialer Dialer
	clock  blueprint.Clock
	bus    blueprint.EventBus

	mu    sync.Mutex
	state State
	addr  string
}

// New returns a Bridge in the Disconnected state.
func New(dialer Dialer, clock blueprint.Clock, bus blueprint.EventBus) *Bridge {
	return &Bridge{dialer: dialer, clock: clock, bus: bus, state: Disconnected}
}

// State returns the current state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect tries endpoints in order (local IPC, network, bootstrap),
// dialling each up to MaxRetries times with exponential backoff.
// It is rejected outside Disconnected.
func (b *Bridge) Connect(ctx context.Context, endpoints []Endpoint) error {
	if !b.transition(Disconnected, Connecting) {
		return ErrInvalidTransition
	}

	rank := func(kind string) int {
		switch kind {
		case "local-ipc":
			return 0
		case "network":
			return 1
		case "bootstrap":
			return 2
		}
		return 3
	}
	ordered := append([]Endpoint(nil), endpoints...)
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i].Kind) < rank(ordered[j].Kind) })

	for _, ep := range ordered {
		if b.dialWithRetry(ctx, ep) {
			b.mu.Lock()
			b.state = Connected
			b.addr = ep.Addr
			b.mu.Unlock()
			b.emit(blueprint.EventPeerConnect, ep.Addr)
			return nil
		}
	}

	b.mu.Lock()
	b.state = Disconnected
	b.mu.Unlock()
	return fmt.Errorf("bridge: no endpoint reachable among %d candidates", len(endpoints))
}

func (b *Bridge) dialWithRetry(ctx context.Context, ep Endpoint) bool {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := b.dialer.Dial(ctx, ep.Addr); err == nil {
			return true
		}
		log.Println("[bridge]: dial", ep.Kind, ep.Addr, "failed, attempt", attempt+1, "of", MaxRetries)
		delay := BackoffBase * time.Duration(1<<uint(attempt))
		select {
		case <-b.clock.After(delay):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// Disconnect transitions Connected -> Disconnecting -> Disconnected.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Connected {
		b.mu.Unlock()
		return fmt.Errorf("bridge: disconnect only valid from connected")
	}
	b.state = Disconnecting
	addr := b.addr
	b.mu.Unlock()

	b.mu.Lock()
	b.state = Disconnected
	b.addr = ""
	b.mu.Unlock()
	b.emit(blueprint.EventPeerDisconnect, addr)
	return nil
}

func (b *Bridge) transition(from, to State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != from {
		return false
	}
	b.state = to
	return true
}

func (b *Bridge) emit(event blueprint.Event, payload any) {
	if b.bus != nil {
		b.bus.Emit(event, payload)
	}
}

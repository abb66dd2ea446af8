package dht

import (
	"context"
	"log"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
)

// RefreshEvery is the fixed cadence of the liveness sweep. The sweep
// pings peers unseen for longer than NodeConfig.RefreshInterval;
// republishing runs on its own NodeConfig.RepublishEvery timer.
const RefreshEvery = 60 * time.Second

// liveness implements the periodic task: PING every peer last seen
// longer than T_refresh ago; remove on failure.
func (n *Node) liveness(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.clock.After(RefreshEvery):
		}
		now := n.clock.Now()
		for _, p := range n.table.AllPeers() {
			if now.Sub(p.Metadata.LastSeen) <= n.cfg.RefreshInterval {
				continue
			}
			if err := n.rpcPing(ctx, p); err != nil {
				log.Println("[dht]: peer", p.ID, "failed liveness PING, removing:", err)
				n.table.RemovePeer(p.ID)
				n.emit(blueprint.EventPeerDisconnect, p.ID.String())
			}
		}
	}
}

// republish implements: values owned by this node are republished
// every T_republish to the current k-closest set, rebalancing as
// membership changes.
func (n *Node) republish(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.clock.After(n.cfg.RepublishEvery):
		}
		for _, key := range n.store.keys() {
			env, ok := n.store.get(key)
			if !ok {
				continue
			}
			n.storeAt(ctx, key, env)
		}
	}
}

// Command kadstore runs a single node of the content-addressed store: it
// loads configuration, establishes identity, wires the DHT node to its
// storage backends, and serves the JSON-codec gRPC transport until
// terminated. Grounded on KelvinWu602-immutable-storage's main.go entry point, generalised
// from a one-shot experimental IPFS call to a long-running server process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.opencensus.io/stats/view"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/clockutil"
	"github.com/artifactmesh/kadstore/config"
	"github.com/artifactmesh/kadstore/dht"
	"github.com/artifactmesh/kadstore/eventbus"
	"github.com/artifactmesh/kadstore/identity"
	"github.com/artifactmesh/kadstore/keystore"
	"github.com/artifactmesh/kadstore/metrics"
	"github.com/artifactmesh/kadstore/publisher"
	"github.com/artifactmesh/kadstore/server"
	"github.com/artifactmesh/kadstore/storage"
	"github.com/artifactmesh/kadstore/storage/local"
	"github.com/artifactmesh/kadstore/storage/network"
	grpctransport "github.com/artifactmesh/kadstore/transport/grpc"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := view.Register(metrics.DefaultViews...); err != nil {
		log.Println("[kadstore]: metrics view registration failed, continuing without:", err)
	}

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		log.Fatalf("[kadstore]: cannot create storage root %s: %v", cfg.StorageRoot, err)
	}
	self, err := identity.Load(filepath.Join(cfg.StorageRoot, "node.id"))
	if err != nil {
		log.Fatalf("[kadstore]: identity: %v", err)
	}
	log.Println("[kadstore]: node id", self.String())

	clk := clockutil.Real()
	bus := eventbus.New()

	var ks blueprint.Keystore
	if cfg.EnableSigning {
		k, err := keystore.New()
		if err != nil {
			log.Fatalf("[kadstore]: keystore: %v", err)
		}
		ks = k
		log.Println("[kadstore]: signing enabled, signer", k.SignerID())
	}

	client := grpctransport.NewClient()
	node := dht.New(self, client, clk, bus, ks, dht.NodeConfig{
		RefreshInterval: cfg.RefreshInterval,
		RepublishEvery:  cfg.RepublishEvery,
	})

	localProvider, err := local.New(filepath.Join(cfg.StorageRoot, "local"), clk)
	if err != nil {
		log.Fatalf("[kadstore]: local provider: %v", err)
	}
	networkProvider := network.New(node, cfg.MinReplicas, clk)

	manager := storage.New(storage.Strategy(cfg.Strategy), localProvider, networkProvider, nil, bus)
	pub := publisher.New(self, manager, node, publisher.NewIndex(node), clk, bus)
	app := server.New(node, manager, pub)
	srv := grpctransport.NewServer(app.Handler())

	bootstrap(context.Background(), node, client, cfg.BootstrapPeers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("[kadstore]: start: %v", err)
	}
	go func() {
		if err := srv.Serve(cfg.ListenAddr); err != nil {
			log.Println("[kadstore]: transport server stopped:", err)
		}
	}()

	<-ctx.Done()
	log.Println("[kadstore]: shutting down")
	srv.Stop()
	app.Stop(context.Background())
	client.Close()
}

// bootstrap seeds the routing table from configured peer addresses so
// FindClosest has somewhere to start; a dial failure is non-fatal and
// just leaves that bootstrap peer unlearned.
func bootstrap(ctx context.Context, node *dht.Node, client *grpctransport.Client, peers []string) {
	for _, addr := range peers {
		if err := client.Dial(ctx, addr); err != nil {
			log.Println("[kadstore]: bootstrap dial", addr, "failed:", err)
			continue
		}
		node.Table().AddPeer(blueprint.PeerRecord{
			ID:             blueprint.DeriveKey("bootstrap:" + addr),
			AddressStrings: []string{addr},
			State:          blueprint.PeerConnecting,
		})
	}
}

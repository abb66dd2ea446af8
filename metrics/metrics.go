// Package metrics defines opencensus measures and views for the DHT node
// and storage manager. Grounded on ipni-go-indexer-core/metrics/metrics.go,
// generalised from an index-cache/dhstore domain to routing lookups,
// storage provider calls and replication.
package metrics

import (
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Keys
var (
	Provider, _ = tag.NewKey("provider")
	DHTType, _  = tag.NewKey("dht_type")
)

// Measures
var (
	LookupLatency     = stats.Float64("kadstore/lookup_latency", "Time to converge an iterative lookup", stats.UnitMilliseconds)
	LookupHops        = stats.Int64("kadstore/lookup_hops", "Number of RPC rounds a lookup took to converge", stats.UnitDimensionless)
	RPCSent           = stats.Int64("kadstore/rpc_sent", "Number of outbound RPCs sent", stats.UnitDimensionless)
	RPCFailed         = stats.Int64("kadstore/rpc_failed", "Number of outbound RPCs that failed or timed out", stats.UnitDimensionless)
	RoutingTableSize  = stats.Int64("kadstore/routing_table_size", "Total live peers across all buckets", stats.UnitDimensionless)
	StoreLatency      = stats.Float64("kadstore/store_latency", "Time for a Provider.Store call", stats.UnitMilliseconds)
	RetrieveLatency   = stats.Float64("kadstore/retrieve_latency", "Time for a Provider.Retrieve call", stats.UnitMilliseconds)
	ReplicationFailed = stats.Int64("kadstore/replication_failed", "Secondary provider replication failures", stats.UnitDimensionless)
	BytesStored       = stats.Int64("kadstore/bytes_stored", "Total bytes held across providers", stats.UnitBytes)
	CacheHits         = stats.Int64("kadstore/cache_hits", "Metadata cache hits", stats.UnitDimensionless)
	CacheMisses       = stats.Int64("kadstore/cache_misses", "Metadata cache misses", stats.UnitDimensionless)
)

// Views
var (
	lookupLatencyView = &view.View{
		Measure:     LookupLatency,
		Aggregation: view.Distribution(0, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10_000, 30_000),
	}
	lookupHopsView = &view.View{
		Measure:     LookupHops,
		Aggregation: view.Distribution(0, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20),
	}
	rpcSentView = &view.View{
		Measure:     RPCSent,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{DHTType},
	}
	rpcFailedView = &view.View{
		Measure:     RPCFailed,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{DHTType},
	}
	routingTableSizeView = &view.View{
		Measure:     RoutingTableSize,
		Aggregation: view.LastValue(),
	}
	storeLatencyView = &view.View{
		Measure:     StoreLatency,
		Aggregation: view.Distribution(0, 1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 200, 500, 1000, 2000),
		TagKeys:     []tag.Key{Provider},
	}
	retrieveLatencyView = &view.View{
		Measure:     RetrieveLatency,
		Aggregation: view.Distribution(0, 1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 200, 500, 1000, 2000),
		TagKeys:     []tag.Key{Provider},
	}
	replicationFailedView = &view.View{
		Measure:     ReplicationFailed,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Provider},
	}
	bytesStoredView = &view.View{
		Measure:     BytesStored,
		Aggregation: view.LastValue(),
	}
	cacheHitsView = &view.View{
		Measure:     CacheHits,
		Aggregation: view.Count(),
	}
	cacheMissesView = &view.View{
		Measure:     CacheMisses,
		Aggregation: view.Count(),
	}
)

// DefaultViews are every view this package defines, ready to be passed to
// view.Register by the process that wants observability. Registration is
// a deliberate seam: core code never calls view.Register itself.
var DefaultViews = []*view.View{
	lookupLatencyView,
	lookupHopsView,
	rpcSentView,
	rpcFailedView,
	routingTableSizeView,
	storeLatencyView,
	retrieveLatencyView,
	replicationFailedView,
	bytesStoredView,
	cacheHitsView,
	cacheMissesView,
}

// MsecSince mirrors KelvinWu602-immutable-storage's helper for timing a stats.Float64 measure.
func MsecSince(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}

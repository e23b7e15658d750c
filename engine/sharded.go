package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/internal/ring"
	"github.com/hupe1980/ringvec/model"
)

// MaxShards is the maximum number of shards a Sharded store accepts.
const MaxShards = 1 << 16

// Options configures a Sharded store.
type Options struct {
	// Metric selects the similarity function used by Search.
	Metric distance.Metric

	// Workers is the size of the scan worker pool. Zero selects
	// max(numShards, GOMAXPROCS).
	Workers int
}

// DefaultOptions returns the default options.
var DefaultOptions = Options{
	Metric: distance.MetricCosine,
}

// Sharded is a fixed set of independent ring shards.
//
// Writes route to a single shard by a hash of the record id; searches fan out
// to all shards in parallel and merge the results. All methods are safe for
// concurrent use.
type Sharded struct {
	shards     []*ring.Shard
	numShards  uint64
	capacity   int
	metric     distance.Metric
	scanPool   *ScanPool
	closed     atomic.Bool
}

// NewSharded creates a store with numShards shards of the given capacity.
func NewSharded(numShards, capacity int, optFns ...func(o *Options)) (*Sharded, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("sharded: at least one shard required, got %d", numShards)
	}
	if numShards > MaxShards {
		return nil, fmt.Errorf("sharded: %d shards exceeds maximum %d", numShards, MaxShards)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("sharded: shard capacity must be positive, got %d", capacity)
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	score, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("sharded: %w", err)
	}

	shards := make([]*ring.Shard, numShards)
	for i := range shards {
		shards[i] = ring.New(capacity)
	}

	poolSize := opts.Workers
	if poolSize <= 0 {
		poolSize = numShards
		if procs := runtime.GOMAXPROCS(0); procs > poolSize {
			poolSize = procs
		}
	}

	return &Sharded{
		shards:     shards,
		numShards:  uint64(numShards),
		capacity:   capacity,
		metric:     opts.Metric,
		scanPool:   NewScanPool(poolSize, score),
	}, nil
}

// NumShards returns the number of shards.
func (sc *Sharded) NumShards() int {
	return int(sc.numShards)
}

// ShardCapacity returns the capacity of each shard.
func (sc *Sharded) ShardCapacity() int {
	return sc.capacity
}

// Capacity returns the retained-record ceiling (shards * capacity).
func (sc *Sharded) Capacity() int {
	return int(sc.numShards) * sc.capacity
}

// Metric returns the similarity metric used by Search.
func (sc *Sharded) Metric() distance.Metric {
	return sc.metric
}

// Route returns the shard index for id. It is a pure function of id and the
// shard count.
func (sc *Sharded) Route(id string) int {
	return int(xxhash.Sum64String(id) % sc.numShards)
}

// Insert stores rec in the shard selected by Route(rec.ID).
// It never blocks and never fails; a full shard silently overwrites a slot.
func (sc *Sharded) Insert(rec *model.Record) {
	sc.shards[sc.Route(rec.ID)].Insert(rec)
}

// Search returns the k records most similar to query, ordered by descending
// score with ties broken by ascending id. Fewer than k hits are returned when
// the store holds fewer live records. k <= 0 returns an empty result.
//
// ctx bounds the dispatch and collection phases; individual shard scans run to
// completion.
func (sc *Sharded) Search(ctx context.Context, query []float32, k int) ([]model.Hit, error) {
	if k <= 0 {
		return []model.Hit{}, nil
	}
	if sc.closed.Load() {
		return nil, ErrClosed
	}

	return sc.scanPool.TopK(ctx, sc.shards, query, k)
}

// Len returns the number of live records across all shards.
func (sc *Sharded) Len() int {
	n := 0
	for _, s := range sc.shards {
		n += s.Len()
	}
	return n
}

// ShardRecords returns the live records of one shard, oldest first.
func (sc *Sharded) ShardRecords(shardIdx int) []*model.Record {
	return sc.shards[shardIdx].Records()
}

// ShardStats describes a single shard.
type ShardStats struct {
	Shard    int
	Len      int
	Capacity int
	Inserts  uint64
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Shards   []ShardStats
	Len      int
	Capacity int
	Inserts  uint64
	Workers  int
	Scans    uint64
	Metric   distance.Metric
}

// Stats returns per-shard occupancy and insert counters.
func (sc *Sharded) Stats() Stats {
	st := Stats{
		Shards:   make([]ShardStats, len(sc.shards)),
		Capacity: sc.Capacity(),
		Workers:  sc.scanPool.Size(),
		Scans:    sc.scanPool.Scans(),
		Metric:   sc.metric,
	}
	for i, s := range sc.shards {
		ss := ShardStats{
			Shard:    i,
			Len:      s.Len(),
			Capacity: s.Capacity(),
			Inserts:  s.Cursor(),
		}
		st.Shards[i] = ss
		st.Len += ss.Len
		st.Inserts += ss.Inserts
	}
	return st
}

// Close stops the scan pool. Subsequent searches return ErrClosed.
func (sc *Sharded) Close() error {
	if !sc.closed.CompareAndSwap(false, true) {
		return nil
	}
	sc.scanPool.Close()
	return nil
}

// Package ringvec provides an in-memory, fixed-footprint vector store for
// streaming similarity search.
//
// ringvec keeps the most recent records of a stream in N independent shards,
// each a circular buffer with a fixed number of slots. Once a shard is full,
// every insert overwrites its oldest slot. Retained memory is therefore bounded
// by shards * capacity records no matter how long the stream runs.
//
//   - Lock-free inserts: one atomic cursor increment and one pointer store
//   - Hash routing: records go to shard xxhash(id) mod N
//   - Parallel top-k search over all shards with a bounded heap per shard
//   - Cosine similarity, or dot product for unit-length vectors
//
// # Quick Start
//
//	ctx := context.Background()
//	store, err := ringvec.New(16, 1024)
//	if err != nil {
//	    panic(err)
//	}
//	defer store.Close()
//
//	_ = store.Insert(ctx, "log-1", []float32{1, 0, 0}, "service started")
//	_ = store.Insert(ctx, "log-2", []float32{0, 1, 0}, "disk full")
//
//	hits, _ := store.Search(ctx, []float32{1, 0.1, 0}, 5)
//	for _, h := range hits {
//	    fmt.Println(h.ID(), h.Score, h.Metadata())
//	}
//
// # Consistency
//
// Search takes no locks. It may return a record that is overwritten while the
// scan runs and may miss a record inserted concurrently. Every returned record
// is always complete.
//
// The embed, ingest and server packages turn the store into a streaming log
// correlation service; cmd/ringvec wires them into a CLI.
package ringvec

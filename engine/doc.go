// Package engine provides the sharded store behind ringvec.
//
// # Architecture
//
//   - N independent ring shards, each a fixed-capacity circular buffer
//   - Inserts route by xxhash(id) mod N and touch exactly one shard
//   - Searches fan out to every shard through a fixed ScanPool and merge
//     the per-shard top-k lists into one globally ranked top-k
//
// # Concurrency Model
//
// Inserts are lock-free: one atomic cursor increment and one atomic pointer
// store. Searches only load slot pointers, so they never block inserts and
// never observe a partially written record. A search is not linearizable with
// respect to concurrent inserts: a record evicted during the scan may still be
// returned and a record inserted during the scan may be missed.
//
// Retained memory is bounded by N * capacity records.
package engine

// Package testutil provides testing utilities for ringvec.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors and computing exact
// top-k results to verify the sharded search against.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := rng.UnitVector(128)        // L2-normalized
//	vecs := rng.UnitVectors(1000, 128)
//
// # Exact Search (Ground Truth)
//
//	hits := testutil.ExactTopK(query, records, k, distance.Cosine)
package testutil

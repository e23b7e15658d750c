// Package distance provides vector similarity functions for ringvec.
//
// All functions are pure and safe for concurrent use. Scores follow the
// "larger is more similar" convention.
//
// # Supported Metrics
//
//   - MetricCosine: full cosine similarity (default, safe for any input)
//   - MetricDot: inner product (fast path, requires unit-length vectors)
//
// Dot and Cosine are numerically equivalent for unit-length vectors. Stores
// using MetricDot re-verify that contract with IsNormalized and normalize a
// copy of any vector that violates it.
//
// # Usage
//
//	sim := distance.Cosine(a, b)
//	dot := distance.Dot(a, b)
//	unit, ok := distance.NormalizeL2Copy(vec)
package distance

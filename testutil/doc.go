// Package testutil provides testing utilities for vecfile.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors and for computing
// exact nearest neighbors in memory to compare store results against.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 128) // uniform [0, 1)
//	units := rng.UnitVectors(1000, 128)   // L2-normalized
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.ExactTopK(query, vecs, k, distance.SquaredL2)
package testutil

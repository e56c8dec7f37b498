// Package testutil provides testing utilities for the Bloom filter packages.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Keys
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.Keys(5000, 16)           // distinct random keys
//	probes := rng.DisjointKeys(keys, 10000, 16)
//
// # Random Bit Arrays
//
//	ba := rng.BitArray(1000, 0.3)        // about 30% of bits set
//
// # False-Positive Counting
//
//	fp := testutil.CountHits(filter.Contains, probes)
package testutil

// Package bloomfilter provides a Bloom filter with a versioned, bit-exact
// binary format.
//
// A Bloom filter answers set-membership queries with no false negatives and a
// tunable false-positive rate. Keys are hashed by two injected hash functions;
// the k probe positions are derived from that pair by double hashing.
//
// # Quick Start
//
//	f, _ := bloomfilter.NewString(0.001, 1_000_000)
//	_ = f.Add("alice")
//	f.Contains("alice") // true
//	f.Contains("bob")   // false with high probability
//
// Custom key types supply their own hash functions:
//
//	first := hashfn.New("id-lo", func(id uint64) int32 { return int32(id) })
//	second := hashfn.New("id-hi", func(id uint64) int32 { return int32(id >> 32) })
//	f, _ := bloomfilter.New[uint64](0.01, 10_000, first, second)
//
// # Persistence
//
// Save writes the version 2 stream described in package codec; Load reads it
// back, as well as legacy header-less streams when the filter already knows
// its bit count and hash function count:
//
//	var buf bytes.Buffer
//	_, _ = f.Save(&buf)
//	g, _ := bloomfilter.NewString(0.001, 1_000_000)
//	_ = g.Load(&buf)
//
// Both codec strategies produce identical bytes. Pick one with WithStrategy;
// refuse legacy streams with WithLegacyMode(codec.LegacyReject).
//
// Package persistence adds checksummed, optionally compressed files, and
// package repository stores named snapshots in a blobstore.
//
// # Observability
//
//	metrics := &bloomfilter.BasicMetricsCollector{}
//	f, _ := bloomfilter.NewString(0.01, 1000,
//	    bloomfilter.WithLogger(bloomfilter.NewJSONLogger(slog.LevelDebug)),
//	    bloomfilter.WithMetricsCollector(metrics),
//	)
package bloomfilter

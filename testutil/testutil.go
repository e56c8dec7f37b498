package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/bloomfilter/bitarray"
)

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int31 returns a pseudo-random int32 covering the full signed range.
func (r *RNG) Int31() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int32(r.rand.Uint32()) //nolint:gosec // reinterpretation
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Key returns a random alphanumeric string of the given length.
func (r *RNG) Key(length int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keyLocked(length)
}

func (r *RNG) keyLocked(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = keyAlphabet[r.rand.Intn(len(keyAlphabet))]
	}
	return string(b)
}

// Keys returns num distinct random keys of the given length.
func (r *RNG) Keys(num, length int) []string {
	return r.DisjointKeys(nil, num, length)
}

// DisjointKeys returns num distinct random keys of the given length, none of
// which appears in exclude.
func (r *RNG) DisjointKeys(exclude []string, num, length int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(exclude)+num)
	for _, k := range exclude {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, num)
	for len(keys) < num {
		k := r.keyLocked(length)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// BitArray returns an n-bit array where each bit is set with the given probability.
func (r *RNG) BitArray(n int, density float64) *bitarray.BitArray {
	r.mu.Lock()
	defer r.mu.Unlock()

	ba := bitarray.New(n)
	for i := range n {
		if r.rand.Float64() < density {
			_ = ba.Set(i)
		}
	}
	return ba
}

// CountHits returns how many probes the predicate accepts.
func CountHits(contains func(string) bool, probes []string) int {
	hits := 0
	for _, p := range probes {
		if contains(p) {
			hits++
		}
	}
	return hits
}

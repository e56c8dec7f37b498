package bloomfilter

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bloomfilter/bitarray"
	"github.com/hupe1980/bloomfilter/codec"
	"github.com/hupe1980/bloomfilter/hashfn"
)

// Filter is a Bloom filter over keys of type T.
//
// A Filter is not safe for concurrent use. Callers that share one across
// goroutines must synchronize externally.
type Filter[T any] struct {
	bits   *bitarray.BitArray
	m      int
	k      int
	params Parameters

	first  hashfn.HashFunction[T]
	second hashfn.HashFunction[T]

	opts options
}

// New creates a filter sized by OptimalParameters for the given error rate
// and capacity.
func New[T any](errorRate float64, capacity int, first, second hashfn.HashFunction[T], optFns ...Option) (*Filter[T], error) {
	o := applyOptions(optFns)

	p, err := OptimalParameters(errorRate, capacity)
	o.logger.LogParameters(context.Background(), p, err)
	if err != nil {
		return nil, err
	}
	return newFilter(p, first, second, o)
}

// NewWithParameters creates a filter with an explicit bit count and hash
// function count.
func NewWithParameters[T any](bitCount, hashFunctionCount int, first, second hashfn.HashFunction[T], optFns ...Option) (*Filter[T], error) {
	if err := validateExplicit(bitCount, hashFunctionCount); err != nil {
		return nil, err
	}
	p := Parameters{BitCount: bitCount, HashFunctionCount: hashFunctionCount}
	return newFilter(p, first, second, applyOptions(optFns))
}

// NewString creates a string filter hashed with Murmur3 and FNV-1a.
func NewString(errorRate float64, capacity int, optFns ...Option) (*Filter[string], error) {
	return New[string](errorRate, capacity, hashfn.Murmur3{}, hashfn.FNV32a{}, optFns...)
}

// Read decodes a version 2 stream into a new filter. Legacy streams carry no
// parameters and are rejected with codec.ErrMissingLegacyParameters; load
// them into a filter of known shape with Load instead.
func Read[T any](r io.Reader, first, second hashfn.HashFunction[T], optFns ...Option) (*Filter[T], error) {
	if first == nil || second == nil {
		return nil, ErrNilHashFunction
	}
	f := &Filter[T]{first: first, second: second, opts: applyOptions(optFns)}
	if err := f.Load(r); err != nil {
		return nil, err
	}
	return f, nil
}

func newFilter[T any](p Parameters, first, second hashfn.HashFunction[T], o options) (*Filter[T], error) {
	if first == nil || second == nil {
		return nil, ErrNilHashFunction
	}
	return &Filter[T]{
		bits:   bitarray.New(p.BitCount),
		m:      p.BitCount,
		k:      p.HashFunctionCount,
		params: p,
		first:  first,
		second: second,
		opts:   o,
	}, nil
}

// HashOf computes the hash pair of key. It is the only place the configured
// hash functions are called.
func (f *Filter[T]) HashOf(key T) HashPair {
	return HashPair{First: f.first.HashCode(key), Second: f.second.HashCode(key)}
}

// indexFor returns the i-th probe position. The sum wraps in 32 bits and a
// negative remainder is negated rather than shifted by m; stored filters
// depend on this exact sequence.
func (f *Filter[T]) indexFor(h1, h2 int32, i int) int {
	idx := (h1 + int32(i)*h2) % int32(f.m) //nolint:gosec // m and k fit int32
	if idx < 0 {
		idx = -idx
	}
	return int(idx)
}

// Add inserts key.
func (f *Filter[T]) Add(key T) error {
	return f.AddHash(f.HashOf(key))
}

// AddHash inserts a key by its precomputed hash pair. It only fails if a
// probe falls outside the bit array, which indicates a corrupted filter.
func (f *Filter[T]) AddHash(hp HashPair) error {
	for i := 0; i < f.k; i++ {
		if err := f.bits.Set(f.indexFor(hp.First, hp.Second, i)); err != nil {
			return fmt.Errorf("bloomfilter: add: %w", err)
		}
	}
	f.opts.metricsCollector.RecordAdd()
	return nil
}

// Contains reports whether key may have been added. False means the key was
// definitely never added.
func (f *Filter[T]) Contains(key T) bool {
	return f.ContainsHash(f.HashOf(key))
}

// ContainsHash is Contains for a precomputed hash pair.
func (f *Filter[T]) ContainsHash(hp HashPair) bool {
	hit := f.probe(hp)
	f.opts.metricsCollector.RecordContains(hit)
	return hit
}

func (f *Filter[T]) probe(hp HashPair) bool {
	for i := 0; i < f.k; i++ {
		if !f.bits.Get(f.indexFor(hp.First, hp.Second, i)) {
			return false
		}
	}
	return true
}

// Save writes the filter as a version 2 stream and returns the number of
// bytes written.
func (f *Filter[T]) Save(w io.Writer) (int64, error) {
	start := time.Now()
	n, err := codec.Encode(w, f.image(), f.opts.strategy)
	if err != nil {
		err = fmt.Errorf("bloomfilter: save: %w", err)
	}

	d := time.Since(start)
	f.opts.logger.LogSave(context.Background(), n, d, err)
	f.opts.metricsCollector.RecordSave(n, d, err)
	return n, err
}

// Load replaces the filter's contents with the stream read from r.
//
// Version 2 streams replace the bit array, bit count and hash function count
// together. Legacy streams are decoded with the filter's current bit count
// and hash function count and only replace the bit array; they are refused
// when the filter was built with WithLegacyMode(codec.LegacyReject).
// On error the filter is left unchanged.
func (f *Filter[T]) Load(r io.Reader) error {
	start := time.Now()
	img, h, err := codec.Decode(r, codec.DecodeOptions{
		Strategy:                f.opts.strategy,
		Legacy:                  f.opts.legacyMode,
		LegacyBitCount:          f.m,
		LegacyHashFunctionCount: f.k,
	})

	version := 0
	if h != nil {
		version = h.Version()
	}
	d := time.Since(start)
	if err != nil {
		err = fmt.Errorf("bloomfilter: load: %w", err)
	}
	f.opts.logger.LogLoad(context.Background(), version, d, err)
	f.opts.metricsCollector.RecordLoad(version, d, err)
	if err != nil {
		return err
	}

	if img.BitCount != f.m || img.HashFunctionCount != f.k {
		f.params = Parameters{BitCount: img.BitCount, HashFunctionCount: img.HashFunctionCount}
	}
	f.bits, f.m, f.k = img.Bits, img.BitCount, img.HashFunctionCount
	return nil
}

// StreamLength returns the number of bytes Save would write.
func (f *Filter[T]) StreamLength() int64 {
	return codec.StreamLength(f.bits)
}

func (f *Filter[T]) image() codec.Image {
	return codec.Image{Bits: f.bits, HashFunctionCount: f.k, BitCount: f.m}
}

// BitCount returns m.
func (f *Filter[T]) BitCount() int { return f.m }

// HashFunctionCount returns k.
func (f *Filter[T]) HashFunctionCount() int { return f.k }

// Parameters returns the filter's parameters.
func (f *Filter[T]) Parameters() Parameters { return f.params }

// HashFunctions returns the names of the two configured hash functions.
func (f *Filter[T]) HashFunctions() (string, string) {
	return f.first.Name(), f.second.Name()
}

// Bitmap returns the filter's bit array. Callers must not modify it.
func (f *Filter[T]) Bitmap() *bitarray.BitArray { return f.bits }

// String implements fmt.Stringer.
func (f *Filter[T]) String() string {
	return fmt.Sprintf("BloomFilter-[%d KB, %d hashFunctions (%s, %s)]",
		f.m/8/1024, f.k, f.first.Name(), f.second.Name())
}

// FillRatio returns the fraction of bits set.
func (f *Filter[T]) FillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// EstimatedFalsePositiveRate estimates the current false-positive rate as
// FillRatio()^k.
func (f *Filter[T]) EstimatedFalsePositiveRate() float64 {
	return math.Pow(f.FillRatio(), float64(f.k))
}

func (f *Filter[T]) compatible(other *Filter[T]) error {
	if f.m != other.m || f.k != other.k {
		return fmt.Errorf("%w: m=%d k=%d vs m=%d k=%d", ErrIncompatibleFilters, f.m, f.k, other.m, other.k)
	}
	if f.first.Name() != other.first.Name() || f.second.Name() != other.second.Name() {
		return fmt.Errorf("%w: hash functions (%s, %s) vs (%s, %s)", ErrIncompatibleFilters,
			f.first.Name(), f.second.Name(), other.first.Name(), other.second.Name())
	}
	return nil
}

// Union adds every key of other to f. Both filters must share bit count, hash
// function count and hash functions.
func (f *Filter[T]) Union(other *Filter[T]) error {
	if err := f.compatible(other); err != nil {
		return err
	}
	return f.bits.Union(other.bits)
}

// Diff returns the positions whose bits differ between f and other.
func (f *Filter[T]) Diff(other *Filter[T]) (*roaring.Bitmap, error) {
	if err := f.compatible(other); err != nil {
		return nil, err
	}
	return roaring.Xor(f.bits.Positions(), other.bits.Positions()), nil
}

// Clone returns an independent copy sharing hash functions and options.
func (f *Filter[T]) Clone() *Filter[T] {
	c := *f
	c.bits = f.bits.Clone()
	return &c
}

package bloomfilter

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomfilter/codec"
	"github.com/hupe1980/bloomfilter/hashfn"
	"github.com/hupe1980/bloomfilter/testutil"
)

func constHash(name string, v int32) hashfn.HashFunction[string] {
	return hashfn.New(name, func(string) int32 { return v })
}

func TestNoFalseNegatives(t *testing.T) {
	rng := testutil.NewRNG(1)
	for _, tc := range []struct {
		errorRate float64
		capacity  int
	}{
		{0.001, 1000},
		{0.01, 5000},
		{0.2, 100},
	} {
		f, err := NewString(tc.errorRate, tc.capacity)
		require.NoError(t, err)

		keys := rng.Keys(tc.capacity, 12)
		for _, k := range keys {
			require.NoError(t, f.Add(k))
		}
		for _, k := range keys {
			require.True(t, f.Contains(k), "false negative for %q", k)
		}
	}
}

func TestBoundedFalsePositives(t *testing.T) {
	rng := testutil.NewRNG(2)
	f, err := NewString(0.001, 10000)
	require.NoError(t, err)

	keys := rng.Keys(5000, 16)
	for _, k := range keys {
		require.NoError(t, f.Add(k))
	}

	probes := rng.DisjointKeys(keys, 10000, 16)
	assert.Less(t, testutil.CountHits(f.Contains, probes), 20)
}

func TestMillionCapacityScenario(t *testing.T) {
	f, err := NewString(0.001, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 10, f.HashFunctionCount())

	require.NoError(t, f.Add("test"))
	assert.True(t, f.Contains("test"))
	assert.False(t, f.Contains("not-inserted-xyz"))
}

func TestAddIsIdempotent(t *testing.T) {
	f, err := NewString(0.01, 100)
	require.NoError(t, err)

	require.NoError(t, f.Add("k"))
	before := f.Bitmap().Clone()
	require.NoError(t, f.Add("k"))
	assert.True(t, before.Equal(f.Bitmap()))
	assert.LessOrEqual(t, f.Bitmap().Count(), f.HashFunctionCount())
}

func TestHashPairReuse(t *testing.T) {
	f, err := NewString(0.01, 100)
	require.NoError(t, err)
	g, err := NewString(0.01, 100)
	require.NoError(t, err)

	hp := f.HashOf("shared")
	assert.Equal(t, hp, g.HashOf("shared"))

	require.NoError(t, f.AddHash(hp))
	require.NoError(t, g.AddHash(hp))
	assert.True(t, f.Contains("shared"))
	assert.True(t, g.ContainsHash(hp))
}

func TestIndexSignFolding(t *testing.T) {
	t.Run("negative remainder is negated", func(t *testing.T) {
		f, err := NewWithParameters(10, 3, constHash("a", -7), constHash("b", 1))
		require.NoError(t, err)
		require.NoError(t, f.Add("x"))

		// -7, -6, -5 fold to 7, 6, 5 rather than 3, 4, 5.
		assert.Equal(t, []uint32{5, 6, 7}, f.Bitmap().Positions().ToArray())
	})

	t.Run("sum wraps in 32 bits", func(t *testing.T) {
		f, err := NewWithParameters(1000, 2, constHash("a", math.MaxInt32), constHash("b", 1))
		require.NoError(t, err)
		require.NoError(t, f.Add("x"))

		// MaxInt32 % 1000 = 647; MaxInt32+1 wraps to MinInt32, % 1000 = -648.
		assert.Equal(t, []uint32{647, 648}, f.Bitmap().Positions().ToArray())
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rng := testutil.NewRNG(3)
	keys := rng.Keys(2000, 10)

	for _, enc := range []codec.Strategy{codec.Accelerated, codec.Fallback} {
		for _, dec := range []codec.Strategy{codec.Accelerated, codec.Fallback} {
			f, err := NewString(0.01, 2000, WithStrategy(enc))
			require.NoError(t, err)
			for _, k := range keys {
				require.NoError(t, f.Add(k))
			}

			var buf bytes.Buffer
			n, err := f.Save(&buf)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)
			assert.Equal(t, f.StreamLength(), n)

			g, err := NewString(0.001, 10, WithStrategy(dec))
			require.NoError(t, err)
			require.NoError(t, g.Load(&buf))

			assert.Equal(t, f.BitCount(), g.BitCount())
			assert.Equal(t, f.HashFunctionCount(), g.HashFunctionCount())
			assert.True(t, f.Bitmap().Equal(g.Bitmap()))
			for _, k := range keys {
				require.True(t, g.Contains(k))
			}

			// The loaded shape no longer matches the design target.
			assert.Zero(t, g.Parameters().ErrorRate)
			assert.Equal(t, f.BitCount(), g.Parameters().BitCount)
		}
	}
}

func TestSaveStrategiesAgree(t *testing.T) {
	rng := testutil.NewRNG(4)
	fast, err := NewString(0.01, 500)
	require.NoError(t, err)
	slow, err := NewString(0.01, 500, WithStrategy(codec.Fallback))
	require.NoError(t, err)

	for _, k := range rng.Keys(300, 8) {
		require.NoError(t, fast.Add(k))
		require.NoError(t, slow.Add(k))
	}

	var a, b bytes.Buffer
	_, err = fast.Save(&a)
	require.NoError(t, err)
	_, err = slow.Save(&b)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestLoadLegacyStream(t *testing.T) {
	rng := testutil.NewRNG(5)
	keys := rng.Keys(1000, 10)

	f, err := NewString(0.001, 1000)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, f.Add(k))
	}

	var buf bytes.Buffer
	_, err = codec.EncodeLegacy(&buf, f.Bitmap())
	require.NoError(t, err)
	stream := buf.Bytes()

	for _, s := range []codec.Strategy{codec.Accelerated, codec.Fallback} {
		g, err := NewString(0.001, 1000, WithStrategy(s))
		require.NoError(t, err)
		require.NoError(t, g.Load(bytes.NewReader(stream)))

		assert.True(t, f.Bitmap().Equal(g.Bitmap()), s.String())
		assert.Equal(t, f.Parameters(), g.Parameters())
		for _, k := range keys {
			require.True(t, g.Contains(k))
		}
	}
}

func TestLoadLegacyRejected(t *testing.T) {
	f, err := NewString(0.01, 100)
	require.NoError(t, err)
	require.NoError(t, f.Add("k"))

	var buf bytes.Buffer
	_, err = codec.EncodeLegacy(&buf, f.Bitmap())
	require.NoError(t, err)

	g, err := NewString(0.01, 100, WithLegacyMode(codec.LegacyReject))
	require.NoError(t, err)
	require.ErrorIs(t, g.Load(&buf), codec.ErrLegacyFormatRejected)
	assert.False(t, g.Contains("k"))
}

func TestLoadFailureLeavesFilterUnchanged(t *testing.T) {
	f, err := NewString(0.01, 500)
	require.NoError(t, err)
	for _, k := range testutil.NewRNG(6).Keys(100, 8) {
		require.NoError(t, f.Add(k))
	}
	before := f.Bitmap().Clone()
	params := f.Parameters()

	other, err := NewString(0.001, 5000)
	require.NoError(t, err)
	require.NoError(t, other.Add("x"))
	var good bytes.Buffer
	_, err = other.Save(&good)
	require.NoError(t, err)

	tests := []struct {
		name   string
		stream []byte
		target error
	}{
		{"unsupported version", []byte{0xff, 0xff, 0xff, 0xf9, 0, 0, 0, 1}, codec.ErrUnsupportedVersion},
		{"truncated header", good.Bytes()[:9], codec.ErrTruncated},
		{"truncated words", good.Bytes()[:good.Len()-1], codec.ErrTruncated},
		{"corrupt header", []byte{0xff, 0xff, 0xff, 0xfe, 0, 0, 0, 0, 0, 0, 0, 8, 0, 0, 0, 0}, codec.ErrCorruptHeader},
		{"empty", nil, codec.ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Load(bytes.NewReader(tt.stream))
			require.ErrorIs(t, err, tt.target)

			assert.True(t, before.Equal(f.Bitmap()))
			assert.Equal(t, params, f.Parameters())
			assert.Equal(t, params.BitCount, f.BitCount())
			assert.Equal(t, params.HashFunctionCount, f.HashFunctionCount())
		})
	}
}

func TestRead(t *testing.T) {
	f, err := NewString(0.01, 300)
	require.NoError(t, err)
	require.NoError(t, f.Add("alpha"))

	var buf bytes.Buffer
	_, err = f.Save(&buf)
	require.NoError(t, err)

	g, err := Read[string](&buf, hashfn.Murmur3{}, hashfn.FNV32a{})
	require.NoError(t, err)
	assert.True(t, g.Contains("alpha"))
	assert.Equal(t, f.BitCount(), g.BitCount())

	var legacy bytes.Buffer
	_, err = codec.EncodeLegacy(&legacy, f.Bitmap())
	require.NoError(t, err)
	_, err = Read[string](&legacy, hashfn.Murmur3{}, hashfn.FNV32a{})
	require.ErrorIs(t, err, codec.ErrMissingLegacyParameters)

	_, err = Read[string](&legacy, nil, hashfn.FNV32a{})
	require.ErrorIs(t, err, ErrNilHashFunction)
}

func TestConstructorErrors(t *testing.T) {
	_, err := New[string](0.01, 100, nil, hashfn.FNV32a{})
	require.ErrorIs(t, err, ErrNilHashFunction)

	_, err = NewWithParameters[string](0, 3, hashfn.Murmur3{}, hashfn.FNV32a{})
	require.ErrorIs(t, err, ErrParameterInvariant)

	_, err = NewWithParameters[string](100, 0, hashfn.Murmur3{}, hashfn.FNV32a{})
	require.ErrorIs(t, err, ErrParameterInvariant)

	_, err = NewString(1.5, 100)
	require.ErrorIs(t, err, ErrInvalidErrorRate)
}

func TestString(t *testing.T) {
	f, err := NewWithParameters[string](8*1024*10, 3, hashfn.Murmur3{}, hashfn.FNV32a{})
	require.NoError(t, err)
	assert.Equal(t, "BloomFilter-[10 KB, 3 hashFunctions (murmur3, fnv32a)]", f.String())

	first, second := f.HashFunctions()
	assert.Equal(t, "murmur3", first)
	assert.Equal(t, "fnv32a", second)
}

func TestFillRatio(t *testing.T) {
	f, err := NewString(0.01, 1000)
	require.NoError(t, err)
	assert.Zero(t, f.FillRatio())
	assert.Zero(t, f.EstimatedFalsePositiveRate())

	for _, k := range testutil.NewRNG(7).Keys(1000, 8) {
		require.NoError(t, f.Add(k))
	}
	// Filled to capacity the estimate lands near the design rate.
	assert.InDelta(t, 0.5, f.FillRatio(), 0.05)
	assert.InDelta(t, 0.01, f.EstimatedFalsePositiveRate(), 0.005)
}

func TestUnionDiffClone(t *testing.T) {
	a, err := NewString(0.01, 100)
	require.NoError(t, err)
	b, err := NewString(0.01, 100)
	require.NoError(t, err)

	require.NoError(t, a.Add("left"))
	require.NoError(t, b.Add("right"))

	diff, err := a.Diff(b)
	require.NoError(t, err)
	assert.False(t, diff.IsEmpty())

	c := a.Clone()
	require.NoError(t, c.Union(b))
	assert.True(t, c.Contains("left"))
	assert.True(t, c.Contains("right"))
	assert.False(t, a.Contains("right"))

	diff, err = c.Diff(c.Clone())
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())

	bigger, err := NewString(0.001, 100)
	require.NoError(t, err)
	require.ErrorIs(t, a.Union(bigger), ErrIncompatibleFilters)
	_, err = a.Diff(bigger)
	require.ErrorIs(t, err, ErrIncompatibleFilters)

	otherHashes, err := New[string](0.01, 100, hashfn.XXH3{}, hashfn.FNV32a{})
	require.NoError(t, err)
	require.ErrorIs(t, a.Union(otherHashes), ErrIncompatibleFilters)
}

func TestGenericKeys(t *testing.T) {
	first := hashfn.New("lo", func(v uint64) int32 { return int32(v * 0x9E3779B1) })
	second := hashfn.New("hi", func(v uint64) int32 { return int32((v * 0xC2B2AE3D27D4EB4F) >> 32) })

	f, err := New[uint64](0.01, 1000, first, second)
	require.NoError(t, err)
	for i := uint64(0); i < 1000; i++ {
		require.NoError(t, f.Add(i))
	}
	for i := uint64(0); i < 1000; i++ {
		require.True(t, f.Contains(i))
	}
}

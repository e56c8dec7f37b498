package hashfn

import (
	"hash/fnv"
	"unicode/utf16"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	"github.com/hupe1980/bloomfilter/internal/hash"
)

// JavaString hashes the UTF-16 code units of s as h = 31*h + c.
// It matches java.lang.String#hashCode.
type JavaString struct{}

func (JavaString) HashCode(s string) int32 {
	var h int32
	for _, r := range s {
		if r < 0x10000 {
			h = 31*h + int32(r)
			continue
		}
		hi, lo := utf16.EncodeRune(r)
		h = 31*h + hi
		h = 31*h + lo
	}
	return h
}

func (JavaString) Name() string { return NameJavaString }

// FNV32a is the 32-bit FNV-1a hash.
type FNV32a struct{}

func (FNV32a) HashCode(s string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int32(h.Sum32()) //nolint:gosec // reinterpretation
}

func (FNV32a) Name() string { return NameFNV32a }

// Murmur3 is MurmurHash3 (x86, 32 bit) with seed 0.
type Murmur3 struct{}

func (Murmur3) HashCode(s string) int32 {
	return int32(murmur3.Sum32([]byte(s))) //nolint:gosec // reinterpretation
}

func (Murmur3) Name() string { return NameMurmur3 }

// XXH3 returns the low 32 bits of the 64-bit XXH3 hash.
type XXH3 struct{}

func (XXH3) HashCode(s string) int32 {
	return int32(uint32(xxh3.HashString(s))) //nolint:gosec // truncation
}

func (XXH3) Name() string { return NameXXH3 }

// CRC32C is the Castagnoli CRC of the UTF-8 bytes.
type CRC32C struct{}

func (CRC32C) HashCode(s string) int32 {
	return int32(hash.CRC32C([]byte(s))) //nolint:gosec // reinterpretation
}

func (CRC32C) Name() string { return NameCRC32C }

// Package hashfn defines the hash-function capability consumed by the Bloom
// filter and ships a handful of string hash functions.
//
// A filter takes two HashFunction values at construction. Each maps a key to a
// signed 32-bit code. The filter never looks functions up globally; ByName only
// exists so stored snapshots can name the functions they were built with.
//
// Built-in functions:
//
//   - JavaString: 31*h+c over UTF-16 code units
//   - FNV32a: FNV-1a, 32 bit
//   - Murmur3: MurmurHash3 x86 32 bit, seed 0
//   - XXH3: low 32 bits of XXH3-64
//   - CRC32C: Castagnoli CRC
package hashfn

// Package hash provides CRC32-Castagnoli checksums.
//
// CRC32C protects stored filter images against accidental corruption. It is
// also offered as one of the built-in key hash functions. It is not a
// cryptographic hash and must not be used for tamper detection.
//
// For one-shot checksums:
//
//	sum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
package hash

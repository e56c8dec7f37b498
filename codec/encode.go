package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/hupe1980/bloomfilter/bitarray"
	"github.com/hupe1980/bloomfilter/internal/conv"
)

// Image is a bit array together with the filter metadata stored beside it.
type Image struct {
	Bits              *bitarray.BitArray
	HashFunctionCount int
	BitCount          int
}

// header builds the version 2 header for img.
func (img Image) header() (V2Header, error) {
	k, err := conv.IntToInt32(img.HashFunctionCount)
	if err != nil {
		return V2Header{}, fmt.Errorf("codec: hash function count: %w", err)
	}
	m, err := conv.IntToInt32(img.BitCount)
	if err != nil {
		return V2Header{}, fmt.Errorf("codec: bit count: %w", err)
	}
	l, err := conv.IntToInt32(img.Bits.Length())
	if err != nil {
		return V2Header{}, fmt.Errorf("codec: bit length: %w", err)
	}
	h := V2Header{HashFunctionCount: k, BitCount: m, MeaningfulBitLength: l}
	if err := h.Validate(); err != nil {
		return V2Header{}, err
	}
	return h, nil
}

// StreamLength returns the number of bytes Encode writes for ba.
func StreamLength(ba *bitarray.BitArray) int64 {
	return HeaderLength + 8*int64(bitarray.WordLen(ba.Length()))
}

// Encode writes img as a version 2 stream and returns the number of bytes written.
func Encode(w io.Writer, img Image, s Strategy) (int64, error) {
	if img.Bits == nil {
		return 0, fmt.Errorf("%w: nil bit array", ErrCorruptHeader)
	}
	h, err := img.header()
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 0, HeaderLength+8*h.WordCount())
	buf = AppendHeader(buf, h)

	switch s {
	case Accelerated:
		buf = appendWordsAccelerated(buf, img.Bits, h.WordCount())
	case Fallback:
		buf = appendWordsFallback(buf, img.Bits, h.BitLength())
	default:
		return 0, fmt.Errorf("codec: unknown strategy %s", s)
	}

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("codec: write: %w", err)
	}
	return int64(n), nil
}

// EncodeLegacy writes ba in the header-less legacy framing: the bit length
// followed by every word of the array.
func EncodeLegacy(w io.Writer, ba *bitarray.BitArray) (int64, error) {
	l, err := conv.IntToInt32(ba.Length())
	if err != nil {
		return 0, fmt.Errorf("codec: bit length: %w", err)
	}
	words := bitarray.WordLen(ba.Length())

	buf := make([]byte, 0, markerLength+8*words)
	buf = AppendHeader(buf, LegacyHeader{Length: l})
	buf = appendWordsAccelerated(buf, ba, words)

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("codec: write: %w", err)
	}
	return int64(n), nil
}

func appendWordsAccelerated(dst []byte, ba *bitarray.BitArray, count int) []byte {
	for _, word := range ba.Words()[:count] {
		dst = binary.BigEndian.AppendUint64(dst, word)
	}
	return dst
}

// appendWordsFallback shifts bits 0..length-1 into an accumulator MSB first,
// flushing the bit-reversed accumulator every 64 bits. The final partial
// group is left-padded with zeros.
func appendWordsFallback(dst []byte, ba *bitarray.BitArray, length int) []byte {
	var (
		acc   uint64
		count int
	)
	for i := 0; i < length; i++ {
		acc <<= 1
		if ba.Get(i) {
			acc |= 1
		}
		count++
		if count == 64 {
			dst = binary.BigEndian.AppendUint64(dst, bits.Reverse64(acc))
			acc, count = 0, 0
		}
	}
	if count > 0 {
		acc <<= 64 - count
		dst = binary.BigEndian.AppendUint64(dst, bits.Reverse64(acc))
	}
	return dst
}

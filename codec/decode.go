package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/hupe1980/bloomfilter/bitarray"
)

// DecodeOptions configures Decode.
type DecodeOptions struct {
	Strategy Strategy
	Legacy   LegacyMode

	// LegacyBitCount and LegacyHashFunctionCount describe the filter a
	// header-less stream is loaded into. They are ignored for version 2.
	LegacyBitCount          int
	LegacyHashFunctionCount int
}

// Decode reads one image from r. The returned image is freshly allocated; on
// error it is the zero Image.
//
// Version 2 streams must carry exactly the declared number of words; bytes
// after them are left unread. Legacy streams are read until end of stream.
func Decode(r io.Reader, opts DecodeOptions) (Image, Header, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Image{}, nil, err
	}

	var img Image
	switch h := h.(type) {
	case V2Header:
		img, err = decodeV2(r, h, opts.Strategy)
	case LegacyHeader:
		img, err = decodeLegacy(r, h, opts)
	}
	if err != nil {
		return Image{}, h, err
	}
	return img, h, nil
}

func decodeV2(r io.Reader, h V2Header, s Strategy) (Image, error) {
	if err := h.Validate(); err != nil {
		return Image{}, err
	}

	words, err := readWords(r, h.WordCount())
	if err != nil {
		return Image{}, err
	}

	ba, err := unpack(s, int(h.BitCount), words, h.BitLength())
	if err != nil {
		return Image{}, err
	}
	return Image{
		Bits:              ba,
		HashFunctionCount: int(h.HashFunctionCount),
		BitCount:          int(h.BitCount),
	}, nil
}

func decodeLegacy(r io.Reader, h LegacyHeader, opts DecodeOptions) (Image, error) {
	if opts.Legacy == LegacyReject {
		return Image{}, ErrLegacyFormatRejected
	}
	if opts.LegacyBitCount < 1 || opts.LegacyHashFunctionCount < 1 {
		return Image{}, ErrMissingLegacyParameters
	}

	m := opts.LegacyBitCount
	keep := bitarray.WordLen(m)
	words := make([]uint64, 0, min(h.BitLength()/64+1, keep))

	var buf [8]byte
	for {
		_, err := io.ReadFull(r, buf[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return Image{}, fmt.Errorf("codec: read legacy words: %w", err)
		}
		if len(words) < keep {
			words = append(words, binary.BigEndian.Uint64(buf[:]))
		}
	}

	ba, err := unpack(opts.Strategy, m, words, min(h.BitLength(), m))
	if err != nil {
		return Image{}, err
	}
	return Image{
		Bits:              ba,
		HashFunctionCount: opts.LegacyHashFunctionCount,
		BitCount:          m,
	}, nil
}

// readChunkWords bounds each read, so the buffer grows with the bytes that
// actually arrive rather than with the declared word count.
const readChunkWords = 8192

// readWords reads exactly count big-endian words.
func readWords(r io.Reader, count int) ([]uint64, error) {
	words := make([]uint64, 0, min(count, readChunkWords))
	var chunk [8 * readChunkWords]byte

	for len(words) < count {
		want := 8 * min(count-len(words), readChunkWords)
		n, err := io.ReadFull(r, chunk[:want])
		if err != nil {
			return nil, readError("words", 8*count, 8*len(words)+n, err)
		}
		for i := 0; i < want; i += 8 {
			words = append(words, binary.BigEndian.Uint64(chunk[i:]))
		}
	}
	return words, nil
}

// unpack builds an n-bit array from words, keeping bits below limit.
func unpack(s Strategy, n int, words []uint64, limit int) (*bitarray.BitArray, error) {
	switch s {
	case Accelerated:
		ba := bitarray.FromWords(n, words)
		ba.ClearFrom(limit)
		return ba, nil
	case Fallback:
		return unpackFallback(n, words, limit)
	default:
		return nil, fmt.Errorf("codec: unknown strategy %s", s)
	}
}

// unpackFallback reverses each word and sets bits in logical order until limit.
func unpackFallback(n int, words []uint64, limit int) (*bitarray.BitArray, error) {
	ba := bitarray.New(n)
	p := 0
	for _, word := range words {
		r := bits.Reverse64(word)
		for j := 63; j >= 0; j-- {
			if p >= limit {
				return ba, nil
			}
			if (r>>j)&1 == 1 {
				if err := ba.Set(p); err != nil {
					return nil, err
				}
			}
			p++
		}
	}
	return ba, nil
}

package bitarray

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
)

var (
	// ErrIndexOutOfRange is returned when a bit index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("bitarray: index out of range")

	// ErrSizeMismatch is returned when two arrays or a backing buffer disagree in size.
	ErrSizeMismatch = errors.New("bitarray: size mismatch")
)

// IndexError reports an out-of-range bit index.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("bitarray: bit index < 0: %d", e.Index)
	}
	return fmt.Sprintf("bitarray: bit index %d >= max bits %d", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// BitArray is a fixed-size packed bit array.
type BitArray struct {
	n   int
	buf []byte
}

// ByteLen returns the backing storage size in bytes for n bits: 8*ceil(n/64).
func ByteLen(n int) int {
	return 8 * WordLen(n)
}

// WordLen returns the number of 64-bit words needed for n bits.
func WordLen(n int) int {
	return (n + 63) / 64
}

// New returns a zeroed BitArray holding n bits. It panics if n is negative.
func New(n int) *BitArray {
	if n < 0 {
		panic(fmt.Sprintf("bitarray: negative size %d", n))
	}
	return &BitArray{n: n, buf: make([]byte, ByteLen(n))}
}

// FromBytes builds an n-bit array from a copy of b, which must be exactly
// ByteLen(n) bytes long in the packed layout. Bits at or above n are cleared.
func FromBytes(n int, b []byte) (*BitArray, error) {
	if n < 0 || len(b) != ByteLen(n) {
		return nil, fmt.Errorf("%w: %d bytes for %d bits", ErrSizeMismatch, len(b), n)
	}
	ba := &BitArray{n: n, buf: bytes.Clone(b)}
	ba.ClearFrom(n)
	return ba, nil
}

// FromWords builds an n-bit array from codec words, where bit j of words[w]
// is logical bit 64*w+j. Words beyond the array's capacity and bits at or
// above n are discarded.
func FromWords(n int, words []uint64) *BitArray {
	ba := New(n)
	wc := min(len(words), WordLen(n))
	for w := 0; w < wc; w++ {
		binary.BigEndian.PutUint64(ba.buf[8*w:], words[w])
	}
	ba.ClearFrom(n)
	return ba
}

// offset returns the byte position and mask of logical bit i.
func offset(i int) (int, byte) {
	p := (i>>6)<<3 + (7 - ((i >> 3) & 7))
	return p, byte(1) << (i & 7)
}

// Get reports whether bit i is set. Indices outside the backing storage
// report false.
func (ba *BitArray) Get(i int) bool {
	if i < 0 || i >= len(ba.buf)*8 {
		return false
	}
	p, mask := offset(i)
	return ba.buf[p]&mask != 0
}

// Set sets bit i. It returns an *IndexError if i is outside [0, Len()).
func (ba *BitArray) Set(i int) error {
	if i < 0 || i >= ba.n {
		return &IndexError{Index: i, Len: ba.n}
	}
	p, mask := offset(i)
	ba.buf[p] |= mask
	return nil
}

// ClearFrom clears every bit at index i and above.
func (ba *BitArray) ClearFrom(i int) {
	if i < 0 {
		i = 0
	}
	capacity := len(ba.buf) * 8
	if i >= capacity {
		return
	}

	// Finish the partial word bit by bit, then zero whole groups.
	for ; i < capacity && i&63 != 0; i++ {
		p, mask := offset(i)
		ba.buf[p] &^= mask
	}
	clear(ba.buf[i>>3:])
}

// Len returns the logical number of bits.
func (ba *BitArray) Len() int {
	return ba.n
}

// ByteLength returns the size of the backing storage in bytes.
func (ba *BitArray) ByteLength() int {
	return len(ba.buf)
}

// Capacity returns the total addressable bits of the backing storage,
// 8*ByteLength(). It is Len() rounded up to a multiple of 64.
func (ba *BitArray) Capacity() int {
	return len(ba.buf) * 8
}

// Bytes returns the backing storage. The slice aliases the array.
func (ba *BitArray) Bytes() []byte {
	return ba.buf
}

// Words converts the backing storage into codec words in one pass.
func (ba *BitArray) Words() []uint64 {
	words := make([]uint64, len(ba.buf)/8)
	for w := range words {
		words[w] = binary.BigEndian.Uint64(ba.buf[8*w:])
	}
	return words
}

// Length returns the meaningful bit length: the index of the highest set bit
// plus one, or zero if no bit is set.
func (ba *BitArray) Length() int {
	for w := len(ba.buf)/8 - 1; w >= 0; w-- {
		word := binary.BigEndian.Uint64(ba.buf[8*w:])
		if word != 0 {
			return 64*w + bits.Len64(word)
		}
	}
	return 0
}

// Count returns the number of set bits.
func (ba *BitArray) Count() int {
	return int(ba.BitSet().Count())
}

// BitSet exports the array as a bits-and-blooms bitset of Capacity() bits.
// Padding bits at or above Len() are always clear.
func (ba *BitArray) BitSet() *bitset.BitSet {
	return bitset.From(ba.Words())
}

// Positions returns the indices of all set bits.
func (ba *BitArray) Positions() *roaring.Bitmap {
	bm := roaring.New()
	for w := 0; w < len(ba.buf)/8; w++ {
		word := binary.BigEndian.Uint64(ba.buf[8*w:])
		for word != 0 {
			j := bits.TrailingZeros64(word)
			bm.Add(uint32(64*w + j))
			word &= word - 1
		}
	}
	return bm
}

// FromPositions builds an n-bit array with the bits listed in bm set.
func FromPositions(n int, bm *roaring.Bitmap) (*BitArray, error) {
	ba := New(n)
	it := bm.Iterator()
	for it.HasNext() {
		if err := ba.Set(int(it.Next())); err != nil {
			return nil, err
		}
	}
	return ba, nil
}

// Equal reports whether both arrays have the same length and bits.
func (ba *BitArray) Equal(other *BitArray) bool {
	if ba == nil || other == nil {
		return ba == other
	}
	return ba.n == other.n && bytes.Equal(ba.buf, other.buf)
}

// Clone returns a deep copy.
func (ba *BitArray) Clone() *BitArray {
	buf := make([]byte, len(ba.buf))
	copy(buf, ba.buf)
	return &BitArray{n: ba.n, buf: buf}
}

// Union sets every bit that is set in other. Both arrays must have the same length.
func (ba *BitArray) Union(other *BitArray) error {
	if ba.n != other.n {
		return fmt.Errorf("%w: %d bits vs %d bits", ErrSizeMismatch, ba.n, other.n)
	}
	for i := range ba.buf {
		ba.buf[i] |= other.buf[i]
	}
	return nil
}

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Version2 is the only versioned format. It is written as -2.
	Version2 = 2

	// HeaderLength is the size of a version 2 header in bytes.
	HeaderLength = 16

	markerLength = 4
)

// v2Marker is the on-wire value of versionOrLength for version 2 streams.
var v2Marker int32 = -Version2

// Header is the decoded framing of a stream: either LegacyHeader or V2Header.
type Header interface {
	// Version returns 1 for legacy streams and 2 for versioned streams.
	Version() int
	// BitLength returns the meaningful bit length declared by the stream.
	BitLength() int
	isHeader()
}

// LegacyHeader frames a header-less stream whose first int32 is the bit length.
type LegacyHeader struct {
	Length int32
}

func (LegacyHeader) Version() int     { return 1 }
func (h LegacyHeader) BitLength() int { return int(h.Length) }
func (LegacyHeader) isHeader()        {}

// V2Header frames a version 2 stream.
type V2Header struct {
	HashFunctionCount   int32
	BitCount            int32
	MeaningfulBitLength int32
}

func (V2Header) Version() int     { return Version2 }
func (h V2Header) BitLength() int { return int(h.MeaningfulBitLength) }
func (V2Header) isHeader()        {}

// WordCount returns the number of words that follow the header.
func (h V2Header) WordCount() int {
	return (int(h.MeaningfulBitLength) + 63) / 64
}

// Validate checks the header fields against each other.
func (h V2Header) Validate() error {
	if h.HashFunctionCount < 1 {
		return fmt.Errorf("%w: hash function count %d", ErrCorruptHeader, h.HashFunctionCount)
	}
	if h.BitCount < 1 {
		return fmt.Errorf("%w: bit count %d", ErrCorruptHeader, h.BitCount)
	}
	if h.MeaningfulBitLength < 0 || h.MeaningfulBitLength > h.BitCount {
		return fmt.Errorf("%w: bit length %d outside [0, %d]", ErrCorruptHeader, h.MeaningfulBitLength, h.BitCount)
	}
	return nil
}

// AppendHeader appends the wire form of h to dst.
// It panics if h is nil or not one of the two header variants.
func AppendHeader(dst []byte, h Header) []byte {
	switch h := h.(type) {
	case V2Header:
		dst = binary.BigEndian.AppendUint32(dst, uint32(v2Marker))              //nolint:gosec // sign marker
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.HashFunctionCount))   //nolint:gosec
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.BitCount))            //nolint:gosec
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.MeaningfulBitLength)) //nolint:gosec
	case LegacyHeader:
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.Length)) //nolint:gosec
	default:
		panic(fmt.Sprintf("codec: cannot append header %T", h))
	}
	return dst
}

// WriteHeader writes the wire form of h.
func WriteHeader(w io.Writer, h Header) (int, error) {
	if h == nil {
		return 0, ErrNilHeader
	}
	return w.Write(AppendHeader(make([]byte, 0, HeaderLength), h))
}

// ReadHeader reads the version marker and, for version 2, the remaining
// header fields. A V2Header is returned unvalidated.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderLength]byte

	n, err := io.ReadFull(r, buf[:markerLength])
	if err != nil {
		return nil, readError("version marker", markerLength, n, err)
	}

	marker := int32(binary.BigEndian.Uint32(buf[:markerLength])) //nolint:gosec // sign marker
	if marker >= 0 {
		return LegacyHeader{Length: marker}, nil
	}

	if version := -int(marker); version != Version2 {
		return nil, &UnsupportedVersionError{Version: version}
	}

	n, err = io.ReadFull(r, buf[markerLength:])
	if err != nil {
		return nil, readError("header", HeaderLength-markerLength, n, err)
	}

	return V2Header{
		HashFunctionCount:   int32(binary.BigEndian.Uint32(buf[4:8])),   //nolint:gosec
		BitCount:            int32(binary.BigEndian.Uint32(buf[8:12])),  //nolint:gosec
		MeaningfulBitLength: int32(binary.BigEndian.Uint32(buf[12:16])), //nolint:gosec
	}, nil
}

// readError maps short reads to *TruncatedError and passes other errors through.
func readError(section string, want, got int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &TruncatedError{Section: section, Want: want, Got: got}
	}
	return fmt.Errorf("codec: read %s: %w", section, err)
}

package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/bloomfilter/codec"
	ihash "github.com/hupe1980/bloomfilter/internal/hash"
)

const (
	// Magic identifies an envelope (ASCII "BLFE").
	Magic = "BLFE"
	// EnvelopeVersion is the current envelope format version.
	EnvelopeVersion = 1
	// EnvelopeHeaderSize is the fixed size of the envelope header in bytes.
	EnvelopeHeaderSize = 18

	// maxRawLength bounds the image size: a header plus ceil((2^31-1)/64) words.
	maxRawLength = codec.HeaderLength + 8*((math.MaxInt32+63)/64)
	// maxPayloadLength leaves room for incompressible data.
	maxPayloadLength = maxRawLength + maxRawLength/64 + 1024
)

var (
	// ErrInvalidEnvelope is returned for data that is not a well-formed envelope.
	ErrInvalidEnvelope = errors.New("persistence: invalid envelope")

	// ErrUnsupportedEnvelopeVersion is returned for envelopes newer than this reader.
	ErrUnsupportedEnvelopeVersion = errors.New("persistence: unsupported envelope version")
)

// EnvelopeHeader describes the payload that follows it.
type EnvelopeHeader struct {
	Version       uint8
	Compression   Compression
	RawLength     uint32
	PayloadLength uint32
	Checksum      uint32
}

// Size returns the total envelope size.
func (h EnvelopeHeader) Size() int64 {
	return EnvelopeHeaderSize + int64(h.PayloadLength)
}

// AppendBinary appends the wire form of h to dst.
func (h EnvelopeHeader) AppendBinary(dst []byte) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, h.Version, byte(h.Compression))
	dst = binary.BigEndian.AppendUint32(dst, h.RawLength)
	dst = binary.BigEndian.AppendUint32(dst, h.PayloadLength)
	dst = binary.BigEndian.AppendUint32(dst, h.Checksum)
	return dst
}

// ParseEnvelopeHeader decodes the first EnvelopeHeaderSize bytes of b.
func ParseEnvelopeHeader(b []byte) (EnvelopeHeader, error) {
	r := newSliceReader(b)

	magic, err := r.bytes(len(Magic))
	if err != nil {
		return EnvelopeHeader{}, err
	}
	if string(magic) != Magic {
		return EnvelopeHeader{}, fmt.Errorf("%w: bad magic %q", ErrInvalidEnvelope, magic)
	}

	var h EnvelopeHeader
	if h.Version, err = r.uint8(); err != nil {
		return EnvelopeHeader{}, err
	}
	if h.Version != EnvelopeVersion {
		return EnvelopeHeader{}, fmt.Errorf("%w: %d", ErrUnsupportedEnvelopeVersion, h.Version)
	}

	c, err := r.uint8()
	if err != nil {
		return EnvelopeHeader{}, err
	}
	h.Compression = Compression(c)
	if h.Compression > CompressionZSTD {
		return EnvelopeHeader{}, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if h.RawLength, err = r.uint32(); err != nil {
		return EnvelopeHeader{}, err
	}
	if h.PayloadLength, err = r.uint32(); err != nil {
		return EnvelopeHeader{}, err
	}
	if h.Checksum, err = r.uint32(); err != nil {
		return EnvelopeHeader{}, err
	}
	if h.RawLength > maxRawLength || h.PayloadLength > maxPayloadLength {
		return EnvelopeHeader{}, fmt.Errorf("%w: lengths %d/%d too large", ErrInvalidEnvelope, h.RawLength, h.PayloadLength)
	}
	if h.Compression == CompressionNone && h.PayloadLength != h.RawLength {
		return EnvelopeHeader{}, fmt.Errorf("%w: payload %d bytes, raw length %d", ErrInvalidEnvelope, h.PayloadLength, h.RawLength)
	}
	return h, nil
}

// Seal wraps a raw filter image into an envelope.
func Seal(image []byte, c Compression) ([]byte, EnvelopeHeader, error) {
	if len(image) > maxRawLength {
		return nil, EnvelopeHeader{}, fmt.Errorf("%w: image of %d bytes too large", ErrInvalidEnvelope, len(image))
	}

	payload, used, err := compress(image, c)
	if err != nil {
		return nil, EnvelopeHeader{}, err
	}

	h := EnvelopeHeader{
		Version:       EnvelopeVersion,
		Compression:   used,
		RawLength:     uint32(len(image)),   //nolint:gosec // bounded by maxRawLength
		PayloadLength: uint32(len(payload)), //nolint:gosec // compressed output of a bounded input
		Checksum:      ihash.CRC32C(image),
	}

	out := make([]byte, 0, EnvelopeHeaderSize+len(payload))
	out = h.AppendBinary(out)
	out = append(out, payload...)
	return out, h, nil
}

// Unseal verifies an envelope and returns the raw image. Bytes after the
// payload are ignored.
func Unseal(envelope []byte) ([]byte, EnvelopeHeader, error) {
	h, err := ParseEnvelopeHeader(envelope)
	if err != nil {
		return nil, EnvelopeHeader{}, err
	}

	r := newSliceReader(envelope[EnvelopeHeaderSize:])
	payload, err := r.bytes(int(h.PayloadLength))
	if err != nil {
		return nil, h, err
	}

	image, err := decompress(payload, h.Compression, int(h.RawLength))
	if err != nil {
		return nil, h, err
	}
	if err := verify(h.Checksum, ihash.CRC32C(image)); err != nil {
		return nil, h, err
	}
	return image, h, nil
}

// WriteEnvelope seals image and writes it to w.
func WriteEnvelope(w io.Writer, image []byte, c Compression) (EnvelopeHeader, error) {
	data, h, err := Seal(image, c)
	if err != nil {
		return EnvelopeHeader{}, err
	}
	if _, err := w.Write(data); err != nil {
		return EnvelopeHeader{}, fmt.Errorf("persistence: write envelope: %w", err)
	}
	return h, nil
}

// ReadEnvelope reads one envelope from r and returns the verified raw image.
func ReadEnvelope(r io.Reader) ([]byte, EnvelopeHeader, error) {
	hdr := make([]byte, EnvelopeHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, EnvelopeHeader{}, shortRead("header", err)
	}
	h, err := ParseEnvelopeHeader(hdr)
	if err != nil {
		return nil, EnvelopeHeader{}, err
	}

	if h.Compression == CompressionNone {
		// Checksum while reading to avoid a second pass.
		cr := NewChecksumReader(r)
		image := make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(cr, image); err != nil {
			return nil, h, shortRead("payload", err)
		}
		if err := cr.Verify(h.Checksum); err != nil {
			return nil, h, err
		}
		return image, h, nil
	}

	payload := make([]byte, h.PayloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, h, shortRead("payload", err)
	}
	image, err := decompress(payload, h.Compression, int(h.RawLength))
	if err != nil {
		return nil, h, err
	}
	if err := verify(h.Checksum, ihash.CRC32C(image)); err != nil {
		return nil, h, err
	}
	return image, h, nil
}

func shortRead(section string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short %s", ErrInvalidEnvelope, section)
	}
	return fmt.Errorf("persistence: read %s: %w", section, err)
}

// sliceReader provides bounds-checked big-endian reads from a byte slice.
type sliceReader struct {
	b   []byte
	off int
}

func newSliceReader(b []byte) *sliceReader {
	return &sliceReader{b: b}
}

func (r *sliceReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("%w: out of bounds read (%d bytes at %d, len=%d)", ErrInvalidEnvelope, n, r.off, len(r.b))
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *sliceReader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sliceReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

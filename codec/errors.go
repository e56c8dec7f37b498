package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion is returned for a negative version marker other than -2.
	ErrUnsupportedVersion = errors.New("codec: unsupported format version")

	// ErrTruncated is returned when a version 2 stream ends early.
	ErrTruncated = errors.New("codec: truncated stream")

	// ErrNilHeader is returned when a nil Header is written.
	ErrNilHeader = errors.New("codec: nil header")

	// ErrCorruptHeader is returned when header fields are inconsistent.
	ErrCorruptHeader = errors.New("codec: corrupt header")

	// ErrLegacyFormatRejected is returned for header-less streams in LegacyReject mode.
	ErrLegacyFormatRejected = errors.New("codec: legacy format rejected")

	// ErrMissingLegacyParameters is returned when a legacy stream is decoded
	// without the bit count and hash function count it lacks.
	ErrMissingLegacyParameters = errors.New("codec: legacy stream needs bit count and hash function count")
)

// UnsupportedVersionError reports the version found on the wire.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("codec: unsupported version: %d", e.Version)
}

func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// TruncatedError reports how many bytes of a section were available.
type TruncatedError struct {
	Section string
	Want    int
	Got     int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("codec: truncated %s: want %d bytes, got %d", e.Section, e.Want, e.Got)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncated }

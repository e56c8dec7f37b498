package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the version of the manifest format.
const CurrentVersion = 1

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("manifest: incompatible manifest version")

	// ErrInvalidManifest is returned when a manifest is malformed.
	ErrInvalidManifest = errors.New("manifest: invalid manifest")
)

// Manifest describes one stored filter snapshot.
type Manifest struct {
	Version           int       `json:"version"`
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	HashFunctions     []string  `json:"hash_functions"`
	ErrorRate         float64   `json:"error_rate,omitempty"`
	Capacity          int       `json:"capacity,omitempty"`
	BitCount          int       `json:"bit_count"`
	HashFunctionCount int       `json:"hash_function_count"`
	ImageLength       int64     `json:"image_length"`
	Checksum          uint32    `json:"checksum"`
	Compression       string    `json:"compression"`
	CreatedAt         time.Time `json:"created_at"`
}

// New creates a manifest for a fresh snapshot of the named filter.
func New(name string) *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the manifest for structural consistency.
func (m *Manifest) Validate() error {
	if m.Version != CurrentVersion {
		return fmt.Errorf("%w: %d (expected %d)", ErrIncompatibleVersion, m.Version, CurrentVersion)
	}

	switch {
	case m.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidManifest)
	case m.ID == uuid.Nil:
		return fmt.Errorf("%w: missing snapshot id", ErrInvalidManifest)
	case len(m.HashFunctions) != 2:
		return fmt.Errorf("%w: want 2 hash functions, got %d", ErrInvalidManifest, len(m.HashFunctions))
	case m.BitCount < 1 || m.HashFunctionCount < 1:
		return fmt.Errorf("%w: bit count %d, hash function count %d", ErrInvalidManifest, m.BitCount, m.HashFunctionCount)
	case m.ImageLength < 0:
		return fmt.Errorf("%w: negative image length", ErrInvalidManifest)
	}

	return nil
}

// Marshal encodes m with c. The codec name is stored in front of the payload
// so Unmarshal can pick the right codec.
func Marshal(c Codec, m *Manifest) ([]byte, error) {
	if c == nil {
		c = Default
	}

	payload, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s marshal: %w", c.Name(), err)
	}

	out := make([]byte, 0, len(c.Name())+1+len(payload))
	out = append(out, c.Name()...)
	out = append(out, '\n')
	return append(out, payload...), nil
}

// Unmarshal decodes and validates a manifest written by Marshal.
func Unmarshal(data []byte) (*Manifest, error) {
	name, payload, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing codec name", ErrInvalidManifest)
	}

	c, err := ByName(string(name))
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := c.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("manifest: %s unmarshal: %w", c.Name(), err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

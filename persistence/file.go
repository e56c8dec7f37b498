package persistence

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hupe1980/bloomfilter/internal/fs"
	"github.com/hupe1980/bloomfilter/internal/mmap"
)

// Saver writes a filter image. *bloomfilter.Filter satisfies it.
type Saver interface {
	Save(w io.Writer) (int64, error)
}

// Loader reads a filter image. *bloomfilter.Filter satisfies it.
type Loader interface {
	Load(r io.Reader) error
}

// Marshal saves s and seals the image into an envelope.
func Marshal(s Saver, c Compression) ([]byte, EnvelopeHeader, error) {
	var buf bytes.Buffer
	if _, err := s.Save(&buf); err != nil {
		return nil, EnvelopeHeader{}, err
	}
	return Seal(buf.Bytes(), c)
}

// Unmarshal verifies an envelope and loads its image into l.
func Unmarshal(envelope []byte, l Loader) (EnvelopeHeader, error) {
	image, h, err := Unseal(envelope)
	if err != nil {
		return h, err
	}
	if err := l.Load(bytes.NewReader(image)); err != nil {
		return h, err
	}
	return h, nil
}

type fileOptions struct {
	fs          fs.FileSystem
	compression Compression
	mmap        bool
	perm        os.FileMode
}

// FileOption configures SaveFile and LoadFile.
type FileOption func(*fileOptions)

// WithFileSystem routes file operations through fsys. Loads through a custom
// file system read the file instead of mapping it.
func WithFileSystem(fsys fs.FileSystem) FileOption {
	return func(o *fileOptions) {
		o.fs = fsys
		o.mmap = false
	}
}

// WithCompression selects the payload compression for SaveFile.
func WithCompression(c Compression) FileOption {
	return func(o *fileOptions) {
		o.compression = c
	}
}

// WithMmap toggles memory-mapped reads in LoadFile. Enabled by default.
func WithMmap(enabled bool) FileOption {
	return func(o *fileOptions) {
		o.mmap = enabled
	}
}

// WithPermissions sets the mode of newly written files. Default 0o644.
func WithPermissions(perm os.FileMode) FileOption {
	return func(o *fileOptions) {
		o.perm = perm
	}
}

func applyFileOptions(optFns []FileOption) fileOptions {
	o := fileOptions{fs: fs.Default, mmap: true, perm: 0o644}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// SaveFile writes s to path as an envelope. The file is written to a
// temporary sibling, synced and renamed into place, so readers see either
// the old or the new contents.
func SaveFile(path string, s Saver, optFns ...FileOption) (EnvelopeHeader, error) {
	o := applyFileOptions(optFns)

	var image bytes.Buffer
	if _, err := s.Save(&image); err != nil {
		return EnvelopeHeader{}, err
	}

	var h EnvelopeHeader
	err := writeAtomic(o, path, func(w io.Writer) error {
		var err error
		h, err = WriteEnvelope(w, image.Bytes(), o.compression)
		return err
	})
	if err != nil {
		return EnvelopeHeader{}, err
	}
	return h, nil
}

// LoadFile reads the envelope at path into l.
func LoadFile(path string, l Loader, optFns ...FileOption) (EnvelopeHeader, error) {
	o := applyFileOptions(optFns)

	if o.mmap {
		m, err := mmap.Open(path)
		if err != nil {
			return EnvelopeHeader{}, fmt.Errorf("persistence: map %s: %w", path, err)
		}
		defer m.Close()
		return Unmarshal(m.Bytes(), l)
	}

	f, err := o.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return EnvelopeHeader{}, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	defer f.Close()

	image, h, err := ReadEnvelope(f)
	if err != nil {
		return h, err
	}
	return h, l.Load(bytes.NewReader(image))
}

// writeAtomic runs write against a temporary sibling of path and renames it
// into place once it is synced.
func writeAtomic(o fileOptions, path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: create dir %s: %w", dir, err)
	}

	tmp := path + ".tmp-" + uuid.NewString()
	f, err := o.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, o.perm)
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = o.fs.Remove(tmp)
		}
	}()

	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("persistence: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("persistence: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persistence: close %s: %w", path, err)
	}
	if err := o.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistence: rename %s: %w", path, err)
	}

	// Best-effort: fsync directory
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

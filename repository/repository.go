package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bloomfilter"
	"github.com/hupe1980/bloomfilter/blobstore"
	"github.com/hupe1980/bloomfilter/hashfn"
	"github.com/hupe1980/bloomfilter/manifest"
	"github.com/hupe1980/bloomfilter/persistence"
	"github.com/hupe1980/bloomfilter/resource"
)

const (
	// CurrentFileName holds the ID of the published snapshot.
	CurrentFileName = "CURRENT"

	imageExt    = ".bloom"
	manifestExt = ".manifest"
)

var (
	// ErrNotFound is returned when a filter has no published snapshot.
	ErrNotFound = errors.New("repository: filter not found")

	// ErrInvalidName is returned for filter names that cannot be stored.
	ErrInvalidName = errors.New("repository: invalid filter name")

	// ErrUnknownHashFunction is returned when a manifest names a hash function
	// that has no built-in implementation.
	ErrUnknownHashFunction = errors.New("repository: unknown hash function")

	// ErrManifestMismatch is returned when a decoded image disagrees with its manifest.
	ErrManifestMismatch = errors.New("repository: image does not match manifest")
)

// Snapshotter is a filter that can be stored. Every *bloomfilter.Filter is one.
type Snapshotter interface {
	Save(w io.Writer) (int64, error)
	Parameters() bloomfilter.Parameters
	HashFunctions() (string, string)
}

// Repository stores named filter snapshots on a BlobStore.
//
// Layout per filter name:
//
//	<name>/<id>.bloom     envelope with the filter image
//	<name>/<id>.manifest  manifest describing the snapshot
//	<name>/CURRENT        id of the published snapshot
type Repository struct {
	store blobstore.BlobStore
	opts  options
}

// New creates a Repository on store.
func New(store blobstore.BlobStore, optFns ...Option) *Repository {
	return &Repository{
		store: store,
		opts:  applyOptions(optFns),
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func imageName(name string, id uuid.UUID) string {
	return path.Join(name, id.String()+imageExt)
}

func manifestName(name string, id uuid.UUID) string {
	return path.Join(name, id.String()+manifestExt)
}

func currentName(name string) string {
	return path.Join(name, CurrentFileName)
}

// Save stores f as a new snapshot of name and publishes it.
// The snapshot becomes visible to Load only after CURRENT is updated.
func (r *Repository) Save(ctx context.Context, name string, f Snapshotter) (*manifest.Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	envelope, h, err := persistence.Marshal(f, r.opts.compression)
	if err != nil {
		return nil, fmt.Errorf("repository: seal %s: %w", name, err)
	}

	first, second := f.HashFunctions()
	p := f.Parameters()

	m := manifest.New(name)
	m.HashFunctions = []string{first, second}
	m.ErrorRate = p.ErrorRate
	m.Capacity = p.Capacity
	m.BitCount = p.BitCount
	m.HashFunctionCount = p.HashFunctionCount
	m.ImageLength = int64(h.RawLength)
	m.Checksum = h.Checksum
	m.Compression = h.Compression.String()

	if err := r.writeImage(ctx, imageName(name, m.ID), envelope); err != nil {
		return nil, err
	}

	data, err := manifest.Marshal(r.opts.codec, m)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, manifestName(name, m.ID), data); err != nil {
		return nil, fmt.Errorf("repository: write manifest: %w", err)
	}

	if err := r.store.Put(ctx, currentName(name), []byte(m.ID.String())); err != nil {
		return nil, fmt.Errorf("repository: publish %s: %w", name, err)
	}

	r.opts.logger.WithName(name).InfoContext(ctx, "snapshot published",
		"snapshot", m.ID.String(),
		"bytes", len(envelope),
		"compression", m.Compression,
		"codec", r.opts.codec.Name(),
	)

	return m, nil
}

// writeImage streams the envelope through the IO limiter.
func (r *Repository) writeImage(ctx context.Context, blobName string, envelope []byte) error {
	w, err := r.store.Create(ctx, blobName)
	if err != nil {
		return fmt.Errorf("repository: create %s: %w", blobName, err)
	}

	if _, err := resource.NewRateLimitedWriter(ctx, w, r.opts.controller).Write(envelope); err != nil {
		_ = w.Abort()
		return fmt.Errorf("repository: write %s: %w", blobName, err)
	}

	if err := w.Sync(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("repository: sync %s: %w", blobName, err)
	}

	if err := w.Close(); err != nil {
		_ = r.store.Delete(ctx, blobName)
		return fmt.Errorf("repository: close %s: %w", blobName, err)
	}

	return nil
}

// Current returns the ID of the published snapshot of name.
func (r *Repository) Current(ctx context.Context, name string) (uuid.UUID, error) {
	if err := validateName(name); err != nil {
		return uuid.Nil, err
	}

	data, err := blobstore.ReadAll(ctx, r.store, currentName(name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return uuid.Nil, err
	}

	id, err := uuid.ParseBytes(bytes.TrimSpace(data))
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: corrupt %s pointer: %w", currentName(name), err)
	}
	return id, nil
}

// Load rebuilds the published snapshot of name.
func (r *Repository) Load(ctx context.Context, name string) (*bloomfilter.Filter[string], *manifest.Manifest, error) {
	id, err := r.Current(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return r.LoadSnapshot(ctx, name, id)
}

// Manifest reads the manifest of one snapshot.
func (r *Repository) Manifest(ctx context.Context, name string, id uuid.UUID) (*manifest.Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := blobstore.ReadAll(ctx, r.store, manifestName(name, id))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: snapshot %s of %q", ErrNotFound, id, name)
		}
		return nil, err
	}

	m, err := manifest.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if m.Name != name || m.ID != id {
		return nil, fmt.Errorf("%w: manifest names %s/%s", ErrManifestMismatch, m.Name, m.ID)
	}
	return m, nil
}

// LoadSnapshot rebuilds a specific snapshot of name.
func (r *Repository) LoadSnapshot(ctx context.Context, name string, id uuid.UUID) (*bloomfilter.Filter[string], *manifest.Manifest, error) {
	m, err := r.Manifest(ctx, name, id)
	if err != nil {
		return nil, nil, err
	}

	first, second, err := hashFunctions(m)
	if err != nil {
		return nil, nil, err
	}

	if err := r.opts.controller.AcquireMemory(ctx, m.ImageLength); err != nil {
		return nil, nil, err
	}
	defer r.opts.controller.ReleaseMemory(m.ImageLength)

	envelope, err := r.readImage(ctx, imageName(name, id))
	if err != nil {
		return nil, nil, err
	}

	image, h, err := persistence.Unseal(envelope)
	if err != nil {
		if persistence.IsChecksumMismatch(err) {
			r.opts.logger.WithName(name).WarnContext(ctx, "snapshot checksum mismatch",
				"snapshot", id.String(),
				"error", err,
			)
		}
		return nil, nil, fmt.Errorf("repository: unseal %s: %w", imageName(name, id), err)
	}

	if h.Checksum != m.Checksum {
		err := &persistence.ChecksumMismatchError{Expected: m.Checksum, Actual: h.Checksum}
		r.opts.logger.WithName(name).WarnContext(ctx, "snapshot checksum mismatch",
			"snapshot", id.String(),
			"error", err,
		)
		return nil, nil, fmt.Errorf("repository: %s: %w", imageName(name, id), err)
	}

	f, err := bloomfilter.Read(bytes.NewReader(image), first, second, r.opts.filterOpts...)
	if err != nil {
		return nil, nil, err
	}

	if f.BitCount() != m.BitCount || f.HashFunctionCount() != m.HashFunctionCount {
		return nil, nil, fmt.Errorf("%w: image m=%d k=%d, manifest m=%d k=%d",
			ErrManifestMismatch, f.BitCount(), f.HashFunctionCount(), m.BitCount, m.HashFunctionCount)
	}

	return f, m, nil
}

// readImage reads a whole blob through the IO limiter.
func (r *Repository) readImage(ctx context.Context, blobName string) ([]byte, error) {
	b, err := r.store.Open(ctx, blobName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, blobName)
		}
		return nil, err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(resource.NewRateLimitedReader(ctx, rc, r.opts.controller))
	if err != nil {
		return nil, fmt.Errorf("repository: read %s: %w", blobName, err)
	}
	return data, nil
}

func hashFunctions(m *manifest.Manifest) (hashfn.HashFunction[string], hashfn.HashFunction[string], error) {
	first, ok := hashfn.ByName(m.HashFunctions[0])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownHashFunction, m.HashFunctions[0])
	}

	second, ok := hashfn.ByName(m.HashFunctions[1])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownHashFunction, m.HashFunctions[1])
	}

	return first, second, nil
}

// LoadAll loads the published snapshots of names in parallel.
// With no names it loads every filter in the repository.
// Concurrency is bounded by the controller.
func (r *Repository) LoadAll(ctx context.Context, names ...string) (map[string]*bloomfilter.Filter[string], error) {
	if len(names) == 0 {
		var err error
		if names, err = r.List(ctx); err != nil {
			return nil, err
		}
	}

	var (
		mu      sync.Mutex
		filters = make(map[string]*bloomfilter.Filter[string], len(names))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if err := r.opts.controller.Acquire(gctx); err != nil {
				return err
			}
			defer r.opts.controller.Release()

			f, _, err := r.Load(gctx, name)
			if err != nil {
				return fmt.Errorf("repository: load %q: %w", name, err)
			}

			mu.Lock()
			filters[name] = f
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// List returns the names of all filters with a published snapshot, sorted.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	blobs, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, b := range blobs {
		dir, file := path.Split(b)
		if file == CurrentFileName && dir != "" {
			names = append(names, strings.TrimSuffix(dir, "/"))
		}
	}

	sort.Strings(names)
	return names, nil
}

// Snapshots returns the manifests of every snapshot of name, oldest first.
// Unreadable manifests are skipped.
func (r *Repository) Snapshots(ctx context.Context, name string) ([]*manifest.Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	blobs, err := r.store.List(ctx, name+"/")
	if err != nil {
		return nil, err
	}

	var out []*manifest.Manifest
	for _, b := range blobs {
		if path.Ext(b) != manifestExt {
			continue
		}

		data, err := blobstore.ReadAll(ctx, r.store, b)
		if err != nil {
			continue
		}
		m, err := manifest.Unmarshal(data)
		if err != nil {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Prune deletes every snapshot of name except the published one.
// It returns the number of snapshots removed.
func (r *Repository) Prune(ctx context.Context, name string) (int, error) {
	current, err := r.Current(ctx, name)
	if err != nil {
		return 0, err
	}

	blobs, err := r.store.List(ctx, name+"/")
	if err != nil {
		return 0, err
	}

	removed := make(map[string]struct{})
	for _, b := range blobs {
		ext := path.Ext(b)
		if ext != imageExt && ext != manifestExt {
			continue
		}

		id := strings.TrimSuffix(path.Base(b), ext)
		if id == current.String() {
			continue
		}

		if err := r.store.Delete(ctx, b); err != nil {
			return len(removed), err
		}
		removed[id] = struct{}{}
	}

	if len(removed) > 0 {
		r.opts.logger.WithName(name).InfoContext(ctx, "snapshots pruned", "count", len(removed))
	}
	return len(removed), nil
}

// Delete removes name and all of its snapshots.
// CURRENT is removed first so readers never see a half-deleted filter.
func (r *Repository) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	blobs, err := r.store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if err := r.store.Delete(ctx, currentName(name)); err != nil {
		return err
	}

	for _, b := range blobs {
		if b == currentName(name) {
			continue
		}
		if err := r.store.Delete(ctx, b); err != nil {
			return err
		}
	}

	r.opts.logger.WithName(name).InfoContext(ctx, "filter deleted", "blobs", len(blobs))
	return nil
}

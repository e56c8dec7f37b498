package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomfilter"
	"github.com/hupe1980/bloomfilter/blobstore"
	"github.com/hupe1980/bloomfilter/hashfn"
	"github.com/hupe1980/bloomfilter/manifest"
	"github.com/hupe1980/bloomfilter/persistence"
	"github.com/hupe1980/bloomfilter/resource"
	"github.com/hupe1980/bloomfilter/testutil"
)

func newFilter(t *testing.T, keys []string) *bloomfilter.Filter[string] {
	t.Helper()

	f, err := bloomfilter.NewString(0.01, 1000)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, f.Add(k))
	}
	return f
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	keys := rng.Keys(500, 12)

	stores := map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}

	for storeName, store := range stores {
		t.Run(storeName, func(t *testing.T) {
			repo := New(store)
			f := newFilter(t, keys)

			saved, err := repo.Save(ctx, "users", f)
			require.NoError(t, err)
			assert.Equal(t, "users", saved.Name)
			assert.Equal(t, []string{"murmur3", "fnv32a"}, saved.HashFunctions)
			assert.Equal(t, f.BitCount(), saved.BitCount)
			assert.Equal(t, f.HashFunctionCount(), saved.HashFunctionCount)
			assert.Equal(t, 0.01, saved.ErrorRate)
			assert.Equal(t, 1000, saved.Capacity)
			assert.Equal(t, f.StreamLength(), saved.ImageLength)

			loaded, m, err := repo.Load(ctx, "users")
			require.NoError(t, err)
			assert.Equal(t, saved.ID, m.ID)
			assert.Equal(t, f.BitCount(), loaded.BitCount())
			assert.Equal(t, f.HashFunctionCount(), loaded.HashFunctionCount())
			assert.True(t, f.Bitmap().Equal(loaded.Bitmap()))

			for _, k := range keys {
				assert.True(t, loaded.Contains(k), "missing key %q", k)
			}

			blobs, err := store.List(ctx, "users/")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"users/" + saved.ID.String() + ".bloom",
				"users/" + saved.ID.String() + ".manifest",
				"users/CURRENT",
			}, blobs)
		})
	}
}

func TestCodecAndCompressionMatrix(t *testing.T) {
	ctx := context.Background()
	keys := testutil.NewRNG(2).Keys(200, 8)

	compressions := []persistence.Compression{
		persistence.CompressionNone,
		persistence.CompressionLZ4,
		persistence.CompressionZSTD,
	}

	for _, codecName := range manifest.Names() {
		for _, c := range compressions {
			t.Run(fmt.Sprintf("%s/%s", codecName, c), func(t *testing.T) {
				codec, err := manifest.ByName(codecName)
				require.NoError(t, err)

				repo := New(blobstore.NewMemoryStore(), WithCodec(codec), WithCompression(c))

				f := newFilter(t, keys)
				_, err = repo.Save(ctx, "matrix", f)
				require.NoError(t, err)

				loaded, _, err := repo.Load(ctx, "matrix")
				require.NoError(t, err)
				assert.True(t, f.Bitmap().Equal(loaded.Bitmap()))
			})
		}
	}
}

func TestSavePublishesLatest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := New(store)

	first, err := repo.Save(ctx, "users", newFilter(t, []string{"a"}))
	require.NoError(t, err)
	second, err := repo.Save(ctx, "users", newFilter(t, []string{"a", "b"}))
	require.NoError(t, err)

	current, err := repo.Current(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current)

	f, _, err := repo.Load(ctx, "users")
	require.NoError(t, err)
	assert.True(t, f.Contains("b"))

	old, m, err := repo.LoadSnapshot(ctx, "users", first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, m.ID)
	assert.True(t, old.Contains("a"))

	snaps, err := repo.Snapshots(ctx, "users")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, first.ID, snaps[0].ID)
	assert.Equal(t, second.ID, snaps[1].ID)

	removed, err := repo.Prune(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snaps, err = repo.Snapshots(ctx, "users")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, second.ID, snaps[0].ID)

	_, _, err = repo.LoadSnapshot(ctx, "users", first.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndLoadAll(t *testing.T) {
	ctx := context.Background()
	repo := New(blobstore.NewMemoryStore(), WithController(resource.NewController(resource.Config{
		MaxConcurrency: 2,
	})))

	names := []string{"orders", "users", "carts", "sessions", "events"}
	for i, name := range names {
		_, err := repo.Save(ctx, name, newFilter(t, []string{name, fmt.Sprint(i)}))
		require.NoError(t, err)
	}

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"carts", "events", "orders", "sessions", "users"}, listed)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(names))
	for i, name := range names {
		assert.True(t, all[name].Contains(name))
		assert.True(t, all[name].Contains(fmt.Sprint(i)))
	}

	some, err := repo.LoadAll(ctx, "users", "orders")
	require.NoError(t, err)
	assert.Len(t, some, 2)

	_, err = repo.LoadAll(ctx, "users", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := New(store)

	_, err := repo.Save(ctx, "users", newFilter(t, []string{"a"}))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "users", newFilter(t, []string{"b"}))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "orders", newFilter(t, []string{"c"}))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "users"))

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, listed)

	blobs, err := store.List(ctx, "users/")
	require.NoError(t, err)
	assert.Empty(t, blobs)

	_, _, err = repo.Load(ctx, "users")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, "users"), ErrNotFound)

	_, _, err = repo.Load(ctx, "orders")
	require.NoError(t, err)
}

func TestInvalidNames(t *testing.T) {
	ctx := context.Background()
	repo := New(blobstore.NewMemoryStore())
	f := newFilter(t, nil)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := repo.Save(ctx, name, f)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

		_, _, err = repo.Load(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

		assert.ErrorIs(t, repo.Delete(ctx, name), ErrInvalidName, "name %q", name)
	}
}

func TestUnknownHashFunction(t *testing.T) {
	ctx := context.Background()
	repo := New(blobstore.NewMemoryStore())

	custom := hashfn.New("custom", func(s string) int32 { return int32(len(s)) })
	f, err := bloomfilter.New[string](0.01, 100, custom, hashfn.FNV32a{})
	require.NoError(t, err)
	require.NoError(t, f.Add("x"))

	_, err = repo.Save(ctx, "custom", f)
	require.NoError(t, err)

	_, _, err = repo.Load(ctx, "custom")
	require.ErrorIs(t, err, ErrUnknownHashFunction)
}

func TestChecksumMismatchIsLogged(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	var logs bytes.Buffer
	logger := bloomfilter.NewLogger(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	repo := New(store, WithLogger(logger), WithCompression(persistence.CompressionNone))

	m, err := repo.Save(ctx, "users", newFilter(t, []string{"a", "b"}))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "snapshot published")
	assert.Contains(t, logs.String(), "filter=users")

	blobName := "users/" + m.ID.String() + ".bloom"
	data, err := blobstore.ReadAll(ctx, store, blobName)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, blobName, data))

	_, _, err = repo.Load(ctx, "users")
	require.Error(t, err)
	assert.True(t, persistence.IsChecksumMismatch(err))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "snapshot checksum mismatch")
}

func TestManifestMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := New(store)

	saved, err := repo.Save(ctx, "users", newFilter(t, []string{"a"}))
	require.NoError(t, err)

	t.Run("shape", func(t *testing.T) {
		tampered := *saved
		tampered.BitCount++
		data, err := manifest.Marshal(manifest.JSON{}, &tampered)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "users/"+saved.ID.String()+".manifest", data))

		_, _, err = repo.Load(ctx, "users")
		require.ErrorIs(t, err, ErrManifestMismatch)
	})

	t.Run("checksum", func(t *testing.T) {
		tampered := *saved
		tampered.Checksum++
		data, err := manifest.Marshal(manifest.JSON{}, &tampered)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "users/"+saved.ID.String()+".manifest", data))

		_, _, err = repo.Load(ctx, "users")
		assert.True(t, persistence.IsChecksumMismatch(err))
	})

	t.Run("identity", func(t *testing.T) {
		tampered := *saved
		tampered.Name = "orders"
		data, err := manifest.Marshal(manifest.JSON{}, &tampered)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "users/"+saved.ID.String()+".manifest", data))

		_, _, err = repo.Load(ctx, "users")
		require.ErrorIs(t, err, ErrManifestMismatch)
	})
}

func TestCorruptCurrentPointer(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := New(store)

	require.NoError(t, store.Put(ctx, "users/CURRENT", []byte("not-a-uuid")))
	_, err := repo.Current(ctx, "users")
	require.Error(t, err)

	id := uuid.New()
	require.NoError(t, store.Put(ctx, "users/CURRENT", []byte(id.String()+"\n")))
	got, err := repo.Current(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, _, err = repo.Load(ctx, "users")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := New(store).Save(ctx, "users", newFilter(t, []string{"a"}))
	require.NoError(t, err)

	limited := New(store, WithController(resource.NewController(resource.Config{MemoryLimitBytes: 16})))
	_, _, err = limited.Load(ctx, "users")
	require.ErrorIs(t, err, resource.ErrExceedsLimit)
}

func TestLoadedFilterOptions(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := New(store).Save(ctx, "users", newFilter(t, []string{"a"}))
	require.NoError(t, err)

	mc := &bloomfilter.BasicMetricsCollector{}
	repo := New(store, WithFilterOptions(bloomfilter.WithMetricsCollector(mc)))

	f, _, err := repo.Load(ctx, "users")
	require.NoError(t, err)
	assert.True(t, f.Contains("a"))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(1), stats.ContainsCount)
}

// failingStore hands out writers that fail on the first Write.
type failingStore struct {
	*blobstore.MemoryStore
	writers []*failingWriter
}

func (s *failingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	w, err := s.MemoryStore.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	fw := &failingWriter{WritableBlob: w}
	s.writers = append(s.writers, fw)
	return fw, nil
}

type failingWriter struct {
	blobstore.WritableBlob
	closed  bool
	aborted bool
}

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	_, _ = w.WritableBlob.Write(p[:len(p)/2])
	return len(p) / 2, errDiskFull
}

func (w *failingWriter) Close() error {
	w.closed = true
	return w.WritableBlob.Close()
}

func (w *failingWriter) Abort() error {
	w.aborted = true
	return w.WritableBlob.Abort()
}

func TestSaveFailureNeverPublishesImage(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: blobstore.NewMemoryStore()}
	repo := New(store)

	_, err := repo.Save(ctx, "users", newFilter(t, []string{"a"}))
	require.ErrorIs(t, err, errDiskFull)

	require.Len(t, store.writers, 1)
	assert.True(t, store.writers[0].aborted)
	assert.False(t, store.writers[0].closed)

	blobs, err := store.List(ctx, "users/")
	require.NoError(t, err)
	assert.Empty(t, blobs)

	_, _, err = repo.Load(ctx, "users")
	require.ErrorIs(t, err, ErrNotFound)
}

package minio

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomfilter/blobstore"
)

// fakeClient keeps objects in memory. GetObject is not supported since
// *minio.Object cannot be constructed outside the client.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	listErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) StatObject(_ context.Context, _, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("fake: GetObject not supported")
}

func (f *fakeClient) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.objects[key]; !ok {
		return minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeClient) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan minio.ObjectInfo, len(f.objects)+1)
	if f.listErr != nil {
		ch <- minio.ObjectInfo{Err: f.listErr}
	}
	for key, data := range f.objects {
		if len(key) >= len(opts.Prefix) && key[:len(opts.Prefix)] == opts.Prefix {
			ch <- minio.ObjectInfo{Key: key, Size: int64(len(data))}
		}
	}
	close(ch)
	return ch
}

func TestStorePutOpenDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "/filters/")

	require.NoError(t, store.Put(ctx, "users/a.bloom", []byte("payload")))
	assert.Contains(t, client.objects, "filters/users/a.bloom")

	blob, err := store.Open(ctx, "users/a.bloom")
	require.NoError(t, err)
	assert.Equal(t, int64(7), blob.Size())
	require.NoError(t, blob.Close())

	n, err := blob.ReadAt(ctx, make([]byte, 4), 7)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	rc, err := blob.ReadRange(ctx, 7, 10)
	require.NoError(t, err)
	rest, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, rest)

	require.NoError(t, store.Delete(ctx, "users/a.bloom"))
	require.NoError(t, store.Delete(ctx, "users/a.bloom"))

	_, err = store.Open(ctx, "users/a.bloom")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "")

	w, err := store.Create(ctx, "users/b.bloom")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed "))
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	assert.Equal(t, "streamed data", string(client.objects["users/b.bloom"]))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Create(cctx, "users/c.bloom")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreCreateAbort(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "")

	w, err := store.Create(ctx, "users/partial.bloom")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	assert.ErrorIs(t, w.Close(), blobstore.ErrAborted)
	assert.NotContains(t, client.objects, "users/partial.bloom")

	_, err = store.Open(ctx, "users/partial.bloom")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "root")

	for _, name := range []string{"users/b.bloom", "users/a.bloom", "orders/CURRENT"} {
		require.NoError(t, store.Put(ctx, name, []byte(name)))
	}
	client.objects["elsewhere/x"] = []byte("x")

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders/CURRENT", "users/a.bloom", "users/b.bloom"}, names)

	names, err = store.List(ctx, "users/")
	require.NoError(t, err)
	assert.Equal(t, []string{"users/a.bloom", "users/b.bloom"}, names)

	client.listErr = errors.New("boom")
	_, err = store.List(ctx, "")
	assert.EqualError(t, err, "boom")
}

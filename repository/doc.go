// Package repository keeps named filter snapshots on a blobstore.BlobStore.
//
// Each Save writes a new immutable snapshot (an envelope plus a manifest) and
// then publishes it by rewriting the filter's CURRENT pointer. Readers follow
// CURRENT, so they always see a complete snapshot. On S3 the pointer update can
// be made conflict-safe with s3.DDBCommitStore.
//
//	repo := repository.New(blobstore.NewLocalStore("/var/lib/filters"),
//	    repository.WithCompression(persistence.CompressionZSTD),
//	    repository.WithCodec(manifest.CBOR{}),
//	)
//
//	if _, err := repo.Save(ctx, "users", f); err != nil { ... }
//	f, m, err := repo.Load(ctx, "users")
//
// Filters are rebuilt with the built-in hash functions named in the manifest,
// so only filters using hashfn built-ins can be loaded back.
package repository

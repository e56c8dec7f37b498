// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("filters/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	repo := repository.New(store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads through the SDK upload manager
//   - CRC32C integrity checks on Put
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// DDBCommitStore layers DynamoDB conditional writes on top of a Store so that
// concurrent writers cannot lose a CURRENT pointer update.
package s3

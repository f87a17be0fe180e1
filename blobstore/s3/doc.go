// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/products/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	stats, err := blobstore.Copy(ctx, store, dir.Store(), blobstore.CopyOptions{})
//
// # Features
//
//   - CRC32C integrity checks on single-part uploads
//   - Multipart uploads for large blobs
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

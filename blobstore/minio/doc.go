// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object store. The official MinIO Go client also
// works with Ceph, SeaweedFS, Garage and other S3-compatible systems, without
// pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minio.Dial(ctx, minio.Config{
//	    Endpoint:     "localhost:9000",
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	    Bucket:       "search",
//	    Prefix:       "products/",
//	    CreateBucket: true,
//	})
//
// Or wrap an existing client:
//
//	store := minio.NewStore(client, "search", "products/")
package minio

package blobstore

import (
	"context"
	"io"
)

// BlobPutResult describes one persisted document payload.
type BlobPutResult struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobStore is the byte-storage collaborator the dedup engine issues
// document writes and duplicate deletions through. Delete must be
// idempotent: resolutions that crashed mid-flight are retried, and a
// missing blob on retry is not an error.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (BlobPutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

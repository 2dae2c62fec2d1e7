package ports

import (
	"context"
	"errors"
	"io"
	"time"
)

type BlobDriver string

const (
	BlobDriverFilesystem BlobDriver = "fs"
	BlobDriverS3         BlobDriver = "s3"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrBlobExists      = errors.New("blob already exists")
	ErrBlobUnsupported = errors.New("blob operation unsupported")
)

type BlobPutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type BlobInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// BlobStore keeps certificate documents. Put fails with ErrBlobExists when the
// key is taken.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts BlobPutOptions) (BlobInfo, error)
	Get(ctx context.Context, key string) (BlobInfo, io.ReadCloser, error)
	Head(ctx context.Context, key string) (BlobInfo, error)
	Delete(ctx context.Context, key string) (bool, error)
	// PresignURL returns ErrBlobUnsupported when the backend cannot hand out
	// direct links; callers then stream through Get.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() BlobDriver
}

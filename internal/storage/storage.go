// Package storage archives exported workbooks in an S3-compatible object store
// and hands out time-limited download links for them.
package storage

import (
	"context"
	"io"
	"time"
)

// ExportPrefix is the key prefix of every archived workbook. Objects under it
// expire after the configured retention.
const ExportPrefix = "exports/"

// PutObjectOptions describes an upload. Size is the exact byte count, or -1
// when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what the store reports back for a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
	// Expires is set when a lifecycle rule will remove the object.
	Expires time.Time
}

// Storage is the object store used for workbook exports.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that downloads the object as downloadName.
	PresignGet(ctx context.Context, key, downloadName string, expiry time.Duration) (string, error)
}

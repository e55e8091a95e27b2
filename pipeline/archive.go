package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"gocloud.dev/blob"
	// Drivers selectable through the archive URL scheme.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Archive mirrors downloaded files to a blob bucket (file://, s3://, mem://).
type Archive struct {
	bucket *blob.Bucket
	prefix string
}

// OpenArchive opens the bucket at bucketURL. Objects are stored under prefix.
func OpenArchive(ctx context.Context, bucketURL, prefix string) (*Archive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open archive bucket: %w", err)
	}
	return NewArchive(bucket, prefix), nil
}

// NewArchive wraps an already opened bucket.
func NewArchive(bucket *blob.Bucket, prefix string) *Archive {
	return &Archive{bucket: bucket, prefix: prefix}
}

// Key returns the object key used for a local file.
func (a *Archive) Key(localPath string) string {
	name := filepath.Base(localPath)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Upload streams the file at localPath to the bucket.
func (a *Archive) Upload(ctx context.Context, localPath string) (err error) {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	w, err := a.bucket.NewWriter(ctx, a.Key(localPath), &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("open archive writer: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return fmt.Errorf("copy %s to archive: %w", localPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish archive object: %w", err)
	}
	return nil
}

// Close releases the bucket.
func (a *Archive) Close() error {
	return a.bucket.Close()
}

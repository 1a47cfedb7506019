// Package storage keeps uploaded photos and extracted videos on disk and
// optionally publishes videos to S3. It defines the Storage interface (port)
// and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for working files and video publication.
type Storage interface {
	// SaveTemp saves data to a new file in the working directory and
	// returns its path. The name is used as a hint; its extension is kept
	// so the file is still recognized as a photo.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

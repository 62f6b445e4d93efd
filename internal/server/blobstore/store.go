// Package blobstore keeps receipt images and profile pictures in an
// S3-compatible bucket.
package blobstore

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	ReceiptPrefix        = "receipts"
	ProfilePicturePrefix = "profile-pictures"
)

// Store is the blob store seen by the services. Get returns
// common.ErrorNotFound for unknown keys; other failures wrap
// common.ErrStorage.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns prefix/<random uuid><ext of filename>. The extension is
// lower-cased.
func NewKey(prefix, filename string) string {
	return prefix + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object is an uploaded artifact.
type Object struct {
	Key string
	URL string
}

// Store uploads and deletes blobs by key.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a unique key under prefix for owner's file, keeping the file
// extension: "<prefix>/<owner>_<uuid><ext>".
func NewKey(prefix, owner, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s_%s%s", strings.Trim(prefix, "/"), owner, uuid.NewString(), ext)
}

package storage

import (
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error // missing keys are not an error
}

// SourceKey names an archived upload. The extension is kept so the file can
// be served back with a sensible name.
func SourceKey(filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	return "sources/" + uuid.NewString() + ext
}

// Package mediastore holds the physical media objects referenced by
// video and image manifest items.
package mediastore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for object names that could escape the store.
var ErrInvalidName = errors.New("invalid media object name")

// Storage abstracts where uploaded media lives.
// Open returns an error matching fs.ErrNotExist for absent objects;
// Delete treats an absent object as already deleted.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// ValidName rejects empty names, dot entries and anything with a path separator.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}

// ObjectName derives a unique object name from an uploaded file's original
// name: "<uuid>-<basename>".
func ObjectName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == '\\', r == ':':
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return uuid.NewString() + "-" + base
}

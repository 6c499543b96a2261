package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Disk stores media objects as files in a single directory.
type Disk struct {
	root string
}

// NewDisk returns a Disk rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{root: dir}, nil
}

// Root returns the storage directory.
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) pathFor(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return filepath.Join(d.root, name), nil
}

// Put writes the object atomically; a reader error leaves no partial file behind.
func (d *Disk) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	p, err := d.pathFor(name)
	if err != nil {
		return err
	}

	pf, err := renameio.NewPendingFile(p, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending media file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := io.Copy(pf, r); err != nil {
		return fmt.Errorf("write media %s: %w", name, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit media %s: %w", name, err)
	}
	return nil
}

// Open implements Storage.Open.
func (d *Disk) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := d.pathFor(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete implements Storage.Delete.
func (d *Disk) Delete(_ context.Context, name string) error {
	p, err := d.pathFor(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media %s: %w", name, err)
	}
	return nil
}

// Exists implements Storage.Exists.
func (d *Disk) Exists(_ context.Context, name string) (bool, error) {
	p, err := d.pathFor(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ Storage = (*Disk)(nil)

package signage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

const (
	manifestPrefix = "media_"
	manifestSuffix = ".json"
)

// FileStore keeps one pretty-printed JSON document per player in dir,
// named media_<id>.json. Writes go through a temp file, fsync and rename,
// so a concurrent Load sees either the old or the new document.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", ErrStorage, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding manifest documents.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) pathFor(id PlayerID) string {
	return filepath.Join(s.dir, manifestPrefix+string(id)+manifestSuffix)
}

// playerFromFileName maps "media_<id>.json" back to its player id.
func playerFromFileName(name string) (PlayerID, bool) {
	if !strings.HasPrefix(name, manifestPrefix) || !strings.HasSuffix(name, manifestSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), manifestSuffix)
	if ValidatePlayerID(PlayerID(id)) != nil {
		return "", false
	}
	return PlayerID(id), true
}

// Load implements Store.Load.
func (s *FileStore) Load(id PlayerID) ([]MediaItem, bool, error) {
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read manifest %s: %w", ErrStorage, id, err)
	}
	var items []MediaItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, false, fmt.Errorf("%w: decode manifest %s: %w", ErrStorage, id, err)
	}
	if items == nil {
		items = []MediaItem{}
	}
	return items, true, nil
}

// Save implements Store.Save.
func (s *FileStore) Save(id PlayerID, items []MediaItem) error {
	if items == nil {
		items = []MediaItem{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode manifest %s: %w", ErrStorage, id, err)
	}
	if err := writeFileAtomic(s.pathFor(id), b); err != nil {
		return fmt.Errorf("%w: write manifest %s: %w", ErrStorage, id, err)
	}
	return nil
}

// Delete implements Store.Delete.
func (s *FileStore) Delete(id PlayerID) error {
	if err := os.Remove(s.pathFor(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete manifest %s: %w", ErrStorage, id, err)
	}
	return nil
}

// ListPlayerIDs implements Store.ListPlayerIDs.
func (s *FileStore) ListPlayerIDs() ([]PlayerID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list manifests: %w", ErrStorage, err)
	}
	ids := make([]PlayerID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := playerFromFileName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// writeFileAtomic replaces path with data durably.
func writeFileAtomic(path string, data []byte) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if _, err := pf.Write(data); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

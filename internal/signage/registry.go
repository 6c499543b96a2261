package signage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const registryFile = "players.json"

// Registry is the set of known players.
type Registry interface {
	// List returns the players in registration order.
	List() ([]Player, error)
	// Upsert registers a player. An id that is already registered keeps its name.
	Upsert(p Player) error
	// Rename changes a player's display name. ErrNotFound if id is unknown.
	Rename(id PlayerID, name string) error
	// Delete unregisters id. Unknown ids are ignored.
	Delete(id PlayerID) error
}

// FileRegistry stores the player list as a JSON array in players.json.
type FileRegistry struct {
	path string
	mu   sync.Mutex
}

// NewFileRegistry returns a registry kept in dir/players.json.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", ErrStorage, err)
	}
	return &FileRegistry{path: filepath.Join(dir, registryFile)}, nil
}

// List implements Registry.List.
func (r *FileRegistry) List() ([]Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Upsert implements Registry.Upsert.
func (r *FileRegistry) Upsert(p Player) error {
	if err := ValidatePlayerID(p.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	players, err := r.read()
	if err != nil {
		return err
	}
	for _, existing := range players {
		if existing.ID == p.ID {
			return nil
		}
	}
	return r.write(append(players, p))
}

// Rename implements Registry.Rename.
func (r *FileRegistry) Rename(id PlayerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	players, err := r.read()
	if err != nil {
		return err
	}
	for i := range players {
		if players[i].ID == id {
			players[i].Name = name
			return r.write(players)
		}
	}
	return fmt.Errorf("%w: player %s", ErrNotFound, id)
}

// Delete implements Registry.Delete.
func (r *FileRegistry) Delete(id PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	players, err := r.read()
	if err != nil {
		return err
	}
	kept := players[:0]
	for _, p := range players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(players) {
		return nil
	}
	return r.write(kept)
}

func (r *FileRegistry) read() ([]Player, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Player{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read players: %w", ErrStorage, err)
	}
	var players []Player
	if err := json.Unmarshal(b, &players); err != nil {
		return nil, fmt.Errorf("%w: decode players: %w", ErrStorage, err)
	}
	if players == nil {
		players = []Player{}
	}
	return players, nil
}

func (r *FileRegistry) write(players []Player) error {
	b, err := json.MarshalIndent(players, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode players: %w", ErrStorage, err)
	}
	if err := writeFileAtomic(r.path, b); err != nil {
		return fmt.Errorf("%w: write players: %w", ErrStorage, err)
	}
	return nil
}

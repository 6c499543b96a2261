package signage

import "sync"

// Store is the persistence abstraction for manifests. A manifest is the unit
// of storage: Save replaces the whole document and Load returns a whole
// document, never a partially written one.
// The Repository serializes writers per player; readers may call Load at any time.
type Store interface {
	// Load returns the manifest for id. ok is false when none exists.
	Load(id PlayerID) (items []MediaItem, ok bool, err error)
	// Save replaces the manifest for id, creating it if needed.
	Save(id PlayerID, items []MediaItem) error
	// Delete removes the manifest for id. Deleting a missing manifest is not an error.
	Delete(id PlayerID) error
	// ListPlayerIDs returns the ids that currently have a manifest.
	ListPlayerIDs() ([]PlayerID, error)
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu        sync.RWMutex
	manifests map[PlayerID][]MediaItem
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		manifests: make(map[PlayerID][]MediaItem),
	}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load(id PlayerID) ([]MediaItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.manifests[id]
	if !ok {
		return nil, false, nil
	}
	return cloneItems(items), true, nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(id PlayerID, items []MediaItem) error {
	c := cloneItems(items)
	if c == nil {
		c = []MediaItem{}
	}
	s.mu.Lock()
	s.manifests[id] = c
	s.mu.Unlock()
	return nil
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id PlayerID) error {
	s.mu.Lock()
	delete(s.manifests, id)
	s.mu.Unlock()
	return nil
}

// ListPlayerIDs implements Store.ListPlayerIDs.
func (s *InMemoryStore) ListPlayerIDs() ([]PlayerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]PlayerID, 0, len(s.manifests))
	for id := range s.manifests {
		ids = append(ids, id)
	}
	return ids, nil
}

package signage

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Repository defines the concurrency-safe contract for reading and mutating
// manifests. Mutations for one player are applied one at a time; mutations
// for different players proceed in parallel.
type Repository interface {
	// Snapshot returns the player's manifest. ok is false if none exists.
	Snapshot(id PlayerID) (items []MediaItem, ok bool, err error)

	// Append adds item at the end, creating the manifest if needed.
	// An item whose identifier is already present is rejected with ErrDuplicateItem.
	Append(id PlayerID, item MediaItem) error

	// Remove drops every item with the given identifier and returns them.
	// ErrNotFound is returned only when the manifest does not exist.
	Remove(id PlayerID, identifier string) (removed []MediaItem, err error)

	// Reorder replaces the manifest with the items named by order, in that
	// order. Unknown identifiers are skipped; unnamed items are dropped and
	// returned. A player without a manifest is left without one and ok is false.
	Reorder(id PlayerID, order []string) (dropped []MediaItem, ok bool, err error)

	// SetExpiry sets ExpiresAt on the item with the given identifier.
	// ErrNotFound is returned when the manifest or item does not exist.
	SetExpiry(id PlayerID, identifier string, at *time.Time) error

	// DeleteManifest removes the manifest and returns the items it held.
	// Deleting a missing manifest returns no items and no error.
	DeleteManifest(id PlayerID) (former []MediaItem, err error)
}

// errSkipWrite lets a mutation finish without persisting anything.
var errSkipWrite = errors.New("skip write")

// ManifestRepository implements Repository on top of a Store.
type ManifestRepository struct {
	store Store
	locks *playerLocks
}

// NewInMemoryRepository constructs a repository with a default in-memory store.
func NewInMemoryRepository() *ManifestRepository {
	return NewRepository(NewInMemoryStore())
}

// NewRepository constructs a repository that uses the given Store.
func NewRepository(store Store) *ManifestRepository {
	return &ManifestRepository{store: store, locks: newPlayerLocks()}
}

// Snapshot implements Repository.Snapshot. It does not take the player lock;
// the Store guarantees whole-document reads.
func (r *ManifestRepository) Snapshot(id PlayerID) ([]MediaItem, bool, error) {
	return r.store.Load(id)
}

// Append implements Repository.Append.
func (r *ManifestRepository) Append(id PlayerID, item MediaItem) error {
	return r.mutate(id, func(items []MediaItem, _ bool) ([]MediaItem, error) {
		for _, it := range items {
			if it.Identifier == item.Identifier {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, item.Identifier)
			}
		}
		return append(items, item), nil
	})
}

// Remove implements Repository.Remove.
func (r *ManifestRepository) Remove(id PlayerID, identifier string) ([]MediaItem, error) {
	var removed []MediaItem
	err := r.mutate(id, func(items []MediaItem, exists bool) ([]MediaItem, error) {
		if !exists {
			return nil, fmt.Errorf("%w: no manifest for player %s", ErrNotFound, id)
		}
		kept := make([]MediaItem, 0, len(items))
		for _, it := range items {
			if it.Identifier == identifier {
				removed = append(removed, it)
				continue
			}
			kept = append(kept, it)
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Reorder implements Repository.Reorder.
func (r *ManifestRepository) Reorder(id PlayerID, order []string) ([]MediaItem, bool, error) {
	var (
		dropped []MediaItem
		found   bool
	)
	err := r.mutate(id, func(items []MediaItem, exists bool) ([]MediaItem, error) {
		if !exists {
			return nil, errSkipWrite
		}
		found = true
		var kept []MediaItem
		kept, dropped = reorderItems(items, order)
		return kept, nil
	})
	if err != nil {
		return nil, false, err
	}
	return dropped, found, nil
}

// SetExpiry implements Repository.SetExpiry.
func (r *ManifestRepository) SetExpiry(id PlayerID, identifier string, at *time.Time) error {
	return r.mutate(id, func(items []MediaItem, exists bool) ([]MediaItem, error) {
		if !exists {
			return nil, fmt.Errorf("%w: no manifest for player %s", ErrNotFound, id)
		}
		for i := range items {
			if items[i].Identifier == identifier {
				items[i].ExpiresAt = at
				return items, nil
			}
		}
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, identifier)
	})
}

// DeleteManifest implements Repository.DeleteManifest.
func (r *ManifestRepository) DeleteManifest(id PlayerID) ([]MediaItem, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	items, _, err := r.store.Load(id)
	if err != nil && !errors.Is(err, ErrStorage) {
		return nil, err
	}
	// A corrupt document still gets deleted; its files cannot be enumerated.
	if err := r.store.Delete(id); err != nil {
		return nil, err
	}
	return items, nil
}

// mutate loads the player's manifest, applies fn and saves the result while
// holding the player's lock. fn receives a private copy it may modify.
func (r *ManifestRepository) mutate(id PlayerID, fn func(items []MediaItem, exists bool) ([]MediaItem, error)) error {
	unlock := r.locks.lock(id)
	defer unlock()

	items, exists, err := r.store.Load(id)
	if err != nil {
		return err
	}
	next, err := fn(cloneItems(items), exists)
	if errors.Is(err, errSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.store.Save(id, next)
}

// playerLocks hands out one mutex per player. Entries are reference counted
// and removed when no goroutine holds or waits on them.
type playerLocks struct {
	mu    sync.Mutex
	locks map[PlayerID]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[PlayerID]*playerLock)}
}

// lock blocks until the caller owns id's lock and returns the release func.
func (p *playerLocks) lock(id PlayerID) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &playerLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

// held returns the number of players with a live lock entry.
func (p *playerLocks) held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

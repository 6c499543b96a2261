// Package livesync carries "manifest changed" signals from the manifest
// service to connected displays. Signals carry no payload beyond their name;
// receivers re-fetch the full manifest.
package livesync

import (
	"context"
	"strings"
	"sync"
)

// Publisher emits a change signal for one player.
type Publisher interface {
	Publish(ctx context.Context, playerID string) error
}

// Bus is an in-process registry of per-player subscribers. Sets are created
// on first subscription and removed when their last subscriber closes.
type Bus struct {
	prefix string

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewBus returns an empty Bus whose signals are named "<prefix>:<playerID>".
func NewBus(prefix string) *Bus {
	return &Bus{
		prefix: prefix,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Signal returns the signal name for playerID.
func (b *Bus) Signal(playerID string) string {
	return b.prefix + ":" + playerID
}

// Prefix returns the event prefix.
func (b *Bus) Prefix() string {
	return b.prefix
}

// PlayerFromSignal is the inverse of Signal.
func (b *Bus) PlayerFromSignal(signal string) (string, bool) {
	id, ok := strings.CutPrefix(signal, b.prefix+":")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Subscribe registers a subscriber for playerID. The caller must Close it.
func (b *Bus) Subscribe(playerID string) *Subscription {
	s := &Subscription{bus: b, playerID: playerID, ch: make(chan string, 1)}

	b.mu.Lock()
	set, ok := b.subs[playerID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[playerID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	return s
}

// Publish implements Publisher. It never blocks and never fails.
func (b *Bus) Publish(_ context.Context, playerID string) error {
	b.Deliver(playerID)
	return nil
}

// Deliver hands the signal to every live subscriber of playerID and returns
// how many were reached. A subscriber that still holds an unread signal is
// already due to re-fetch, so the new signal is folded into it.
func (b *Bus) Deliver(playerID string) int {
	signal := b.Signal(playerID)

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for s := range b.subs[playerID] {
		select {
		case s.ch <- signal:
		default:
		}
		n++
	}
	return n
}

// Subscribers returns the number of live subscribers for playerID.
func (b *Bus) Subscribers(playerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[playerID])
}

// Count returns the number of live subscribers across all players.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[s.playerID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(b.subs, s.playerID)
	}
}

// Subscription is one subscriber's handle on a player's signals.
type Subscription struct {
	bus      *Bus
	playerID string
	ch       chan string
	once     sync.Once
}

// C returns the signal channel. It is closed by Close.
func (s *Subscription) C() <-chan string {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.remove(s) })
}

var _ Publisher = (*Bus)(nil)

package signage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"signage-manifest/internal/livesync"
	"signage-manifest/internal/mediastore"
)

// Service applies the manifest rules (identity resolution, validation,
// physical file cleanup, change signals) and delegates storage to Repository.
type Service struct {
	repo     Repository
	registry Registry
	media    mediastore.Storage
	pub      livesync.Publisher
	log      *slog.Logger
	loc      *time.Location
	signals  SignalCounter
}

// SignalCounter counts change signals that were handed to the publisher.
type SignalCounter interface {
	IncSignals()
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the zone used for expiry timestamps submitted without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSignalCounter sets the counter bumped after each successful publish.
func WithSignalCounter(c SignalCounter) Option {
	return func(s *Service) {
		s.signals = c
	}
}

// NewService returns a Service. pub may be nil, in which case no change
// signals are emitted.
func NewService(repo Repository, registry Registry, media mediastore.Storage, pub livesync.Publisher, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		repo:     repo,
		registry: registry,
		media:    media,
		pub:      pub,
		log:      log,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPlayers returns the registered players.
func (s *Service) ListPlayers(_ context.Context) ([]Player, error) {
	return s.registry.List()
}

// UpsertPlayer registers a player if it is not already known.
func (s *Service) UpsertPlayer(_ context.Context, id PlayerID, name string) error {
	return s.registry.Upsert(Player{ID: id, Name: name})
}

// RenamePlayer changes a registered player's name.
func (s *Service) RenamePlayer(_ context.Context, id PlayerID, name string) error {
	return s.registry.Rename(id, name)
}

// GetManifest returns the player's manifest, or an empty list if it has none.
func (s *Service) GetManifest(_ context.Context, id PlayerID) ([]MediaItem, error) {
	if err := ValidatePlayerID(id); err != nil {
		return nil, err
	}
	items, ok, err := s.repo.Snapshot(id)
	if err != nil {
		return nil, err
	}
	if !ok || items == nil {
		return []MediaItem{}, nil
	}
	return items, nil
}

// AddItem validates raw, appends the resulting item to the player's manifest
// and emits a change signal. Video and image items must name a stored object.
func (s *Service) AddItem(ctx context.Context, id PlayerID, raw RawItem) (MediaItem, error) {
	if err := ValidatePlayerID(id); err != nil {
		return MediaItem{}, err
	}
	item, err := s.buildItem(ctx, raw)
	if err != nil {
		return MediaItem{}, err
	}
	if err := s.repo.Append(id, item); err != nil {
		return MediaItem{}, err
	}
	s.publish(ctx, id)
	return item, nil
}

func (s *Service) buildItem(ctx context.Context, raw RawItem) (MediaItem, error) {
	t, ok := ParseMediaType(raw.Type)
	if !ok {
		return MediaItem{}, fmt.Errorf("%w: unknown media type %q", ErrValidation, raw.Type)
	}
	if strings.TrimSpace(raw.URLOrFilename) == "" {
		return MediaItem{}, fmt.Errorf("%w: missing url or file", ErrValidation)
	}
	ident := ResolveIdentity(t, raw.URLOrFilename, raw.PageName)

	if t.HasFile() {
		if err := mediastore.ValidName(ident.Identifier); err != nil {
			return MediaItem{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		exists, err := s.media.Exists(ctx, ident.Identifier)
		if err != nil {
			return MediaItem{}, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if !exists {
			return MediaItem{}, fmt.Errorf("%w: media object %q does not exist", ErrValidation, ident.Identifier)
		}
	}

	expires, err := ParseExpiry(raw.Expiration, s.loc)
	if err != nil {
		return MediaItem{}, err
	}
	return MediaItem{
		Identifier:             ident.Identifier,
		Type:                   t,
		SourceRef:              ident.SourceRef,
		PageName:               ident.PageName,
		DisplayDurationSeconds: ParseDisplayDuration(raw.DisplayDuration),
		ExpiresAt:              expires,
	}, nil
}

// IngestUpload stores an uploaded media file and adds it to the player's
// manifest. When raw.Type is empty the type is taken from contentType.
// The stored object is removed again if the item is rejected.
func (s *Service) IngestUpload(ctx context.Context, id PlayerID, raw RawItem, r io.Reader, size int64, filename, contentType string) (MediaItem, error) {
	if err := ValidatePlayerID(id); err != nil {
		return MediaItem{}, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		raw.Type = typeFromContentType(contentType)
	}
	t, ok := ParseMediaType(raw.Type)
	if !ok || !t.HasFile() {
		return MediaItem{}, fmt.Errorf("%w: uploaded files must be video or image, got %q", ErrValidation, raw.Type)
	}

	name := mediastore.ObjectName(filename)
	if err := s.media.Put(ctx, name, r, size, contentType); err != nil {
		return MediaItem{}, fmt.Errorf("%w: store upload: %w", ErrStorage, err)
	}

	raw.Type = string(t)
	raw.URLOrFilename = name
	item, err := s.AddItem(ctx, id, raw)
	if err != nil {
		if derr := s.media.Delete(ctx, name); derr != nil {
			s.log.Warn("discard rejected upload failed",
				slog.String("object", name),
				slog.String("error", derr.Error()))
		}
		return MediaItem{}, err
	}
	return item, nil
}

func typeFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.HasPrefix(ct, "video/"):
		return string(MediaVideo)
	case strings.HasPrefix(ct, "image/"):
		return string(MediaImage)
	}
	return ""
}

// RemoveItem drops the item with the given identifier and deletes its stored
// file, if any. An identifier that is not in the manifest changes nothing but
// still counts as success. ErrNotFound if the player has no manifest.
func (s *Service) RemoveItem(ctx context.Context, id PlayerID, identifier string) error {
	if err := ValidatePlayerID(id); err != nil {
		return err
	}
	removed, err := s.repo.Remove(id, identifier)
	if err != nil {
		return err
	}
	s.deleteFiles(ctx, id, removed)
	s.publish(ctx, id)
	return nil
}

// Reorder rewrites the manifest in the given order. Identifiers that are not
// in the manifest are ignored and items left out of order are removed,
// along with their stored files.
func (s *Service) Reorder(ctx context.Context, id PlayerID, order []string) error {
	if err := ValidatePlayerID(id); err != nil {
		return err
	}
	dropped, ok, err := s.repo.Reorder(id, order)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.deleteFiles(ctx, id, dropped)
	s.publish(ctx, id)
	return nil
}

// UpdateExpiry sets or, for an empty newExpiry, clears an item's expiry.
func (s *Service) UpdateExpiry(ctx context.Context, id PlayerID, identifier, newExpiry string) error {
	if err := ValidatePlayerID(id); err != nil {
		return err
	}
	at, err := ParseExpiry(newExpiry, s.loc)
	if err != nil {
		return err
	}
	if err := s.repo.SetExpiry(id, identifier, at); err != nil {
		return err
	}
	s.publish(ctx, id)
	return nil
}

// DeletePlayer unregisters the player and removes its manifest and stored
// files. Deleting an unknown player succeeds.
func (s *Service) DeletePlayer(ctx context.Context, id PlayerID) error {
	if err := ValidatePlayerID(id); err != nil {
		return err
	}
	if err := s.registry.Delete(id); err != nil {
		return err
	}
	former, err := s.repo.DeleteManifest(id)
	if err != nil {
		return err
	}
	s.deleteFiles(ctx, id, former)
	s.publish(ctx, id)
	return nil
}

// OpenMedia opens a stored media object for reading.
func (s *Service) OpenMedia(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := mediastore.ValidName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.media.Open(ctx, name)
}

// Announce emits a change signal for a manifest that was modified outside
// the service, such as by hand on disk.
func (s *Service) Announce(ctx context.Context, id PlayerID) {
	s.publish(ctx, id)
}

func (s *Service) deleteFiles(ctx context.Context, id PlayerID, items []MediaItem) {
	for _, it := range items {
		if !it.Type.HasFile() {
			continue
		}
		if err := s.media.Delete(ctx, it.Identifier); err != nil && !errors.Is(err, mediastore.ErrInvalidName) {
			s.log.Warn("delete media object failed",
				slog.String("player_id", string(id)),
				slog.String("object", it.Identifier),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) publish(ctx context.Context, id PlayerID) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, string(id)); err != nil {
		s.log.Warn("publish change signal failed",
			slog.String("player_id", string(id)),
			slog.String("error", err.Error()))
		return
	}
	if s.signals != nil {
		s.signals.IncSignals()
	}
}

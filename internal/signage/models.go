package signage

import (
	"fmt"
	"strings"
	"time"
)

// PlayerID uniquely identifies a display endpoint.
type PlayerID string

// MediaType is the kind of content a manifest slot holds.
type MediaType string

const (
	MediaVideo          MediaType = "video"
	MediaImage          MediaType = "image"
	MediaURL            MediaType = "url"
	MediaEmbeddedReport MediaType = "embeddedReport"
)

// ParseMediaType accepts the canonical type names plus the legacy "powerbi"
// alias for embedded reports.
func ParseMediaType(s string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return MediaVideo, true
	case "image":
		return MediaImage, true
	case "url":
		return MediaURL, true
	case "embeddedreport", "powerbi":
		return MediaEmbeddedReport, true
	}
	return "", false
}

// HasFile reports whether items of this type are backed by a stored media object.
func (t MediaType) HasFile() bool {
	return t == MediaVideo || t == MediaImage
}

// ValidatePlayerID rejects ids that are empty or unusable as a file name component.
func ValidatePlayerID(id PlayerID) error {
	s := string(id)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return fmt.Errorf("%w: invalid player id %q", ErrValidation, s)
	}
	return nil
}

// Player is a registered display.
type Player struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
}

// MediaItem is one playable slot in a player's manifest.
// This also matches the persisted JSON document; unused optional fields are null.
type MediaItem struct {
	Identifier             string     `json:"identifier"`
	Type                   MediaType  `json:"type"`
	SourceRef              *string    `json:"sourceRef"`
	PageName               *string    `json:"pageName"`
	DisplayDurationSeconds int        `json:"displayDurationSeconds"`
	ExpiresAt              *time.Time `json:"expiresAt"`
}

// RawItem is an ingestion request before identity resolution and validation.
// Field values are taken verbatim from the submitting client.
type RawItem struct {
	Type            string
	URLOrFilename   string
	PageName        string
	DisplayDuration string
	Expiration      string
}

func cloneItems(items []MediaItem) []MediaItem {
	if items == nil {
		return nil
	}
	out := make([]MediaItem, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}

func (m MediaItem) clone() MediaItem {
	c := m
	if m.SourceRef != nil {
		v := *m.SourceRef
		c.SourceRef = &v
	}
	if m.PageName != nil {
		v := *m.PageName
		c.PageName = &v
	}
	if m.ExpiresAt != nil {
		v := *m.ExpiresAt
		c.ExpiresAt = &v
	}
	return c
}

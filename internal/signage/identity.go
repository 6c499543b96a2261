package signage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDisplayDuration is used when a submitted duration is missing or invalid.
const DefaultDisplayDuration = 15

// Identity is the resolved identifying part of a media item.
type Identity struct {
	Identifier string
	SourceRef  *string
	PageName   *string
}

// ResolveIdentity derives an item's identifier from its type and submitted fields.
// Embedded report pages are keyed "<report>_<page>" so several pages of one
// report can sit in the same manifest. Every other type is keyed by raw.
func ResolveIdentity(t MediaType, raw, pageName string) Identity {
	if t != MediaEmbeddedReport {
		return Identity{Identifier: raw}
	}
	ref := raw
	if pageName == "" {
		return Identity{Identifier: raw, SourceRef: &ref}
	}
	page := pageName
	return Identity{
		Identifier: raw + "_" + pageName,
		SourceRef:  &ref,
		PageName:   &page,
	}
}

// ParseDisplayDuration reads a leading integer from s the way form inputs are
// usually submitted ("20", " 20 ", "20s"). Anything that does not yield a
// positive number becomes DefaultDisplayDuration, including values too large
// for an int.
func ParseDisplayDuration(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return DefaultDisplayDuration
	}
	return n
}

var localExpiryLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseExpiry parses an expiry instant. An empty string means "no expiry" and
// yields nil. Timestamps with a zone offset are taken as-is; zone-less forms
// (including HTML datetime-local values) are read in loc. The result is UTC.
func ParseExpiry(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u, nil
	}
	for _, layout := range localExpiryLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: unparseable expiry %q", ErrValidation, s)
}

// reorderItems builds the sequence named by order from items. Identifiers not
// in items are skipped; items not named are dropped; a repeated identifier
// is taken once.
func reorderItems(items []MediaItem, order []string) (kept, dropped []MediaItem) {
	index := make(map[string]int, len(items))
	for i, it := range items {
		if _, seen := index[it.Identifier]; !seen {
			index[it.Identifier] = i
		}
	}

	used := make(map[int]bool, len(order))
	kept = make([]MediaItem, 0, len(order))
	for _, id := range order {
		i, ok := index[id]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		kept = append(kept, items[i])
	}
	for i, it := range items {
		if !used[i] {
			dropped = append(dropped, it)
		}
	}
	return kept, dropped
}

package signage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"file":   fs,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	ref, page := "R1", "Sales"
	items := []MediaItem{
		{Identifier: "a.mp4", Type: MediaVideo, DisplayDurationSeconds: 15},
		{Identifier: "R1_Sales", Type: MediaEmbeddedReport, SourceRef: &ref, PageName: &page, DisplayDurationSeconds: 30, ExpiresAt: &exp},
	}

	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Load("p1"); err != nil || ok {
				t.Fatalf("Load before Save = ok %v, err %v", ok, err)
			}
			if err := s.Save("p1", items); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, ok, err := s.Load("p1")
			if err != nil || !ok {
				t.Fatalf("Load = ok %v, err %v", ok, err)
			}
			if len(got) != 2 || got[0].Identifier != "a.mp4" || got[1].Identifier != "R1_Sales" {
				t.Fatalf("unexpected items %+v", got)
			}
			if got[1].ExpiresAt == nil || !got[1].ExpiresAt.Equal(exp) {
				t.Errorf("ExpiresAt = %v, want %v", got[1].ExpiresAt, exp)
			}
			if got[1].SourceRef == nil || *got[1].SourceRef != "R1" {
				t.Errorf("SourceRef = %v", got[1].SourceRef)
			}

			ids, err := s.ListPlayerIDs()
			if err != nil || len(ids) != 1 || ids[0] != "p1" {
				t.Errorf("ListPlayerIDs = %v, %v", ids, err)
			}

			if err := s.Delete("p1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete("p1"); err != nil {
				t.Errorf("second Delete: %v", err)
			}
			if _, ok, _ := s.Load("p1"); ok {
				t.Error("manifest still present after Delete")
			}
		})
	}
}

func TestStore_empty_manifest_is_kept(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save("p1", nil); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.Load("p1")
			if err != nil || !ok {
				t.Fatalf("Load = ok %v, err %v", ok, err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty non-nil list, got %#v", got)
			}
		})
	}
}

func TestInMemoryStore_returns_copies(t *testing.T) {
	s := NewInMemoryStore()
	items := []MediaItem{{Identifier: "a", Type: MediaURL}}
	_ = s.Save("p1", items)
	items[0].Identifier = "changed"

	got, _, _ := s.Load("p1")
	got[0].Identifier = "also changed"

	again, _, _ := s.Load("p1")
	if again[0].Identifier != "a" {
		t.Errorf("store shares memory with callers: %q", again[0].Identifier)
	}
}

func TestFileStore_document_format(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("lobby", []MediaItem{{Identifier: "https://example.com", Type: MediaURL, DisplayDurationSeconds: 10}}); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "media_lobby.json"))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(b)
	for _, want := range []string{`"identifier": "https://example.com"`, `"sourceRef": null`, `"expiresAt": null`, "\n  "} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestFileStore_corrupt_document(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "media_p1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Load("p1")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestFileStore_ListPlayerIDs_ignores_other_files(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	_ = s.Save("b", nil)
	_ = s.Save("a", nil)
	for _, name := range []string{"players.json", "media_.json", ".media_c.json123", "notes.txt"} {
		_ = os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644)
	}

	ids, err := s.ListPlayerIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ListPlayerIDs = %v, want [a b]", ids)
	}
}

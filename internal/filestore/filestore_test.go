package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, legacyRoots ...string) *Store {
	t.Helper()
	s, err := New(t.TempDir(), legacyRoots...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSaveStripsTraversalSegments(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.Save("alice", 3, KindDocument, "../../evil.pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(rel, "..") {
		t.Fatalf("stored path still carries traversal segments: %q", rel)
	}
	abs := filepath.Join(s.Base(), filepath.FromSlash(rel))
	if _, err := os.Stat(abs); err != nil {
		t.Fatalf("stored file missing inside base: %v", err)
	}
}

func TestSaveStripsBackslashSegments(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.Save("alice", 3, KindDocument, `..\..\evil.pdf`, strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(rel, "..") {
		t.Fatalf("stored path still carries traversal segments: %q", rel)
	}
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		kind     Kind
		filename string
	}{
		{KindDocument, "report.txt"},
		{KindDocument, "slides.pptx"},
		{KindPresentation, "notes.pdf"},
		{KindPresentation, "archive.zip"},
		{KindDocument, "noext"},
	}
	for _, tc := range cases {
		if _, err := s.Save("alice", 3, tc.kind, tc.filename, strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("%s %q: expected ErrUnsupportedType, got %v", tc.kind, tc.filename, err)
		}
	}
}

func TestSaveAcceptsAllowedExtensions(t *testing.T) {
	s := newTestStore(t)

	allowed := []struct {
		kind     Kind
		filename string
	}{
		{KindPresentation, "deck.ppt"},
		{KindPresentation, "deck.PPTX"},
		{KindDocument, "report.pdf"},
		{KindOther, "anything.zip"},
	}
	for _, tc := range allowed {
		if _, err := s.Save("alice", 3, tc.kind, tc.filename, strings.NewReader("x")); err != nil {
			t.Fatalf("%s %q: unexpected error %v", tc.kind, tc.filename, err)
		}
	}
}

func TestResolveForDownloadRejectsEscape(t *testing.T) {
	s := newTestStore(t)

	for _, raw := range []string{
		"../outside.pdf",
		"../../etc/passwd",
		"/etc/passwd",
		"",
	} {
		if _, err := s.ResolveForDownload(raw); !errors.Is(err, ErrPathTraversal) {
			t.Fatalf("%q: expected ErrPathTraversal, got %v", raw, err)
		}
	}
}

func TestResolveForDownloadHandlesUploadsPrefix(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.Save("alice", 3, KindDocument, "report.pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	want := filepath.Join(s.Base(), filepath.FromSlash(rel))
	for _, raw := range []string{rel, "uploads/" + rel, "/uploads/" + rel} {
		got, err := s.ResolveForDownload(raw)
		if err != nil {
			t.Fatalf("resolve %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("resolve %q: got %q, want %q", raw, got, want)
		}
	}
}

func TestResolveForDownloadAcceptsLegacyRoot(t *testing.T) {
	legacy := t.TempDir()
	s := newTestStore(t, legacy)

	path := filepath.Join(legacy, "old.pdf")
	if err := os.WriteFile(path, []byte("pdf"), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	got, err := s.ResolveForDownload(path)
	if err != nil {
		t.Fatalf("resolve legacy path: %v", err)
	}
	if got != path {
		t.Fatalf("got %q, want %q", got, path)
	}

	other := filepath.Join(filepath.Dir(legacy), "not-covered", "x.pdf")
	if _, err := s.ResolveForDownload(other); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal outside legacy roots, got %v", err)
	}
}

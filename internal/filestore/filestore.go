// Package filestore stores submission files under one base directory and
// refuses anything that would land outside of it. Client-supplied names
// are never trusted: path segments are stripped, extensions are checked
// against per-kind allow-lists, and every resolved path is verified to
// stay within the sandbox after normalization.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType indicates the filename extension is not in the
	// kind's allow-list.
	ErrUnsupportedType = errors.New("filestore: unsupported file type")
	// ErrPathTraversal indicates a path resolved outside the base directory.
	ErrPathTraversal = errors.New("filestore: path escapes the upload directory")
)

// Kind is a submission file slot.
type Kind string

const (
	KindPresentation Kind = "presentation"
	KindDocument     Kind = "pdf"
	KindOther        Kind = "other"
)

// allowedExtensions per kind; an empty list means unrestricted.
var allowedExtensions = map[Kind][]string{
	KindPresentation: {".ppt", ".pptx"},
	KindDocument:     {".pdf"},
	KindOther:        nil,
}

// storagePrefix prepended to stored file names per kind.
var storagePrefix = map[Kind]string{
	KindPresentation: "pres_",
	KindDocument:     "pdf_",
	KindOther:        "other_",
}

// ValidateExtension checks a client-supplied filename against the kind's
// allow-list.
func ValidateExtension(kind Kind, filename string) error {
	allowed := allowedExtensions[kind]
	if len(allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(cleanName(filename)))
	if ext == "" || ext == "." {
		return ErrUnsupportedType
	}
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return ErrUnsupportedType
}

// Store is a sandboxed file store rooted at one absolute base directory.
type Store struct {
	base        string
	legacyRoots []string
}

// New constructs a Store. A relative base is resolved against the
// working directory. legacyRoots are additional directories accepted on
// download for paths recorded before relative storage existed.
func New(base string, legacyRoots ...string) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve base: %w", err)
	}
	abs = filepath.Clean(abs)
	roots := make([]string, 0, len(legacyRoots))
	for _, r := range legacyRoots {
		if ra, err := filepath.Abs(r); err == nil {
			roots = append(roots, filepath.Clean(ra))
		}
	}
	return &Store{base: abs, legacyRoots: roots}, nil
}

// Base returns the absolute base directory.
func (s *Store) Base() string { return s.base }

// Save validates and writes one uploaded file and returns the stored
// path relative to the base, with forward slashes.
func (s *Store) Save(owner string, period int, kind Kind, filename string, content io.Reader) (string, error) {
	if err := ValidateExtension(kind, filename); err != nil {
		return "", err
	}
	name := cleanName(filename)
	if name == "" {
		name = "file"
	}
	dir := filepath.Join(s.base, cleanName(owner), fmt.Sprintf("%d", period))
	dest := filepath.Clean(filepath.Join(dir, storagePrefix[kind]+name))
	if !within(dest, s.base) {
		return "", ErrPathTraversal
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("filestore: mkdir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("filestore: create: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("filestore: write: %w", err)
	}
	rel, err := filepath.Rel(s.base, dest)
	if err != nil {
		return "", ErrPathTraversal
	}
	return filepath.ToSlash(rel), nil
}

// ResolveForDownload maps a stored path (relative, or a legacy absolute
// path) to an absolute path, accepting it only inside the base directory
// or an allowed legacy root.
func (s *Store) ResolveForDownload(raw string) (string, error) {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if normalized == "" {
		return "", ErrPathTraversal
	}

	// Paths recorded as "uploads/..." or "/uploads/..." point into the base.
	if trimmed, ok := strings.CutPrefix(normalized, "/uploads/"); ok {
		normalized = trimmed
	} else if trimmed, ok := strings.CutPrefix(normalized, "uploads/"); ok {
		normalized = trimmed
	}

	var resolved string
	if filepath.IsAbs(normalized) {
		resolved = filepath.Clean(normalized)
	} else {
		resolved = filepath.Clean(filepath.Join(s.base, filepath.FromSlash(normalized)))
	}

	if within(resolved, s.base) {
		return resolved, nil
	}
	for _, root := range s.legacyRoots {
		if within(resolved, root) {
			return resolved, nil
		}
	}
	return "", ErrPathTraversal
}

// cleanName strips every path segment from a client-supplied filename.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) || name == "/" {
		return ""
	}
	return name
}

// within reports whether path is base itself or inside it.
func within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

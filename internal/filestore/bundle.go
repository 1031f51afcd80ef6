package filestore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Filter restricts which kinds a bundle includes.
type Filter string

const (
	FilterAll Filter = "all"
	FilterPPT Filter = "ppt"
	FilterPDF Filter = "pdf"
)

// NormalizeFilter maps client input to a known filter, defaulting to all.
func NormalizeFilter(raw string) Filter {
	switch Filter(strings.ToLower(strings.TrimSpace(raw))) {
	case FilterPPT:
		return FilterPPT
	case FilterPDF:
		return FilterPDF
	default:
		return FilterAll
	}
}

// Includes reports whether the filter admits the kind.
func (f Filter) Includes(kind Kind) bool {
	switch f {
	case FilterPPT:
		return kind == KindPresentation
	case FilterPDF:
		return kind == KindDocument
	default:
		return true
	}
}

// BundleEntry is one candidate file for an archive export.
type BundleEntry struct {
	OwnerLabel string
	Kind       Kind
	StoredPath string
}

// Bundle writes the entries admitted by the filter into a single zip
// archive. Entries whose files are missing, non-regular or carry a
// disallowed extension are skipped; a bulk export never fails because
// one member's file disappeared. Entry names follow owner/kind_filename.
func (s *Store) Bundle(w io.Writer, entries []BundleEntry, filter Filter) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if !filter.Includes(entry.Kind) || strings.TrimSpace(entry.StoredPath) == "" {
			continue
		}
		resolved, err := s.ResolveForDownload(entry.StoredPath)
		if err != nil {
			continue
		}
		if err := ValidateExtension(entry.Kind, resolved); err != nil {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := addToZip(zw, entry, resolved); err != nil {
			return fmt.Errorf("filestore: bundle %s: %w", entry.StoredPath, err)
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, entry BundleEntry, resolved string) error {
	name := entry.OwnerLabel + "/" + string(entry.Kind) + "_" + filepath.Base(resolved)
	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	src, err := os.Open(resolved)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

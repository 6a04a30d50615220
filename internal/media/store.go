// Package media persists uploaded images (enrollment photos, check-in
// selfies) on local disk and hands out references the face service can
// resolve. Files are content-addressed so re-uploads of the same image
// are deduplicated for free.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store writes uploaded files under a base directory.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes r to disk and returns the stored reference (a path relative
// to the store root). The original filename only contributes its extension.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("media: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("media: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: close: %w", err)
	}

	name := hex.EncodeToString(h.Sum(nil)) + sanitizeExt(originalName)
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("media: store: %w", err)
	}
	return name, nil
}

// Path resolves a stored reference to an absolute path, refusing
// references that escape the store root.
func (s *Store) Path(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("media: invalid reference %q", ref)
	}
	return filepath.Join(s.dir, clean), nil
}

// Remove deletes a stored file. Missing files are not an error; rollback
// paths call this after the database row is already gone.
func (s *Store) Remove(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: remove: %w", err)
	}
	return nil
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

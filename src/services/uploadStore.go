package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrEmptyFilename = errors.New("filename is empty after sanitization")

// UploadStore is the directory tree that holds uploaded blobs. Blob names for
// normal uploads are flat (no nesting), but archive import/export must handle
// nested relative paths as well.
type UploadStore struct {
	root string
}

func NewUploadStore(root string) (*UploadStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	return &UploadStore{root: root}, nil
}

func (s *UploadStore) Root() string {
	return s.root
}

// SanitizeFilename strips directory components and traversal sequences from a
// client-supplied filename, leaving only a safe leaf name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// BlobName builds the on-disk name for an uploaded file. Blobs are prefixed
// with the owning record id so files from different records never collide.
func BlobName(recordId int, original string) (string, error) {
	clean := SanitizeFilename(original)
	if clean == "" {
		return "", ErrEmptyFilename
	}
	return fmt.Sprintf("%d_%s", recordId, clean), nil
}

func (s *UploadStore) Path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *UploadStore) Save(name string, r io.Reader) error {
	dst, err := os.Create(s.Path(name))
	if err != nil {
		return fmt.Errorf("could not save file %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return fmt.Errorf("could not save file %s: %w", name, err)
	}
	return nil
}

func (s *UploadStore) Remove(name string) error {
	return os.Remove(s.Path(name))
}

func (s *UploadStore) Exists(rel string) bool {
	full, err := s.securePath(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// Extract writes an archive entry under the store root, creating intermediate
// directories for nested entry paths.
func (s *UploadStore) Extract(rel string, r io.Reader) error {
	full, err := s.securePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", rel, err)
	}

	dst, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("could not extract %s: %w", rel, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(full)
		return fmt.Errorf("could not extract %s: %w", rel, err)
	}
	return nil
}

// Walk visits every stored blob with its root-relative slash path.
func (s *UploadStore) Walk(fn func(rel string, fullPath string) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), p)
	})
}

// securePath resolves an archive-relative path and rejects anything that
// would escape the store root.
func (s *UploadStore) securePath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || filepath.IsAbs(clean) ||
		strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive path %q", rel)
	}
	return filepath.Join(s.root, clean), nil
}

// Package media is the filesystem image collaborator. It sniffs the format,
// enforces the per-file size ceiling, and owns the on-disk layout
// <root>/wishes/<wishID>/<name>. Conversion and metadata stripping are out
// of scope; bytes are stored as received.
package media

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hpungsan/wishaday/internal/errors"
)

// DefaultMaxBytes is used when a Store is created with a non-positive ceiling.
const DefaultMaxBytes = 2 << 20

const wishesDir = "wishes"

// Accepted maps sniffed content types to stored file extensions.
var Accepted = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Store writes images under a root directory.
type Store struct {
	root     string
	maxBytes int
	minFree  uint64
	free     func(path string) (uint64, error)
}

// Option configures a Store.
type Option func(*Store)

// WithMinFreeBytes refuses saves that would leave less than n bytes free on
// the upload volume. Zero or a negative n disables the check.
func WithMinFreeBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.minFree = uint64(n)
		}
	}
}

// WithFreeSpaceFunc replaces the volume free-space lookup.
func WithFreeSpaceFunc(fn func(path string) (uint64, error)) Option {
	return func(s *Store) {
		if fn != nil {
			s.free = fn
		}
	}
}

// NewStore creates a Store rooted at root. The directory is created on first Save.
func NewStore(root string, maxBytes int, opts ...Option) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	s := &Store{root: root, maxBytes: maxBytes, free: freeBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.root
}

// Save validates data and writes it for wishID. It returns the stored path
// relative to Root, using forward slashes.
func (s *Store) Save(wishID, filename string, data []byte) (string, error) {
	if err := validateWishID(wishID); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.NewInvalidRequest("image data is empty")
	}
	if len(data) > s.maxBytes {
		return "", errors.NewTooLarge(s.maxBytes, len(data))
	}

	contentType := http.DetectContentType(data)
	ext, ok := Accepted[contentType]
	if !ok {
		return "", errors.NewRejectedFormat(contentType)
	}

	dir := filepath.Join(s.root, wishesDir, wishID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create image directory: %w", err))
	}
	if err := s.checkFreeSpace(dir, len(data)); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s.%s", sanitizeStem(filename), uuid.NewString()[:8], ext)
	if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
		return "", err
	}

	return wishesDir + "/" + wishID + "/" + name, nil
}

// checkFreeSpace rejects a write of size bytes into dir that would cut into
// the free-space reserve.
func (s *Store) checkFreeSpace(dir string, size int) error {
	if s.minFree == 0 {
		return nil
	}
	avail, err := s.free(dir)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to check free space: %w", err))
	}
	needed := s.minFree + uint64(size)
	if avail < needed {
		return errors.NewInsufficientStorage(avail, needed)
	}
	return nil
}

// Path resolves a stored relative path to an absolute one inside Root.
func (s *Store) Path(relPath string) (string, error) {
	if relPath == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(relPath) || filepath.IsAbs(relPath) {
		return "", errors.NewInvalidRequest("path must stay inside the upload directory")
	}
	return filepath.Join(s.root, filepath.FromSlash(relPath)), nil
}

// Delete removes one stored file. A missing file is not an error.
func (s *Store) Delete(relPath string) error {
	abs, err := s.Path(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return errors.NewInternal(fmt.Errorf("failed to remove image: %w", err))
	}
	return nil
}

// DeleteAll removes every file stored for wishID. A missing directory is not an error.
func (s *Store) DeleteAll(wishID string) error {
	if err := validateWishID(wishID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, wishesDir, wishID)); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to remove images for wish %s: %w", wishID, err))
	}
	return nil
}

// writeAtomic writes to a temp file first, then renames it into place so a
// reader never sees a partial image.
func writeAtomic(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create image file: %w", err))
	}

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize image file: %w", err))
	}

	success = true
	return nil
}

func validateWishID(wishID string) error {
	if wishID == "" {
		return errors.NewInvalidRequest("wish id is required")
	}
	if strings.ContainsAny(wishID, `/\`) || wishID == "." || wishID == ".." {
		return errors.NewInvalidRequest("wish id must be a single path component")
	}
	return nil
}

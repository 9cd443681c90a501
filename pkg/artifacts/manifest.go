package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ManifestEntry records one installed file with its checksum.
type ManifestEntry struct {
	// Path is relative to the install destination.
	Path string `json:"path"`

	// SHA256 is the hex-encoded digest of the file contents.
	SHA256 string `json:"sha256"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// Manifest is the persisted install-manifest.json document.
type Manifest struct {
	// CorrelationID ties the manifest to the run that produced it.
	CorrelationID string `json:"correlation_id"`

	// CreatedAt is when the manifest was generated.
	CreatedAt time.Time `json:"created_at"`

	// Version is the installer version that performed the run.
	Version string `json:"version"`

	// Destination is the install destination root.
	Destination string `json:"destination"`

	// Entries lists every installed file, sorted by path.
	Entries []ManifestEntry `json:"entries"`
}

// ChecksumFile returns the hex sha256 of a file's contents.
func ChecksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// BuildManifest walks the destination root and produces a manifest with a
// checksum per regular file. Entries are sorted by path so repeated builds
// over identical trees are byte-identical.
func BuildManifest(correlationID, version, root string) (*Manifest, error) {
	m := &Manifest{
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
		Version:       version,
		Destination:   root,
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		sum, size, err := ChecksumFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, ManifestEntry{
			Path:   filepath.ToSlash(rel),
			SHA256: sum,
			Size:   size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Path < m.Entries[j].Path })
	return m, nil
}

// Write persists the manifest atomically.
func (m *Manifest) Write(path string) error {
	return WriteJSONAtomic(path, m)
}

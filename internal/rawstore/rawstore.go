// Package rawstore reads the content store of raw message blobs: one JSON
// file per message, written by the mail-source connector. Blobs carry a
// stable external identifier plus either a full transport-encoded message
// or a pre-decomposed header/part envelope, and are re-read on resume.
package rawstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mailtx/mailtx/internal/mime"
	"github.com/rotisserie/eris"
)

// Blob is one raw message blob as persisted on disk.
type Blob struct {
	ID      string         `json:"id"`
	Raw     string         `json:"raw,omitempty"` // base64url RFC 5322 bytes
	Payload *mime.Envelope `json:"payload,omitempty"`
}

// Store reads raw blobs from a directory.
type Store struct {
	dir string
}

// New returns a Store over the given directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the blob directory path.
func (s *Store) Dir() string {
	return s.dir
}

// List returns the paths of all blob files in the store, sorted for
// stable iteration order across runs.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "read raw directory %s", s.dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read decodes the blob file at path.
func (s *Store) Read(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read blob %s", path)
	}
	var blob Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, eris.Wrapf(err, "decode blob %s", path)
	}
	if blob.ID == "" {
		return nil, eris.Errorf("blob %s has no id", path)
	}
	return &blob, nil
}

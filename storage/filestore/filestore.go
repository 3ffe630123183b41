// Package filestore provides the filesystem mirror backend: one JSON file
// per session under a configured backup directory. The mirror is a
// best-effort local replica; the durable store stays authoritative.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/itc-kingsavage/savage-scanner/storage"
)

const fileExt = ".json"

// Store implements storage.Backend on a local directory.
type Store struct {
	dir string
}

var _ storage.Backend = (*Store)(nil)

// NewStore creates the backup directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+fileExt)
}

// Put writes the record atomically via a temp file and rename, so a crash
// mid-write never leaves a truncated mirror copy.
func (s *Store) Put(sessionID string, record *storage.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling session record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, sessionID+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp mirror file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing mirror file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing mirror file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting mirror file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path(sessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming mirror file: %w", err)
	}
	return nil
}

func (s *Store) Get(sessionID string) (*storage.SessionRecord, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("reading mirror file: %w", err)
	}
	var record storage.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling mirror file: %w", err)
	}
	return &record, nil
}

func (s *Store) Delete(sessionID string) error {
	if err := os.Remove(s.path(sessionID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		return fmt.Errorf("removing mirror file: %w", err)
	}
	return nil
}

func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	return ids, nil
}

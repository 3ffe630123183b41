// Package bbolt provides the durable, authoritative session store backed
// by a BBolt database.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/itc-kingsavage/savage-scanner/storage"
)

var sessionsBucket = []byte("sessions")

// Store implements storage.Backend on top of a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Backend = (*Store)(nil)

// NewStore wraps an already-open BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(sessionID string, record *storage.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling session record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(sessionID), data)
	})
}

func (s *Store) Get(sessionID string) (*storage.SessionRecord, error) {
	var record storage.SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(sessionID))
		if data == nil {
			return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Delete(sessionID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(sessionID)) == nil {
			return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		return b.Delete([]byte(sessionID))
	})
}

func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

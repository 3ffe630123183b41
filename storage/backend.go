// Package storage provides the backend abstraction for persisted session
// records. The vault dual-writes every record to two independent backends:
// a durable document store and a local filesystem mirror.
package storage

import "errors"

// ErrNotFound is returned when no record exists for the given session ID.
var ErrNotFound = errors.New("session record not found")

// Backend stores session records keyed by session ID. Implementations must
// be safe for concurrent use.
type Backend interface {
	Put(sessionID string, record *SessionRecord) error
	Get(sessionID string) (*SessionRecord, error)
	Delete(sessionID string) error
	List() ([]string, error)
}

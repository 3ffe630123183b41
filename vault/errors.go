package vault

import (
	"errors"

	"github.com/itc-kingsavage/savage-scanner/storage"
)

var (
	// ErrNotFound indicates no session record exists for the requested ID.
	ErrNotFound = storage.ErrNotFound
	// ErrSessionCorrupted indicates both copies of a session failed
	// integrity or decryption checks. The outcome is fatal for the record;
	// it is never retried further.
	ErrSessionCorrupted = errors.New("session corrupted in both backends")
	// ErrMalformedSessionID indicates the identifier fails the canonical
	// grammar and was rejected before any lookup.
	ErrMalformedSessionID = errors.New("malformed session ID")
)

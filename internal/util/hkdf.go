package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFKeyLength is the size of every expanded key in bytes.
const HKDFKeyLength = 32

// HKDF expands a stretched secret into a 32-byte purpose-bound key. The
// info parameter carries the purpose scoping: distinct infos yield
// independent keys from the same secret and salt.
func HKDF(secret, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("expanding HKDF key: %w", err)
	}
	return key, nil
}

package util

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2idParams is tuned so a single derivation stays well under
// 100ms on commodity hardware while remaining memory-hard.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

func DeriveArgon2idKey(secret, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes")
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("argon2id salt must not be empty")
	}
	key := argon2.IDKey(secret, salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}

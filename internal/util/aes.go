package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	AESKeySize  = 32
	GCMTagSize  = 16
	GCMIVLength = 12
)

// EncryptAESGCM seals plaintext with AES-256-GCM under a fresh random IV.
// It returns the IV, the ciphertext body, and the authentication tag as
// separate slices so callers can persist them as distinct envelope fields.
func EncryptAESGCM(plainText, rawKey, aad []byte) (iv, cipherText, tag []byte, err error) {
	if len(rawKey) != AESKeySize {
		return nil, nil, nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	iv = make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generating IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plainText, aad)
	cipherText = sealed[:len(sealed)-GCMTagSize]
	tag = sealed[len(sealed)-GCMTagSize:]

	return iv, cipherText, tag, nil
}

// DecryptAESGCM opens ciphertext||tag with AES-256-GCM.
func DecryptAESGCM(iv, cipherText, tag, rawKey, aad []byte) ([]byte, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	if len(iv) != GCMIVLength {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), GCMIVLength)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	sealed := make([]byte, 0, len(cipherText)+len(tag))
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	plainText, err := gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}

	return plainText, nil
}

// NewAESKey returns a fresh random 32-byte AES key.
func NewAESKey() ([]byte, error) {
	rawKey := make([]byte, AESKeySize)
	if _, err := rand.Read(rawKey); err != nil {
		return nil, fmt.Errorf("generating AES key: %w", err)
	}
	return rawKey, nil
}

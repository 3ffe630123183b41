// Package crypto implements the encryption engine: authenticated symmetric
// encryption with purpose-scoped key derivation and a tamper-evident
// envelope format.
package crypto

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

const (
	// MasterKeySize is the required master key length in bytes. The hex
	// form supplied at startup must therefore be exactly 64 characters.
	MasterKeySize = 32

	saltSize = 16

	defaultEvictionInterval = 1 * time.Hour
	defaultKeyMaxIdle       = 1 * time.Hour
)

// Engine derives per-purpose encryption keys from a master key and seals
// plaintext into tamper-evident envelopes. Every Encrypt call uses a fresh
// random salt, so no two envelopes are comparable even for identical
// plaintext and purpose.
//
// Rotation installs a new master key under a bumped key version. Old
// versions stay resident so envelopes written before the rotation remain
// decryptable; no re-encryption sweep is performed.
type Engine struct {
	mu      sync.RWMutex
	masters map[uint32]*memguard.Enclave
	version uint32
	params  util.Argon2idParams
	cache   map[string]*derivedKey

	logger           *slog.Logger
	evictionInterval time.Duration
	keyMaxIdle       time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Derived keys are cached by (key version, purpose, salt) so reads of the
// same envelope skip the slow derivation. Eviction is time-based only.
type derivedKey struct {
	key      []byte
	lastUsed time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithKDFParams overrides the Argon2id derivation parameters.
func WithKDFParams(params util.Argon2idParams) Option {
	return func(e *Engine) {
		e.params = params
	}
}

// WithEvictionInterval overrides the derived-key cache sweep interval.
// Entries idle for longer than the interval are dropped.
func WithEvictionInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.evictionInterval = interval
		e.keyMaxIdle = interval
	}
}

// ParseMasterKey decodes and validates a hex-encoded master key. A missing
// or wrong-length key is a hard failure; the engine refuses to start
// without exactly MasterKeySize bytes.
func ParseMasterKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("master key is required")
	}
	raw, err := util.HexDecode(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(raw) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(raw))
	}
	return raw, nil
}

// NewEngine creates an engine from a hex-encoded master key and starts the
// background derived-key eviction loop. Callers must Close the engine when
// done.
func NewEngine(masterKeyHex string, opts ...Option) (*Engine, error) {
	raw, err := ParseMasterKey(masterKeyHex)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		masters:          map[uint32]*memguard.Enclave{1: memguard.NewEnclave(raw)},
		version:          1,
		params:           util.DefaultArgon2idParams(),
		cache:            make(map[string]*derivedKey),
		evictionInterval: defaultEvictionInterval,
		keyMaxIdle:       defaultKeyMaxIdle,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	go e.evictionLoop()
	return e, nil
}

// Close stops the eviction loop and wipes all cached key material.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.mu.Lock()
		defer e.mu.Unlock()
		for k, dk := range e.cache {
			util.WipeBytes(dk.key)
			delete(e.cache, k)
		}
	})
}

// KeyVersion returns the current master key version. The vault records it
// in session metadata so envelopes written before a rotation can name the
// key they were sealed under.
func (e *Engine) KeyVersion() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Rotate installs a new master key under the next key version and clears
// the derived-key cache. Previous versions remain available for decryption
// indefinitely; existing envelopes are not re-encrypted.
func (e *Engine) Rotate(masterKeyHex string) error {
	raw, err := ParseMasterKey(masterKeyHex)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.version++
	e.masters[e.version] = memguard.NewEnclave(raw)
	for k, dk := range e.cache {
		util.WipeBytes(dk.key)
		delete(e.cache, k)
	}
	e.logger.Info("master key rotated", "key_version", e.version)
	return nil
}

// Encrypt seals plaintext into a new envelope under a key derived for the
// given purpose with a fresh random salt.
func (e *Engine) Encrypt(plaintext []byte, purpose string, aad []byte) (*Envelope, error) {
	if purpose == "" {
		return nil, fmt.Errorf("purpose must not be empty")
	}

	salt, err := util.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	version := e.version
	e.mu.RUnlock()

	key, err := e.deriveKey(version, purpose, salt)
	if err != nil {
		return nil, err
	}

	iv, ciphertext, tag, err := util.EncryptAESGCM(plaintext, key, aad)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		SchemaVersion: envelopeSchemaVersion,
		Scheme:        envelopeScheme,
		Purpose:       purpose,
		IV:            iv,
		Salt:          salt,
		Ciphertext:    ciphertext,
		Tag:           tag,
		AAD:           aad,
		CreatedAt:     time.Now().UTC(),
	}
	env.Digest = env.computeDigest()
	return env, nil
}

// Decrypt opens an envelope under the current master key version.
func (e *Engine) Decrypt(env *Envelope, purpose string) ([]byte, error) {
	return e.DecryptVersion(env, purpose, e.KeyVersion())
}

// DecryptVersion opens an envelope under a specific master key version.
// The digest is verified before any decryption is attempted; a digest
// mismatch returns ErrIntegrity, everything else returns ErrDecryption
// without a cause.
func (e *Engine) DecryptVersion(env *Envelope, purpose string, keyVersion uint32) ([]byte, error) {
	if env == nil {
		return nil, ErrDecryption
	}
	if err := env.VerifyDigest(); err != nil {
		return nil, err
	}
	if env.SchemaVersion != envelopeSchemaVersion || env.Scheme != envelopeScheme {
		return nil, ErrDecryption
	}
	if env.Purpose != purpose {
		return nil, ErrDecryption
	}

	key, err := e.deriveKey(keyVersion, purpose, env.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := util.DecryptAESGCM(env.IV, env.Ciphertext, env.Tag, key, env.AAD)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func cacheKey(version uint32, purpose string, salt []byte) string {
	return fmt.Sprintf("%d|%s|%s", version, purpose, util.HexEncode(salt))
}

func (e *Engine) deriveKey(version uint32, purpose string, salt []byte) ([]byte, error) {
	ck := cacheKey(version, purpose, salt)

	e.mu.Lock()
	if dk, ok := e.cache[ck]; ok {
		dk.lastUsed = time.Now()
		key := util.CopyBytes(dk.key)
		e.mu.Unlock()
		return key, nil
	}
	enclave, ok := e.masters[version]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("key version %d: %w", version, ErrUnknownKeyVersion)
	}

	masterBuf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	defer masterBuf.Destroy()

	stretched, err := util.DeriveArgon2idKey(masterBuf.Bytes(), salt, e.params)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(stretched)

	key, err := util.HKDF(stretched, salt, []byte("scanner:purpose:"+purpose))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[ck] = &derivedKey{key: util.CopyBytes(key), lastUsed: time.Now()}
	e.mu.Unlock()
	return key, nil
}

// evictionLoop periodically drops derived keys that haven't been used
// recently. The cache is deliberately unbounded in size; only idle time
// evicts.
func (e *Engine) evictionLoop() {
	ticker := time.NewTicker(e.evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.evictIdle()
		}
	}
}

func (e *Engine) evictIdle() {
	cutoff := time.Now().Add(-e.keyMaxIdle)
	e.mu.Lock()
	defer e.mu.Unlock()
	evicted := 0
	for k, dk := range e.cache {
		if dk.lastUsed.Before(cutoff) {
			util.WipeBytes(dk.key)
			delete(e.cache, k)
			evicted++
		}
	}
	if evicted > 0 {
		e.logger.Debug("evicted idle derived keys", "count", evicted)
	}
}

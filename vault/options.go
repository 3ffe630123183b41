package vault

import (
	"log/slog"
	"time"
)

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the vault's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// WithCacheCapacity bounds the decrypted-session LRU cache.
func WithCacheCapacity(n int) Option {
	return func(v *Vault) {
		v.cache = newSessionCache(n)
	}
}

// WithSessionTTL sets the inactivity TTL after which sessions are removed
// by the background sweep.
func WithSessionTTL(ttl time.Duration) Option {
	return func(v *Vault) {
		v.sessionTTL = ttl
	}
}

// WithSweepInterval sets how often the inactivity sweep runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(v *Vault) {
		v.sweepInterval = interval
	}
}

// WithWriteRetries configures bounded-backoff retries for durable-store
// writes. attempts counts total tries; base is the first retry delay,
// doubled per attempt.
func WithWriteRetries(attempts int, base time.Duration) Option {
	return func(v *Vault) {
		v.retryAttempts = attempts
		v.retryBase = base
	}
}

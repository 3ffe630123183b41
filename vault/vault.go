// Package vault persists encrypted session credentials across two
// independent backends with read-through fallback and self-healing
// recovery. The durable store is authoritative; the filesystem mirror is a
// best-effort replica.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/itc-kingsavage/savage-scanner/crypto"
	"github.com/itc-kingsavage/savage-scanner/ident"
	"github.com/itc-kingsavage/savage-scanner/internal/util"
	"github.com/itc-kingsavage/savage-scanner/storage"
)

// PurposeSession scopes every credential envelope the vault writes.
const PurposeSession = "session-credentials"

const (
	defaultCacheCapacity = 1024
	defaultSessionTTL    = 30 * 24 * time.Hour
	defaultSweepInterval = 1 * time.Hour
	defaultRetryAttempts = 3
	defaultRetryBase     = 100 * time.Millisecond
)

// Ack reports the per-backend outcome of a dual write or delete.
type Ack struct {
	PrimaryOK bool
	MirrorOK  bool
}

// Vault is the session vault. All operations on the same session ID are
// serialized through a per-key mutex so dual-backend writes never
// interleave.
type Vault struct {
	engine  *crypto.Engine
	primary storage.Backend
	mirror  storage.Backend
	cache   *sessionCache
	locks   *keyedMutex
	logger  *slog.Logger

	sessionTTL    time.Duration
	sweepInterval time.Duration
	retryAttempts int
	retryBase     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Vault over the given engine and backends and starts the
// inactivity sweep. Callers must Close the vault when done.
func New(engine *crypto.Engine, primary, mirror storage.Backend, opts ...Option) *Vault {
	v := &Vault{
		engine:        engine,
		primary:       primary,
		mirror:        mirror,
		cache:         newSessionCache(defaultCacheCapacity),
		locks:         newKeyedMutex(),
		sessionTTL:    defaultSessionTTL,
		sweepInterval: defaultSweepInterval,
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	go v.sweepLoop()
	return v
}

// Close stops the background sweep.
func (v *Vault) Close() {
	v.stopOnce.Do(func() {
		close(v.stopCh)
	})
}

// Put encrypts plaintext into a fresh envelope and writes the session
// record to both backends. The durable store is authoritative: its failure
// is returned to the caller after bounded-backoff retries. Mirror failure
// is advisory and only logged.
func (v *Vault) Put(ctx context.Context, sessionID string, plaintext []byte, phoneNumber, botAssociation string) (Ack, error) {
	var ack Ack
	if err := ctx.Err(); err != nil {
		return ack, err
	}
	if !ident.ValidSessionID(sessionID) {
		return ack, fmt.Errorf("%s: %w", sessionID, ErrMalformedSessionID)
	}

	unlock := v.locks.lock(sessionID)
	defer unlock()

	env, err := v.engine.Encrypt(plaintext, PurposeSession, []byte(sessionID))
	if err != nil {
		return ack, fmt.Errorf("encrypting session: %w", err)
	}

	now := time.Now().UTC()
	rec := &storage.SessionRecord{
		SessionID:        sessionID,
		OwnerPhoneNumber: phoneNumber,
		Envelope:         *env,
		BotAssociation:   botAssociation,
		PlatformTag:      "whatsapp",
		IsActive:         true,
		LastAccessedAt:   now,
		CreatedAt:        v.createdAt(sessionID, now),
		Metadata: storage.Metadata{
			Version:        v.engine.KeyVersion(),
			EnvelopeDigest: util.HexEncode(env.Digest),
		},
	}

	primaryErr := v.putPrimaryWithRetry(sessionID, rec)
	ack.PrimaryOK = primaryErr == nil

	if err := v.mirror.Put(sessionID, rec); err != nil {
		v.logger.Warn("mirror write failed", "session_id", sessionID, "error", err)
	} else {
		ack.MirrorOK = true
	}

	if primaryErr != nil {
		return ack, fmt.Errorf("durable store write: %w", primaryErr)
	}

	v.cache.put(sessionID, rec, plaintext)
	return ack, nil
}

// Get returns the session record and its decrypted credential plaintext.
// Read-through order: cache, durable store, mirror. A mirror hit on a
// durable-store miss repairs the durable store before returning. If a
// copy fails integrity or decryption, exactly one recovery pass against
// the other backend is attempted; failure there returns
// ErrSessionCorrupted.
func (v *Vault) Get(ctx context.Context, sessionID string) (*storage.SessionRecord, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !ident.ValidSessionID(sessionID) {
		return nil, nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}

	unlock := v.locks.lock(sessionID)
	defer unlock()

	if rec, plaintext, ok := v.cache.get(sessionID); ok {
		return rec, plaintext, nil
	}

	rec, fromMirror, err := v.readThrough(sessionID)
	if err != nil {
		return nil, nil, err
	}

	plaintext, rec, err := v.decryptWithRecovery(sessionID, rec, fromMirror)
	if err != nil {
		return nil, nil, err
	}

	// Touch and re-encrypt under a fresh salt so the stored envelope is
	// never replayable, then write back best-effort.
	rec = v.touch(sessionID, rec, plaintext)

	v.cache.put(sessionID, rec, plaintext)
	return rec.Clone(), plaintext, nil
}

// Delete removes the session from both backends and the cache. A record
// already absent from a backend counts as deleted there.
func (v *Vault) Delete(ctx context.Context, sessionID string) (Ack, error) {
	var ack Ack
	if err := ctx.Err(); err != nil {
		return ack, err
	}
	if !ident.ValidSessionID(sessionID) {
		return ack, fmt.Errorf("%s: %w", sessionID, ErrMalformedSessionID)
	}

	unlock := v.locks.lock(sessionID)
	defer unlock()

	v.cache.remove(sessionID)

	primaryErr := v.primary.Delete(sessionID)
	if primaryErr == nil || errors.Is(primaryErr, storage.ErrNotFound) {
		ack.PrimaryOK = true
		primaryErr = nil
	}

	mirrorErr := v.mirror.Delete(sessionID)
	if mirrorErr == nil || errors.Is(mirrorErr, storage.ErrNotFound) {
		ack.MirrorOK = true
	} else {
		v.logger.Warn("mirror delete failed", "session_id", sessionID, "error", mirrorErr)
	}

	if primaryErr != nil {
		return ack, fmt.Errorf("durable store delete: %w", primaryErr)
	}
	return ack, nil
}

// Deactivate marks a session inactive on logout without removing it. The
// sweep deletes it once the inactivity TTL elapses.
func (v *Vault) Deactivate(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ident.ValidSessionID(sessionID) {
		return fmt.Errorf("%s: %w", sessionID, ErrMalformedSessionID)
	}

	unlock := v.locks.lock(sessionID)
	defer unlock()

	v.cache.remove(sessionID)

	rec, _, err := v.readThrough(sessionID)
	if err != nil {
		return err
	}
	rec.IsActive = false

	if err := v.putPrimaryWithRetry(sessionID, rec); err != nil {
		return fmt.Errorf("durable store write: %w", err)
	}
	if err := v.mirror.Put(sessionID, rec); err != nil {
		v.logger.Warn("mirror write failed", "session_id", sessionID, "error", err)
	}
	return nil
}

// List returns the session IDs known to the durable store.
func (v *Vault) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.primary.List()
}

// readThrough loads a record from the durable store, falling back to the
// mirror. A mirror hit on a durable-store miss triggers an immediate
// repair write.
func (v *Vault) readThrough(sessionID string) (*storage.SessionRecord, bool, error) {
	rec, primaryErr := v.primary.Get(sessionID)
	if primaryErr == nil {
		return rec, false, nil
	}

	if !errors.Is(primaryErr, storage.ErrNotFound) {
		v.logger.Warn("durable store read failed, trying mirror", "session_id", sessionID, "error", primaryErr)
	}

	rec, mirrorErr := v.mirror.Get(sessionID)
	if mirrorErr != nil {
		if errors.Is(primaryErr, storage.ErrNotFound) && errors.Is(mirrorErr, storage.ErrNotFound) {
			return nil, false, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
		}
		return nil, false, fmt.Errorf("reading session %s: %w", sessionID, primaryErr)
	}

	if errors.Is(primaryErr, storage.ErrNotFound) {
		if err := v.putPrimaryWithRetry(sessionID, rec); err != nil {
			v.logger.Error("durable store repair failed", "session_id", sessionID, "error", err)
		} else {
			v.logger.Info("durable store repaired from mirror", "session_id", sessionID)
		}
	}
	return rec, true, nil
}

// decryptWithRecovery opens the record's envelope. On integrity or
// decryption failure it makes exactly one recovery pass against the other
// backend, repairing the bad copy when the other one opens cleanly.
func (v *Vault) decryptWithRecovery(sessionID string, rec *storage.SessionRecord, fromMirror bool) ([]byte, *storage.SessionRecord, error) {
	plaintext, err := v.openRecord(sessionID, rec)
	if err == nil {
		return plaintext, rec, nil
	}

	source, other := "durable store", v.mirror
	if fromMirror {
		source, other = "mirror", v.primary
	}
	v.logger.Warn("session envelope failed to open, attempting recovery",
		"session_id", sessionID, "source", source, "error", err)

	otherRec, otherErr := other.Get(sessionID)
	if otherErr != nil {
		return nil, nil, fmt.Errorf("%s: %w", sessionID, ErrSessionCorrupted)
	}
	plaintext, err = v.openRecord(sessionID, otherRec)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", sessionID, ErrSessionCorrupted)
	}

	// Overwrite the bad copy with the good one.
	var repairErr error
	if fromMirror {
		repairErr = v.mirror.Put(sessionID, otherRec)
	} else {
		repairErr = v.putPrimaryWithRetry(sessionID, otherRec)
	}
	if repairErr != nil {
		v.logger.Error("corrupt copy repair failed", "session_id", sessionID, "error", repairErr)
	} else {
		v.logger.Info("corrupt copy repaired", "session_id", sessionID, "repaired", source)
	}
	return plaintext, otherRec, nil
}

// openRecord decrypts a record's envelope after confirming the record is
// the one that was asked for. A record swapped between storage keys still
// decrypts cleanly under its own AAD, so the identifier binding must be
// checked explicitly before any plaintext is returned.
func (v *Vault) openRecord(sessionID string, rec *storage.SessionRecord) ([]byte, error) {
	if rec.SessionID != sessionID || string(rec.Envelope.AAD) != sessionID {
		return nil, fmt.Errorf("record for %q stored under key %q", rec.SessionID, sessionID)
	}
	return v.engine.DecryptVersion(&rec.Envelope, PurposeSession, rec.Metadata.Version)
}

// touch bumps LastAccessedAt and replaces the envelope with a freshly
// salted one. Write-back is best-effort on both backends; a read never
// fails because its write-back did.
func (v *Vault) touch(sessionID string, rec *storage.SessionRecord, plaintext []byte) *storage.SessionRecord {
	env, err := v.engine.Encrypt(plaintext, PurposeSession, []byte(sessionID))
	if err != nil {
		v.logger.Warn("re-encrypt on read failed", "session_id", sessionID, "error", err)
		rec.LastAccessedAt = time.Now().UTC()
		return rec
	}

	fresh := rec.Clone()
	fresh.Envelope = *env
	fresh.LastAccessedAt = time.Now().UTC()
	fresh.Metadata = storage.Metadata{
		Version:        v.engine.KeyVersion(),
		EnvelopeDigest: util.HexEncode(env.Digest),
	}

	if err := v.putPrimaryWithRetry(sessionID, fresh); err != nil {
		v.logger.Warn("durable store write-back failed", "session_id", sessionID, "error", err)
	}
	if err := v.mirror.Put(sessionID, fresh); err != nil {
		v.logger.Warn("mirror write-back failed", "session_id", sessionID, "error", err)
	}
	return fresh
}

// persistActivity writes a cache-resident record back to both backends so
// its access time survives a restart and the next sweep.
func (v *Vault) persistActivity(sessionID string, rec *storage.SessionRecord) {
	unlock := v.locks.lock(sessionID)
	defer unlock()

	if err := v.putPrimaryWithRetry(sessionID, rec); err != nil {
		v.logger.Warn("activity write-back failed", "session_id", sessionID, "error", err)
		return
	}
	if err := v.mirror.Put(sessionID, rec); err != nil {
		v.logger.Warn("mirror write-back failed", "session_id", sessionID, "error", err)
	}
}

// putPrimaryWithRetry writes to the durable store with bounded backoff.
func (v *Vault) putPrimaryWithRetry(sessionID string, rec *storage.SessionRecord) error {
	var err error
	delay := v.retryBase
	for attempt := 1; attempt <= v.retryAttempts; attempt++ {
		err = v.primary.Put(sessionID, rec)
		if err == nil {
			return nil
		}
		if attempt < v.retryAttempts {
			v.logger.Debug("durable store write retry",
				"session_id", sessionID, "attempt", attempt, "error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// createdAt preserves the original creation time for an existing session.
func (v *Vault) createdAt(sessionID string, fallback time.Time) time.Time {
	if rec, _, ok := v.cache.get(sessionID); ok {
		return rec.CreatedAt
	}
	if rec, err := v.primary.Get(sessionID); err == nil {
		return rec.CreatedAt
	}
	return fallback
}

// sweepLoop removes sessions idle past the TTL. It takes no caller-facing
// locks beyond the per-key mutex of the record it is deleting.
func (v *Vault) sweepLoop() {
	ticker := time.NewTicker(v.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stopCh:
			return
		case <-ticker.C:
			v.sweepExpired()
		}
	}
}

func (v *Vault) sweepExpired() {
	ids, err := v.primary.List()
	if err != nil {
		v.logger.Warn("inactivity sweep: durable store list failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-v.sessionTTL)
	for _, id := range ids {
		rec, err := v.primary.Get(id)
		if err != nil {
			continue
		}
		if rec.LastAccessedAt.After(cutoff) {
			continue
		}
		// Cache-served reads never touch the backends, so the stored
		// record can look idle while the session is in active use. The
		// cache holds the real access time; persist it instead of
		// deleting.
		if cached, ok := v.cache.peek(id); ok && cached.LastAccessedAt.After(cutoff) {
			v.persistActivity(id, cached)
			continue
		}
		if _, err := v.Delete(context.Background(), id); err != nil {
			v.logger.Warn("inactivity sweep delete failed", "session_id", id, "error", err)
		} else {
			v.logger.Info("expired session removed", "session_id", id)
		}
	}
}

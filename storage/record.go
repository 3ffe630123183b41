package storage

import (
	"time"

	"github.com/itc-kingsavage/savage-scanner/crypto"
	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

// Metadata carries bookkeeping the vault needs that lives outside the
// envelope: the master key version the envelope was sealed under and a hex
// copy of its integrity digest for quick divergence checks.
type Metadata struct {
	Version        uint32 `json:"version"`
	EnvelopeDigest string `json:"envelope_digest"`
}

// SessionRecord is the persisted unit for one bot session. A record owns
// exactly one current envelope; re-encryption replaces it, prior envelopes
// are not versioned.
type SessionRecord struct {
	SessionID        string          `json:"session_id"`
	OwnerPhoneNumber string          `json:"owner_phone_number"`
	Envelope         crypto.Envelope `json:"envelope"`
	BotAssociation   string          `json:"bot_association"`
	PlatformTag      string          `json:"platform_tag"`
	IsActive         bool            `json:"is_active"`
	LastAccessedAt   time.Time       `json:"last_accessed_at"`
	CreatedAt        time.Time       `json:"created_at"`
	Metadata         Metadata        `json:"metadata"`
}

// Clone returns a deep copy so backends and caches never share mutable
// envelope slices with callers.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Envelope.IV = util.CopyBytes(r.Envelope.IV)
	cp.Envelope.Salt = util.CopyBytes(r.Envelope.Salt)
	cp.Envelope.Ciphertext = util.CopyBytes(r.Envelope.Ciphertext)
	cp.Envelope.Tag = util.CopyBytes(r.Envelope.Tag)
	cp.Envelope.AAD = util.CopyBytes(r.Envelope.AAD)
	cp.Envelope.Digest = util.CopyBytes(r.Envelope.Digest)
	return &cp
}

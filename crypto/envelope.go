package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"time"
)

const (
	envelopeSchemaVersion = 1
	envelopeScheme        = "aes256gcm"
)

// Envelope is a self-describing sealed record: AES-256-GCM ciphertext plus
// everything needed to verify and decrypt it, except the master key. The
// vault treats envelopes as opaque; only this package reads their fields.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	Scheme        string    `json:"scheme"`
	Purpose       string    `json:"purpose"`
	IV            []byte    `json:"iv"`
	Salt          []byte    `json:"salt"`
	Ciphertext    []byte    `json:"ciphertext"`
	Tag           []byte    `json:"tag"`
	AAD           []byte    `json:"aad,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Digest        []byte    `json:"digest"`
}

// computeDigest hashes every envelope field except Digest itself, in fixed
// order, with length prefixes so field boundaries can't be shifted.
func (e *Envelope) computeDigest() []byte {
	var buf []byte
	b4 := make([]byte, 4)
	binary.BigEndian.PutUint32(b4, uint32(e.SchemaVersion))
	buf = append(buf, b4...)
	buf = appendLenPrefix(buf, []byte(e.Scheme))
	buf = appendLenPrefix(buf, []byte(e.Purpose))
	buf = appendLenPrefix(buf, e.IV)
	buf = appendLenPrefix(buf, e.Salt)
	buf = appendLenPrefix(buf, e.Ciphertext)
	buf = appendLenPrefix(buf, e.Tag)
	buf = appendLenPrefix(buf, e.AAD)
	b8 := make([]byte, 8)
	binary.BigEndian.PutUint64(b8, uint64(e.CreatedAt.UnixNano()))
	buf = append(buf, b8...)

	sum := sha256.Sum256(buf)
	return sum[:]
}

// VerifyDigest checks the envelope's integrity digest against its fields.
// A mismatch means the envelope was altered or truncated in storage and it
// must not be passed to decryption.
func (e *Envelope) VerifyDigest() error {
	if subtle.ConstantTimeCompare(e.Digest, e.computeDigest()) != 1 {
		return ErrIntegrity
	}
	return nil
}

func appendLenPrefix(b, data []byte) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(data)))
	b = append(b, l...)
	b = append(b, data...)
	return b
}

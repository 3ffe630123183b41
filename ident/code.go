package ident

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// LinkCodeDigits is the fixed length of a linking code.
	LinkCodeDigits = 8

	// Rejection sampling draws before falling back to the simpler
	// generator. Each draw succeeds with probability > 0.93, so reaching
	// the fallback is effectively a CSPRNG outage.
	maxSampleRetries = 16
)

// NewLinkCode mints a fixed-length all-numeric linking code. The primary
// path rejection-samples a CSPRNG-backed range to avoid modulo bias; after
// bounded retries it falls back to a simpler modulo draw, trading strict
// uniformity for availability.
func (g *Generator) NewLinkCode() (string, error) {
	n, err := sampleUniform(uint64(math.Pow10(LinkCodeDigits)))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%0*d", LinkCodeDigits, n)

	entry := g.ledger.Record(KindLinkCode, code, ShannonEntropy(code))
	g.logger.Debug("minted linking code",
		"ledger_entry", entry.ID,
		"entropy_bits_per_symbol", entry.Entropy)
	return code, nil
}

// sampleUniform returns a uniform value in [0, bound) by rejection
// sampling 64-bit CSPRNG draws. If every draw lands in the biased tail it
// degrades to a modulo reduction rather than failing.
func sampleUniform(bound uint64) (uint64, error) {
	limit := math.MaxUint64 - (math.MaxUint64 % bound)
	var buf [8]byte

	for i := 0; i < maxSampleRetries; i++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("reading CSPRNG: %w", err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return v % bound, nil
		}
	}

	// Fallback: accept the negligible bias of a plain modulo draw.
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("reading CSPRNG: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]) % bound, nil
}

// Package ident mints session identifiers and numeric linking codes, keeps
// a bounded ledger of everything minted, and audits the entropy of each
// value.
package ident

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

const (
	// SessionIDPrefix heads every session identifier.
	SessionIDPrefix = "SAVAGE"

	sessionIDRandLen = 12

	defaultLedgerCapacity = 4096

	// Collisions are already astronomically unlikely at this entropy; the
	// ledger check and retry are a defensive safety net.
	maxMintRetries = 5
)

// Session identifiers follow one canonical grammar:
// SAVAGE-<12 alnum>-<10-digit unix time>-<12 alnum>.
var sessionIDRE = regexp.MustCompile(`^` + SessionIDPrefix + `-[A-Z0-9]{12}-[0-9]{10}-[A-Z0-9]{12}$`)

// ValidSessionID reports whether s matches the canonical session ID
// grammar. Callers use it to reject malformed identifiers before any
// storage lookup.
func ValidSessionID(s string) bool {
	return sessionIDRE.MatchString(s)
}

// Generator mints session IDs and linking codes. All minted values are
// recorded in the generation ledger.
type Generator struct {
	ledger *Ledger
	logger *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLedgerCapacity bounds the generation ledger.
func WithLedgerCapacity(n int) GeneratorOption {
	return func(g *Generator) {
		g.ledger = NewLedger(n)
	}
}

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a Generator with a bounded ledger.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		ledger: NewLedger(defaultLedgerCapacity),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return g
}

// Ledger exposes the generation ledger for audit inspection.
func (g *Generator) Ledger() *Ledger {
	return g.ledger
}

// NewSessionID mints a globally unique session identifier: a monotonic
// time component flanked by two independent random parts. The value
// carries no sensitive data.
func (g *Generator) NewSessionID() (string, error) {
	for attempt := 0; attempt < maxMintRetries; attempt++ {
		left, err := util.RandomAlnum(sessionIDRandLen)
		if err != nil {
			return "", fmt.Errorf("minting session ID: %w", err)
		}
		right, err := util.RandomAlnum(sessionIDRandLen)
		if err != nil {
			return "", fmt.Errorf("minting session ID: %w", err)
		}
		id := fmt.Sprintf("%s-%s-%010d-%s", SessionIDPrefix, left, time.Now().Unix(), right)

		if g.ledger.Contains(id) {
			g.logger.Warn("session ID collision, retrying", "attempt", attempt+1)
			continue
		}

		entry := g.ledger.Record(KindSessionID, id, ShannonEntropy(id))
		g.logger.Debug("minted session ID",
			"ledger_entry", entry.ID,
			"entropy_bits_per_symbol", entry.Entropy)
		return id, nil
	}
	return "", fmt.Errorf("exhausted %d session ID mint attempts", maxMintRetries)
}

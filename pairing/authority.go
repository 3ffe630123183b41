// Package pairing issues, tracks, and expires short-lived linking codes
// and QR handshake payloads used to authorize new device sessions.
package pairing

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/itc-kingsavage/savage-scanner/ident"
)

// Mode selects the deployment's single issuance path. The code and QR
// paths are mutually exclusive: a QR deployment never auto-issues a
// linking code.
type Mode string

const (
	ModeCode Mode = "code"
	ModeQR   Mode = "qr"
)

const (
	defaultCodeTTL         = 5 * time.Minute
	defaultAttemptsAllowed = 3
	defaultSweepInterval   = 5 * time.Minute

	// Live collisions in the 8-digit space are rare but real; a colliding
	// mint must never overwrite another phone's pending code.
	maxCodeMintRetries = 5
)

// codeMinter is the slice of the generator the authority uses.
type codeMinter interface {
	NewLinkCode() (string, error)
}

// linkCode is the pending state for one issued code. All terminal states
// (redeemed, expired, attempts exhausted) delete it.
type linkCode struct {
	code            string
	boundPhone      string
	issuedAt        time.Time
	expiresAt       time.Time
	attemptsUsed    int
	attemptsAllowed int
	redeemed        bool
	timer           *time.Timer
}

// Authority is the pairing authority. A phone number is mandatory for
// every issuance; malformed numbers are rejected with no side effect.
type Authority struct {
	mu         sync.Mutex
	codes      map[string]*linkCode
	byPhone    map[string]string // phone -> pending code
	handshakes map[string]*Handshake

	gen             codeMinter
	mode            Mode
	codeTTL         time.Duration
	attemptsAllowed int
	sweepInterval   time.Duration
	logger          *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// WithMode sets the deployment's issuance mode.
func WithMode(mode Mode) AuthorityOption {
	return func(a *Authority) {
		a.mode = mode
	}
}

// WithCodeTTL sets the lifetime of issued codes and handshakes.
func WithCodeTTL(ttl time.Duration) AuthorityOption {
	return func(a *Authority) {
		a.codeTTL = ttl
	}
}

// WithAttemptsAllowed sets the attempt ceiling per code.
func WithAttemptsAllowed(n int) AuthorityOption {
	return func(a *Authority) {
		a.attemptsAllowed = n
	}
}

// WithSweepInterval sets the background expiry sweep interval.
func WithSweepInterval(interval time.Duration) AuthorityOption {
	return func(a *Authority) {
		a.sweepInterval = interval
	}
}

// WithAuthorityLogger sets the authority's logger.
func WithAuthorityLogger(logger *slog.Logger) AuthorityOption {
	return func(a *Authority) {
		a.logger = logger
	}
}

// NewAuthority creates an Authority in code mode by default and starts
// the expiry sweep. Callers must Close the authority when done.
func NewAuthority(gen *ident.Generator, opts ...AuthorityOption) *Authority {
	a := &Authority{
		codes:           make(map[string]*linkCode),
		byPhone:         make(map[string]string),
		handshakes:      make(map[string]*Handshake),
		gen:             gen,
		mode:            ModeCode,
		codeTTL:         defaultCodeTTL,
		attemptsAllowed: defaultAttemptsAllowed,
		sweepInterval:   defaultSweepInterval,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	go a.sweepLoop()
	return a
}

// Close stops the expiry sweep and cancels all pending timers.
func (a *Authority) Close() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.mu.Lock()
		defer a.mu.Unlock()
		for code, lc := range a.codes {
			lc.timer.Stop()
			delete(a.codes, code)
			delete(a.byPhone, lc.boundPhone)
		}
		for phone, hs := range a.handshakes {
			hs.timer.Stop()
			delete(a.handshakes, phone)
		}
	})
}

// Issue mints a linking code bound to phoneNumber. A phone that already
// holds a pending code gets a fresh one: the old code's expiry timer is
// cleared and re-armed on regeneration.
func (a *Authority) Issue(phoneNumber string) (string, error) {
	if a.mode != ModeCode {
		return "", ErrIssuanceDisabled
	}
	phone := NormalizePhoneNumber(phoneNumber)
	if !ValidPhoneNumber(phone) {
		return "", fmt.Errorf("%q: %w", phoneNumber, ErrInvalidPhoneNumber)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.byPhone[phone]; ok {
		a.deleteCodeLocked(old)
		a.logger.Info("pending code regenerated", "phone", phone)
	}

	code, err := a.mintCodeLocked()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	lc := &linkCode{
		code:            code,
		boundPhone:      phone,
		issuedAt:        now,
		expiresAt:       now.Add(a.codeTTL),
		attemptsAllowed: a.attemptsAllowed,
	}

	lc.timer = time.AfterFunc(a.codeTTL, func() { a.expireCode(code) })
	a.codes[code] = lc
	a.byPhone[phone] = code

	a.logger.Info("linking code issued", "phone", phone, "expires_at", lc.expiresAt)
	return code, nil
}

// Validate reports whether the code exists, is unexpired, unredeemed, and
// has attempts remaining. It never mutates state.
func (a *Authority) Validate(code string) bool {
	return a.Status(code) == nil
}

// Status returns the typed reason a code is not redeemable, or nil if it
// is. Like Validate, it never mutates state.
func (a *Authority) Status(code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	lc, ok := a.codes[code]
	if !ok || lc.redeemed {
		return ErrCodeNotFound
	}
	if !time.Now().Before(lc.expiresAt) {
		return ErrCodeExpired
	}
	if lc.attemptsUsed >= lc.attemptsAllowed {
		return ErrAttemptsExhausted
	}
	return nil
}

// Consume registers one redemption attempt against the code and reports
// whether the attempt was accepted. Reaching the attempt ceiling deletes
// the record regardless of redemption outcome, so a brute-forced code
// dies even if one of its attempts was "successful".
func (a *Authority) Consume(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	lc, ok := a.codes[code]
	if !ok || lc.redeemed {
		return false
	}
	if !time.Now().Before(lc.expiresAt) {
		a.deleteCodeLocked(code)
		return false
	}

	lc.attemptsUsed++
	if lc.attemptsUsed >= lc.attemptsAllowed {
		a.deleteCodeLocked(code)
		a.logger.Warn("linking code attempts exhausted", "phone", lc.boundPhone)
	}
	return true
}

// Redeem marks the code redeemed and deletes it. It returns false if the
// code is missing, expired, or exhausted.
func (a *Authority) Redeem(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	lc, ok := a.codes[code]
	if !ok || lc.redeemed {
		return false
	}
	if !time.Now().Before(lc.expiresAt) || lc.attemptsUsed >= lc.attemptsAllowed {
		a.deleteCodeLocked(code)
		return false
	}

	lc.redeemed = true
	a.deleteCodeLocked(code)
	a.logger.Info("linking code redeemed", "phone", lc.boundPhone)
	return true
}

// PendingFor returns the pending code bound to a phone, for operator
// inspection.
func (a *Authority) PendingFor(phoneNumber string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	code, ok := a.byPhone[NormalizePhoneNumber(phoneNumber)]
	return code, ok
}

// mintCodeLocked mints a code not held by any pending record.
func (a *Authority) mintCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeMintRetries; attempt++ {
		code, err := a.gen.NewLinkCode()
		if err != nil {
			return "", fmt.Errorf("minting linking code: %w", err)
		}
		if _, taken := a.codes[code]; !taken {
			return code, nil
		}
		a.logger.Warn("linking code collision, re-minting", "attempt", attempt+1)
	}
	return "", fmt.Errorf("exhausted %d linking code mint attempts", maxCodeMintRetries)
}

func (a *Authority) deleteCodeLocked(code string) {
	lc, ok := a.codes[code]
	if !ok {
		return
	}
	lc.timer.Stop()
	delete(a.codes, code)
	if a.byPhone[lc.boundPhone] == code {
		delete(a.byPhone, lc.boundPhone)
	}
}

func (a *Authority) expireCode(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lc, ok := a.codes[code]
	if !ok || time.Now().Before(lc.expiresAt) {
		return
	}
	a.deleteCodeLocked(code)
	a.logger.Info("linking code expired", "phone", lc.boundPhone)
}

// sweepLoop is a safety net alongside the per-code timers: it only
// removes entries that are already expired, so it is safe next to
// concurrent reads and writes.
func (a *Authority) sweepLoop() {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.sweepExpired()
		}
	}
}

func (a *Authority) sweepExpired() {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for code, lc := range a.codes {
		if !now.Before(lc.expiresAt) {
			a.deleteCodeLocked(code)
		}
	}
	for phone, hs := range a.handshakes {
		if !now.Before(hs.ExpiresAt) {
			hs.timer.Stop()
			delete(a.handshakes, phone)
		}
	}
}

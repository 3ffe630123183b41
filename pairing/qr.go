package pairing

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

const handshakePayloadBytes = 32

// Handshake is a QR pairing payload. The QR path never mints a linking
// code; the phone scans the payload and completes the handshake out of
// band.
type Handshake struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Payload     string    `json:"payload"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	timer *time.Timer
}

// IssueQR mints a QR handshake for phoneNumber. Reissuing for a phone
// with a pending handshake cancels and re-arms its expiry. Only available
// in QR mode.
func (a *Authority) IssueQR(phoneNumber string) (*Handshake, error) {
	if a.mode != ModeQR {
		return nil, ErrIssuanceDisabled
	}
	phone := NormalizePhoneNumber(phoneNumber)
	if !ValidPhoneNumber(phone) {
		return nil, fmt.Errorf("%q: %w", phoneNumber, ErrInvalidPhoneNumber)
	}

	raw, err := util.RandomBytes(handshakePayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("minting handshake payload: %w", err)
	}

	now := time.Now().UTC()
	hs := &Handshake{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Payload:     base64.RawURLEncoding.EncodeToString(raw),
		IssuedAt:    now,
		ExpiresAt:   now.Add(a.codeTTL),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.handshakes[phone]; ok {
		old.timer.Stop()
		a.logger.Info("pending handshake regenerated", "phone", phone)
	}
	hs.timer = time.AfterFunc(a.codeTTL, func() { a.expireHandshake(phone, hs.ID) })
	a.handshakes[phone] = hs

	a.logger.Info("QR handshake issued", "phone", phone, "handshake_id", hs.ID)
	return hs, nil
}

// HandshakeFor returns the pending handshake for a phone, if any.
func (a *Authority) HandshakeFor(phoneNumber string) (*Handshake, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hs, ok := a.handshakes[NormalizePhoneNumber(phoneNumber)]
	if !ok || !time.Now().Before(hs.ExpiresAt) {
		return nil, false
	}
	cp := *hs
	cp.timer = nil
	return &cp, true
}

// CompleteHandshake removes the pending handshake once the phone finishes
// pairing. It returns false if the handshake is missing, expired, or not
// the one identified.
func (a *Authority) CompleteHandshake(phoneNumber, handshakeID string) bool {
	phone := NormalizePhoneNumber(phoneNumber)
	a.mu.Lock()
	defer a.mu.Unlock()
	hs, ok := a.handshakes[phone]
	if !ok || hs.ID != handshakeID || !time.Now().Before(hs.ExpiresAt) {
		return false
	}
	hs.timer.Stop()
	delete(a.handshakes, phone)
	a.logger.Info("QR handshake completed", "phone", phone, "handshake_id", handshakeID)
	return true
}

func (a *Authority) expireHandshake(phone, handshakeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hs, ok := a.handshakes[phone]
	if !ok || hs.ID != handshakeID || time.Now().Before(hs.ExpiresAt) {
		return
	}
	hs.timer.Stop()
	delete(a.handshakes, phone)
	a.logger.Info("QR handshake expired", "phone", phone)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itc-kingsavage/savage-scanner/pairing"
	"github.com/itc-kingsavage/savage-scanner/vault"
)

type issueRequest struct {
	PhoneNumber string `json:"phone_number"`
	QR          bool   `json:"qr,omitempty"`
}

type issueResponse struct {
	Code        string `json:"code,omitempty"`
	HandshakeID string `json:"handshake_id,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

type statusResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	BotAssociation string    `json:"bot_association"`
	PlatformTag    string    `json:"platform_tag"`
	IsActive       bool      `json:"is_active"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *API) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.QR {
		hs, err := a.authority.IssueQR(req.PhoneNumber)
		if err != nil {
			a.writePairingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, issueResponse{
			HandshakeID: hs.ID,
			Payload:     hs.Payload,
			ExpiresAt:   hs.ExpiresAt.Format(time.RFC3339),
		})
		return
	}

	code, err := a.authority.Issue(req.PhoneNumber)
	if err != nil {
		a.writePairingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issueResponse{Code: code})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := a.authority.Status(code); err != nil {
		writeJSON(w, http.StatusOK, statusResponse{Valid: false, Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Valid: true})
}

func (a *API) handleConsume(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !a.authority.Consume(code) {
		writeError(w, http.StatusGone, "code not consumable")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Valid: true})
}

func (a *API) handleRedeem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !a.authority.Redeem(code) {
		writeError(w, http.StatusGone, "code not redeemable")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Valid: true})
}

func (a *API) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	rec, _, err := a.vault.Get(r.Context(), id)
	if err != nil {
		a.writeVaultError(w, err)
		return
	}
	// Credential plaintext never leaves the process over HTTP.
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      rec.SessionID,
		BotAssociation: rec.BotAssociation,
		PlatformTag:    rec.PlatformTag,
		IsActive:       rec.IsActive,
		LastAccessedAt: rec.LastAccessedAt,
		CreatedAt:      rec.CreatedAt,
	})
}

func (a *API) handleSessionDeactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := a.vault.Deactivate(r.Context(), id); err != nil {
		a.writeVaultError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := a.vault.Delete(r.Context(), id); err != nil {
		a.writeVaultError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writePairingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pairing.ErrInvalidPhoneNumber):
		writeError(w, http.StatusBadRequest, "invalid phone number")
	case errors.Is(err, pairing.ErrIssuanceDisabled):
		writeError(w, http.StatusConflict, "issuance disabled in this pairing mode")
	default:
		a.logger.Error("pairing request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, vault.ErrMalformedSessionID):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, vault.ErrSessionCorrupted):
		writeError(w, http.StatusConflict, "session corrupted")
	default:
		a.logger.Error("session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

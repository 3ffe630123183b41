// Package api exposes the vault and pairing authority over HTTP. It is
// thin request/response glue; all policy lives in the vault and pairing
// packages.
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/itc-kingsavage/savage-scanner/pairing"
	"github.com/itc-kingsavage/savage-scanner/vault"
)

// API bundles the HTTP handlers.
type API struct {
	vault     *vault.Vault
	authority *pairing.Authority
	logger    *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the API's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// New creates the API over a vault and pairing authority.
func New(v *vault.Vault, authority *pairing.Authority, opts ...Option) *API {
	a := &API{
		vault:     v,
		authority: authority,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns the API's route tree.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/pairings", func(r chi.Router) {
		r.Post("/", a.handleIssue)
		r.Get("/{code}", a.handleStatus)
		r.Post("/{code}/attempts", a.handleConsume)
		r.Post("/{code}/redeem", a.handleRedeem)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/{sessionID}", a.handleSessionStatus)
		r.Post("/{sessionID}/deactivate", a.handleSessionDeactivate)
		r.Delete("/{sessionID}", a.handleSessionDelete)
	})

	return r
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/itc-kingsavage/savage-scanner/api"
	"github.com/itc-kingsavage/savage-scanner/crypto"
	"github.com/itc-kingsavage/savage-scanner/ident"
	"github.com/itc-kingsavage/savage-scanner/internal/config"
	"github.com/itc-kingsavage/savage-scanner/pairing"
	bboltstorage "github.com/itc-kingsavage/savage-scanner/storage/bbolt"
	"github.com/itc-kingsavage/savage-scanner/storage/filestore"
	"github.com/itc-kingsavage/savage-scanner/vault"
)

var configPath string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the scanner service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		engine, err := crypto.NewEngine(cfg.MasterKey, crypto.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("starting encryption engine: %w", err)
		}
		defer engine.Close()

		primary, err := bboltstorage.NewStoreFromFile(filepath.Join(cfg.DataDir, "sessions.db"), nil)
		if err != nil {
			return fmt.Errorf("opening durable store: %w", err)
		}
		defer primary.Close()

		mirror, err := filestore.NewStore(cfg.BackupDir)
		if err != nil {
			return fmt.Errorf("opening mirror store: %w", err)
		}

		v := vault.New(engine, primary, mirror,
			vault.WithLogger(logger),
			vault.WithCacheCapacity(cfg.CacheSize),
			vault.WithSessionTTL(cfg.SessionTTL.Std()))
		defer v.Close()

		gen := ident.NewGenerator(ident.WithLogger(logger))
		authority := pairing.NewAuthority(gen,
			pairing.WithAuthorityLogger(logger),
			pairing.WithMode(pairing.Mode(cfg.Pairing.Mode)),
			pairing.WithCodeTTL(cfg.Pairing.CodeTTL.Std()),
			pairing.WithAttemptsAllowed(cfg.Pairing.MaxAttempts))
		defer authority.Close()

		a := api.New(v, authority, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("scanner listening", "addr", cfg.Listen, "pairing_mode", cfg.Pairing.Mode)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	serverCmd.Flags().StringVarP(&configPath, "config", "c", "scanner.yaml", "path to configuration file")
	rootCmd.AddCommand(serverCmd)
}

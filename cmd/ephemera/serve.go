package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/auth"
	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/database"
	ephemerahttp "github.com/sagarc03/ephemera/http"
	"github.com/sagarc03/ephemera/keybackend"
	"github.com/sagarc03/ephemera/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the ephemera HTTP server and, unless reaper.enabled is false,
the background reaper that purges expired files.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 3000, env: EPHEMERA_SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, cfg.Database.AutoMigrate)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	repo := db.GetRepo()
	slog.Info("connected to database", "type", cfg.Database.Type, "auto_migrate", cfg.Database.AutoMigrate)

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	defer closeBlobs()
	if err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	defer closeLocker()
	if err != nil {
		return err
	}

	var (
		observer       ephemera.Observer
		handlerMetrics ephemerahttp.Metrics
	)
	if cfg.Metrics.Enabled {
		m := metrics.New(nil)
		observer = m
		handlerMetrics = m
		slog.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	verifier, err := newTokenVerifier(cfg)
	if err != nil {
		return err
	}

	service, err := newService(cfg, repo, blobs, observer)
	if err != nil {
		return err
	}

	handler := ephemerahttp.NewHandler(&ephemerahttp.HandlerConfig{
		Verifier:       verifier,
		CORS:           cfg.CORS,
		MaxUploadBytes: cfg.Upload.MaxSizeBytes,
		Metrics:        handlerMetrics,
		MetricsPath:    cfg.Metrics.Path,
	}, service)

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Reaper.Enabled {
		reaper := newReaper(cfg, repo, blobs, observer, locker)
		g.Go(func() error {
			return reaper.Start(gctx, cfg.Reaper.Interval, cfg.Reaper.RunOnStart)
		})
	} else {
		slog.Warn("reaper disabled; expired files stay on disk until 'ephemera purge' runs")
	}

	return g.Wait()
}

// newTokenVerifier builds the bearer-token verifier from auth.keys. With no
// keys configured it returns nil and every authenticated route answers 401.
func newTokenVerifier(cfg *config.Config) (ephemerahttp.TokenVerifier, error) {
	store, err := keybackend.NewSecretStore(cfg.Auth.Keys)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	if store.Len() == 0 {
		slog.Warn("no signing keys configured; uploads are anonymous and owner routes reject every request")
		return nil, nil
	}

	slog.Info("bearer tokens enabled", "keys", store.Len(), "issuer", cfg.Auth.Issuer)

	return auth.NewVerifier(store, auth.VerifierConfig{
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	}), nil
}

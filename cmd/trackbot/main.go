package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/trackbot/internal/bot"
	"github.com/italolelis/trackbot/internal/bot/telegram"
	"github.com/italolelis/trackbot/internal/cleanup"
	"github.com/italolelis/trackbot/internal/config"
	"github.com/italolelis/trackbot/internal/delivery"
	"github.com/italolelis/trackbot/internal/extract/ytdlp"
	"github.com/italolelis/trackbot/internal/http/rest"
	"github.com/italolelis/trackbot/internal/ledger"
	"github.com/italolelis/trackbot/internal/ledger/jsonfile"
	"github.com/italolelis/trackbot/internal/ledger/sqlite"
	"github.com/italolelis/trackbot/internal/logctx"
	"github.com/italolelis/trackbot/internal/pipeline"
	"github.com/italolelis/trackbot/internal/telemetry"
)

const dirPerm = 0755

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("trackbot starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && ctx.Err() == nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		ServiceName: "trackbot",
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Ledger
	store, closeStore, err := buildLedgerStore(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to build ledger store: %w", err)
	}
	defer closeStore()

	// =========================================================================
	// Start Transport
	if err := os.MkdirAll(cfg.DownloadDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	tg := telegram.NewClient(cfg.BotToken)

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate with Telegram: %w", err)
	}

	logger.Info("authenticated", "bot_username", me.Username)

	// =========================================================================
	// Start Pipeline
	extractor := ytdlp.NewClient(
		ytdlp.WithBitrate(cfg.AudioBitrate),
		ytdlp.WithTimeouts(cfg.SocketTimeout, cfg.ProbeTimeout, cfg.ExtractTimeout),
	)

	p := pipeline.NewPipeline(extractor, cfg.DownloadDir, cfg.MaxAudioSize)
	d := delivery.NewDeliverer(tg, cfg.SendRetries, cfg.SendRetryDelay, tel)

	router := bot.NewRouter(tg, store, p, d, tel, cfg.OwnerID, cfg.MaxParallel, cfg.UserCooldown)

	// =========================================================================
	// Start Admin API

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, store, tel, cfg)

	go func() {
		logger.Info("initializing admin API", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Start Cleanup
	setupCleanup(ctx, cfg)

	logger.Info("waiting for downloads...",
		"download_dir", cfg.DownloadDir,
		"bitrate", cfg.AudioBitrate,
		"max_parallel", cfg.MaxParallel,
		"retention", cfg.KeepArtifacts.String(),
	)

	// =========================================================================
	// Start Main Loop
	routerErrors := make(chan error, 1)

	go func() {
		routerErrors <- router.Run(ctx)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case err := <-routerErrors:
		if ctx.Err() == nil {
			return fmt.Errorf("router error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("start shutdown")

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shutdown the server", "err", err)

		if err = server.Close(); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// buildLedgerStore selects the ledger backend and wraps it with telemetry.
func buildLedgerStore(cfg *config.Config, tel *telemetry.Telemetry) (ledger.Store, func(), error) {
	switch cfg.LedgerBackend {
	case "sqlite":
		db, err := sqlite.InitDB(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("DB error: %w", err)
		}

		return ledger.NewInstrumentedStore(sqlite.NewStore(db), tel), func() { db.Close() }, nil
	case "json":
		return ledger.NewInstrumentedStore(jsonfile.NewStore(cfg.LedgerPath), tel), func() {}, nil
	}

	return nil, nil, fmt.Errorf("invalid ledger backend: %s", cfg.LedgerBackend)
}

// setupServer prepares the admin http server with health, stats and metrics.
func setupServer(ctx context.Context, store ledger.Store, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	handler := rest.NewAdminHandler(store, tel)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func setupCleanup(ctx context.Context, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case <-ticker.C:
				if err := cleanup.SweepStaleArtifacts(ctx, cfg.DownloadDir, cfg.KeepArtifacts); err != nil {
					logger.Error("failed to sweep stale artifacts", "err", err)
				}
			}
		}
	}()
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gridimport/internal/config"
	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/metrics"
	"github.com/JonMunkholm/gridimport/internal/schema"
	"github.com/JonMunkholm/gridimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	schema.TwoDigitYearPivot = cfg.Import.TwoDigitYearPivot
	core.ImportTimeout = cfg.Import.Timeout

	opts := []core.ServiceOption{
		core.WithLimiter(core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)),
		core.WithLogger(slog.Default()),
	}
	if cfg.Server.Metrics {
		opts = append(opts, core.WithMetrics(metrics.New()))
	}

	ctx := context.Background()
	if cfg.Database.HasDatabase() {
		db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL, database.Options{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database", "dialect", db.Dialect)
		opts = append(opts, core.WithDatabase(db))
	} else {
		slog.Warn("no DATABASE_URL set; query sources and database sinks are unavailable")
	}

	reg, err := core.LoadProfiles(cfg.Import.ProfilesDir)
	if err != nil {
		slog.Error("failed to load profiles", "dir", cfg.Import.ProfilesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("profiles registered", "count", reg.Count(), "dir", cfg.Import.ProfilesDir)
	for _, p := range reg.All() {
		slog.Debug("profile", "name", p.Name, "source", p.Source.Kind, "sink", p.Sink.Kind)
		if p.NeedsDatabase() && !cfg.Database.HasDatabase() {
			slog.Warn("profile needs a database and will fail", "name", p.Name)
		}
	}

	service := core.NewService(reg, opts...)
	server := web.NewServer(service, cfg, slog.Default())

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

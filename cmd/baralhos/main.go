package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/pbcachim/baralhos/internal/auth"
	"github.com/pbcachim/baralhos/internal/config"
	"github.com/pbcachim/baralhos/internal/db"
	"github.com/pbcachim/baralhos/internal/logging"
	"github.com/pbcachim/baralhos/internal/remote/backend"
	"github.com/pbcachim/baralhos/internal/service"
	"github.com/pbcachim/baralhos/internal/store"
	"github.com/pbcachim/baralhos/internal/thumbnail"
	"github.com/pbcachim/baralhos/internal/web"
	"github.com/pbcachim/baralhos/internal/web/templates"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	rmt, err := backend.New(cfg, logger)
	if err != nil {
		return err
	}

	var sync *service.SyncService
	if rmt != nil {
		sync = service.NewSyncService(rmt, cfg.DBPath, cfg.SyncPath, logger)
		restored, err := sync.Restore(context.Background())
		if err != nil {
			return err
		}
		if restored {
			logger.Info("using database restored from remote", "path", cfg.DBPath)
		}
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	catalog := service.NewCatalogService(
		store.NewLookupStore(database),
		store.NewDeckStore(database),
		thumbnail.New(),
		logger,
	)

	authn, err := auth.New(auth.Config{
		Username:     cfg.AuthUsername,
		PasswordHash: cfg.AuthPasswordHash,
		Secret:       cfg.SessionSecret,
		TTL:          cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	})
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is not set, sessions end when the server restarts")
	}

	opts := web.Options{LoginRateLimit: cfg.LoginRateLimit}
	var server *web.Server
	if sync != nil {
		sync.Attach(database)
		server = web.NewServer(catalog, sync, authn, templates.FS, opts, logger)
	} else {
		logger.Info("sync disabled, the database is not backed up on logout")
		server = web.NewServer(catalog, nil, authn, templates.FS, opts, logger)
	}

	return server.ListenAndServe(cfg.ListenAddr)
}

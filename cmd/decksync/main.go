// Command decksync moves the database file between this machine and the
// configured remote without starting the server.
//
//	decksync [flags] pull|push|backup|legacy-replace|delete
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pbcachim/baralhos/internal/config"
	"github.com/pbcachim/baralhos/internal/logging"
	"github.com/pbcachim/baralhos/internal/remote"
	"github.com/pbcachim/baralhos/internal/remote/backend"
	"github.com/pbcachim/baralhos/internal/service"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: decksync [flags] <command>

commands:
  pull            download the remote copy into --dir
  push            upload --file, failing if the remote copy exists
  backup          create or replace the remote copy with --file
  legacy-replace  delete the remote copy, then upload --file
  delete          remove the remote copy

flags:
`)
	flag.PrintDefaults()
}

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	backendName := flag.StringP("backend", "b", "", "sync backend, overrides SYNC_BACKEND")
	file := flag.StringP("file", "f", "", "local database file (default DB_PATH)")
	remotePath := flag.StringP("remote-path", "r", "", "path of the remote copy (default SYNC_PATH)")
	dir := flag.StringP("dir", "d", "", "directory pull writes into (default the directory of DB_PATH)")
	message := flag.StringP("message", "m", "", "commit message for push and delete")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}
	if *backendName != "" {
		if err := os.Setenv("SYNC_BACKEND", *backendName); err != nil {
			log.Fatal(err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if *file != "" {
		cfg.DBPath = *file
	}
	if *remotePath != "" {
		cfg.SyncPath = *remotePath
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, flag.Arg(0), *dir, *message, logger); err != nil {
		logger.Error("decksync failed", "command", flag.Arg(0), "error", err)
		cancel()
		cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command, dir, message string, logger *slog.Logger) error {
	rmt, err := backend.New(cfg, logger)
	if err != nil {
		return err
	}
	if rmt == nil {
		return errors.New("no sync backend configured, set SYNC_BACKEND or --backend")
	}
	if message == "" {
		message = "database updated at " + time.Now().Format("2006-01-02 15:04:05")
	}

	sync := service.NewSyncService(rmt, cfg.DBPath, cfg.SyncPath, logger)

	switch command {
	case "pull":
		if dir == "" {
			dir = filepath.Dir(cfg.DBPath)
		}
		dst, err := remote.Pull(ctx, rmt, cfg.SyncPath, dir)
		if err != nil {
			return err
		}
		logger.Info("pulled", "remote_path", cfg.SyncPath, "file", dst)
	case "push":
		if err := remote.Push(ctx, rmt, cfg.DBPath, cfg.SyncPath, message); err != nil {
			return err
		}
		logger.Info("pushed", "file", cfg.DBPath, "remote_path", cfg.SyncPath)
	case "backup":
		return sync.Backup(ctx)
	case "legacy-replace":
		return sync.LegacyReplace(ctx)
	case "delete":
		if err := rmt.Delete(ctx, cfg.SyncPath, message); err != nil {
			return err
		}
		logger.Info("deleted", "remote_path", cfg.SyncPath)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pbcachim/baralhos/internal/db"
	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

const backupMessageLayout = "2006-01-02 15:04:05"

// SyncService mirrors the local database file to a remote.
type SyncService struct {
	remote     remote.Remote
	dbPath     string
	remotePath string
	conn       *sql.DB
	now        func() time.Time
	logger     *slog.Logger
}

func NewSyncService(r remote.Remote, dbPath, remotePath string, logger *slog.Logger) *SyncService {
	if remotePath == "" {
		remotePath = filepath.Base(dbPath)
	}
	return &SyncService{
		remote:     r,
		dbPath:     dbPath,
		remotePath: remotePath,
		now:        time.Now,
		logger:     logger,
	}
}

// Attach sets the open database that Backup snapshots. Without it the file
// at dbPath is uploaded as-is.
func (s *SyncService) Attach(conn *sql.DB) {
	s.conn = conn
}

// Restore downloads the remote copy when no local database exists. It
// reports whether a file was written.
func (s *SyncService) Restore(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to check %s: %w", s.dbPath, err)
	}

	content, err := s.remote.Get(ctx, s.remotePath)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("no remote database, starting empty", "remote_path", s.remotePath)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch remote database: %w", err)
	}
	if len(content) == 0 {
		return false, fmt.Errorf("%w: remote database %s is empty", domain.ErrRemote, s.remotePath)
	}

	if err := remote.WriteFileAtomic(s.dbPath, content); err != nil {
		return false, fmt.Errorf("failed to restore database: %w", err)
	}
	s.logger.Info("database restored from remote", "remote_path", s.remotePath, "bytes", len(content))
	return true, nil
}

// Backup uploads a consistent snapshot of the database, creating or
// replacing the remote copy in one operation.
func (s *SyncService) Backup(ctx context.Context) error {
	content, cleanup, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.remote.Replace(ctx, s.remotePath, s.message(), content); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	s.logger.Info("database backed up", "remote_path", s.remotePath, "bytes", len(content))
	return nil
}

// LegacyReplace deletes the remote copy and then uploads a new one. A crash
// between the two steps leaves no remote copy; prefer Backup.
func (s *SyncService) LegacyReplace(ctx context.Context) error {
	s.logger.Warn("replacing remote database with delete then create, the remote copy is missing until the upload finishes",
		"remote_path", s.remotePath)

	content, cleanup, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	message := s.message()
	if err := s.remote.Delete(ctx, s.remotePath, message); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete remote database: %w", err)
	}
	if err := s.remote.Create(ctx, s.remotePath, message, content); err != nil {
		return fmt.Errorf("failed to upload database: %w", err)
	}
	s.logger.Info("database replaced", "remote_path", s.remotePath, "bytes", len(content))
	return nil
}

func (s *SyncService) message() string {
	return "database updated at " + s.now().Format(backupMessageLayout)
}

// snapshot returns the bytes to upload and a cleanup func for any temporary
// files.
func (s *SyncService) snapshot(ctx context.Context) ([]byte, func(), error) {
	noop := func() {}
	if s.conn == nil {
		content, err := os.ReadFile(s.dbPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, noop, fmt.Errorf("%w: database %s", domain.ErrNotFound, s.dbPath)
			}
			return nil, noop, fmt.Errorf("failed to read database: %w", err)
		}
		return content, noop, nil
	}

	dir, err := os.MkdirTemp("", "baralhos-backup-*")
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("failed to remove snapshot", "dir", dir, "error", err)
		}
	}

	dst := filepath.Join(dir, filepath.Base(s.dbPath))
	if err := db.Snapshot(ctx, s.conn, dst); err != nil {
		cleanup()
		return nil, noop, err
	}
	content, err := os.ReadFile(dst)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return content, cleanup, nil
}

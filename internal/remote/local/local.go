// Package local keeps the remote copy in a directory, typically a mounted
// network share or an external disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

type Dir struct {
	basePath string
	logger   *slog.Logger
}

func New(basePath string, logger *slog.Logger) (*Dir, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sync directory: %w", err)
	}
	return &Dir{basePath: basePath, logger: logger}, nil
}

func (d *Dir) Create(ctx context.Context, name, message string, content []byte) error {
	filePath, err := d.safeJoin(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("%w: %s", remote.ErrFileExists, name)
	}
	if err := remote.WriteFileAtomic(filePath, content); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}
	d.logger.Info("sync file created", "path", name, "message", message, "bytes", len(content))
	return nil
}

func (d *Dir) Get(ctx context.Context, name string) ([]byte, error) {
	filePath, err := d.safeJoin(name)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read file: %w: %w", domain.ErrRemote, err)
	}
	return content, nil
}

func (d *Dir) Delete(ctx context.Context, name, message string) error {
	filePath, err := d.safeJoin(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete file: %w: %w", domain.ErrRemote, err)
	}
	d.logger.Info("sync file deleted", "path", name, "message", message)
	return nil
}

// Replace renames the new content over the old file, so readers see either
// version and never a partial one.
func (d *Dir) Replace(ctx context.Context, name, message string, content []byte) error {
	filePath, err := d.safeJoin(name)
	if err != nil {
		return err
	}

	if err := remote.WriteFileAtomic(filePath, content); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}
	d.logger.Info("sync file replaced", "path", name, "message", message, "bytes", len(content))
	return nil
}

// safeJoin resolves name relative to basePath and rejects directory traversal.
func (d *Dir) safeJoin(name string) (string, error) {
	absBase, err := filepath.Abs(d.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(d.basePath, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal attempt: %s", domain.ErrRemote, name)
	}
	return absPath, nil
}

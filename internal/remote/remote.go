// Package remote stores single files, in practice the catalogue database,
// in an off-site location so it can be restored on another machine.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pbcachim/baralhos/internal/domain"
)

// ErrFileExists is returned by Create when the target path is taken.
var ErrFileExists = fmt.Errorf("%w: file already exists", domain.ErrRemote)

// Remote is a file store addressed by slash-separated paths. Message is a
// change description for backends that keep history.
type Remote interface {
	// Create fails with ErrFileExists when path already exists.
	Create(ctx context.Context, path, message string, content []byte) error
	// Get fails with domain.ErrNotFound when path does not exist.
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete fails with domain.ErrNotFound when path does not exist.
	Delete(ctx context.Context, path, message string) error
	// Replace writes content whether or not path exists.
	Replace(ctx context.Context, path, message string, content []byte) error
}

// Push uploads localFile to remotePath. It never overwrites.
func Push(ctx context.Context, r Remote, localFile, remotePath, message string) error {
	content, err := os.ReadFile(localFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: local file %s", domain.ErrNotFound, localFile)
		}
		return fmt.Errorf("failed to read %s: %w", localFile, err)
	}
	return r.Create(ctx, remotePath, message, content)
}

// Pull downloads remotePath into localDir under its base name and returns
// the written path. The file is replaced atomically.
func Pull(ctx context.Context, r Remote, remotePath, localDir string) (string, error) {
	content, err := r.Get(ctx, remotePath)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(localDir, path.Base(remotePath))
	if err := WriteFileAtomic(dst, content); err != nil {
		return "", err
	}
	return dst, nil
}

// WriteFileAtomic writes content next to dst and renames it into place.
func WriteFileAtomic(dst string, content []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return nil
}

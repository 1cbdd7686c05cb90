// Package backend builds the remote configured by SYNC_BACKEND.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/pbcachim/baralhos/internal/config"
	"github.com/pbcachim/baralhos/internal/remote"
	"github.com/pbcachim/baralhos/internal/remote/github"
	"github.com/pbcachim/baralhos/internal/remote/gitrepo"
	"github.com/pbcachim/baralhos/internal/remote/local"
)

// New returns the configured remote, or nil when syncing is disabled.
func New(cfg *config.Config, logger *slog.Logger) (remote.Remote, error) {
	switch cfg.SyncBackend {
	case config.SyncNone, "":
		return nil, nil
	case config.SyncLocal:
		logger.Info("using local sync backend", "dir", cfg.SyncLocalDir)
		return local.New(cfg.SyncLocalDir, logger)
	case config.SyncGitHub:
		logger.Info("using GitHub sync backend", "repo", cfg.GitHubRepo, "branch", cfg.SyncBranch)
		return github.New(github.Config{
			Repo:    cfg.GitHubRepo,
			Token:   cfg.GitHubToken,
			Branch:  cfg.SyncBranch,
			BaseURL: cfg.GitHubAPIURL,
		}, logger)
	case config.SyncGit:
		logger.Info("using git sync backend", "url", cfg.GitURL, "branch", cfg.SyncBranch)
		return gitrepo.New(gitrepo.Config{
			URL:      cfg.GitURL,
			Branch:   cfg.SyncBranch,
			Username: cfg.GitUsername,
			Token:    cfg.GitToken,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown sync backend %q", cfg.SyncBackend)
	}
}

// Package github keeps the remote copy in a GitHub repository through the
// contents API.
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

const DefaultBranch = "main"

type Config struct {
	// Repo is "owner/name".
	Repo   string
	Token  string
	Branch string
	// BaseURL overrides https://api.github.com/, for GitHub Enterprise or tests.
	BaseURL string
}

type Repo struct {
	client *gh.Client
	owner  string
	repo   string
	branch string
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Repo, error) {
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", cfg.Repo)
	}

	client := gh.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = u
	}

	branch := cfg.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	return &Repo{client: client, owner: owner, repo: name, branch: branch, logger: logger}, nil
}

func (r *Repo) Create(ctx context.Context, path, message string, content []byte) error {
	sha, err := r.sha(ctx, path)
	if err != nil {
		return err
	}
	if sha != "" {
		return fmt.Errorf("%w: %s", remote.ErrFileExists, path)
	}

	_, resp, err := r.client.Repositories.CreateFile(ctx, r.owner, r.repo, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(r.branch),
	})
	if err != nil {
		// 422 means a sha was required: the file appeared since the lookup.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", remote.ErrFileExists, path)
		}
		return fmt.Errorf("failed to create %s: %w: %w", path, domain.ErrRemote, err)
	}
	r.logger.Info("remote file created", "repo", r.owner+"/"+r.repo, "path", path, "bytes", len(content))
	return nil
}

func (r *Repo) Get(ctx context.Context, path string) ([]byte, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: r.branch}
	file, _, resp, err := r.client.Repositories.GetContents(ctx, r.owner, r.repo, path, opts)
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get %s: %w: %w", path, domain.ErrRemote, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrRemote, path)
	}

	// Files over 1 MB come back without inline content.
	if file.GetEncoding() == "none" {
		return r.download(ctx, path, opts)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w: %w", path, domain.ErrRemote, err)
	}
	return []byte(content), nil
}

func (r *Repo) download(ctx context.Context, path string, opts *gh.RepositoryContentGetOptions) ([]byte, error) {
	rc, _, err := r.client.Repositories.DownloadContents(ctx, r.owner, r.repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w: %w", path, domain.ErrRemote, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			r.logger.Error("failed to close download", "path", path, "error", cerr)
		}
	}()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", path, domain.ErrRemote, err)
	}
	return content, nil
}

func (r *Repo) Delete(ctx context.Context, path, message string) error {
	sha, err := r.sha(ctx, path)
	if err != nil {
		return err
	}
	if sha == "" {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}

	_, _, err = r.client.Repositories.DeleteFile(ctx, r.owner, r.repo, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     gh.String(sha),
		Branch:  gh.String(r.branch),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w: %w", path, domain.ErrRemote, err)
	}
	r.logger.Info("remote file deleted", "repo", r.owner+"/"+r.repo, "path", path)
	return nil
}

// Replace updates path in a single commit, creating it when missing.
func (r *Repo) Replace(ctx context.Context, path, message string, content []byte) error {
	sha, err := r.sha(ctx, path)
	if err != nil {
		return err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(r.branch),
	}
	if sha == "" {
		_, _, err = r.client.Repositories.CreateFile(ctx, r.owner, r.repo, path, opts)
	} else {
		opts.SHA = gh.String(sha)
		_, _, err = r.client.Repositories.UpdateFile(ctx, r.owner, r.repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w: %w", path, domain.ErrRemote, err)
	}
	r.logger.Info("remote file replaced", "repo", r.owner+"/"+r.repo, "path", path, "bytes", len(content), "created", sha == "")
	return nil
}

// sha returns the blob sha of path on the branch, or "" when it does not
// exist.
func (r *Repo) sha(ctx context.Context, path string) (string, error) {
	file, _, resp, err := r.client.Repositories.GetContents(ctx, r.owner, r.repo, path,
		&gh.RepositoryContentGetOptions{Ref: r.branch})
	if err != nil {
		if isNotFound(resp) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up %s: %w: %w", path, domain.ErrRemote, err)
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrRemote, path)
	}
	return file.GetSHA(), nil
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}


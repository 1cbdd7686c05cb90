// Package gitrepo keeps the remote copy in any git repository. Every
// operation clones the branch into memory, so nothing is left on disk.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

const (
	DefaultBranch      = "main"
	defaultAuthorName  = "baralhos"
	defaultAuthorEmail = "baralhos@localhost"
)

type Config struct {
	URL    string
	Branch string
	// Username and Token enable HTTP basic auth. Hosting services accept a
	// personal access token as the password.
	Username string
	Token    string

	AuthorName  string
	AuthorEmail string
}

type Repo struct {
	cfg    Config
	auth   transport.AuthMethod
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Repo, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("git remote URL is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = defaultAuthorName
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = defaultAuthorEmail
	}

	r := &Repo{cfg: cfg, logger: logger}
	if cfg.Token != "" {
		username := cfg.Username
		if username == "" {
			username = "git"
		}
		r.auth = &githttp.BasicAuth{Username: username, Password: cfg.Token}
	}
	return r, nil
}

// checkout is an in-memory clone of the configured branch.
type checkout struct {
	repo *git.Repository
	fs   billy.Filesystem
}

func (r *Repo) clone(ctx context.Context) (*checkout, error) {
	branch := plumbing.NewBranchReferenceName(r.cfg.Branch)
	fs := memfs.New()

	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL:           r.cfg.URL,
		Auth:          r.auth,
		ReferenceName: branch,
		SingleBranch:  true,
	})
	switch {
	case err == nil:
		return &checkout{repo: repo, fs: fs}, nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, git.NoMatchingRefSpecError{}),
		errors.Is(err, plumbing.ErrReferenceNotFound):
		r.logger.Info("git branch not found, starting it", "url", r.cfg.URL, "branch", r.cfg.Branch)
		return r.initBranch(branch)
	default:
		return nil, fmt.Errorf("failed to clone %s: %w: %w", r.cfg.URL, domain.ErrRemote, err)
	}
}

// initBranch prepares an empty repository whose first commit will create
// branch on the remote.
func (r *Repo) initBranch(branch plumbing.ReferenceName) (*checkout, error) {
	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	if err != nil {
		return nil, fmt.Errorf("failed to init repository: %w: %w", domain.ErrRemote, err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: git.DefaultRemoteName, URLs: []string{r.cfg.URL}}); err != nil {
		return nil, fmt.Errorf("failed to add remote: %w: %w", domain.ErrRemote, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return nil, fmt.Errorf("failed to set HEAD: %w: %w", domain.ErrRemote, err)
	}
	return &checkout{repo: repo, fs: fs}, nil
}

func (c *checkout) exists(name string) (bool, error) {
	_, err := c.fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w: %w", name, domain.ErrRemote, err)
}

func (c *checkout) write(name string, content []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w: %w", dir, domain.ErrRemote, err)
		}
	}
	if err := util.WriteFile(c.fs, name, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w: %w", name, domain.ErrRemote, err)
	}
	return nil
}

// commitAndPush records the staged change. It reports false when the tree
// was unchanged and nothing was pushed.
func (r *Repo) commitAndPush(ctx context.Context, c *checkout, stage func(*git.Worktree) error, message string) (bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w: %w", domain.ErrRemote, err)
	}
	if err := stage(wt); err != nil {
		return false, fmt.Errorf("failed to stage change: %w: %w", domain.ErrRemote, err)
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.cfg.AuthorName, Email: r.cfg.AuthorEmail, When: time.Now()},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to commit: %w: %w", domain.ErrRemote, err)
	}

	spec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", r.cfg.Branch, r.cfg.Branch))
	err = c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       r.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to push to %s: %w: %w", r.cfg.URL, domain.ErrRemote, err)
	}
	return true, nil
}

func (r *Repo) Create(ctx context.Context, name, message string, content []byte) error {
	c, err := r.clone(ctx)
	if err != nil {
		return err
	}

	ok, err := c.exists(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", remote.ErrFileExists, name)
	}

	if err := c.write(name, content); err != nil {
		return err
	}
	if _, err := r.commitAndPush(ctx, c, func(wt *git.Worktree) error {
		_, err := wt.Add(name)
		return err
	}, message); err != nil {
		return err
	}

	r.logger.Info("git file created", "url", r.cfg.URL, "branch", r.cfg.Branch, "path", name, "bytes", len(content))
	return nil
}

func (r *Repo) Get(ctx context.Context, name string) ([]byte, error) {
	c, err := r.clone(ctx)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w: %w", name, domain.ErrRemote, err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", name, domain.ErrRemote, err)
	}
	return content, nil
}

func (r *Repo) Delete(ctx context.Context, name, message string) error {
	c, err := r.clone(ctx)
	if err != nil {
		return err
	}

	ok, err := c.exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	if _, err := r.commitAndPush(ctx, c, func(wt *git.Worktree) error {
		_, err := wt.Remove(name)
		return err
	}, message); err != nil {
		return err
	}

	r.logger.Info("git file deleted", "url", r.cfg.URL, "branch", r.cfg.Branch, "path", name)
	return nil
}

// Replace writes content and pushes it as a single commit. Identical content
// produces no commit.
func (r *Repo) Replace(ctx context.Context, name, message string, content []byte) error {
	c, err := r.clone(ctx)
	if err != nil {
		return err
	}

	if err := c.write(name, content); err != nil {
		return err
	}
	pushed, err := r.commitAndPush(ctx, c, func(wt *git.Worktree) error {
		_, err := wt.Add(name)
		return err
	}, message)
	if err != nil {
		return err
	}

	r.logger.Info("git file replaced", "url", r.cfg.URL, "branch", r.cfg.Branch, "path", name, "bytes", len(content), "pushed", pushed)
	return nil
}

package gitrepo

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

// newBareRemote creates an empty bare repository to push to. The file
// transport shells out to git-upload-pack and git-receive-pack.
func newBareRemote(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		t.Skip("git is not installed")
	}
	dir := t.TempDir()
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	return dir
}

func newTestRepo(t *testing.T, url string) *Repo {
	t.Helper()
	repo, err := New(Config{URL: url, Branch: "backup"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return repo
}

func commitCount(t *testing.T, dir, branch string) int {
	t.Helper()
	bare, err := git.PlainOpen(dir)
	require.NoError(t, err)
	ref, err := bare.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	iter, err := bare.Log(&git.LogOptions{From: ref.Hash()})
	require.NoError(t, err)
	n := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	}))
	return n
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRepoLifecycle(t *testing.T) {
	dir := newBareRemote(t)
	repo := newTestRepo(t, dir)
	ctx := context.Background()

	_, err := repo.Get(ctx, "card_decks.db")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Create(ctx, "card_decks.db", "initial upload", []byte("v1")))
	assert.Equal(t, 1, commitCount(t, dir, "backup"))

	data, err := repo.Get(ctx, "card_decks.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	assert.ErrorIs(t, repo.Create(ctx, "card_decks.db", "again", []byte("v2")), remote.ErrFileExists)

	require.NoError(t, repo.Replace(ctx, "card_decks.db", "database updated", []byte("v2")))
	assert.Equal(t, 2, commitCount(t, dir, "backup"))

	// Same content: nothing to commit.
	require.NoError(t, repo.Replace(ctx, "card_decks.db", "database updated", []byte("v2")))
	assert.Equal(t, 2, commitCount(t, dir, "backup"))

	data, err = repo.Get(ctx, "card_decks.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	require.NoError(t, repo.Delete(ctx, "card_decks.db", "remove"))
	_, err = repo.Get(ctx, "card_decks.db")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "card_decks.db", "remove"), domain.ErrNotFound)
}

func TestRepoReplaceOnEmptyRemote(t *testing.T) {
	dir := newBareRemote(t)
	repo := newTestRepo(t, dir)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "backups/card_decks.db", "first backup", []byte("v1")))

	data, err := repo.Get(ctx, "backups/card_decks.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)
}

func TestRepoUnreachable(t *testing.T) {
	repo := newTestRepo(t, t.TempDir()+"/does-not-exist")

	_, err := repo.Get(context.Background(), "card_decks.db")
	assert.ErrorIs(t, err, domain.ErrRemote)
}

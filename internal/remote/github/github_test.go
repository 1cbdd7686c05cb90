package github

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/remote"
)

// fakeContents emulates the subset of the GitHub contents API the client
// uses, keyed by path on a single branch.
type fakeContents struct {
	mu       sync.Mutex
	branch   string
	files    map[string][]byte
	messages []string
}

type fileRequest struct {
	Message string  `json:"message"`
	Content []byte  `json:"content"`
	SHA     *string `json:"sha"`
	Branch  string  `json:"branch"`
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeContents) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ref := r.URL.Query().Get("ref"); ref != f.branch {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found for the ref " + ref})
			return
		}
		path := r.PathValue("path")
		content, ok := f.files[path]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"size":     len(content),
			"name":     path,
			"path":     path,
			"content":  base64.StdEncoding.EncodeToString(content),
			"sha":      blobSHA(content),
		})
	})

	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req fileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		path := r.PathValue("path")
		current, exists := f.files[path]
		switch {
		case exists && req.SHA == nil:
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `"sha" wasn't supplied.`})
			return
		case exists && *req.SHA != blobSHA(current):
			writeJSON(w, http.StatusConflict, map[string]string{"message": "sha does not match"})
			return
		}
		f.files[path] = req.Content
		f.messages = append(f.messages, req.Message)
		status := http.StatusCreated
		if exists {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{
			"content": map[string]any{"name": path, "path": path, "sha": blobSHA(req.Content)},
			"commit":  map[string]any{"sha": blobSHA([]byte(req.Message))},
		})
	})

	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req fileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		path := r.PathValue("path")
		current, exists := f.files[path]
		if !exists {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		if req.SHA == nil || *req.SHA != blobSHA(current) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "sha does not match"})
			return
		}
		delete(f.files, path)
		f.messages = append(f.messages, req.Message)
		writeJSON(w, http.StatusOK, map[string]any{
			"content": nil,
			"commit":  map[string]any{"sha": blobSHA([]byte(req.Message))},
		})
	})

	return mux
}

func newTestRepo(t *testing.T) (*Repo, *fakeContents) {
	t.Helper()
	fake := &fakeContents{branch: "main", files: map[string][]byte{}}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	repo, err := New(Config{Repo: "pbcachim/decks-backup", Token: "test-token", BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return repo, fake
}

func TestNewRejectsBadRepo(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, repo := range []string{"", "owner", "/name", "owner/", "a/b/c"} {
		_, err := New(Config{Repo: repo}, logger)
		assert.Error(t, err, repo)
	}
}

func TestRepoCreateAndGet(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "card_decks.db", "initial upload", []byte("db v1")))

	data, err := repo.Get(ctx, "card_decks.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("db v1"), data)
	assert.Equal(t, []string{"initial upload"}, fake.messages)
}

func TestRepoCreateExisting(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()
	fake.files["card_decks.db"] = []byte("db v1")

	err := repo.Create(ctx, "card_decks.db", "again", []byte("db v2"))
	assert.ErrorIs(t, err, remote.ErrFileExists)
	assert.Equal(t, []byte("db v1"), fake.files["card_decks.db"])
}

func TestRepoGetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "card_decks.db")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepoReplace(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "card_decks.db", "database updated", []byte("db v1")))
	require.NoError(t, repo.Replace(ctx, "card_decks.db", "database updated again", []byte("db v2")))

	assert.Equal(t, []byte("db v2"), fake.files["card_decks.db"])
	assert.Equal(t, []string{"database updated", "database updated again"}, fake.messages)
}

func TestRepoDelete(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()
	fake.files["card_decks.db"] = []byte("db v1")

	require.NoError(t, repo.Delete(ctx, "card_decks.db", "remove backup"))
	assert.NotContains(t, fake.files, "card_decks.db")

	assert.ErrorIs(t, repo.Delete(ctx, "card_decks.db", "remove backup"), domain.ErrNotFound)
}

func TestRepoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	}))
	t.Cleanup(srv.Close)

	repo, err := New(Config{Repo: "o/r", BaseURL: srv.URL + "/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), "card_decks.db")
	assert.ErrorIs(t, err, domain.ErrRemote)

	assert.ErrorIs(t, repo.Replace(context.Background(), "card_decks.db", "m", []byte("x")), domain.ErrRemote)
}

func TestRepoPushPull(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "card_decks.db")
	require.NoError(t, os.WriteFile(src, []byte("sqlite"), 0o644))
	require.NoError(t, remote.Push(ctx, repo, src, "backups/card_decks.db", "push"))

	restored, err := remote.Pull(ctx, repo, "backups/card_decks.db", t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, []byte("sqlite"), data)
}

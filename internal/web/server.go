package web

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	"github.com/pbcachim/baralhos/internal/auth"
	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/service"
)

const defaultLoginRateLimit = 10

// backupService is the subset of service.SyncService the server uses on
// logout.
type backupService interface {
	Backup(ctx context.Context) error
}

type Options struct {
	// LoginRateLimit caps login attempts per client IP per minute.
	LoginRateLimit int
	// BackupTimeout bounds the upload started on logout.
	BackupTimeout time.Duration
}

type Server struct {
	catalog   *service.CatalogService
	backup    backupService
	auth      *auth.Authenticator
	templates fs.FS
	mux       *http.ServeMux
	handler   http.Handler
	tmplFuncs template.FuncMap
	opts      Options
	logger    *slog.Logger
}

// NewServer wires the routes. backup may be nil when no sync backend is
// configured.
func NewServer(catalog *service.CatalogService, backup backupService, authn *auth.Authenticator, tmpl fs.FS, opts Options, logger *slog.Logger) *Server {
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = defaultLoginRateLimit
	}
	if opts.BackupTimeout <= 0 {
		opts.BackupTimeout = 2 * time.Minute
	}
	s := &Server{
		catalog:   catalog,
		backup:    backup,
		auth:      authn,
		templates: tmpl,
		mux:       http.NewServeMux(),
		opts:      opts,
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"thumbSrc": thumbSrc,
			"inc":      func(i int) int { return i + 1 },
		},
	}
	s.registerRoutes()
	s.handler = middleware.RequestID(
		middleware.Recoverer(
			requestLogger(logger,
				securityHeaders(
					authn.Verifier()(s.mux)))))
	return s
}

func (s *Server) registerRoutes() {
	loginLimit := httprate.LimitByIP(s.opts.LoginRateLimit, time.Minute)

	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.Handle("POST /login", loginLimit(http.HandlerFunc(s.handleLogin)))

	s.protect("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/decks", http.StatusSeeOther)
	})
	s.protect("POST /logout", s.handleLogout)

	s.protect("GET /decks", s.handleListDecks)
	s.protect("GET /decks/export", s.handleExportDecks)
	s.protect("GET /decks/new", s.handleNewDeck)
	s.protect("POST /decks", s.handleCreateDeck)
	s.protect("GET /decks/{id}", s.handleGetDeck)
	s.protect("GET /decks/{id}/edit", s.handleEditDeck)
	s.protect("POST /decks/{id}", s.handleUpdateDeck)

	s.protect("GET /settings", s.handleSettings)
	s.protect("POST /settings/{table}", s.handleAddLookup)
	s.protect("POST /settings/{table}/{id}/delete", s.handleDeleteLookup)
}

func (s *Server) protect(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, auth.RequireSession(h))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// flash is the inline message shown above page content.
type flash struct {
	Kind    string
	Message string
}

func errorFlash(msg string) *flash { return &flash{Kind: "error", Message: msg} }

// notices are the messages a redirect can ask the next page to show.
var notices = map[string]flash{
	"deck-added":        {Kind: "success", Message: "Deck added."},
	"deck-saved":        {Kind: "success", Message: "Deck saved."},
	"lookup-added":      {Kind: "success", Message: "Value added."},
	"lookup-delete":     {Kind: "success", Message: "Value deleted."},
	"logged-out":        {Kind: "success", Message: "Logged out."},
	"logged-out-backup": {Kind: "success", Message: "Logged out. Database backed up."},
	"backup-failed":     {Kind: "error", Message: "Logged out, but the database backup failed. Check the server log."},
}

func noticeFlash(r *http.Request) *flash {
	if f, ok := notices[r.URL.Query().Get("notice")]; ok {
		return &f
	}
	return nil
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data map[string]any, files ...string) {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, append([]string{"base.html"}, files...)...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		s.logger.Error("parse templates failed", "files", files, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("render page failed", "files", files, "error", err)
	}
}

// errorStatus maps domain error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRecord):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTable),
		errors.Is(err, domain.ErrImageProcessing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to the user for err. Storage and remote
// failures are only detailed in the log.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateRecord):
		return "That value already exists."
	case errors.Is(err, domain.ErrInvalidName):
		return "Please enter a name."
	case errors.Is(err, domain.ErrImageProcessing):
		return "One or more images could not be read. Use JPEG, PNG, GIF or WebP files."
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	}
	return "Something went wrong. Please try again."
}

// thumbSrc turns a stored thumbnail into an img src. Thumbnails are
// produced or validated as base64 before they are stored.
func thumbSrc(encoded string) template.URL {
	return template.URL("data:image/jpeg;base64," + encoded)
}

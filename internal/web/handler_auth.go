package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/pbcachim/baralhos/internal/auth"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.Username(r) != "" {
		http.Redirect(w, r, "/decks", http.StatusSeeOther)
		return
	}
	s.renderPage(w, http.StatusOK, map[string]any{"Flash": noticeFlash(r)}, "pages/login.html")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if err := s.auth.Check(username, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("login check failed", "error", err)
		}
		s.logger.Warn("login rejected", "username", username, "remote_addr", r.RemoteAddr)
		s.renderPage(w, http.StatusUnauthorized, map[string]any{
			"Flash":    errorFlash("Invalid username or password."),
			"Username": username,
		}, "pages/login.html")
		return
	}

	if err := s.auth.StartSession(w, username); err != nil {
		s.logger.Error("start session failed", "error", err)
		s.renderPage(w, http.StatusInternalServerError, map[string]any{
			"Flash": errorFlash("Could not start a session. Please try again."),
		}, "pages/login.html")
		return
	}
	s.logger.Info("login", "username", username)
	http.Redirect(w, r, "/decks", http.StatusSeeOther)
}

// handleLogout ends the session and backs the database up, then redirects to
// the login page. A failed backup is reported there; the session still ends.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.EndSession(w)
	s.logger.Info("logout", "username", auth.Username(r))

	notice := "logged-out"
	if s.backup != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.BackupTimeout)
		defer cancel()
		if err := s.backup.Backup(ctx); err != nil {
			s.logger.Error("backup on logout failed", "error", err)
			notice = "backup-failed"
		} else {
			notice = "logged-out-backup"
		}
	}

	http.Redirect(w, r, auth.LoginPath+"?notice="+notice, http.StatusSeeOther)
}

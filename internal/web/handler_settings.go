package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/pbcachim/baralhos/internal/domain"
)

func settingsURL(t domain.Table, notice string) string {
	q := url.Values{"table": {t.Name()}}
	if notice != "" {
		q.Set("notice", notice)
	}
	return "/settings?" + q.Encode()
}

// tableFromRequest reads the category from the path, falling back to the
// "table" query parameter and then to the first category.
func tableFromRequest(r *http.Request) (domain.Table, error) {
	name := r.PathValue("table")
	if name == "" {
		name = r.URL.Query().Get("table")
	}
	if name == "" {
		return domain.Tables[0], nil
	}
	return domain.ParseTable(name)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	table, err := tableFromRequest(r)
	if err != nil {
		s.renderSettings(w, r, http.StatusNotFound, domain.Tables[0], "", errorFlash(errorMessage(err)))
		return
	}
	s.renderSettings(w, r, http.StatusOK, table, "", noticeFlash(r))
}

func (s *Server) handleAddLookup(w http.ResponseWriter, r *http.Request) {
	table, err := tableFromRequest(r)
	if err != nil {
		s.renderSettings(w, r, http.StatusNotFound, domain.Tables[0], "", errorFlash(errorMessage(err)))
		return
	}
	name := r.FormValue("name")
	if _, err := s.catalog.AddLookup(r.Context(), table, name); err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("add lookup failed", "table", table.Name(), "error", err)
		}
		s.renderSettings(w, r, status, table, name, errorFlash(errorMessage(err)))
		return
	}
	http.Redirect(w, r, settingsURL(table, "lookup-added"), http.StatusSeeOther)
}

func (s *Server) handleDeleteLookup(w http.ResponseWriter, r *http.Request) {
	table, err := tableFromRequest(r)
	if err != nil {
		s.renderSettings(w, r, http.StatusNotFound, domain.Tables[0], "", errorFlash(errorMessage(err)))
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.renderSettings(w, r, http.StatusNotFound, table, "", errorFlash("Unknown value."))
		return
	}
	if err := s.catalog.DeleteLookup(r.Context(), table, id); err != nil {
		s.logger.Error("delete lookup failed", "table", table.Name(), "id", id, "error", err)
		s.renderSettings(w, r, errorStatus(err), table, "", errorFlash(errorMessage(err)))
		return
	}
	http.Redirect(w, r, settingsURL(table, "lookup-delete"), http.StatusSeeOther)
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, table domain.Table, name string, msg *flash) {
	records, err := s.catalog.ListLookups(r.Context(), table)
	if err != nil {
		s.logger.Error("list lookups failed", "table", table.Name(), "error", err)
		status = http.StatusInternalServerError
		msg = errorFlash(errorMessage(err))
	}
	s.renderPage(w, status, map[string]any{
		"ActiveNav": "settings",
		"Flash":     msg,
		"Tables":    domain.Tables,
		"Table":     table,
		"Records":   records,
		"Name":      name,
	}, "pages/settings.html")
}

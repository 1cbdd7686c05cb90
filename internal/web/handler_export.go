package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/export"
)

// handleExportDecks downloads the decks matching the current filter as a
// spreadsheet. The workbook is built in memory so that a failure can still
// be reported as an error page.
func (s *Server) handleExportDecks(w http.ResponseWriter, r *http.Request) {
	labels, _ := labelsFromQuery(r.URL.Query())

	decks, err := s.catalog.FilterDecksByLabel(r.Context(), labels)
	if err != nil {
		status := errorStatus(err)
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("export filter failed", "error", err)
		}
		http.Error(w, errorMessage(err), status)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, decks); err != nil {
		s.logger.Error("export write failed", "error", err)
		http.Error(w, errorMessage(err), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", export.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("export response write failed", "error", err)
	}
	s.logger.Info("decks exported", "count", len(decks))
}

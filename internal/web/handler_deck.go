package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/service"
)

// selectField is one category dropdown on the deck form or the filter bar.
type selectField struct {
	Table    domain.Table
	Options  []*domain.LookupRecord
	Selected int64
	// Label is the selected name, used by the filter bar.
	Label string
}

// deckRow is one line of the deck table with the link that selects it while
// keeping the current filter.
type deckRow struct {
	Deck     *domain.DeckView
	Href     template.URL
	Selected bool
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrNotFound, r.PathValue("id"))
	}
	return id, nil
}

// labelsFromQuery reads the filter bar: one query parameter per category,
// holding the category name.
func labelsFromQuery(q url.Values) (domain.LabelFilter, url.Values) {
	labels := domain.LabelFilter{}
	kept := url.Values{}
	for _, t := range domain.Tables {
		v := strings.TrimSpace(q.Get(t.Param()))
		if v == "" {
			continue
		}
		labels[t] = v
		kept.Set(t.Param(), v)
	}
	return labels, kept
}

// deckInputFromForm reads the category ids and description of a deck form.
// Missing or malformed ids are left zero for validation to reject.
func deckInputFromForm(r *http.Request) domain.DeckInput {
	var in domain.DeckInput
	for _, t := range domain.Tables {
		id, _ := strconv.ParseInt(r.FormValue(t.Param()), 10, 64)
		in.Set(t, id)
	}
	in.Description = strings.TrimSpace(r.FormValue("description"))
	return in
}

func filterFields(options map[domain.Table][]*domain.LookupRecord, labels domain.LabelFilter) []selectField {
	fields := make([]selectField, 0, len(domain.Tables))
	for _, t := range domain.Tables {
		fields = append(fields, selectField{Table: t, Options: options[t], Label: labels[t]})
	}
	return fields
}

func formFields(options map[domain.Table][]*domain.LookupRecord, in domain.DeckInput) []selectField {
	refs := in.Refs()
	fields := make([]selectField, 0, len(domain.Tables))
	for _, t := range domain.Tables {
		fields = append(fields, selectField{Table: t, Options: options[t], Selected: refs[t]})
	}
	return fields
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	labels, kept := labelsFromQuery(q)

	options, err := s.catalog.LookupOptions(ctx)
	if err != nil {
		s.logger.Error("load lookup options failed", "error", err)
		s.renderPage(w, http.StatusInternalServerError, map[string]any{
			"ActiveNav": "decks",
			"Flash":     errorFlash(errorMessage(err)),
		}, "pages/decks.html")
		return
	}

	msg := noticeFlash(r)
	decks, err := s.catalog.FilterDecksByLabel(ctx, labels)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		msg = &flash{Kind: "warning", Message: errorMessage(err)}
		decks = nil
	case err != nil:
		s.logger.Error("filter decks failed", "error", err)
		msg = errorFlash(errorMessage(err))
		decks = nil
	}

	var selected *domain.DeckView
	if raw := q.Get("deck"); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr == nil {
			selected, err = s.catalog.GetDeck(ctx, id)
		}
		if perr != nil || err != nil {
			selected = nil
			if msg == nil {
				msg = &flash{Kind: "warning", Message: "That deck no longer exists."}
			}
		}
	}

	rows := make([]deckRow, 0, len(decks))
	for _, d := range decks {
		link := url.Values{}
		for k, v := range kept {
			link[k] = v
		}
		link.Set("deck", strconv.FormatInt(d.ID, 10))
		rows = append(rows, deckRow{
			Deck:     d,
			Href:     template.URL("/decks?" + link.Encode()),
			Selected: selected != nil && selected.ID == d.ID,
		})
	}

	s.renderPage(w, http.StatusOK, map[string]any{
		"ActiveNav": "decks",
		"Flash":     msg,
		"Filters":   filterFields(options, labels),
		"Tables":    domain.Tables,
		"Rows":      rows,
		"Selected":  selected,
		"ExportURL": template.URL("/decks/export?" + kept.Encode()),
		"Filtered":  len(kept) > 0,
	}, "pages/decks.html")
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.deckFromPath(r)
	if err != nil {
		s.renderDeckError(w, err)
		return
	}
	s.renderPage(w, http.StatusOK, map[string]any{
		"ActiveNav": "decks",
		"Flash":     noticeFlash(r),
		"Deck":      deck,
		"Tables":    domain.Tables,
	}, "pages/deck_detail.html")
}

func (s *Server) handleNewDeck(w http.ResponseWriter, r *http.Request) {
	s.renderDeckForm(w, r, http.StatusOK, nil, domain.DeckInput{}, nil)
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	if err := parseDeckForm(w, r); err != nil {
		s.logger.Warn("parse deck form failed", "error", err)
		s.renderDeckForm(w, r, http.StatusBadRequest, nil, domain.DeckInput{}, errorFlash("The form could not be read. Uploads are limited to 50 MB."))
		return
	}
	in := deckInputFromForm(r)

	uploads, err := uploadedImages(r, s.logger)
	if err == nil {
		var deck *domain.DeckView
		if deck, err = s.catalog.AddDeck(r.Context(), in, uploads); err == nil {
			http.Redirect(w, r, fmt.Sprintf("/decks?deck=%d&notice=deck-added", deck.ID), http.StatusSeeOther)
			return
		}
	}

	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("add deck failed", "error", err)
	}
	s.renderDeckForm(w, r, status, nil, in, errorFlash(errorMessage(err)))
}

func (s *Server) handleEditDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.editableDeckFromPath(r)
	if err != nil {
		s.renderDeckError(w, err)
		return
	}
	var msg *flash
	if missing := missingCategories(deck); len(missing) > 0 {
		msg = &flash{Kind: "warning", Message: "Choose new values for deleted categories: " + strings.Join(missing, ", ") + "."}
	}
	s.renderDeckForm(w, r, http.StatusOK, deck, deck.Input(), msg)
}

// handleUpdateDeck saves the edit form. The image list is rebuilt from the
// ticked existing thumbnails followed by any new uploads when the replace box
// is ticked or files were uploaded; otherwise it is left as stored.
func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.editableDeckFromPath(r)
	if err != nil {
		s.renderDeckError(w, err)
		return
	}
	if err := parseDeckForm(w, r); err != nil {
		s.logger.Warn("parse deck form failed", "deck_id", deck.ID, "error", err)
		s.renderDeckForm(w, r, http.StatusBadRequest, deck, deck.Input(), errorFlash("The form could not be read. Uploads are limited to 50 MB."))
		return
	}
	in := deckInputFromForm(r)

	uploads, err := uploadedImages(r, s.logger)
	if err != nil {
		s.renderDeckForm(w, r, errorStatus(err), deck, in, errorFlash(errorMessage(err)))
		return
	}
	replace := r.FormValue("replace_images") != "" || len(uploads) > 0

	var images []service.ImageInput
	if replace {
		for _, keep := range r.Form["keep"] {
			images = append(images, service.EncodedImage(keep))
		}
		for _, u := range uploads {
			images = append(images, service.UploadedImage(u))
		}
	}

	if _, err := s.catalog.EditDeck(r.Context(), deck.ID, in, images, replace); err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("edit deck failed", "deck_id", deck.ID, "error", err)
		}
		s.renderDeckForm(w, r, status, deck, in, errorFlash(errorMessage(err)))
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/decks?deck=%d&notice=deck-saved", deck.ID), http.StatusSeeOther)
}

// missingCategories lists the labels of categories whose value was deleted.
func missingCategories(deck *domain.DeckView) []string {
	var missing []string
	for _, t := range domain.Tables {
		if deck.Category(t).Name == "" {
			missing = append(missing, t.Label())
		}
	}
	return missing
}

func (s *Server) editableDeckFromPath(r *http.Request) (*domain.DeckView, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	return s.catalog.DeckForEdit(r.Context(), id)
}

func (s *Server) deckFromPath(r *http.Request) (*domain.DeckView, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	return s.catalog.GetDeck(r.Context(), id)
}

func (s *Server) renderDeckError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("load deck failed", "error", err)
	}
	s.renderPage(w, status, map[string]any{
		"ActiveNav": "decks",
		"Flash":     errorFlash(errorMessage(err)),
	}, "pages/deck_detail.html")
}

// renderDeckForm shows the add form, or the edit form when deck is set.
func (s *Server) renderDeckForm(w http.ResponseWriter, r *http.Request, status int, deck *domain.DeckView, in domain.DeckInput, msg *flash) {
	options, err := s.catalog.LookupOptions(r.Context())
	if err != nil {
		s.logger.Error("load lookup options failed", "error", err)
		status = http.StatusInternalServerError
		msg = errorFlash(errorMessage(err))
	}
	action := "/decks"
	if deck != nil {
		action = fmt.Sprintf("/decks/%d", deck.ID)
	}
	s.renderPage(w, status, map[string]any{
		"ActiveNav":   "decks",
		"Flash":       msg,
		"Fields":      formFields(options, in),
		"Description": in.Description,
		"Deck":        deck,
		"Action":      action,
	}, "pages/deck_form.html")
}

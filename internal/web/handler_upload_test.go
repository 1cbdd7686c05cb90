package web

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcachim/baralhos/internal/domain"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, fields url.Values, files ...upload) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/decks", body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func TestUploadedImages(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		files   []upload
		want    int
		wantErr error
	}{
		{name: "no files", want: 0},
		{name: "one png", files: []upload{{"a.png", pngBytes(t)}}, want: 1},
		{name: "two pngs", files: []upload{{"a.png", pngBytes(t)}, {"b.png", pngBytes(t)}}, want: 2},
		{name: "empty part skipped", files: []upload{{"", nil}, {"a.png", pngBytes(t)}}, want: 1},
		{name: "pdf rejected", files: []upload{{"a.png", pngBytes(t)}, {"doc.pdf", []byte("%PDF-1.4 not an image")}}, wantErr: domain.ErrImageProcessing},
		{name: "text rejected", files: []upload{{"notes.jpg", []byte("plain text")}}, wantErr: domain.ErrImageProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := multipartRequest(t, url.Values{"description": {"x"}}, tt.files...)
			require.NoError(t, parseDeckForm(httptest.NewRecorder(), r))

			got, err := uploadedImages(r, logger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseDeckFormURLEncoded(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/decks/1", strings.NewReader("city=3&description=hello"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	require.NoError(t, parseDeckForm(httptest.NewRecorder(), r))
	assert.Equal(t, "hello", r.FormValue("description"))

	images, err := uploadedImages(r, slog.Default())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestDeckInputFromForm(t *testing.T) {
	form := url.Values{"description": {"  gilded  "}}
	for i, table := range domain.Tables {
		form.Set(table.Param(), fmt.Sprint(i+1))
	}
	form.Set(domain.TableGames.Param(), "not-a-number")

	r := httptest.NewRequest(http.MethodPost, "/decks", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	in := deckInputFromForm(r)
	assert.Equal(t, int64(1), in.TypeID)
	assert.Equal(t, int64(0), in.GameID)
	assert.Equal(t, int64(8), in.ManufacturerID)
	assert.Equal(t, "gilded", in.Description)
}

func TestLabelsFromQuery(t *testing.T) {
	labels, kept := labelsFromQuery(url.Values{
		"city":    {"Lisboa"},
		"country": {"  "},
		"deck":    {"4"},
	})
	assert.Equal(t, domain.LabelFilter{domain.TableCities: "Lisboa"}, labels)
	assert.Equal(t, "city=Lisboa", kept.Encode())
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrDuplicateRecord), http.StatusConflict},
		{domain.ErrInvalidInput, http.StatusUnprocessableEntity},
		{domain.ErrInvalidName, http.StatusUnprocessableEntity},
		{domain.ErrInvalidTable, http.StatusUnprocessableEntity},
		{domain.ErrImageProcessing, http.StatusUnprocessableEntity},
		{domain.ErrStorage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestErrorMessageHidesStorageDetail(t *testing.T) {
	err := fmt.Errorf("%w: disk I/O error at /data/card_decks.db", domain.ErrStorage)
	assert.NotContains(t, errorMessage(err), "/data")
}

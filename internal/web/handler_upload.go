package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/thumbnail"
)

const maxUploadSize = 50 << 20 // 50 MB

// allowedImageTypes are the upload formats the thumbnailer decodes.
var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// parseDeckForm parses a deck form, multipart or urlencoded.
func parseDeckForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	err := r.ParseMultipartForm(maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// uploadedImages reads the files of the "images" field. Files that are not a
// supported image type fail the whole request.
func uploadedImages(r *http.Request, logger *slog.Logger) ([]thumbnail.Source, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var sources []thumbnail.Source
	for _, fh := range r.MultipartForm.File["images"] {
		if fh.Size == 0 && fh.Filename == "" {
			// Browsers submit an empty part when no file was chosen.
			continue
		}
		data, err := readUpload(fh, logger)
		if err != nil {
			return nil, err
		}
		mtype := mimetype.Detect(data)
		if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
			return nil, fmt.Errorf("%w: %s is %s, not a supported image", domain.ErrImageProcessing, fh.Filename, mtype.String())
		}
		sources = append(sources, thumbnail.Source{Name: fh.Filename, Data: data})
	}
	return sources, nil
}

func readUpload(fh *multipart.FileHeader, logger *slog.Logger) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer closeWithLog(f, "upload file", logger)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}

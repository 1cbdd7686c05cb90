// Package thumbnail turns uploaded deck photos into the small base64 JPEG
// strings stored inline with each deck.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/pbcachim/baralhos/internal/domain"
)

const (
	DefaultMaxSize = 200
	DefaultQuality = 85

	// Separator joins encoded thumbnails in storage. It is outside the
	// base64 alphabet.
	Separator = ","
)

// Thumbnailer bounds images to MaxSize on both axes and re-encodes them as
// JPEG.
type Thumbnailer struct {
	MaxSize int
	Quality int
}

func New() *Thumbnailer {
	return &Thumbnailer{MaxSize: DefaultMaxSize, Quality: DefaultQuality}
}

// Make decodes r (JPEG, PNG, GIF or WebP), shrinks it to fit the bounding box
// without upscaling and returns the base64 encoded JPEG.
func (t *Thumbnailer) Make(r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w: %w", domain.ErrImageProcessing, err)
	}
	return t.encode(img)
}

// MakeFromFile is Make for an image on disk.
func (t *Thumbnailer) MakeFromFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w: %w", path, domain.ErrImageProcessing, err)
	}
	return t.encode(img)
}

func (t *Thumbnailer) encode(img image.Image) (string, error) {
	// Fit returns a copy unchanged when img is already within bounds.
	img = imaging.Fit(img, t.MaxSize, t.MaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.Quality)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w: %w", domain.ErrImageProcessing, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Source is one image handed to Batch: either in-memory bytes or a file path.
type Source struct {
	Name string
	Data []byte
	Path string
}

// Failure records a Source that could not be thumbnailed.
type Failure struct {
	Index int
	Name  string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("image %d (%s): %v", f.Index, f.Name, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Batch thumbnails every source in order. Failed sources are skipped and
// reported; the returned thumbnails keep the order of the successful inputs.
func (t *Thumbnailer) Batch(sources []Source) ([]string, []Failure) {
	thumbs := make([]string, 0, len(sources))
	var failures []Failure
	for i, src := range sources {
		var (
			thumb string
			err   error
		)
		if src.Path != "" {
			thumb, err = t.MakeFromFile(src.Path)
		} else {
			thumb, err = t.Make(bytes.NewReader(src.Data))
		}
		if err != nil {
			failures = append(failures, Failure{Index: i, Name: src.Name, Err: err})
			continue
		}
		thumbs = append(thumbs, thumb)
	}
	return thumbs, failures
}

// Join encodes an image list for storage.
func Join(images []string) string {
	return strings.Join(images, Separator)
}

// Split decodes a stored image list. The empty string is an empty list.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}

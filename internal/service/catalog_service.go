package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/thumbnail"
)

// lookupRepository is the subset of store.LookupStore that CatalogService requires.
type lookupRepository interface {
	Create(ctx context.Context, table domain.Table, name string) (*domain.LookupRecord, error)
	List(ctx context.Context, table domain.Table) ([]*domain.LookupRecord, error)
	IDByName(ctx context.Context, table domain.Table, name string) (int64, error)
	Exists(ctx context.Context, table domain.Table, id int64) (bool, error)
	Delete(ctx context.Context, table domain.Table, id int64) error
}

// deckRepository is the subset of store.DeckStore that CatalogService requires.
type deckRepository interface {
	Create(ctx context.Context, in domain.DeckInput, images []string) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.DeckView, error)
	GetStored(ctx context.Context, id int64) (*domain.DeckView, error)
	List(ctx context.Context) ([]*domain.DeckView, error)
	Filter(ctx context.Context, filter domain.DeckFilter) ([]*domain.DeckView, error)
	Update(ctx context.Context, id int64, in domain.DeckInput, images []string) error
}

type thumbnailer interface {
	Batch(sources []thumbnail.Source) ([]string, []thumbnail.Failure)
}

// ImageInput is one entry of a deck's new image list: either a thumbnail
// already stored on the deck or a fresh upload.
type ImageInput struct {
	Encoded string
	Upload  *thumbnail.Source
}

func EncodedImage(s string) ImageInput { return ImageInput{Encoded: s} }

func UploadedImage(src thumbnail.Source) ImageInput { return ImageInput{Upload: &src} }

type CatalogService struct {
	lookups  lookupRepository
	decks    deckRepository
	thumbs   thumbnailer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCatalogService(lookups lookupRepository, decks deckRepository, thumbs thumbnailer, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		lookups:  lookups,
		decks:    decks,
		thumbs:   thumbs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (s *CatalogService) AddLookup(ctx context.Context, table domain.Table, name string) (*domain.LookupRecord, error) {
	rec, err := s.lookups.Create(ctx, table, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("lookup added", "table", table.Name(), "id", rec.ID, "name", rec.Name)
	return rec, nil
}

func (s *CatalogService) ListLookups(ctx context.Context, table domain.Table) ([]*domain.LookupRecord, error) {
	return s.lookups.List(ctx, table)
}

// DeleteLookup removes a value even when decks still use it. Those decks
// drop out of listings until they are edited.
func (s *CatalogService) DeleteLookup(ctx context.Context, table domain.Table, id int64) error {
	if err := s.lookups.Delete(ctx, table, id); err != nil {
		return err
	}
	s.logger.Info("lookup deleted", "table", table.Name(), "id", id)
	return nil
}

// LookupOptions returns the values of every category, each sorted by name,
// for building deck forms and filters.
func (s *CatalogService) LookupOptions(ctx context.Context) (map[domain.Table][]*domain.LookupRecord, error) {
	options := make(map[domain.Table][]*domain.LookupRecord, len(domain.Tables))
	for _, table := range domain.Tables {
		records, err := s.lookups.List(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", table, err)
		}
		sort.SliceStable(records, func(i, j int) bool {
			return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
		})
		options[table] = records
	}
	return options, nil
}

// AddDeck thumbnails every upload and inserts the deck. If any image fails
// nothing is written.
func (s *CatalogService) AddDeck(ctx context.Context, in domain.DeckInput, uploads []thumbnail.Source) (*domain.DeckView, error) {
	if err := s.checkInput(ctx, in); err != nil {
		return nil, err
	}

	images, err := s.thumbnails(uploads)
	if err != nil {
		return nil, err
	}

	id, err := s.decks.Create(ctx, in, images)
	if err != nil {
		return nil, err
	}
	s.logger.Info("deck added", "deck_id", id, "images", len(images))

	return s.GetDeck(ctx, id)
}

func (s *CatalogService) GetDeck(ctx context.Context, id int64) (*domain.DeckView, error) {
	deck, err := s.decks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("%w: deck %d", domain.ErrNotFound, id)
	}
	return deck, nil
}

// DeckForEdit returns deck id even when some of its categories were deleted.
// Those categories have an empty name; EditDeck must be given new ids for
// them before the deck shows up in listings again.
func (s *CatalogService) DeckForEdit(ctx context.Context, id int64) (*domain.DeckView, error) {
	deck, err := s.decks.GetStored(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("%w: deck %d", domain.ErrNotFound, id)
	}
	return deck, nil
}

func (s *CatalogService) ListDecks(ctx context.Context) ([]*domain.DeckView, error) {
	return s.decks.List(ctx)
}

func (s *CatalogService) FilterDecks(ctx context.Context, filter domain.DeckFilter) ([]*domain.DeckView, error) {
	return s.decks.Filter(ctx, filter)
}

// FilterDecksByLabel resolves each non-empty label to its id and filters by
// those ids. A label that names no row fails with domain.ErrNotFound.
func (s *CatalogService) FilterDecksByLabel(ctx context.Context, labels domain.LabelFilter) ([]*domain.DeckView, error) {
	filter := domain.DeckFilter{}
	for _, table := range domain.Tables {
		label := labels[table]
		if label == "" {
			continue
		}
		id, err := s.lookups.IDByName(ctx, table, label)
		if err != nil {
			return nil, err
		}
		filter[table] = id
	}
	return s.decks.Filter(ctx, filter)
}

// EditDeck overwrites every attribute of deck id. When replaceImages is set
// the image list becomes images, with uploads thumbnailed as in AddDeck;
// otherwise the stored list is kept.
func (s *CatalogService) EditDeck(ctx context.Context, id int64, in domain.DeckInput, images []ImageInput, replaceImages bool) (*domain.DeckView, error) {
	if err := s.checkInput(ctx, in); err != nil {
		return nil, err
	}

	var stored []string
	if replaceImages {
		var err error
		if stored, err = s.resolveImages(images); err != nil {
			return nil, err
		}
	}

	if err := s.decks.Update(ctx, id, in, stored); err != nil {
		return nil, err
	}
	s.logger.Info("deck edited", "deck_id", id, "images_replaced", replaceImages, "images", len(stored))

	return s.GetDeck(ctx, id)
}

func (s *CatalogService) resolveImages(images []ImageInput) ([]string, error) {
	var uploads []thumbnail.Source
	for _, img := range images {
		if img.Upload != nil {
			uploads = append(uploads, *img.Upload)
		}
	}
	thumbs, err := s.thumbnails(uploads)
	if err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(images))
	next := 0
	for i, img := range images {
		if img.Upload != nil {
			stored = append(stored, thumbs[next])
			next++
			continue
		}
		if err := s.validate.Var(img.Encoded, "required,base64"); err != nil {
			return nil, fmt.Errorf("%w: image %d is not a base64 thumbnail", domain.ErrInvalidInput, i)
		}
		stored = append(stored, img.Encoded)
	}
	return stored, nil
}

// thumbnails runs the batch and fails on the first reported failure, so
// callers store either every image or none.
func (s *CatalogService) thumbnails(uploads []thumbnail.Source) ([]string, error) {
	thumbs, failures := s.thumbs.Batch(uploads)
	if len(failures) > 0 {
		for _, f := range failures {
			s.logger.Warn("image rejected", "index", f.Index, "name", f.Name, "error", f.Err)
		}
		return nil, fmt.Errorf("%w: %d of %d images could not be processed: %w",
			domain.ErrImageProcessing, len(failures), len(uploads), failures[0])
	}
	if thumbs == nil {
		thumbs = []string{}
	}
	return thumbs, nil
}

// checkInput validates field constraints and that every referenced category
// row exists.
func (s *CatalogService) checkInput(ctx context.Context, in domain.DeckInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: missing or invalid %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	refs := in.Refs()
	for _, table := range domain.Tables {
		ok, err := s.lookups.Exists(ctx, table, refs[table])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %d", domain.ErrNotFound, table.Param(), refs[table])
		}
	}
	return nil
}

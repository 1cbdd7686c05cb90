package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbcachim/baralhos/internal/domain"
	"github.com/pbcachim/baralhos/internal/thumbnail"
)

type DeckStore struct {
	db *sql.DB
}

func NewDeckStore(db *sql.DB) *DeckStore {
	return &DeckStore{db: db}
}

// Create inserts a deck and returns its id. References are not checked here;
// see service.CatalogService.
func (s *DeckStore) Create(ctx context.Context, in domain.DeckInput, images []string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO decks (type_id, number_id, theme_id, game_id, city_id, country_id,
			collection_id, manufacturer_id, description, images)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.TypeID, in.NumberID, in.ThemeID, in.GameID, in.CityID, in.CountryID,
		in.CollectionID, in.ManufacturerID, in.Description, thumbnail.Join(images))
	if err != nil {
		return 0, fmt.Errorf("failed to create deck: %w: %w", domain.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// GetByID returns nil, nil when the deck does not exist or references a
// category row that has since been deleted.
func (s *DeckStore) GetByID(ctx context.Context, id int64) (*domain.DeckView, error) {
	query, args, err := deckByIDQuery(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck query: %w", err)
	}

	deck, err := scanDeck(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w: %w", domain.ErrStorage, err)
	}
	return deck, nil
}

// GetStored returns deck id including references to deleted category rows,
// so such a deck can still be edited. It returns nil, nil when the deck does
// not exist.
func (s *DeckStore) GetStored(ctx context.Context, id int64) (*domain.DeckView, error) {
	query, args, err := storedDeckByIDQuery(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck query: %w", err)
	}

	deck, err := scanDeck(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w: %w", domain.ErrStorage, err)
	}
	return deck, nil
}

// List returns every deck ordered by id.
func (s *DeckStore) List(ctx context.Context) ([]*domain.DeckView, error) {
	return s.Filter(ctx, nil)
}

// Filter returns the decks matching every non-zero entry of filter, ordered
// by id.
func (s *DeckStore) Filter(ctx context.Context, filter domain.DeckFilter) ([]*domain.DeckView, error) {
	query, args, err := deckQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	decks := []*domain.DeckView{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w: %w", domain.ErrStorage, err)
		}
		decks = append(decks, deck)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w: %w", domain.ErrStorage, err)
	}

	return decks, nil
}

// Images returns the stored image list of a deck without joining its
// categories.
func (s *DeckStore) Images(ctx context.Context, id int64) ([]string, error) {
	var images sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT images FROM decks WHERE id = ?`, id).Scan(&images)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deck %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck images: %w: %w", domain.ErrStorage, err)
	}
	return thumbnail.Split(images.String), nil
}

// Update overwrites every category reference and the description of deck id.
// A nil images slice keeps the stored list; any other value replaces it.
func (s *DeckStore) Update(ctx context.Context, id int64, in domain.DeckInput, images []string) error {
	query := `
		UPDATE decks SET type_id = ?, number_id = ?, theme_id = ?, game_id = ?, city_id = ?,
			country_id = ?, collection_id = ?, manufacturer_id = ?, description = ?,
			updated_at = CURRENT_TIMESTAMP`
	args := []any{in.TypeID, in.NumberID, in.ThemeID, in.GameID, in.CityID,
		in.CountryID, in.CollectionID, in.ManufacturerID, in.Description}
	if images != nil {
		query += `, images = ?`
		args = append(args, thumbnail.Join(images))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w: %w", domain.ErrStorage, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: deck %d", domain.ErrNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeck(row rowScanner) (*domain.DeckView, error) {
	var (
		d                    domain.DeckView
		description, images  sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	err := row.Scan(
		&d.ID,
		&d.Type.ID, &d.Type.Name,
		&d.Number.ID, &d.Number.Name,
		&d.Theme.ID, &d.Theme.Name,
		&d.Game.ID, &d.Game.Name,
		&d.City.ID, &d.City.Name,
		&d.Country.ID, &d.Country.Name,
		&d.Collection.ID, &d.Collection.Name,
		&d.Manufacturer.ID, &d.Manufacturer.Name,
		&description, &images, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Description = description.String
	d.Images = thumbnail.Split(images.String)
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time
	return &d, nil
}

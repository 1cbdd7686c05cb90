package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pbcachim/baralhos/internal/domain"
)

// LookupStore reads and writes the eight category tables. Every method takes
// a domain.Table, so table names interpolated into SQL come from a closed set.
type LookupStore struct {
	db *sql.DB
}

func NewLookupStore(db *sql.DB) *LookupStore {
	return &LookupStore{db: db}
}

// Create normalizes name and inserts it into table. A name that matches an
// existing row case-insensitively is rejected with domain.ErrDuplicateRecord.
func (s *LookupStore) Create(ctx context.Context, table domain.Table, name string) (*domain.LookupRecord, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTable, table)
	}

	if !utf8.ValidString(name) {
		return nil, fmt.Errorf("%w: not valid UTF-8", domain.ErrInvalidName)
	}
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	var existing int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE LOWER(name) = LOWER(?) OR name = ? LIMIT 1`, table.Name()),
		name, name,
	).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrDuplicateRecord, name, table)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check %s for duplicates: %w: %w", table, domain.ErrStorage, err)
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, table.Name()), name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q in %s", domain.ErrDuplicateRecord, name, table)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w: %w", table, domain.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, table, id)
}

// GetByID returns nil, nil when no row has the given id.
func (s *LookupStore) GetByID(ctx context.Context, table domain.Table, id int64) (*domain.LookupRecord, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTable, table)
	}

	var (
		rec       domain.LookupRecord
		createdAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, name, created_at FROM %s WHERE id = ?`, table.Name()), id,
	).Scan(&rec.ID, &rec.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w: %w", table, domain.ErrStorage, err)
	}
	rec.CreatedAt = createdAt.Time

	return &rec, nil
}

// List returns every row of table in insertion order.
func (s *LookupStore) List(ctx context.Context, table domain.Table) ([]*domain.LookupRecord, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTable, table)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY id ASC`, table.Name()))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w: %w", table, domain.ErrStorage, err)
	}
	defer rows.Close()

	records := []*domain.LookupRecord{}
	for rows.Next() {
		var (
			rec       domain.LookupRecord
			createdAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w: %w", table, domain.ErrStorage, err)
		}
		rec.CreatedAt = createdAt.Time
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w: %w", table, domain.ErrStorage, err)
	}

	return records, nil
}

// IDByName resolves an exact stored name to its id.
func (s *LookupStore) IDByName(ctx context.Context, table domain.Table, name string) (int64, error) {
	if !table.Valid() {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidTable, table)
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE name = ? ORDER BY id LIMIT 1`, table.Name()), name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrNotFound, table.Param(), name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s by name: %w: %w", table, domain.ErrStorage, err)
	}
	return id, nil
}

func (s *LookupStore) Exists(ctx context.Context, table domain.Table, id int64) (bool, error) {
	rec, err := s.GetByID(ctx, table, id)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Delete removes the row with id. Missing rows and rows still referenced by
// decks are not errors.
func (s *LookupStore) Delete(ctx context.Context, table domain.Table, id int64) error {
	if !table.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidTable, table)
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table.Name()), id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w: %w", table, domain.ErrStorage, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcachim/baralhos/internal/domain"
)

// seedLookups creates one value per name in every category table and
// returns the ids keyed by table.
func seedLookups(t *testing.T, lookups *LookupStore, names ...string) map[domain.Table][]int64 {
	t.Helper()
	ids := make(map[domain.Table][]int64)
	for _, table := range domain.Tables {
		for _, name := range names {
			rec, err := lookups.Create(context.Background(), table, name)
			require.NoError(t, err)
			ids[table] = append(ids[table], rec.ID)
		}
	}
	return ids
}

func inputFor(ids map[domain.Table][]int64, i int, description string) domain.DeckInput {
	return domain.DeckInput{
		TypeID:         ids[domain.TableTypes][i],
		NumberID:       ids[domain.TableNumbers][i],
		ThemeID:        ids[domain.TableThemes][i],
		GameID:         ids[domain.TableGames][i],
		CityID:         ids[domain.TableCities][i],
		CountryID:      ids[domain.TableCountries][i],
		CollectionID:   ids[domain.TableCollections][i],
		ManufacturerID: ids[domain.TableManufacturers][i],
		Description:    description,
	}
}

func TestDeckStoreCreateAndGet(t *testing.T) {
	d := openTestDB(t)
	lookups := NewLookupStore(d)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, lookups, "Alpha")
	id, err := decks.Create(ctx, inputFor(ids, 0, "gold edges"), []string{"AAA=", "BBB="})
	require.NoError(t, err)
	assert.NotZero(t, id)

	deck, err := decks.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, deck)
	assert.Equal(t, id, deck.ID)
	assert.Equal(t, "Alpha", deck.City.Name)
	assert.Equal(t, ids[domain.TableCities][0], deck.City.ID)
	assert.Equal(t, "Alpha", deck.Manufacturer.Name)
	assert.Equal(t, "gold edges", deck.Description)
	assert.Equal(t, []string{"AAA=", "BBB="}, deck.Images)
	assert.Equal(t, inputFor(ids, 0, "gold edges"), deck.Input())
	assert.False(t, deck.CreatedAt.IsZero())
}

func TestDeckStoreCreateWithoutImages(t *testing.T) {
	d := openTestDB(t)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, NewLookupStore(d), "Alpha")
	id, err := decks.Create(ctx, inputFor(ids, 0, ""), nil)
	require.NoError(t, err)

	deck, err := decks.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, deck.Images)
	assert.Empty(t, deck.Description)
}

func TestDeckStoreGetByIDNotFound(t *testing.T) {
	decks := NewDeckStore(openTestDB(t))

	deck, err := decks.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, deck)
}

func TestDeckStoreOrphanedDeckIsHidden(t *testing.T) {
	d := openTestDB(t)
	lookups := NewLookupStore(d)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, lookups, "Alpha")
	id, err := decks.Create(ctx, inputFor(ids, 0, ""), nil)
	require.NoError(t, err)

	require.NoError(t, lookups.Delete(ctx, domain.TableThemes, ids[domain.TableThemes][0]))

	deck, err := decks.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, deck)

	all, err := decks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeckStoreGetStoredKeepsOrphanedReferences(t *testing.T) {
	d := openTestDB(t)
	lookups := NewLookupStore(d)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, lookups, "Alpha")
	in := inputFor(ids, 0, "worn box")
	id, err := decks.Create(ctx, in, []string{"aGVsbG8="})
	require.NoError(t, err)

	joined, err := decks.GetByID(ctx, id)
	require.NoError(t, err)
	stored, err := decks.GetStored(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, joined, stored)

	require.NoError(t, lookups.Delete(ctx, domain.TableThemes, ids[domain.TableThemes][0]))

	stored, err = decks.GetStored(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, in, stored.Input())
	assert.Empty(t, stored.Theme.Name)
	assert.Equal(t, "Alpha", stored.City.Name)
	assert.Equal(t, []string{"aGVsbG8="}, stored.Images)

	missing, err := decks.GetStored(ctx, id+1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeckStoreFilter(t *testing.T) {
	d := openTestDB(t)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, NewLookupStore(d), "Alpha", "Beta")

	first, err := decks.Create(ctx, inputFor(ids, 0, "first"), nil)
	require.NoError(t, err)

	mixed := inputFor(ids, 1, "second")
	mixed.CityID = ids[domain.TableCities][0]
	second, err := decks.Create(ctx, mixed, nil)
	require.NoError(t, err)

	third, err := decks.Create(ctx, inputFor(ids, 1, "third"), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.DeckFilter
		want   []int64
	}{
		{"nil filter lists all", nil, []int64{first, second, third}},
		{"zero ids are ignored", domain.DeckFilter{domain.TableCities: 0, domain.TableGames: 0}, []int64{first, second, third}},
		{"single predicate", domain.DeckFilter{domain.TableCities: ids[domain.TableCities][0]}, []int64{first, second}},
		{"predicates are ANDed", domain.DeckFilter{
			domain.TableCities: ids[domain.TableCities][0],
			domain.TableTypes:  ids[domain.TableTypes][1],
		}, []int64{second}},
		{"no match", domain.DeckFilter{domain.TableCities: ids[domain.TableCities][1], domain.TableTypes: ids[domain.TableTypes][0]}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decks.Filter(ctx, tt.filter)
			require.NoError(t, err)
			gotIDs := make([]int64, 0, len(got))
			for _, deck := range got {
				gotIDs = append(gotIDs, deck.ID)
			}
			assert.Equal(t, tt.want, gotIDs)
		})
	}

	all, err := decks.List(ctx)
	require.NoError(t, err)
	filtered, err := decks.Filter(ctx, domain.DeckFilter{})
	require.NoError(t, err)
	assert.Equal(t, all, filtered)
}

func TestDeckStoreUpdate(t *testing.T) {
	d := openTestDB(t)
	decks := NewDeckStore(d)
	ctx := context.Background()

	ids := seedLookups(t, NewLookupStore(d), "Alpha", "Beta")
	id, err := decks.Create(ctx, inputFor(ids, 0, "before"), []string{"AAA="})
	require.NoError(t, err)

	// nil keeps the stored images
	require.NoError(t, decks.Update(ctx, id, inputFor(ids, 1, "after"), nil))
	deck, err := decks.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, inputFor(ids, 1, "after"), deck.Input())
	assert.Equal(t, []string{"AAA="}, deck.Images)

	require.NoError(t, decks.Update(ctx, id, inputFor(ids, 1, "after"), []string{"BBB=", "CCC="}))
	deck, err = decks.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB=", "CCC="}, deck.Images)

	require.NoError(t, decks.Update(ctx, id, inputFor(ids, 1, "after"), []string{}))
	images, err := decks.Images(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestDeckStoreUpdateNotFound(t *testing.T) {
	d := openTestDB(t)
	decks := NewDeckStore(d)
	ids := seedLookups(t, NewLookupStore(d), "Alpha")

	err := decks.Update(context.Background(), 999, inputFor(ids, 0, ""), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = decks.Images(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeckQueryUsesPlaceholders(t *testing.T) {
	query, args, err := deckQuery(domain.DeckFilter{domain.TableCountries: 7})
	require.NoError(t, err)
	assert.Contains(t, query, "decks.country_id = ?")
	assert.Contains(t, query, "ORDER BY decks.id ASC")
	assert.Equal(t, []any{int64(7)}, args)
}

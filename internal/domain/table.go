package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Table identifies one of the eight category tables. Only values declared
// here can reach a SQL statement, so table and column names never come from
// user input.
type Table int

const (
	TableTypes Table = iota + 1
	TableNumbers
	TableThemes
	TableGames
	TableCities
	TableCountries
	TableCollections
	TableManufacturers
)

// Tables lists every category in the order decks display them.
var Tables = []Table{
	TableTypes,
	TableNumbers,
	TableThemes,
	TableGames,
	TableCities,
	TableCountries,
	TableCollections,
	TableManufacturers,
}

type tableInfo struct {
	name   string
	column string
	param  string
	label  string
}

var tableInfos = map[Table]tableInfo{
	TableTypes:         {"types", "type_id", "type", "Type"},
	TableNumbers:       {"numbers", "number_id", "number", "Number of Cards"},
	TableThemes:        {"themes", "theme_id", "theme", "Theme"},
	TableGames:         {"games", "game_id", "game", "Game"},
	TableCities:        {"cities", "city_id", "city", "City"},
	TableCountries:     {"countries", "country_id", "country", "Country"},
	TableCollections:   {"collections", "collection_id", "collection", "Collection"},
	TableManufacturers: {"manufacturers", "manufacturer_id", "manufacturer", "Manufacturer"},
}

// ParseTable resolves a SQL table name such as "cities".
func ParseTable(name string) (Table, error) {
	for t, info := range tableInfos {
		if info.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTable, name)
}

// Valid reports whether t is one of the declared tables.
func (t Table) Valid() bool {
	_, ok := tableInfos[t]
	return ok
}

// Name is the SQL table name.
func (t Table) Name() string { return tableInfos[t].name }

// Column is the foreign key column on decks.
func (t Table) Column() string { return tableInfos[t].column }

// Param is the form and query parameter naming this table.
func (t Table) Param() string { return tableInfos[t].param }

// Label is the human readable column heading.
func (t Table) Label() string { return tableInfos[t].label }

func (t Table) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Table(%d)", int(t))
	}
	return t.Name()
}

// NormalizeName trims s and capitalizes it: first letter upper case, the
// rest lower case.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

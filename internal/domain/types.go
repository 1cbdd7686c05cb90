package domain

import (
	"time"
)

// LookupRecord is a named row in one of the category tables.
type LookupRecord struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Category is a resolved deck attribute: the referenced id and its name.
type Category struct {
	ID   int64
	Name string
}

// DeckInput carries the attributes written on deck create and edit.
type DeckInput struct {
	TypeID         int64  `validate:"required,gt=0"`
	NumberID       int64  `validate:"required,gt=0"`
	ThemeID        int64  `validate:"required,gt=0"`
	GameID         int64  `validate:"required,gt=0"`
	CityID         int64  `validate:"required,gt=0"`
	CountryID      int64  `validate:"required,gt=0"`
	CollectionID   int64  `validate:"required,gt=0"`
	ManufacturerID int64  `validate:"required,gt=0"`
	Description    string `validate:"max=4000"`
}

// Refs returns the referenced lookup id for every table.
func (in DeckInput) Refs() map[Table]int64 {
	return map[Table]int64{
		TableTypes:         in.TypeID,
		TableNumbers:       in.NumberID,
		TableThemes:        in.ThemeID,
		TableGames:         in.GameID,
		TableCities:        in.CityID,
		TableCountries:     in.CountryID,
		TableCollections:   in.CollectionID,
		TableManufacturers: in.ManufacturerID,
	}
}

// Set stores id as the reference for table t. Unknown tables are ignored.
func (in *DeckInput) Set(t Table, id int64) {
	switch t {
	case TableTypes:
		in.TypeID = id
	case TableNumbers:
		in.NumberID = id
	case TableThemes:
		in.ThemeID = id
	case TableGames:
		in.GameID = id
	case TableCities:
		in.CityID = id
	case TableCountries:
		in.CountryID = id
	case TableCollections:
		in.CollectionID = id
	case TableManufacturers:
		in.ManufacturerID = id
	}
}

// DeckView is a deck joined with the names of all its categories.
type DeckView struct {
	ID           int64
	Type         Category
	Number       Category
	Theme        Category
	Game         Category
	City         Category
	Country      Category
	Collection   Category
	Manufacturer Category
	Description  string
	Images       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Input converts the view back into the attributes it was written with.
func (d *DeckView) Input() DeckInput {
	return DeckInput{
		TypeID:         d.Type.ID,
		NumberID:       d.Number.ID,
		ThemeID:        d.Theme.ID,
		GameID:         d.Game.ID,
		CityID:         d.City.ID,
		CountryID:      d.Country.ID,
		CollectionID:   d.Collection.ID,
		ManufacturerID: d.Manufacturer.ID,
		Description:    d.Description,
	}
}

// Category returns the deck attribute stored for table t.
func (d *DeckView) Category(t Table) Category {
	switch t {
	case TableTypes:
		return d.Type
	case TableNumbers:
		return d.Number
	case TableThemes:
		return d.Theme
	case TableGames:
		return d.Game
	case TableCities:
		return d.City
	case TableCountries:
		return d.Country
	case TableCollections:
		return d.Collection
	case TableManufacturers:
		return d.Manufacturer
	}
	return Category{}
}

// DeckFilter narrows a deck listing by category id. Tables that are absent
// or mapped to zero impose no constraint.
type DeckFilter map[Table]int64

// LabelFilter narrows a deck listing by category name. Empty names impose no
// constraint.
type LabelFilter map[Table]string

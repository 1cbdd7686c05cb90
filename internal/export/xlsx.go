// Package export writes deck listings as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/pbcachim/baralhos/internal/domain"
)

const (
	Filename    = "filtered_decks.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheet = "Sheet1"
)

// Header is the first row of every export. Images are not exported.
func Header() []any {
	row := []any{"ID"}
	for _, t := range domain.Tables {
		row = append(row, t.Label())
	}
	return append(row, "Description")
}

func deckRow(d *domain.DeckView) []any {
	row := []any{d.ID}
	for _, t := range domain.Tables {
		row = append(row, d.Category(t).Name)
	}
	return append(row, d.Description)
}

// WriteXLSX writes decks, one per row under a bold header, to w.
func WriteXLSX(w io.Writer, decks []*domain.DeckView) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := Header()
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, d := range decks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		row := deckRow(d)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write deck %d: %w", d.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

type spreadsheetParser struct{}

// parse reads the first worksheet; each non-blank row becomes one unit of text.
func (spreadsheetParser) parse(ctx context.Context, data []byte) (domain.ParsedDocument, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.ParsedDocument{}, errors.New("workbook has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	rows := make([]string, 0, len(raw))
	for _, cells := range raw {
		if err := ctx.Err(); err != nil {
			return domain.ParsedDocument{}, err
		}
		rows = appendRow(rows, cells)
	}
	return domain.RowDocument(rows), nil
}

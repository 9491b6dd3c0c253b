package parser

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

// maxImages bounds how many embedded images are lifted out of a single document.
const maxImages = 20

type formatParser interface {
	parse(ctx context.Context, data []byte) (domain.ParsedDocument, error)
}

// Parser dispatches raw file bytes to the format-specific parser for a file type.
type Parser struct {
	log     *logger.Logger
	formats map[domain.FileType]formatParser
}

func New(log *logger.Logger) *Parser {
	log = log.With("component", "DocumentParser")
	return &Parser{
		log: log,
		formats: map[domain.FileType]formatParser{
			domain.FileTypeSpreadsheet: spreadsheetParser{},
			domain.FileTypeDelimited:   delimitedParser{},
			domain.FileTypeWord:        wordParser{log: log},
			domain.FileTypePDF:         pdfParser{log: log},
		},
	}
}

func (p *Parser) Parse(ctx context.Context, data []byte, fileType domain.FileType) (domain.ParsedDocument, error) {
	format, ok := p.formats[fileType]
	if !ok {
		return domain.ParsedDocument{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, fileType)
	}
	doc, err := format.parse(ctx, data)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("parse %s: %w", fileType, err)
	}
	return doc, nil
}

// joinCells concatenates the non-empty cells of a row with single spaces.
func joinCells(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " ")
}

func appendRow(rows []string, cells []string) []string {
	if row := joinCells(cells); row != "" {
		return append(rows, row)
	}
	return rows
}

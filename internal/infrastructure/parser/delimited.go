package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type delimitedParser struct{}

func (delimitedParser) parse(ctx context.Context, data []byte) (domain.ParsedDocument, error) {
	text, err := decodeText(data)
	if err != nil {
		return domain.ParsedDocument{}, err
	}

	delim := sniffDelimiter(text)
	rows, err := readCSV(ctx, text, delim)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.ParsedDocument{}, err
		}
		rows = readLines(text, delim)
	}
	return domain.RowDocument(rows), nil
}

// decodeText strips a UTF-8 BOM and falls back to GB18030 for legacy-encoded exports.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func sniffDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	best, bestCount := ',', strings.Count(firstLine, ",")
	for _, candidate := range []rune{'\t', ';', '|'} {
		if n := strings.Count(firstLine, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func readCSV(ctx context.Context, text string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = appendRow(rows, record)
	}
}

// readLines is the lenient path for text that is not well-formed CSV.
func readLines(text string, delim rune) []string {
	var rows []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		rows = appendRow(rows, strings.Split(scanner.Text(), string(delim)))
	}
	return rows
}

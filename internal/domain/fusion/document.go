package fusion

import "strings"

type DocumentKind int

const (
	DocumentKindFullText DocumentKind = iota
	DocumentKindRows
)

type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ParsedDocument is either a full-text document with optional images or an ordered
// sequence of row texts whose first entry is the header.
type ParsedDocument struct {
	Kind     DocumentKind
	FullText string
	Images   []Image
	Rows     []string
}

func FullTextDocument(text string, images []Image) ParsedDocument {
	return ParsedDocument{Kind: DocumentKindFullText, FullText: text, Images: images}
}

func RowDocument(rows []string) ParsedDocument {
	return ParsedDocument{Kind: DocumentKindRows, Rows: rows}
}

// IsEmpty reports whether parsing produced no usable text at all.
func (d ParsedDocument) IsEmpty() bool {
	if d.Kind == DocumentKindRows {
		return len(d.Rows) == 0
	}
	return strings.TrimSpace(d.FullText) == ""
}

// Units returns the texts submitted to the extractor. Row 0 is the header and is skipped.
func (d ParsedDocument) Units() []string {
	if d.Kind == DocumentKindRows {
		if len(d.Rows) <= 1 {
			return nil
		}
		return d.Rows[1:]
	}
	if strings.TrimSpace(d.FullText) == "" {
		return nil
	}
	return []string{d.FullText}
}

// OriginalText is the audit copy persisted on the task, header row included.
func (d ParsedDocument) OriginalText() string {
	if d.Kind == DocumentKindRows {
		return strings.Join(d.Rows, "\n")
	}
	return d.FullText
}

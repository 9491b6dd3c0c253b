package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

const (
	wordDocumentPart = "word/document.xml"
	wordMediaPrefix  = "word/media/"
)

type wordParser struct {
	log *logger.Logger
}

// parse reads paragraph text from word/document.xml; paragraphs are joined with newlines.
func (p wordParser) parse(ctx context.Context, data []byte) (domain.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("open docx container: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == wordDocumentPart {
			body = f
			break
		}
	}
	if body == nil {
		return domain.ParsedDocument{}, errors.New("docx has no word/document.xml")
	}

	rc, err := body.Open()
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("open %s: %w", wordDocumentPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, rc)
	if err != nil {
		return domain.ParsedDocument{}, err
	}

	return domain.FullTextDocument(strings.Join(paragraphs, "\n"), p.images(zr)), nil
}

func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
		current.Reset()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", wordDocumentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte(' ')
			case "br", "cr":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	flush()
	return paragraphs, nil
}

// images lifts embedded media out of the container. Failures are logged and skipped.
func (p wordParser) images(zr *zip.Reader) []domain.Image {
	var media []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, wordMediaPrefix) && !f.FileInfo().IsDir() {
			media = append(media, f)
		}
	}
	sort.Slice(media, func(i, j int) bool { return media[i].Name < media[j].Name })

	images := make([]domain.Image, 0, len(media))
	for _, f := range media {
		if len(images) >= maxImages {
			break
		}
		data, err := readZipEntry(f)
		if err != nil {
			p.log.Warn("docx image extraction failed", "entry", f.Name, "error", err)
			continue
		}
		images = append(images, domain.Image{
			Name:        path.Base(f.Name),
			ContentType: contentTypeFor(f.Name),
			Data:        data,
		})
	}
	return images
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

type pdfParser struct {
	log *logger.Logger
}

func (p pdfParser) parse(ctx context.Context, data []byte) (doc domain.ParsedDocument, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("pdf reader: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return domain.ParsedDocument{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			p.log.Warn("pdf page text extraction failed", "page", i, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return domain.FullTextDocument(strings.Join(pages, "\n"), scanJPEGStreams(data)), nil
}

var (
	streamKeyword    = []byte("stream")
	endstreamKeyword = []byte("endstream")
	jpegSOI          = []byte{0xFF, 0xD8, 0xFF}
)

// scanJPEGStreams finds DCT-encoded image streams, which hold plain JPEG bytes, directly in
// the file body. Other image encodings are not recovered.
func scanJPEGStreams(data []byte) []domain.Image {
	var images []domain.Image
	offset := 0
	for len(images) < maxImages {
		i := bytes.Index(data[offset:], streamKeyword)
		if i < 0 {
			break
		}
		start := offset + i + len(streamKeyword)
		if start < len(data) && data[start] == '\r' {
			start++
		}
		if start < len(data) && data[start] == '\n' {
			start++
		}
		end := bytes.Index(data[start:], endstreamKeyword)
		if end < 0 {
			break
		}
		body := bytes.TrimRight(data[start:start+end], "\r\n")
		if bytes.HasPrefix(body, jpegSOI) {
			images = append(images, domain.Image{
				Name:        fmt.Sprintf("image-%d.jpg", len(images)+1),
				ContentType: "image/jpeg",
				Data:        append([]byte(nil), body...),
			})
		}
		offset = start + end + len(endstreamKeyword)
	}
	return images
}

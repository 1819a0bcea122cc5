// Package pdftext reads the embedded text layer of digital PDFs. Scanned PDFs
// without a text layer yield no text; OCR is out of scope.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

const maxPDFBytes = 32 << 20

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, sub *domain.Submission) (string, error) {
	reader, err := e.storage.Open(ctx, sub.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > maxPDFBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "read pdf", fmt.Errorf("%s exceeds %d bytes", sub.Filename, maxPDFBytes))
	}
	return Decode(raw)
}

// Decode extracts the text of every page in page order.
func Decode(raw []byte) (text string, err error) {
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", fmt.Errorf("missing %%PDF header"))
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", err)
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", fmt.Errorf("page %d: %w", i, err))
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

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

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	return Decode(raw, sub.Filename)
}

// Decode returns the UTF-8 text of raw with a leading BOM and CRLF line
// endings normalized. Binary content is rejected.
func Decode(raw []byte, filename string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode plain text", fmt.Errorf("not a text file: %s", filename))
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

// Package extractor picks a text extractor for a stored submission.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
}

func NewDispatcher(plain, pdf ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plain: plain, pdf: pdf}
}

func (d *Dispatcher) Extract(ctx context.Context, sub *domain.Submission) (string, error) {
	if isPDF(sub) {
		return d.pdf.Extract(ctx, sub)
	}
	return d.plain.Extract(ctx, sub)
}

func isPDF(sub *domain.Submission) bool {
	mime := strings.ToLower(strings.TrimSpace(sub.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(sub.Filename), ".pdf")
}

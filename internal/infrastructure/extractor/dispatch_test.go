package extractor

import (
	"context"
	"testing"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

type namedExtractor string

func (n namedExtractor) Extract(context.Context, *domain.Submission) (string, error) {
	return string(n), nil
}

func TestDispatcherRoutesByMimeTypeAndExtension(t *testing.T) {
	d := NewDispatcher(namedExtractor("plain"), namedExtractor("pdf"))
	cases := []struct {
		sub  domain.Submission
		want string
	}{
		{domain.Submission{Filename: "bl.pdf", MimeType: "application/octet-stream"}, "pdf"},
		{domain.Submission{Filename: "upload", MimeType: "application/pdf; charset=binary"}, "pdf"},
		{domain.Submission{Filename: "INVOICE.PDF"}, "pdf"},
		{domain.Submission{Filename: "invoice.txt", MimeType: "text/plain"}, "plain"},
	}
	for _, tc := range cases {
		sub := tc.sub
		got, err := d.Extract(context.Background(), &sub)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if got != tc.want {
			t.Fatalf("Extract(%+v) routed to %s, want %s", tc.sub, got, tc.want)
		}
	}
}

package xlsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const sheetName = "Case Files"

var headers = []string{
	"Reference",
	"Importer",
	"Exporter",
	"Tariff Code",
	"State",
	"Ready For Validation",
	"Missing Documents",
	"Missing Permits",
	"Members",
	"Last Verdict",
	"Last Score",
	"Created At",
}

// Exporter renders the case-file register as an XLSX workbook.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) ExportCases(ctx context.Context, cases []domain.CaseFile, w io.Writer) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, style)
	}

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", i+2), rowFor(c)); err != nil {
			return fmt.Errorf("write case %s: %w", c.Reference, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "C", 32)
	_ = f.SetColWidth(sheetName, "D", "F", 16)
	_ = f.SetColWidth(sheetName, "G", "H", 40)
	_ = f.SetColWidth(sheetName, "I", "L", 14)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("cases_exported",
		"rows", len(cases),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func rowFor(c domain.CaseFile) *[]interface{} {
	verdict, score := "", ""
	if c.LastValidation != nil {
		verdict = string(c.LastValidation.Verdict)
		score = fmt.Sprintf("%d", c.LastValidation.Score)
	}
	row := []interface{}{
		c.Reference,
		c.Importer,
		c.Exporter,
		c.TariffCode,
		string(c.State),
		c.ReadyForValidation,
		joinKinds(c.MissingDocuments),
		joinKinds(c.MissingPermits),
		len(c.Members),
		verdict,
		score,
		c.CreatedAt.UTC().Format(time.RFC3339),
	}
	return &row
}

func joinKinds(kinds []domain.DocumentKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
)

func TestDefaultRulesCompile(t *testing.T) {
	rs, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if len(rs.Kinds) != len(domain.KnownKinds()) {
		t.Fatalf("expected a dictionary per known kind, got %d", len(rs.Kinds))
	}
	if _, err := engine.Compile(rs); err != nil {
		t.Fatalf("Compile(default) error = %v", err)
	}
}

func TestDefaultRulesClassifySpanishDocuments(t *testing.T) {
	rs, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	e, err := engine.New(rs)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	cases := []struct {
		filename string
		text     string
		want     domain.DocumentKind
	}{
		{
			filename: "factura_001.pdf",
			text:     "FACTURA COMERCIAL\nFactura N° F001-4582\nImportador: Distribuidora Andina SAC\nPrecio unitario 12.50\nValor total: USD 18,750.00",
			want:     domain.KindCommercialInvoice,
		},
		{
			filename: "scan.pdf",
			text:     "CONOCIMIENTO DE EMBARQUE\nPuerto de embarque: Valparaíso\nConsignatario: Distribuidora Andina SAC\nPeso bruto: 2,400 kg",
			want:     domain.KindBillOfLading,
		},
		{
			filename: "doc.pdf",
			text:     "CERTIFICADO FITOSANITARIO\nOrganización Nacional de Protección Vegetal\nlibre de plagas",
			want:     domain.KindPhytosanitaryCertificate,
		},
		{
			filename: "scan_0001.pdf",
			text:     "COMMERCIAL INVOICES\nUnit prices\nTotal amounts",
			want:     domain.KindCommercialInvoice,
		},
		{
			filename: "scan_0002.pdf",
			text:     "FACTURAS COMERCIALES\nPrecios unitarios\nCondiciones de pago",
			want:     domain.KindCommercialInvoice,
		},
		{
			filename: "notes.txt",
			text:     "flete",
			want:     domain.KindUnknown,
		},
	}
	for _, tc := range cases {
		rec := e.Analyze(tc.filename, tc.text, nil)
		if rec.Kind != tc.want {
			t.Fatalf("Analyze(%s) kind = %s, want %s (keywords %v)", tc.filename, rec.Kind, tc.want, rec.MatchedKeywords)
		}
	}
}

func TestDefaultRulesExtractFields(t *testing.T) {
	rs, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	e, err := engine.New(rs)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	fields := e.Extractor.Extract(strings.Join([]string{
		"FACTURA COMERCIAL",
		"Factura N° F001-4582",
		"Fecha: 14/03/2026",
		"Exportador: Frutos del Sur SpA",
		"Importador: Distribuidora Andina SAC",
		"Partida arancelaria: 0806.10.00",
		"Valor total: USD 18,750.00",
		"Peso bruto: 2,400 kg",
		"País de origen: Chile",
	}, "\n"))

	if fields.DocumentNumber != "F001-4582" {
		t.Fatalf("document number = %q", fields.DocumentNumber)
	}
	if fields.Date != "14/03/2026" {
		t.Fatalf("date = %q", fields.Date)
	}
	if fields.Importer != "Distribuidora Andina SAC" || fields.Exporter != "Frutos del Sur SpA" {
		t.Fatalf("parties = %q / %q", fields.Importer, fields.Exporter)
	}
	if fields.TariffCode != "08061000" {
		t.Fatalf("tariff code = %q", fields.TariffCode)
	}
	if fields.DeclaredValue == nil || *fields.DeclaredValue != 18750 {
		t.Fatalf("declared value = %v", fields.DeclaredValue)
	}
	if fields.DeclaredWeightKg == nil || *fields.DeclaredWeightKg != 2400 {
		t.Fatalf("declared weight = %v", fields.DeclaredWeightKg)
	}
	if fields.OriginCountry != "Chile" {
		t.Fatalf("origin = %q", fields.OriginCountry)
	}
}

func TestLoadFromFileOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `version: "custom-1"
kinds:
  - kind: commercial_invoice
    keywords:
      - { term: "invoice", weight: 30 }
patterns: []
chapters:
  - label: coffee
    from: 9
    to: 9
    requires: [phytosanitary_certificate]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rs.Version != "custom-1" || len(rs.Chapters) != 1 {
		t.Fatalf("unexpected rule set: %+v", rs)
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	rs, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if rs.InternalMarker == "" {
		t.Fatalf("expected built-in internal marker")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"unknown field": "version: x\nkinds: []\npatterns: []\nchapters: []\nextra: 1\n",
		"no kinds":      "version: x\nkinds: []\npatterns: []\nchapters: []\n",
		"unknown kind":  "version: x\nkinds:\n  - kind: customs_form\n    keywords: [{term: a, weight: 1}]\npatterns: []\nchapters: []\n",
		"bad chapter":   "version: x\nkinds:\n  - kind: packing_list\n    keywords: [{term: a, weight: 1}]\npatterns: []\nchapters:\n  - {label: x, from: 0, to: 120, requires: [sanitary_permit]}\n",
		"zero weight":   "version: x\nkinds:\n  - kind: packing_list\n    keywords: [{term: a, weight: 0}]\npatterns: []\nchapters: []\n",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input kind, got %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

package pdf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"farmdeck/internal/core"
)

func testStatement(t ExportType, month string) Statement {
	project := core.Project{
		ID:            "p1",
		Title:         "Maize 2024",
		StartDate:     core.NewDate(2024, 1, 1),
		CustomColumns: []string{"Plot"},
	}
	records := []core.Record{
		{
			ID: "r1", ProjectID: "p1", Date: core.NewDate(2024, 1, 10),
			Produce: decimal.NewFromInt(12), Revenue: core.Money{Cents: 4000},
			InputCost: core.Money{Cents: 1500}, CustomValues: map[string]string{"Plot": "North"},
		},
		{
			ID: "r2", ProjectID: "p1", Date: core.NewDate(2024, 2, 3),
			Produce: decimal.NewFromInt(7), Revenue: core.Money{Cents: 2500},
			InputCost: core.Money{Cents: 900},
		},
	}
	return Statement{
		Project:   project,
		Records:   records,
		Summaries: core.Summarize(records),
		Type:      t,
		Month:     month,
	}
}

func TestGenerateFull(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(testStatement(ExportFull, ""), &buf); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("output is not a PDF (starts with %q)", buf.Bytes()[:4])
	}
}

func TestGenerateMonthly(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(testStatement(ExportMonthly, "2024-01"), &buf); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty PDF")
	}
}

func TestGenerateMonthlyRequiresMonth(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(testStatement(ExportMonthly, ""), &buf)
	if !errors.Is(err, ErrMissingMonth) {
		t.Fatalf("expected ErrMissingMonth, got %v", err)
	}
}

func TestGenerateUnknownType(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(testStatement("csv", ""), &buf)
	if !errors.Is(err, ErrUnknownExportType) {
		t.Fatalf("expected ErrUnknownExportType, got %v", err)
	}
}

func TestScopeMonthlyFilters(t *testing.T) {
	st := testStatement(ExportMonthly, "2024-02")
	records, summaries, err := st.scope()
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r2" {
		t.Fatalf("expected only February records, got %+v", records)
	}
	if len(summaries) != 1 || summaries[0].Month != "2024-02" {
		t.Fatalf("expected single February summary, got %+v", summaries)
	}
}

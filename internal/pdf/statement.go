// Package pdf generates downloadable project statements.
package pdf

import (
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"farmdeck/internal/core"
)

// ExportType selects how much of the project a statement covers.
type ExportType string

const (
	// ExportFull renders every record and every monthly summary.
	ExportFull ExportType = "full"
	// ExportMonthly renders a single month's records and its summary line.
	ExportMonthly ExportType = "monthly"
)

var (
	ErrUnknownExportType = errors.New("unknown export type")
	ErrMissingMonth      = errors.New("monthly export requires a month")
)

// Statement is everything a rendered statement needs. Summaries are the
// precomputed monthly aggregations for the project's records.
type Statement struct {
	Project   core.Project
	Records   []core.Record
	Summaries []core.MonthlySummary
	Type      ExportType
	Month     string // YYYY-MM, required for ExportMonthly
}

// Generate renders the statement as a PDF to w.
func Generate(st Statement, w io.Writer) error {
	records, summaries, err := st.scope()
	if err != nil {
		return err
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(st.Project.Title, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, st.Project.Title)
	doc.Ln(8)

	doc.SetFont("Helvetica", "", 10)
	doc.Cell(0, 6, fmt.Sprintf("Season start: %s", st.Project.StartDate))
	doc.Ln(5)
	switch st.Type {
	case ExportMonthly:
		doc.Cell(0, 6, fmt.Sprintf("Statement for %s", st.Month))
	default:
		doc.Cell(0, 6, "Full statement")
	}
	doc.Ln(10)

	writeSummaryTable(doc, summaries)
	doc.Ln(6)
	writeRecordTable(doc, st.Project, records)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf statement: %w", err)
	}
	return nil
}

// scope narrows records and summaries to what the export type covers.
func (st Statement) scope() ([]core.Record, []core.MonthlySummary, error) {
	switch st.Type {
	case ExportFull:
		return st.Records, st.Summaries, nil
	case ExportMonthly:
		if st.Month == "" {
			return nil, nil, ErrMissingMonth
		}
		var records []core.Record
		for _, r := range st.Records {
			if r.Date.MonthKey() == st.Month {
				records = append(records, r)
			}
		}
		summary := core.SummaryForMonth(st.Records, st.Month)
		return records, []core.MonthlySummary{summary}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownExportType, st.Type)
	}
}

func writeSummaryTable(doc *gofpdf.Fpdf, summaries []core.MonthlySummary) {
	doc.SetFont("Helvetica", "B", 11)
	doc.Cell(0, 8, "Monthly summary")
	doc.Ln(8)

	headers := []string{"Month", "Produce", "Revenue", "Input cost", "Net profit", "Records"}
	widths := []float64{28, 30, 32, 32, 32, 22}

	doc.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, s := range summaries {
		doc.CellFormat(widths[0], 6, s.Month, "1", 0, "L", false, 0, "")
		doc.CellFormat(widths[1], 6, s.TotalProduce.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[2], 6, s.TotalRevenue.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[3], 6, s.TotalInputCost.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[4], 6, s.NetProfit.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[5], 6, fmt.Sprintf("%d", s.RecordCount), "1", 0, "R", false, 0, "")
		doc.Ln(-1)
	}
	if len(summaries) == 0 {
		doc.CellFormat(176, 6, "No records", "1", 0, "C", false, 0, "")
		doc.Ln(-1)
	}
}

func writeRecordTable(doc *gofpdf.Fpdf, project core.Project, records []core.Record) {
	doc.SetFont("Helvetica", "B", 11)
	doc.Cell(0, 8, "Records")
	doc.Ln(8)

	headers := []string{"Date", "Produce", "Revenue", "Input cost", "Notes"}
	widths := []float64{24, 24, 28, 28, 72}
	// Custom columns squeeze the notes column.
	custom := project.CustomColumns
	if n := len(custom); n > 0 {
		per := widths[4] / float64(n+1)
		widths[4] = per
		for range custom {
			widths = append(widths, per)
		}
		headers = append(headers, custom...)
	}

	doc.SetFont("Helvetica", "B", 8)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 8)
	for _, r := range records {
		doc.CellFormat(widths[0], 6, r.Date.String(), "1", 0, "L", false, 0, "")
		doc.CellFormat(widths[1], 6, r.Produce.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[2], 6, r.Revenue.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[3], 6, r.InputCost.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[4], 6, r.Notes, "1", 0, "L", false, 0, "")
		for i, col := range custom {
			doc.CellFormat(widths[5+i], 6, r.CustomValues[col], "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}
	if len(records) == 0 {
		doc.CellFormat(176, 6, "No records in range", "1", 0, "C", false, 0, "")
		doc.Ln(-1)
	}
}

package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
)

var amountPrinter = message.NewPrinter(language.English)

// buildStatementPDF renders the statement as a landscape table. Only level 1
// and 2 rows are printed; leaves stay in the CSV export.
func buildStatementPDF(stmt reports.Statement, reportID string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s statement", stmt.Type), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("%s statement", stmt.Type))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Period A: %s    Period B: %s", periodLabel(stmt.PeriodA), periodLabel(stmt.PeriodB)))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Generated: %s    Report ID: %s", generatedAt.UTC().Format(time.RFC3339), reportID))
	pdf.Ln(8)

	widths := []float64{90, 30, 30, 30, 30, 30, 25}
	headers := []string{"Account", "Amount A", "WN A", "Amount B", "WN B", "Diff", "Diff %"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 6, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	var walk func(nodes []*reports.Node)
	walk = func(nodes []*reports.Node) {
		for _, n := range nodes {
			if n.Level > 2 {
				continue
			}
			style := ""
			if n.Bold || n.Level == 1 {
				style = "B"
			}
			pdf.SetFont("Arial", style, 9)
			switch n.Kind {
			case reports.NodeSpacer:
				pdf.Ln(4)
				continue
			case reports.NodeHeader:
				pdf.CellFormat(widths[0], 6, n.Name, "", 1, "L", false, 0, "")
				continue
			}
			pdf.CellFormat(widths[0], 6, indent(n.Level)+n.Name, "", 0, "L", false, 0, "")
			for i, v := range []float64{n.AmountA, n.WnA, n.AmountB, n.WnB, n.DiffAbs} {
				pdf.CellFormat(widths[i+1], 6, formatAmount(v), "", 0, "R", false, 0, "")
			}
			pdf.CellFormat(widths[6], 6, amountPrinter.Sprintf("%.2f%%", n.DiffPct), "", 1, "R", false, 0, "")
			walk(n.Children)
		}
	}
	walk(stmt.Nodes)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// formatAmount renders v with thousands separators, e.g. 1,234.50.
func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

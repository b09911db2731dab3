package http

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// buildPivotXLSX renders the pivot as one sheet: account columns followed by
// one column per period key. Names are indented by tree level.
func buildPivotXLSX(pivot reports.Pivot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "pivot"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	header := append([]any{"Key", "Name"}, stringsToAny(pivot.Columns)...)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := styleRow(f, sheet, 1, len(header), bold); err != nil {
		return nil, err
	}

	row := 2
	var walk func(nodes []*reports.PivotNode) error
	walk = func(nodes []*reports.PivotNode) error {
		for _, n := range nodes {
			values := []any{n.Key, indent(n.Level) + n.Name}
			for _, col := range pivot.Columns {
				values = append(values, n.Values[col])
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
			if n.Bold || n.Level == 1 {
				if err := styleRow(f, sheet, row, len(values), bold); err != nil {
					return err
				}
			}
			row++
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(pivot.Nodes); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return nil, err
	}
	return writeWorkbook(f)
}

// buildRevenueXLSX renders the revenue table with month labels as headers.
func buildRevenueXLSX(table reports.RevenueTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "revenue"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	header := []any{"Revenue Type", "Cost Center Group"}
	for _, col := range table.Columns {
		header = append(header, col.Label)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := styleRow(f, sheet, 1, len(header), bold); err != nil {
		return nil, err
	}

	for i, r := range table.Rows {
		rowNum := i + 2
		if r.Kind == reports.RevenueRowSpacer {
			continue
		}
		values := []any{r.RevenueType, r.CostCenterGroup}
		if r.Kind == reports.RevenueRowSubtotal {
			values[1] = reports.LabelSubtotal
		}
		for _, col := range table.Columns {
			values = append(values, r.Amounts[col.Key])
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		if r.Kind != reports.RevenueRowMember {
			if err := styleRow(f, sheet, rowNum, len(values), bold); err != nil {
				return nil, err
			}
		}
	}
	return writeWorkbook(f)
}

func styleRow(f *excelize.File, sheet string, row, width, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func indent(level int) string {
	if level <= 1 {
		return ""
	}
	return strings.Repeat("  ", level-1)
}

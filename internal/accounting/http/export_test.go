package http

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
)

func TestCSVStreamerFlushInterval(t *testing.T) {
	var buf bytes.Buffer
	streamer := newCSVStreamer(&buf)
	for i := 0; i < csvFlushEvery; i++ {
		require.NoError(t, streamer.writeRow([]string{"row"}))
	}
	require.Zero(t, streamer.pendingLines)
	require.NoError(t, streamer.writeRow([]string{"next"}))
	require.Equal(t, 1, streamer.pendingLines)
	require.NoError(t, streamer.Close())
}

func buildSampleStatement(t *testing.T) reports.Statement {
	t.Helper()
	rows := []reports.LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1, CostCenter: "WAT"},
		{Code: "8000", Name: "Subscriptions", Amount: 500, Year: 2023, Month: 1},
		{Code: "4000", Name: "Salaries, staff", Amount: -1234.5, Year: 2024, Month: 1},
	}
	stmt, err := reports.NewBuilder(reports.DefaultLayout()).BuildStatement(rows, reports.StatementPNL,
		&reports.Period{Year: 2024, MonthFrom: 1, MonthTo: 12},
		&reports.Period{Year: 2023, MonthFrom: 1, MonthTo: 12}, nil)
	require.NoError(t, err)
	return stmt
}

func TestWriteStatementCSV(t *testing.T) {
	stmt := buildSampleStatement(t)
	var buf bytes.Buffer
	require.NoError(t, writeStatementCSV(&buf, stmt, "abc"))

	content := buf.String()
	require.Contains(t, content, "\r\n")
	lines := strings.Split(strings.TrimSuffix(content, "\r\n"), "\r\n")
	require.Equal(t, "# Report: PNL statement", lines[0])
	require.Equal(t, "# Period A: 2024-01..12 | Period B: 2023-01..12 | ID: abc", lines[1])
	require.Equal(t, strings.Join(statementCSVHeader, ","), lines[2])
	require.Equal(t, "8-Recurring,Recurring Revenue,1,1000.00,1000.00,0.00,500.00,0.00,0.00,-500.00,-50.00", lines[3])
	// Names with commas are quoted.
	require.Contains(t, content, `"4000 - Salaries, staff"`)
	// Spacer rows are blank.
	require.Contains(t, lines, ",,,,,,,,,,")
	require.Contains(t, content, "grand_total,Net Income,1,")
}

func TestBuildStatementPDF(t *testing.T) {
	data, err := buildStatementPDF(buildSampleStatement(t), "abc", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestFormatAmountGroupsThousands(t *testing.T) {
	require.Equal(t, "1,234.50", formatAmount(1234.5))
	require.Equal(t, "-1,000,000.00", formatAmount(-1e6))
}

func TestBuildPivotXLSX(t *testing.T) {
	rows := []reports.LedgerRow{
		{Code: "4000", Name: "Salaries", Amount: -30, PeriodKey: "2024001"},
		{Code: "4000", Name: "Salaries", Amount: -10, PeriodKey: "2024002"},
	}
	pivot, err := reports.NewBuilder(reports.DefaultLayout()).BuildPivot(rows)
	require.NoError(t, err)

	data, err := buildPivotXLSX(pivot)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("pivot")
	require.NoError(t, err)
	require.Equal(t, []string{"Key", "Name", "2024001", "2024002"}, got[0])
	require.Equal(t, "4", got[1][0])
	require.Equal(t, "    4000 - Salaries", got[3][1])
	require.Equal(t, "-30", got[3][2])
	require.Equal(t, "Grand Total", got[4][1])
	require.Equal(t, "-10", got[4][3])
}

func TestBuildRevenueXLSX(t *testing.T) {
	rows := []reports.RevenueRow{
		{RevenueType: "Recurring", CostCenterGroup: "NOI", Year: 2024, Month: 1, Amount: 100},
		{RevenueType: "One-off", CostCenterGroup: "WAT", Year: 2024, Month: 2, Amount: 20},
	}
	table, err := reports.NewBuilder(reports.DefaultLayout()).BuildRevenueTable(rows, 2024, 1, 2024, 2)
	require.NoError(t, err)

	data, err := buildRevenueXLSX(table)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("revenue")
	require.NoError(t, err)
	require.Equal(t, []string{"Revenue Type", "Cost Center Group", "2024-01", "2024-02"}, got[0])
	require.Equal(t, []string{"Recurring", "NOI", "100", "0"}, got[1])
	require.Equal(t, []string{"Recurring", "Subtotal", "100", "0"}, got[2])
	require.Empty(t, got[3])
	require.Equal(t, []string{"Total", "", "100", "20"}, got[len(got)-1])
}

package reports

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/finreports/testing"
)

var (
	fy2024 = &Period{Year: 2024, MonthFrom: 1, MonthTo: 12}
	fy2023 = &Period{Year: 2023, MonthFrom: 1, MonthTo: 12}
)

func build(t *testing.T, rows []LedgerRow, st StatementType, opts *StatementOptions) Statement {
	t.Helper()
	stmt, err := NewBuilder(DefaultLayout()).BuildStatement(rows, st, fy2024, fy2023, opts)
	require.NoError(t, err)
	return stmt
}

// shape renders the top-level sequence: group keys, "-" for spacers,
// "H:<name>" for headers and the synthetic kind otherwise.
func shape(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		switch n.Kind {
		case NodeSpacer:
			out[i] = "-"
		case NodeHeader:
			out[i] = "H:" + n.Name
		case NodeSynthetic:
			out[i] = string(n.Synthetic)
		default:
			out[i] = n.Key
		}
	}
	return out
}

func findSynthetic(nodes []*Node, kind SyntheticKind) *Node {
	for _, n := range nodes {
		if n.Kind == NodeSynthetic && n.Synthetic == kind {
			return n
		}
	}
	return nil
}

func TestStatementSingleRowAgainstPriorYear(t *testing.T) {
	rows := []LedgerRow{{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 3, CostCenter: "NOI"}}
	stmt := build(t, rows, StatementPNL, nil)

	top := stmt.Nodes[0]
	require.Equal(t, "8-Recurring", top.Key)
	require.Equal(t, "Recurring Revenue", top.Name)
	require.Equal(t, 1000.0, top.AmountA)
	require.Equal(t, 0.0, top.AmountB)
	require.Equal(t, 1000.0, top.NoiA)
	require.Equal(t, 0.0, top.WatA)
	require.Equal(t, 1000.0, top.WnA)
	require.Equal(t, -1000.0, top.DiffAbs)
	require.Equal(t, -100.0, top.DiffPct)

	require.Len(t, top.Children, 1)
	require.Equal(t, "80", top.Children[0].Key)
	require.Equal(t, "Subscription Revenue", top.Children[0].Name)
	leaf := top.Children[0].Children[0]
	require.Equal(t, NodeLeaf, leaf.Kind)
	require.Equal(t, 3, leaf.Level)
	require.Equal(t, "8000 - Subscriptions", leaf.Name)
}

func TestStatementTwoPeriods(t *testing.T) {
	rows := []LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 2},
		{Code: "8000", Name: "Subscriptions", Amount: 1500, Year: 2023, Month: 2},
	}
	stmt, err := NewBuilder(DefaultLayout()).BuildStatement(rows, StatementPNL, fy2024, fy2023, nil)
	require.NoError(t, err)
	top := stmt.Nodes[0]
	require.Equal(t, 1000.0, top.AmountA)
	require.Equal(t, 1500.0, top.AmountB)
	require.Equal(t, 500.0, top.DiffAbs)
	require.Equal(t, 50.0, top.DiffPct)
}

func TestStatementZeroDivisionGuard(t *testing.T) {
	rows := []LedgerRow{{Code: "4000", Name: "Salaries", Amount: 250, Year: 2023, Month: 6}}
	stmt := build(t, rows, StatementPNL, nil)
	top := stmt.Nodes[0]
	require.Equal(t, 0.0, top.AmountA)
	require.Equal(t, 250.0, top.AmountB)
	require.Equal(t, 250.0, top.DiffAbs)
	require.Equal(t, 0.0, top.DiffPct)
}

func TestStatementCostCenterBuckets(t *testing.T) {
	rows := []LedgerRow{
		{Code: "4000", Name: "Salaries", Amount: 100.104, Year: 2024, Month: 1, CostCenter: "WAT"},
		{Code: "4000", Name: "Salaries", Amount: 50, Year: 2024, Month: 2, CostCenter: "noi"},
		{Code: "4000", Name: "Salaries", Amount: 30, Year: 2024, Month: 2, CostCenter: "HQ"},
		{Code: "4000", Name: "Salaries", Amount: 20, Year: 2023, Month: 2, CostCenter: "WAT"},
	}
	top := build(t, rows, StatementPNL, nil).Nodes[0]
	require.Equal(t, 100.1, top.WatA)
	require.Equal(t, 50.0, top.NoiA)
	require.Equal(t, 150.1, top.WnA)
	require.Equal(t, 180.1, top.AmountA)
	require.Equal(t, 20.0, top.WatB)
	require.Equal(t, 20.0, top.WnB)
}

func TestStatementSumInvariant(t *testing.T) {
	rows := []LedgerRow{
		{Code: "4000", Name: "Salaries", Amount: 10.25, Year: 2024, Month: 1},
		{Code: "4010", Name: "Pension", Amount: 3.1, Year: 2024, Month: 2},
		{Code: "4100", Name: "Rent", Amount: 7.33, Year: 2024, Month: 2},
		{Code: "4100", Name: "Rent", Amount: 7.33, Year: 2023, Month: 2},
		{Code: "4400", Name: "Ads", Amount: -1.05, Year: 2024, Month: 5},
		{Code: "8000", Name: "Subscriptions", Amount: 99.99, Year: 2024, Month: 7},
		{Code: "8410", Name: "Projects", Amount: 0.01, Year: 2023, Month: 7},
		{Code: "1000", Name: "Bank", Amount: 12.5, Year: 2024, Month: 0},
	}
	layout := DefaultLayout()
	stmt, err := NewBuilder(layout).BuildStatement(rows, StatementBAS, &Period{Year: 2024, MonthFrom: 0, MonthTo: 12}, fy2023, nil)
	require.NoError(t, err)

	var leafSum func(n *Node) (float64, float64)
	leafSum = func(n *Node) (float64, float64) {
		if n.Kind == NodeLeaf {
			return n.AmountA, n.AmountB
		}
		var a, b float64
		for _, c := range n.Children {
			ca, cb := leafSum(c)
			a += ca
			b += cb
		}
		return a, b
	}
	var check func(n *Node)
	check = func(n *Node) {
		if n.Kind != NodeBranch {
			return
		}
		a, b := leafSum(n)
		require.InDelta(t, round2(a), n.AmountA, 1e-9, n.Name)
		require.InDelta(t, round2(b), n.AmountB, 1e-9, n.Name)
		for _, c := range n.Children {
			check(c)
		}
	}
	for _, n := range stmt.Nodes {
		check(n)
	}
}

func TestStatementDeterministic(t *testing.T) {
	rows := []LedgerRow{
		{Code: "4100", Name: "Rent", Amount: 7, Year: 2024, Month: 2},
		{Code: "4000", Name: "Salaries", Amount: 10, Year: 2024, Month: 1},
		{Code: "8000", Name: "Subscriptions", Amount: 99, Year: 2024, Month: 7},
		{Code: "7000", Name: "Purchases", Amount: -40, Year: 2023, Month: 7},
		{Code: "1000", Name: "Bank", Amount: 12, Year: 2024, Month: 4},
	}
	first, err := json.Marshal(build(t, rows, StatementCombined, nil))
	require.NoError(t, err)
	second, err := json.Marshal(build(t, rows, StatementCombined, nil))
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestStatementPNLLayout(t *testing.T) {
	rows := []LedgerRow{
		{Code: "6000", Name: "Misc", Amount: 1, Year: 2024, Month: 1},
		{Code: "5000", Name: "Misc", Amount: 1, Year: 2024, Month: 1},
		{Code: "9000", Name: "Interest", Amount: -10, Year: 2024, Month: 1},
		{Code: "4000", Name: "Salaries", Amount: -300, Year: 2024, Month: 1},
		{Code: "7000", Name: "Purchases", Amount: -400, Year: 2024, Month: 1},
		{Code: "8400", Name: "Projects", Amount: 200, Year: 2024, Month: 1},
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1},
	}
	stmt := build(t, rows, StatementPNL, nil)
	require.Equal(t, []string{
		"8-Recurring", "8-OneOff", "7", "gross_margin", "-", "4", "-", "9", "5", "6", "grand_total",
	}, shape(stmt.Nodes))

	margin := findSynthetic(stmt.Nodes, SyntheticGrossMargin)
	require.Equal(t, 800.0, margin.AmountA)
	require.True(t, margin.Bold)

	grand := findSynthetic(stmt.Nodes, SyntheticGrandTotal)
	require.Equal(t, LabelNetIncome, grand.Name)
	require.Equal(t, 492.0, grand.AmountA)
}

func TestStatementWithoutGrossMargin(t *testing.T) {
	rows := []LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1},
		{Code: "4000", Name: "Salaries", Amount: -300, Year: 2024, Month: 1},
	}
	stmt := build(t, rows, StatementPNL, &StatementOptions{IncludeGrossMargin: false})
	require.Equal(t, []string{"8-Recurring", "4", "-", "grand_total"}, shape(stmt.Nodes))

	stmt = build(t, rows, StatementPNL, nil)
	require.Equal(t, []string{"8-Recurring", "4", "-", "gross_margin", "grand_total"}, shape(stmt.Nodes))
}

func TestStatementSalesAndBalanceLabels(t *testing.T) {
	rows := []LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1},
		{Code: "8500", Name: "Setup", Amount: 150, Year: 2024, Month: 1},
	}
	stmt := build(t, rows, StatementSales, &StatementOptions{})
	require.Equal(t, []string{"8-Recurring", "8-OneOff", "-", "grand_total"}, shape(stmt.Nodes))
	require.Equal(t, LabelTotalRevenue, stmt.Nodes[len(stmt.Nodes)-1].Name)
	require.Equal(t, 1150.0, stmt.Nodes[len(stmt.Nodes)-1].AmountA)

	rows = []LedgerRow{
		{Code: "3000", Name: "Stock", Amount: 5, Year: 2024, Month: 1},
		{Code: "0100", Name: "Buildings", Amount: 7, Year: 2024, Month: 1},
		{Code: "1000", Name: "Bank", Amount: 9, Year: 2024, Month: 1},
	}
	stmt = build(t, rows, StatementBAS, &StatementOptions{})
	require.Equal(t, []string{"0", "1", "3", "grand_total"}, shape(stmt.Nodes))
	require.Equal(t, LabelGrandTotal, stmt.Nodes[3].Name)
	require.Equal(t, 21.0, stmt.Nodes[3].AmountA)
}

func TestStatementCombinedLayout(t *testing.T) {
	rows := []LedgerRow{
		{Code: "0100", Name: "Buildings", Amount: 200, Year: 2024, Month: 1},
		{Code: "1000", Name: "Bank", Amount: 500, Year: 2024, Month: 1},
		{Code: "4000", Name: "Salaries", Amount: -300, Year: 2024, Month: 1},
		{Code: "7000", Name: "Purchases", Amount: -400, Year: 2024, Month: 1},
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1},
	}
	stmt := build(t, rows, StatementCombined, nil)
	require.Equal(t, []string{
		"H:" + LabelIncomeStatement,
		"8-Recurring", "total_revenue", "-", "7", "gross_margin", "-", "4", "-",
		"net_income", "-", "-", "H:" + LabelBalanceSheet,
		"0", "1",
		"grand_total", "-", "-", "H:" + LabelCashFlow,
	}, shape(stmt.Nodes))

	require.Equal(t, 1000.0, findSynthetic(stmt.Nodes, SyntheticTotalRevenue).AmountA)
	require.Equal(t, 600.0, findSynthetic(stmt.Nodes, SyntheticGrossMargin).AmountA)
	require.Equal(t, 300.0, findSynthetic(stmt.Nodes, SyntheticNetIncome).AmountA)
	// Data groups (1000) plus total revenue (1000) and net income (300);
	// gross margin is left out.
	grand := findSynthetic(stmt.Nodes, SyntheticGrandTotal)
	require.Equal(t, LabelGrandTotal, grand.Name)
	require.Equal(t, 2300.0, grand.AmountA)
}

func TestStatementGrandTotalSkipsGrossMargin(t *testing.T) {
	rows := []LedgerRow{
		{Code: "1000", Name: "Bank", Amount: 500, Year: 2024, Month: 1},
		{Code: "4000", Name: "Salaries", Amount: -300, Year: 2024, Month: 1},
		{Code: "7000", Name: "Purchases", Amount: -400, Year: 2024, Month: 1},
		{Code: "8000", Name: "Subscriptions", Amount: 1000, Year: 2024, Month: 1},
	}
	combined := build(t, rows, StatementCombined, nil)
	require.Equal(t, 2100.0, findSynthetic(combined.Nodes, SyntheticGrandTotal).AmountA)

	pnl := build(t, rows, StatementPNL, nil)
	require.NotNil(t, findSynthetic(pnl.Nodes, SyntheticGrossMargin))
	require.Equal(t, 800.0, findSynthetic(pnl.Nodes, SyntheticGrandTotal).AmountA)
}

func TestStatementCombinedBalanceOnly(t *testing.T) {
	rows := []LedgerRow{{Code: "1000", Name: "Bank", Amount: 500, Year: 2024, Month: 1}}
	stmt := build(t, rows, StatementCombined, &StatementOptions{})
	require.Equal(t, []string{
		"H:" + LabelIncomeStatement,
		"total_revenue", "-", "net_income", "-", "-", "H:" + LabelBalanceSheet,
		"1",
		"grand_total", "-", "-", "H:" + LabelCashFlow,
	}, shape(stmt.Nodes))
	require.Equal(t, 0.0, findSynthetic(stmt.Nodes, SyntheticNetIncome).AmountA)
}

func TestStatementMalformedRow(t *testing.T) {
	rows := []LedgerRow{
		{Code: "8000", Amount: 1, Year: 2024, Month: 1},
		{Code: "  ", Amount: 1, Year: 2024, Month: 1},
	}
	_, err := NewBuilder(DefaultLayout()).BuildStatement(rows, StatementPNL, fy2024, nil, nil)
	require.ErrorIs(t, err, ErrMalformedRow)
}

func TestStatementEmptyAndUnmatched(t *testing.T) {
	builder := NewBuilder(DefaultLayout())
	stmt, err := builder.BuildStatement(nil, StatementCombined, fy2024, fy2023, nil)
	require.NoError(t, err)
	require.Empty(t, stmt.Nodes)

	rows := []LedgerRow{{Code: "8000", Amount: 1, Year: 2020, Month: 1}}
	stmt, err = builder.BuildStatement(rows, StatementPNL, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, stmt.Nodes)
	require.Empty(t, stmt.Nodes)

	_, err = builder.BuildStatement(rows, "CASH", fy2024, nil, nil)
	require.ErrorIs(t, err, ErrUnknownStatement)
}

func TestStatementUnusablePeriodYieldsZeroSide(t *testing.T) {
	builder := NewBuilder(DefaultLayout())
	rows := []LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 100, Year: 2024, Month: 3},
		{Code: "8000", Name: "Subscriptions", Amount: 40, Year: 2024, Month: 7},
	}

	stmt, err := builder.BuildStatement(rows, StatementPNL, &Period{}, nil, nil)
	require.NoError(t, err)
	require.Empty(t, stmt.Nodes)

	stmt, err = builder.BuildStatement(rows, StatementPNL, &Period{Year: 2024, MonthFrom: 6, MonthTo: 2}, fy2024, nil)
	require.NoError(t, err)
	require.Equal(t, "8-Recurring", stmt.Nodes[0].Key)
	require.Equal(t, 0.0, stmt.Nodes[0].AmountA)
	require.Equal(t, 140.0, stmt.Nodes[0].AmountB)
	require.Equal(t, 140.0, stmt.Nodes[0].DiffAbs)
	require.Equal(t, 0.0, stmt.Nodes[0].DiffPct)
}

func TestNodeJSONKeepsSpacersDistinct(t *testing.T) {
	rows := []LedgerRow{
		{Code: "8000", Name: "Subscriptions", Amount: 0, Year: 2024, Month: 1},
		{Code: "1000", Name: "Bank", Amount: 5, Year: 2024, Month: 1},
	}
	stmt := build(t, rows, StatementCombined, nil)
	raw, err := json.Marshal(stmt)
	require.NoError(t, err)

	var generic struct {
		Nodes []map[string]any `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Equal(t, "header", generic.Nodes[0]["kind"])
	require.Nil(t, generic.Nodes[0]["amountA"])
	require.Contains(t, generic.Nodes[0], "amountA")
	require.Equal(t, 0.0, generic.Nodes[1]["amountA"])

	var back Statement
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, shape(stmt.Nodes), shape(back.Nodes))
	require.False(t, back.Nodes[0].HasFigures())
	require.True(t, back.Nodes[1].HasFigures())
	require.Equal(t, stmt.Nodes[1].Children[0].Children[0].Name, back.Nodes[1].Children[0].Children[0].Name)
}

func TestLedgerRowDecodesLooseJSON(t *testing.T) {
	var rows []LedgerRow
	payload := `[
		{"code": 8000, "name": "Subscriptions", "amount": 12.5, "year": "2024", "month": "3", "costCenter": "WAT"},
		{"code": "0100", "name": "Buildings", "amount": -1, "year": 2024, "month": 0}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &rows))
	require.Equal(t, AccountCode("8000"), rows[0].Code)
	require.Equal(t, 2024, rows[0].Year)
	require.Equal(t, 3, rows[0].Month)
	require.Equal(t, AccountCode("0100"), rows[1].Code)

	payload = `[{"code": 8000.0}, {"code": 8e3}, {"code": 12.5}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &rows))
	require.Equal(t, AccountCode("8000"), rows[0].Code)
	require.Equal(t, AccountCode("8000"), rows[1].Code)
	require.Equal(t, AccountCode("12.5"), rows[2].Code)

	err := json.Unmarshal([]byte(`[{"code": true}]`), &rows)
	require.Error(t, err)
}

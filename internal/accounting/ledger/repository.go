package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
	"github.com/odyssey-erp/finreports/internal/platform/db"
)

// ErrInvalidTable indicates an unusable ledger table name.
var ErrInvalidTable = errors.New("ledger: invalid table name")

// Repository reads general-ledger rows from PostgreSQL. The table is expected
// to expose account_code, account_name, amount, fiscal_year, fiscal_month,
// cost_center and period_key columns.
type Repository struct {
	pool   db.TxBeginner
	table  string
	layout reports.Layout
}

// NewRepository constructs a ledger repository reading from table, which may
// be schema qualified.
func NewRepository(pool *pgxpool.Pool, table string, layout reports.Layout) (*Repository, error) {
	ident, err := sanitizeTable(table)
	if err != nil {
		return nil, err
	}
	return &Repository{pool: pool, table: ident, layout: layout}, nil
}

func sanitizeTable(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", ErrInvalidTable
	}
	parts := strings.Split(table, ".")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

// StatementRows returns rows falling in either window. A row matching both
// windows is returned once.
func (r *Repository) StatementRows(ctx context.Context, periodA, periodB *reports.Period) ([]reports.LedgerRow, error) {
	query, args := statementQuery(r.table, periodA, periodB)
	if query == "" {
		return nil, nil
	}
	var out []reports.LedgerRow
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, scanLedgerRow)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: statement rows: %w", err)
	}
	return out, nil
}

// PivotRows returns rows whose period key lies in [fromKey, toKey].
func (r *Repository) PivotRows(ctx context.Context, fromKey, toKey string) ([]reports.LedgerRow, error) {
	query := `SELECT account_code, account_name, SUM(amount)::float8, 0, 0, '', period_key
FROM ` + r.table + `
WHERE period_key BETWEEN $1 AND $2
GROUP BY account_code, account_name, period_key
ORDER BY account_code, period_key`
	var out []reports.LedgerRow
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, fromKey, toKey)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, scanLedgerRow)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: pivot rows: %w", err)
	}
	return out, nil
}

// RevenueRows returns revenue summed per revenue type, cost-center group and
// month between from and to inclusive. Each key appears at most once.
func (r *Repository) RevenueRows(ctx context.Context, from, to reports.Month) ([]reports.RevenueRow, error) {
	query, args := revenueQuery(r.table, r.layout, from, to)
	var out []reports.RevenueRow
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (reports.RevenueRow, error) {
			var rr reports.RevenueRow
			err := row.Scan(&rr.RevenueType, &rr.CostCenterGroup, &rr.Year, &rr.Month, &rr.Amount)
			return rr, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: revenue rows: %w", err)
	}
	return out, nil
}

func scanLedgerRow(row pgx.CollectableRow) (reports.LedgerRow, error) {
	var (
		lr         reports.LedgerRow
		code       string
		costCenter string
	)
	if err := row.Scan(&code, &lr.Name, &lr.Amount, &lr.Year, &lr.Month, &costCenter, &lr.PeriodKey); err != nil {
		return reports.LedgerRow{}, err
	}
	lr.Code = reports.AccountCode(code)
	lr.CostCenter = reports.CostCenter(costCenter)
	return lr, nil
}

func statementQuery(table string, periodA, periodB *reports.Period) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, p := range []*reports.Period{periodA, periodB} {
		if p == nil {
			continue
		}
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(fiscal_year = $%d AND fiscal_month BETWEEN $%d AND $%d)", n+1, n+2, n+3))
		args = append(args, p.Year, p.MonthFrom, p.MonthTo)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	query := `SELECT account_code, account_name, SUM(amount)::float8, fiscal_year, fiscal_month, COALESCE(cost_center, ''), ''
FROM ` + table + `
WHERE ` + strings.Join(clauses, " OR ") + `
GROUP BY account_code, account_name, fiscal_year, fiscal_month, cost_center
ORDER BY account_code, fiscal_year, fiscal_month`
	return query, args
}

func revenueQuery(table string, layout reports.Layout, from, to reports.Month) (string, []any) {
	types := layout.RevenueTypes
	recurring, oneOff := "Recurring", "One-off"
	if len(types) > 0 {
		recurring = types[0]
	}
	if len(types) > 1 {
		oneOff = types[1]
	}
	query := `SELECT
	CASE WHEN left(account_code, 2) = ANY($1::text[]) THEN $3::text ELSE $2::text END AS revenue_type,
	CASE WHEN upper(cost_center) IN ('WAT', 'NOI') THEN upper(cost_center) ELSE 'Other' END AS cost_center_group,
	fiscal_year, fiscal_month, SUM(amount)::float8
FROM ` + table + `
WHERE account_code LIKE $4::text || '%'
	AND fiscal_year * 100 + fiscal_month BETWEEN $5 AND $6
GROUP BY 1, 2, fiscal_year, fiscal_month
ORDER BY 1, 2, fiscal_year, fiscal_month`
	args := []any{
		layout.OneOffPrefixes,
		recurring,
		oneOff,
		layout.RevenuePrefix,
		from.Year*100 + from.Month,
		to.Year*100 + to.Month,
	}
	return query, args
}

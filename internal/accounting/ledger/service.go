// Package ledger loads general-ledger rows and turns them into reports.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
)

// LTMMonths is the width of a last-twelve-months revenue window.
const LTMMonths = 12

// RowSource abstracts the data access required by the service.
type RowSource interface {
	StatementRows(ctx context.Context, periodA, periodB *reports.Period) ([]reports.LedgerRow, error)
	PivotRows(ctx context.Context, fromKey, toKey string) ([]reports.LedgerRow, error)
	RevenueRows(ctx context.Context, from, to reports.Month) ([]reports.RevenueRow, error)
}

// BuildObserver receives one call per report build.
type BuildObserver interface {
	ObserveBuild(report string, rows int, elapsed time.Duration, err error)
}

// StatementRequest selects a statement and its comparison windows.
type StatementRequest struct {
	Type    reports.StatementType
	PeriodA *reports.Period
	PeriodB *reports.Period
	Options *reports.StatementOptions
}

// Service fetches ledger rows and hands them to the report builder.
type Service struct {
	repo     RowSource
	builder  *reports.Builder
	observer BuildObserver
	logger   *slog.Logger
}

// NewService constructs a report service. observer and logger may be nil.
func NewService(repo RowSource, builder *reports.Builder, observer BuildObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, builder: builder, observer: observer, logger: logger}
}

func (s *Service) ready() error {
	if s == nil || s.repo == nil || s.builder == nil {
		return errors.New("ledger: service not initialised")
	}
	return nil
}

// Statement builds a dual-period statement tree.
func (s *Service) Statement(ctx context.Context, req StatementRequest) (reports.Statement, error) {
	if err := s.ready(); err != nil {
		return reports.Statement{}, err
	}
	if _, err := reports.ParseStatementType(string(req.Type)); err != nil {
		return reports.Statement{}, err
	}
	if err := req.PeriodA.Validate(); err != nil {
		return reports.Statement{}, fmt.Errorf("period A: %w", err)
	}
	if err := req.PeriodB.Validate(); err != nil {
		return reports.Statement{}, fmt.Errorf("period B: %w", err)
	}

	start := time.Now()
	rows, err := s.repo.StatementRows(ctx, req.PeriodA, req.PeriodB)
	var stmt reports.Statement
	if err == nil {
		stmt, err = s.builder.BuildStatement(rows, req.Type, req.PeriodA, req.PeriodB, req.Options)
	}
	s.observe(ctx, "statement", len(rows), start, err,
		slog.String("type", string(req.Type)),
		slog.String("period_a", req.PeriodA.String()),
		slog.String("period_b", req.PeriodB.String()))
	return stmt, err
}

// Pivot builds a period pivot over [fromKey, toKey].
func (s *Service) Pivot(ctx context.Context, fromKey, toKey string) (reports.Pivot, error) {
	if err := s.ready(); err != nil {
		return reports.Pivot{}, err
	}
	if fromKey == "" || toKey == "" || toKey < fromKey {
		return reports.Pivot{}, fmt.Errorf("%w: period keys %q..%q", reports.ErrInvalidPeriod, fromKey, toKey)
	}

	start := time.Now()
	rows, err := s.repo.PivotRows(ctx, fromKey, toKey)
	var pivot reports.Pivot
	if err == nil {
		pivot, err = s.builder.BuildPivot(rows)
	}
	s.observe(ctx, "pivot", len(rows), start, err, slog.String("from", fromKey), slog.String("to", toKey))
	return pivot, err
}

// Revenue builds the monthly revenue table for [from, to].
func (s *Service) Revenue(ctx context.Context, from, to reports.Month) (reports.RevenueTable, error) {
	if err := s.ready(); err != nil {
		return reports.RevenueTable{}, err
	}
	if err := reports.ValidateRange(from, to); err != nil {
		return reports.RevenueTable{}, err
	}

	start := time.Now()
	rows, err := s.repo.RevenueRows(ctx, from, to)
	var table reports.RevenueTable
	if err == nil {
		table, err = s.builder.BuildRevenueTable(rows, from.Year, from.Month, to.Year, to.Month)
	}
	s.observe(ctx, "revenue", len(rows), start, err, slog.String("from", from.Label()), slog.String("to", to.Label()))
	return table, err
}

// RevenueLTM builds the revenue table for the twelve months ending with end.
func (s *Service) RevenueLTM(ctx context.Context, end reports.Month) (reports.RevenueTable, error) {
	return s.Revenue(ctx, end.Add(-(LTMMonths - 1)), end)
}

func (s *Service) observe(ctx context.Context, report string, rows int, start time.Time, err error, attrs ...slog.Attr) {
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveBuild(report, rows, elapsed, err)
	}
	attrs = append(attrs, slog.String("report", report), slog.Int("rows", rows), slog.Duration("elapsed", elapsed))
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		s.logger.LogAttrs(ctx, slog.LevelError, "report build failed", attrs...)
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "report built", attrs...)
}

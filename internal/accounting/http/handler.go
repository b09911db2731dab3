// Package http exposes ledger reports over HTTP as JSON, CSV, PDF and XLSX.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/finreports/internal/accounting/ledger"
	"github.com/odyssey-erp/finreports/internal/accounting/reports"
	"github.com/odyssey-erp/finreports/internal/platform/httpx"
)

// ReportService is the subset of ledger.Service used by the handler.
type ReportService interface {
	Statement(ctx context.Context, req ledger.StatementRequest) (reports.Statement, error)
	Pivot(ctx context.Context, fromKey, toKey string) (reports.Pivot, error)
	Revenue(ctx context.Context, from, to reports.Month) (reports.RevenueTable, error)
	RevenueLTM(ctx context.Context, end reports.Month) (reports.RevenueTable, error)
}

// Options tunes the handler.
type Options struct {
	// ExportsPerMinute limits file exports per client IP. Zero disables it.
	ExportsPerMinute int
	// Cache keeps JSON payloads between requests when set.
	Cache ResponseCache
}

// Handler wires HTTP interactions for the report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	validate  *validator.Validate
	rateLimit func(http.Handler) http.Handler
	builds    buildGroup
	cache     ResponseCache
	now       func() time.Time
}

// Envelope wraps every JSON report response.
type Envelope struct {
	ReportID string `json:"report_id"`
	Data     any    `json:"data"`
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, service ReportService, opts Options) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("reports handler: service required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	limiter := func(next http.Handler) http.Handler { return next }
	if opts.ExportsPerMinute > 0 {
		limiter = httprate.Limit(opts.ExportsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validate:  validator.New(),
		rateLimit: limiter,
		cache:     opts.Cache,
		now:       time.Now,
	}, nil
}

// MountRoutes registers the report endpoints on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statement", h.HandleStatement)
	r.Get("/pivot", h.HandlePivot)
	r.Get("/revenue", h.HandleRevenue)
	r.Get("/revenue/ltm", h.HandleRevenueLTM)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/statement/export.csv", h.HandleStatementCSV)
		r.Get("/statement/pdf", h.HandleStatementPDF)
		r.Get("/pivot/export.xlsx", h.HandlePivotXLSX)
		r.Get("/revenue/export.xlsx", h.HandleRevenueXLSX)
	})
}

// HandleStatement serves a statement tree as JSON.
func (h *Handler) HandleStatement(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	stmt, err := h.statement(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, stmt)
}

// HandlePivot serves a period pivot as JSON.
func (h *Handler) HandlePivot(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	pivot, err := h.pivot(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, pivot)
}

// HandleRevenue serves the revenue table for start..end as JSON.
func (h *Handler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	table, err := h.revenue(r, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, table)
}

// HandleRevenueLTM serves the twelve months ending at end as JSON.
func (h *Handler) HandleRevenueLTM(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	_, end, err := h.parseRevenueRange(r, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err, _ := h.builds.do(r.Context(), "revenue-ltm:"+end.Key(), func(ctx context.Context) (any, error) {
		return h.service.RevenueLTM(ctx, end)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, result.(reports.RevenueTable))
}

// HandleStatementCSV streams the statement as CSV.
func (h *Handler) HandleStatementCSV(w http.ResponseWriter, r *http.Request) {
	stmt, err := h.statement(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reportID := uuid.NewString()
	h.attachment(w, reportID, ".csv", fmt.Sprintf("statement-%s-%s.csv", stmt.Type, reportID[:8]))
	if err := writeStatementCSV(w, stmt, reportID); err != nil {
		h.logger.Error("write statement csv", slog.String("report_id", reportID), slog.Any("error", err))
	}
}

// HandleStatementPDF renders the statement as PDF.
func (h *Handler) HandleStatementPDF(w http.ResponseWriter, r *http.Request) {
	stmt, err := h.statement(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reportID := uuid.NewString()
	data, err := buildStatementPDF(stmt, reportID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, reportID, ".pdf", fmt.Sprintf("statement-%s-%s.pdf", stmt.Type, reportID[:8]), data)
}

// HandlePivotXLSX renders the pivot as a workbook.
func (h *Handler) HandlePivotXLSX(w http.ResponseWriter, r *http.Request) {
	pivot, err := h.pivot(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := buildPivotXLSX(pivot)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reportID := uuid.NewString()
	h.writeFile(w, reportID, ".xlsx", fmt.Sprintf("pivot-%s.xlsx", reportID[:8]), data)
}

// HandleRevenueXLSX renders the revenue table as a workbook. Without start
// the last twelve months up to end are exported.
func (h *Handler) HandleRevenueXLSX(w http.ResponseWriter, r *http.Request) {
	table, err := h.revenue(r, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := buildRevenueXLSX(table)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reportID := uuid.NewString()
	h.writeFile(w, reportID, ".xlsx", fmt.Sprintf("revenue-%s.xlsx", reportID[:8]), data)
}

func (h *Handler) statement(r *http.Request) (reports.Statement, error) {
	req, err := h.parseStatementRequest(r)
	if err != nil {
		return reports.Statement{}, err
	}
	result, err, _ := h.builds.do(r.Context(), "statement:"+r.URL.Query().Encode(), func(ctx context.Context) (any, error) {
		return h.service.Statement(ctx, req)
	})
	if err != nil {
		return reports.Statement{}, err
	}
	return result.(reports.Statement), nil
}

func (h *Handler) pivot(r *http.Request) (reports.Pivot, error) {
	params, err := h.parsePivotParams(r)
	if err != nil {
		return reports.Pivot{}, err
	}
	result, err, _ := h.builds.do(r.Context(), "pivot:"+params.From+":"+params.To, func(ctx context.Context) (any, error) {
		return h.service.Pivot(ctx, params.From, params.To)
	})
	if err != nil {
		return reports.Pivot{}, err
	}
	return result.(reports.Pivot), nil
}

func (h *Handler) revenue(r *http.Request, requireStart bool) (reports.RevenueTable, error) {
	start, end, err := h.parseRevenueRange(r, requireStart)
	if err != nil {
		return reports.RevenueTable{}, err
	}
	result, err, _ := h.builds.do(r.Context(), "revenue:"+start.Key()+":"+end.Key(), func(ctx context.Context) (any, error) {
		return h.service.Revenue(ctx, start, end)
	})
	if err != nil {
		return reports.RevenueTable{}, err
	}
	return result.(reports.RevenueTable), nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.store(r, payload)
	h.writeEnvelope(w, payload)
}

func (h *Handler) attachment(w http.ResponseWriter, reportID, ext, filename string) {
	w.Header().Set("X-Report-ID", reportID)
	w.Header().Set("Content-Type", mime.TypeByExtension(ext))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
}

func (h *Handler) writeFile(w http.ResponseWriter, reportID, ext, filename string, data []byte) {
	h.attachment(w, reportID, ext, filename)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("write export", slog.String("report_id", reportID), slog.Any("error", err))
	}
}

// fail maps engine errors onto problem responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidPeriod), errors.Is(err, reports.ErrUnknownStatement):
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, reports.ErrMalformedRow):
		err = fmt.Errorf("%w: %w", httpx.ErrUnprocessable, err)
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		h.logger.Error("report request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

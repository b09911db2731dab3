package http

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/finreports/internal/accounting/ledger"
	"github.com/odyssey-erp/finreports/internal/accounting/reports"
	"github.com/odyssey-erp/finreports/internal/platform/httpx"
)

type periodParams struct {
	Year int `validate:"min=1,max=9999"`
	From int `validate:"min=0,max=12"`
	To   int `validate:"min=0,max=12,gtefield=From"`
}

type statementParams struct {
	Type        string `validate:"required,oneof=PNL BAS SALES COMBINED"`
	GrossMargin bool
}

type pivotParams struct {
	From string `validate:"required,numeric"`
	To   string `validate:"required,numeric"`
}

type revenueParams struct {
	Start string `validate:"omitempty,datetime=2006-01"`
	End   string `validate:"required,datetime=2006-01"`
}

// fieldErrors collects per-parameter problems.
type fieldErrors map[string]string

func (e fieldErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(parts, "; "))
}

func (e fieldErrors) collect(prefix string, err error) {
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		e[prefix] = err.Error()
		return
	}
	for _, fe := range verrs {
		e[prefix+strings.ToLower(fe.Field())] = fmt.Sprintf("failed %s", fe.Tag())
	}
}

func intParam(q url.Values, name string, fallback int, errs fieldErrors) int {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs[name] = "must be an integer"
		return fallback
	}
	return v
}

func boolParam(q url.Values, name string, fallback bool, errs fieldErrors) bool {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		errs[name] = "must be a boolean"
		return fallback
	}
	return v
}

// parsePeriod reads <prefix>_year, <prefix>_from and <prefix>_to. The window
// is absent when the year is not given; months default to the whole year.
func (h *Handler) parsePeriod(q url.Values, prefix string, errs fieldErrors) *reports.Period {
	if strings.TrimSpace(q.Get(prefix+"_year")) == "" {
		return nil
	}
	p := periodParams{
		Year: intParam(q, prefix+"_year", 0, errs),
		From: intParam(q, prefix+"_from", 1, errs),
		To:   intParam(q, prefix+"_to", 12, errs),
	}
	errs.collect(prefix+"_", h.validate.Struct(p))
	return &reports.Period{Year: p.Year, MonthFrom: p.From, MonthTo: p.To}
}

func (h *Handler) parseStatementRequest(r *http.Request) (ledger.StatementRequest, error) {
	q := r.URL.Query()
	errs := fieldErrors{}
	params := statementParams{
		Type:        strings.ToUpper(strings.TrimSpace(q.Get("type"))),
		GrossMargin: boolParam(q, "gross_margin", true, errs),
	}
	errs.collect("", h.validate.Struct(params))
	req := ledger.StatementRequest{
		Type:    reports.StatementType(params.Type),
		PeriodA: h.parsePeriod(q, "a", errs),
		PeriodB: h.parsePeriod(q, "b", errs),
		Options: &reports.StatementOptions{IncludeGrossMargin: params.GrossMargin},
	}
	if req.PeriodA == nil && req.PeriodB == nil {
		errs["a_year"] = "at least one period is required"
	}
	return req, errs.err()
}

func (h *Handler) parsePivotParams(r *http.Request) (pivotParams, error) {
	q := r.URL.Query()
	errs := fieldErrors{}
	params := pivotParams{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	errs.collect("", h.validate.Struct(params))
	return params, errs.err()
}

// parseRevenueRange returns the requested month range. Without a start the
// range is the twelve months ending at end.
func (h *Handler) parseRevenueRange(r *http.Request, requireStart bool) (reports.Month, reports.Month, error) {
	q := r.URL.Query()
	errs := fieldErrors{}
	params := revenueParams{
		Start: strings.TrimSpace(q.Get("start")),
		End:   strings.TrimSpace(q.Get("end")),
	}
	errs.collect("", h.validate.Struct(params))
	if requireStart && params.Start == "" {
		errs["start"] = "failed required"
	}
	if err := errs.err(); err != nil {
		return reports.Month{}, reports.Month{}, err
	}
	end, err := reports.ParseMonth(params.End)
	if err != nil {
		return reports.Month{}, reports.Month{}, err
	}
	start := end.Add(-(ledger.LTMMonths - 1))
	if params.Start != "" {
		if start, err = reports.ParseMonth(params.Start); err != nil {
			return reports.Month{}, reports.Month{}, err
		}
	}
	return start, end, nil
}

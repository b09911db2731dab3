// Package reports turns flat general-ledger rows into comparison statements,
// period pivots and revenue tables. Every builder is a pure function of its
// input rows and the immutable Layout it was constructed with.
package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRow indicates a row without a usable account code.
	ErrMalformedRow = errors.New("reports: malformed row")
	// ErrInvalidPeriod indicates a period or date range missing required fields.
	ErrInvalidPeriod = errors.New("reports: invalid period")
	// ErrUnknownStatement indicates an unsupported statement type.
	ErrUnknownStatement = errors.New("reports: unknown statement type")
)

// StatementType selects the layout rules applied to a statement tree.
type StatementType string

const (
	StatementPNL      StatementType = "PNL"
	StatementBAS      StatementType = "BAS"
	StatementSales    StatementType = "SALES"
	StatementCombined StatementType = "COMBINED"
)

// ParseStatementType normalises user input into a known statement type.
func ParseStatementType(v string) (StatementType, error) {
	t := StatementType(strings.ToUpper(strings.TrimSpace(v)))
	switch t {
	case StatementPNL, StatementBAS, StatementSales, StatementCombined:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatement, v)
}

// CostCenter tags a row with an optional sub-bucket.
type CostCenter string

const (
	CostCenterWAT   CostCenter = "WAT"
	CostCenterNOI   CostCenter = "NOI"
	CostCenterOther CostCenter = "Other"
)

// Normalize maps anything outside WAT/NOI to Other.
func (c CostCenter) Normalize() CostCenter {
	switch CostCenter(strings.ToUpper(strings.TrimSpace(string(c)))) {
	case CostCenterWAT:
		return CostCenterWAT
	case CostCenterNOI:
		return CostCenterNOI
	}
	return CostCenterOther
}

// AccountCode is a ledger account number. Sources deliver it either as a JSON
// string or as a JSON number; both decode to the same digits, and integral
// numbers such as 8000.0 or 8e3 lose their fraction and exponent.
type AccountCode string

// UnmarshalJSON accepts strings and numbers.
func (c *AccountCode) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = AccountCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: account code %s", ErrMalformedRow, raw)
	}
	*c = AccountCode(n.String())
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		*c = AccountCode(strconv.FormatInt(int64(f), 10))
	}
	return nil
}

// flexInt decodes integers that may arrive quoted.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("reports: integer field %q: %w", raw, err)
	}
	*f = flexInt(n)
	return nil
}

// LedgerRow is one transaction or balance line of the general ledger.
type LedgerRow struct {
	Code       AccountCode `json:"code"`
	Name       string      `json:"name"`
	Amount     float64     `json:"amount"`
	Year       int         `json:"year"`
	Month      int         `json:"month"`
	CostCenter CostCenter  `json:"costCenter,omitempty"`
	PeriodKey  string      `json:"periodKey,omitempty"`
}

// UnmarshalJSON tolerates quoted years and months.
func (r *LedgerRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code       AccountCode `json:"code"`
		Name       string      `json:"name"`
		Amount     float64     `json:"amount"`
		Year       flexInt     `json:"year"`
		Month      flexInt     `json:"month"`
		CostCenter CostCenter  `json:"costCenter"`
		PeriodKey  string      `json:"periodKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = LedgerRow{
		Code:       raw.Code,
		Name:       raw.Name,
		Amount:     raw.Amount,
		Year:       int(raw.Year),
		Month:      int(raw.Month),
		CostCenter: raw.CostCenter,
		PeriodKey:  raw.PeriodKey,
	}
	return nil
}

func (r LedgerRow) code(idx int) (string, error) {
	code := strings.TrimSpace(string(r.Code))
	if code == "" {
		return "", fmt.Errorf("%w: row %d has no account code", ErrMalformedRow, idx)
	}
	return code, nil
}

// RevenueRow is one pre-aggregated revenue figure per type, cost-center group
// and calendar month.
type RevenueRow struct {
	RevenueType     string  `json:"revenueType"`
	CostCenterGroup string  `json:"costCenterGroup"`
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	Amount          float64 `json:"amount"`
}

package reports

import (
	"fmt"
	"time"
)

// Period is an inclusive month window inside a single year. Month 0 is the
// opening balance marker, so a window starting at 0 includes opening balances.
type Period struct {
	Year      int `json:"year"`
	MonthFrom int `json:"monthFrom"`
	MonthTo   int `json:"monthTo"`
}

// Validate ensures the window can match rows.
func (p *Period) Validate() error {
	if p == nil {
		return nil
	}
	if p.Year <= 0 {
		return fmt.Errorf("%w: year required", ErrInvalidPeriod)
	}
	if p.MonthFrom < 0 || p.MonthTo > 12 || p.MonthFrom > p.MonthTo {
		return fmt.Errorf("%w: months %d..%d", ErrInvalidPeriod, p.MonthFrom, p.MonthTo)
	}
	return nil
}

// String renders the window as YYYY-MM..MM.
func (p *Period) String() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d..%02d", p.Year, p.MonthFrom, p.MonthTo)
}

// InPeriod reports whether (year, month) falls inside p. No wraparound across
// years is supported.
func InPeriod(year, month int, p *Period) bool {
	if p == nil {
		return false
	}
	if year != p.Year {
		return false
	}
	return month >= p.MonthFrom && month <= p.MonthTo
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month int
}

// ParseMonth parses the YYYY-MM form.
func ParseMonth(v string) (Month, error) {
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return Month{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, v)
	}
	return Month{Year: t.Year(), Month: int(t.Month())}, nil
}

// Add shifts the month by n calendar months.
func (m Month) Add(n int) Month {
	idx := m.Year*12 + (m.Month - 1) + n
	return Month{Year: idx / 12, Month: idx%12 + 1}
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Label renders YYYY-MM.
func (m Month) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Key renders YYYYMM.
func (m Month) Key() string {
	return fmt.Sprintf("%04d%02d", m.Year, m.Month)
}

func (m Month) valid() bool {
	return m.Year > 0 && m.Month >= 1 && m.Month <= 12
}

// ValidateRange checks that start and end are real months with start <= end.
func ValidateRange(start, end Month) error {
	if !start.valid() || !end.valid() || end.Before(start) {
		return fmt.Errorf("%w: range %s..%s", ErrInvalidPeriod, start.Label(), end.Label())
	}
	return nil
}

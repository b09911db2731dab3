package reports

import (
	"encoding/json"
	"sort"
	"strings"
)

// RevenueRowKind tags the rows of a revenue table.
type RevenueRowKind string

const (
	RevenueRowMember     RevenueRowKind = "row"
	RevenueRowSubtotal   RevenueRowKind = "subtotal"
	RevenueRowSpacer     RevenueRowKind = "spacer"
	RevenueRowGrandTotal RevenueRowKind = "grand_total"
)

// RevenueColumn is one calendar month of the table.
type RevenueColumn struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// RevenueTableRow is one line of the revenue table. Spacer rows carry no
// amounts and serialize every column as null.
type RevenueTableRow struct {
	Kind            RevenueRowKind
	RevenueType     string
	CostCenterGroup string
	Amounts         map[string]float64

	blank []string
}

// RevenueTable is a flat pivot of revenue by type and cost-center group.
type RevenueTable struct {
	Rows    []*RevenueTableRow `json:"rows"`
	Columns []RevenueColumn    `json:"columns"`
}

// MarshalJSON writes each Amount_YYYYMM column as a field of the row.
func (r *RevenueTableRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Amounts)+len(r.blank)+3)
	for key, v := range r.Amounts {
		out[key] = v
	}
	for _, key := range r.blank {
		out[key] = nil
	}
	out["kind"] = r.Kind
	out["revenueType"] = r.RevenueType
	out["costCenterGroup"] = r.CostCenterGroup
	return json.Marshal(out)
}

// BuildRevenueTable lays out revenue per (type, cost-center group) with one
// column per month from start to end inclusive.
//
// Rows must already be unique per type, group, year and month: a later row
// with the same key replaces the earlier amount instead of adding to it.
// Rows outside the range are ignored.
func (b *Builder) BuildRevenueTable(rows []RevenueRow, startYear, startMonth, endYear, endMonth int) (RevenueTable, error) {
	start := Month{Year: startYear, Month: startMonth}
	end := Month{Year: endYear, Month: endMonth}
	if err := ValidateRange(start, end); err != nil {
		return RevenueTable{}, err
	}

	columns := make([]RevenueColumn, 0, 12)
	keyOf := make(map[Month]string)
	for m := start; !end.Before(m); m = m.Add(1) {
		col := RevenueColumn{Key: "Amount_" + m.Key(), Label: m.Label()}
		columns = append(columns, col)
		keyOf[m] = col.Key
	}

	records := make(map[string]*RevenueTableRow)
	byType := make(map[string][]*RevenueTableRow)
	contributed := make(map[string]bool)
	for _, row := range rows {
		key, ok := keyOf[Month{Year: row.Year, Month: row.Month}]
		if !ok {
			continue
		}
		revType := strings.TrimSpace(row.RevenueType)
		group := strings.TrimSpace(row.CostCenterGroup)
		if group == "" {
			group = string(CostCenterOther)
		}
		id := revType + "\x00" + group
		rec, ok := records[id]
		if !ok {
			rec = &RevenueTableRow{
				Kind:            RevenueRowMember,
				RevenueType:     revType,
				CostCenterGroup: group,
				Amounts:         zeroAmounts(columns),
			}
			records[id] = rec
			byType[revType] = append(byType[revType], rec)
		}
		rec.Amounts[key] = round2(row.Amount)
		contributed[revType] = true
	}

	table := RevenueTable{Rows: make([]*RevenueTableRow, 0, len(records)+8), Columns: columns}
	grand := &RevenueTableRow{Kind: RevenueRowGrandTotal, RevenueType: LabelTotal, Amounts: zeroAmounts(columns)}
	for _, revType := range b.revenueTypeOrder(byType) {
		members := byType[revType]
		sort.SliceStable(members, func(i, j int) bool {
			ri := rank(b.layout.CostCenterGroups, members[i].CostCenterGroup)
			rj := rank(b.layout.CostCenterGroups, members[j].CostCenterGroup)
			if ri != rj {
				return ri < rj
			}
			return members[i].CostCenterGroup < members[j].CostCenterGroup
		})
		table.Rows = append(table.Rows, members...)
		if contributed[revType] {
			subtotal := &RevenueTableRow{
				Kind:            RevenueRowSubtotal,
				RevenueType:     revType,
				CostCenterGroup: LabelSubtotal,
				Amounts:         sumAmounts(columns, members),
			}
			table.Rows = append(table.Rows, subtotal)
		}
		table.Rows = append(table.Rows, &RevenueTableRow{Kind: RevenueRowSpacer, blank: columnKeys(columns)})
		for _, m := range members {
			for _, col := range columns {
				grand.Amounts[col.Key] += m.Amounts[col.Key]
			}
		}
	}
	for _, col := range columns {
		grand.Amounts[col.Key] = round2(grand.Amounts[col.Key])
	}
	table.Rows = append(table.Rows, grand)
	return table, nil
}

// revenueTypeOrder lists the configured revenue types followed by any other
// type present in the data, alphabetically.
func (b *Builder) revenueTypeOrder(byType map[string][]*RevenueTableRow) []string {
	order := make([]string, 0, len(b.layout.RevenueTypes)+len(byType))
	order = append(order, b.layout.RevenueTypes...)
	extra := make([]string, 0)
	for revType := range byType {
		if rank(b.layout.RevenueTypes, revType) == len(b.layout.RevenueTypes) {
			extra = append(extra, revType)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func columnKeys(columns []RevenueColumn) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = col.Key
	}
	return out
}

func zeroAmounts(columns []RevenueColumn) map[string]float64 {
	out := make(map[string]float64, len(columns))
	for _, col := range columns {
		out[col.Key] = 0
	}
	return out
}

func sumAmounts(columns []RevenueColumn, rows []*RevenueTableRow) map[string]float64 {
	out := zeroAmounts(columns)
	for _, row := range rows {
		for _, col := range columns {
			out[col.Key] += row.Amounts[col.Key]
		}
	}
	for _, col := range columns {
		out[col.Key] = round2(out[col.Key])
	}
	return out
}

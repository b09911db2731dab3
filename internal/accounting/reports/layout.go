package reports

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Labels of rows that do not come from a ledger group.
const (
	LabelIncomeStatement = "Income statement"
	LabelBalanceSheet    = "Balance sheet"
	LabelCashFlow        = "Cash Flow"
	LabelNetIncome       = "Net Income"
	LabelTotalRevenue    = "Total Revenue"
	LabelGrossMargin     = "Gross Margin"
	LabelGrandTotal      = "Grand Total"
	LabelSubtotal        = "Subtotal"
	LabelTotal           = "Total"
)

// StatementLayout holds the ordering rules for one statement type.
type StatementLayout struct {
	// Priority lists level-1 keys in display order; unlisted keys follow
	// alphabetically. An empty list sorts everything alphabetically.
	Priority []string `yaml:"priority"`
	// SpacerAfter lists level-1 keys followed by a spacer row.
	SpacerAfter     []string `yaml:"spacer_after"`
	GrandTotalLabel string   `yaml:"grand_total_label"`
}

// Layout is the classification and presentation table shared by all builders.
// Builders keep a private copy, so a Layout can be reused freely after use.
type Layout struct {
	Level1Labels map[string]string `yaml:"level1_labels"`
	Level2Labels map[string]string `yaml:"level2_labels"`

	RevenuePrefix     string   `yaml:"revenue_prefix"`
	RecurringKey      string   `yaml:"recurring_key"`
	OneOffKey         string   `yaml:"one_off_key"`
	OneOffPrefixes    []string `yaml:"one_off_prefixes"`
	CostOfSalesKey    string   `yaml:"cost_of_sales_key"`
	NetIncomePrefixes []string `yaml:"net_income_prefixes"`

	Statements map[StatementType]StatementLayout `yaml:"statements"`

	RevenueTypes     []string `yaml:"revenue_types"`
	CostCenterGroups []string `yaml:"cost_center_groups"`
}

var incomeKeys = []string{"8-Recurring", "8-OneOff", "7", "4", "9"}

// DefaultLayout returns the built-in chart of accounts layout.
func DefaultLayout() Layout {
	return Layout{
		Level1Labels: map[string]string{
			"0":           "Fixed Assets",
			"1":           "Cash & Banks",
			"2":           "Suspense Accounts",
			"3":           "Inventory",
			"4":           "Operating Expenses",
			"7":           "Cost of Sales",
			"8":           "Revenue",
			"8-Recurring": "Recurring Revenue",
			"8-OneOff":    "One-off Revenue",
			"9":           "Financial Income & Expenses",
		},
		Level2Labels: map[string]string{
			"40": "Personnel Expenses",
			"41": "Housing Expenses",
			"42": "Vehicle Expenses",
			"43": "Office Expenses",
			"44": "Marketing Expenses",
			"49": "Depreciation",
			"70": "Cost of Sales",
			"80": "Subscription Revenue",
			"84": "Project Revenue",
			"85": "Other One-off Revenue",
		},
		RevenuePrefix:     "8",
		RecurringKey:      "8-Recurring",
		OneOffKey:         "8-OneOff",
		OneOffPrefixes:    []string{"84", "85"},
		CostOfSalesKey:    "7",
		NetIncomePrefixes: []string{"8", "7", "4", "9"},
		Statements: map[StatementType]StatementLayout{
			StatementPNL: {
				Priority:        slices.Clone(incomeKeys),
				SpacerAfter:     []string{"7", "4"},
				GrandTotalLabel: LabelNetIncome,
			},
			StatementSales: {
				Priority:        []string{"8-Recurring", "8-OneOff", "7"},
				SpacerAfter:     []string{"8-OneOff"},
				GrandTotalLabel: LabelTotalRevenue,
			},
			StatementCombined: {
				Priority:        slices.Clone(incomeKeys),
				SpacerAfter:     []string{"7", "4"},
				GrandTotalLabel: LabelGrandTotal,
			},
			StatementBAS: {
				GrandTotalLabel: LabelGrandTotal,
			},
		},
		RevenueTypes:     []string{"Recurring", "One-off"},
		CostCenterGroups: []string{"NOI", "WAT", "Other"},
	}
}

// LoadLayout overlays the YAML file at path onto DefaultLayout. Label maps are
// merged key by key; lists and statement entries replace the defaults.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()
	if strings.TrimSpace(path) == "" {
		return layout, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("reports: read layout: %w", err)
	}
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return Layout{}, fmt.Errorf("reports: parse layout: %w", err)
	}
	for t, st := range layout.Statements {
		if st.GrandTotalLabel == "" {
			st.GrandTotalLabel = LabelGrandTotal
			layout.Statements[t] = st
		}
	}
	return layout, nil
}

func (l Layout) clone() Layout {
	out := l
	out.Level1Labels = cloneMap(l.Level1Labels)
	out.Level2Labels = cloneMap(l.Level2Labels)
	out.OneOffPrefixes = slices.Clone(l.OneOffPrefixes)
	out.NetIncomePrefixes = slices.Clone(l.NetIncomePrefixes)
	out.RevenueTypes = slices.Clone(l.RevenueTypes)
	out.CostCenterGroups = slices.Clone(l.CostCenterGroups)
	out.Statements = make(map[StatementType]StatementLayout, len(l.Statements))
	for t, st := range l.Statements {
		out.Statements[t] = StatementLayout{
			Priority:        slices.Clone(st.Priority),
			SpacerAfter:     slices.Clone(st.SpacerAfter),
			GrandTotalLabel: st.GrandTotalLabel,
		}
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Classify derives the level-1 and level-2 keys of an account code. Revenue
// accounts are split into recurring and one-off level-1 groups.
func (l Layout) Classify(code string) (string, string) {
	level1, level2 := plainKeys(code)
	if l.RevenuePrefix != "" && level1 == l.RevenuePrefix {
		if slices.Contains(l.OneOffPrefixes, level2) {
			return l.OneOffKey, level2
		}
		return l.RecurringKey, level2
	}
	return level1, level2
}

func plainKeys(code string) (string, string) {
	level1 := code[:1]
	level2 := code
	if len(code) >= 2 {
		level2 = code[:2]
	}
	return level1, level2
}

// Level1Label names a level-1 group.
func (l Layout) Level1Label(key string) string {
	if label, ok := l.Level1Labels[key]; ok {
		return label
	}
	return "Group " + key
}

// Level2Label names a level-2 group.
func (l Layout) Level2Label(key string) string {
	if label, ok := l.Level2Labels[key]; ok {
		return label
	}
	return key + "xx Group"
}

func (l Layout) statement(t StatementType) StatementLayout {
	if st, ok := l.Statements[t]; ok {
		return st
	}
	return StatementLayout{GrandTotalLabel: LabelGrandTotal}
}

// rank returns the position of key in priority, or len(priority) when absent.
func rank(priority []string, key string) int {
	if idx := slices.Index(priority, key); idx >= 0 {
		return idx
	}
	return len(priority)
}

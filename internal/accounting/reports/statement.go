package reports

import (
	"slices"
	"sort"
	"strings"
)

// Builder produces statement trees, pivots and revenue tables from ledger rows
// using a fixed Layout. A Builder holds no per-call state and is safe for
// concurrent use.
type Builder struct {
	layout Layout
}

// NewBuilder constructs a builder around a private copy of layout.
func NewBuilder(layout Layout) *Builder {
	return &Builder{layout: layout.clone()}
}

// Layout returns a copy of the layout in use.
func (b *Builder) Layout() Layout {
	return b.layout.clone()
}

// StatementOptions tunes statement construction.
type StatementOptions struct {
	IncludeGrossMargin bool
}

// DefaultStatementOptions returns the options used when none are given.
func DefaultStatementOptions() StatementOptions {
	return StatementOptions{IncludeGrossMargin: true}
}

// Statement is a dual-period comparison tree.
type Statement struct {
	Type    StatementType `json:"type"`
	PeriodA *Period       `json:"periodA"`
	PeriodB *Period       `json:"periodB"`
	Nodes   []*Node       `json:"nodes"`
}

// BuildStatement aggregates rows falling into periodA and/or periodB into a
// three-level tree and applies the layout rules of the statement type. A
// period that cannot match any row, such as one without a year or with
// inverted months, leaves that side at zero instead of failing the build.
func (b *Builder) BuildStatement(rows []LedgerRow, t StatementType, periodA, periodB *Period, opts *StatementOptions) (Statement, error) {
	st, err := ParseStatementType(string(t))
	if err != nil {
		return Statement{}, err
	}
	options := DefaultStatementOptions()
	if opts != nil {
		options = *opts
	}

	groups, err := b.accumulate(rows, periodA, periodB)
	if err != nil {
		return Statement{}, err
	}
	result := Statement{Type: st, PeriodA: periodA, PeriodB: periodB, Nodes: []*Node{}}
	if len(groups) == 0 {
		return result, nil
	}

	rules := b.layout.statement(st)
	sortByPriority(groups, rules.Priority)

	nodes := b.arrange(st, rules, groups)
	nodes = b.appendSummaries(st, rules, groups, nodes, options)
	result.Nodes = nodes
	return result, nil
}

// accumulate builds and finalises the level-1 groups. Level-2 children are
// ordered by key, leaves by display name. Every level sums raw row amounts
// and rounds once, so a parent may differ from the sum of its rounded
// children by sub-cent residue.
func (b *Builder) accumulate(rows []LedgerRow, periodA, periodB *Period) ([]*Node, error) {
	level1 := make(map[string]*Node)
	level2 := make(map[string]*Node)
	leaves := make(map[string]*Node)
	order := make([]*Node, 0)

	for i, row := range rows {
		code, err := row.code(i)
		if err != nil {
			return nil, err
		}
		inA := InPeriod(row.Year, row.Month, periodA)
		inB := InPeriod(row.Year, row.Month, periodB)
		if !inA && !inB {
			continue
		}
		k1, k2 := b.layout.Classify(code)
		cc := row.CostCenter.Normalize()

		g1, ok := level1[k1]
		if !ok {
			g1 = newBranch(k1, b.layout.Level1Label(k1), 1)
			level1[k1] = g1
			order = append(order, g1)
		}
		id2 := k1 + "/" + k2
		g2, ok := level2[id2]
		if !ok {
			g2 = newBranch(k2, b.layout.Level2Label(k2), 2)
			level2[id2] = g2
			g1.Children = append(g1.Children, g2)
		}
		id3 := id2 + "/" + code
		leaf, ok := leaves[id3]
		if !ok {
			leaf = newLeaf(code, code+" - "+row.Name)
			leaves[id3] = leaf
			g2.Children = append(g2.Children, leaf)
		}
		g1.add(row.Amount, cc, inA, inB)
		g2.add(row.Amount, cc, inA, inB)
		leaf.add(row.Amount, cc, inA, inB)
	}

	for _, g1 := range order {
		for _, g2 := range g1.Children {
			for _, leaf := range g2.Children {
				leaf.calcDiffs()
			}
			sort.SliceStable(g2.Children, func(i, j int) bool {
				return g2.Children[i].Name < g2.Children[j].Name
			})
			g2.calcDiffs()
		}
		sort.SliceStable(g1.Children, func(i, j int) bool {
			return g1.Children[i].Key < g1.Children[j].Key
		})
		g1.calcDiffs()
	}
	return order, nil
}

// sortByPriority orders level-1 groups by their position in priority; keys
// missing from the list follow alphabetically.
func sortByPriority(groups []*Node, priority []string) {
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := rank(priority, groups[i].Key), rank(priority, groups[j].Key)
		if ri != rj {
			return ri < rj
		}
		return groups[i].Key < groups[j].Key
	})
}

// arrange interleaves headers, spacers and the combined statement's net income
// block with the ordered groups.
func (b *Builder) arrange(st StatementType, rules StatementLayout, groups []*Node) []*Node {
	out := make([]*Node, 0, len(groups)+12)
	combined := st == StatementCombined
	if combined {
		out = append(out, newHeader(LabelIncomeStatement))
	}
	incomeClosed := false
	closeIncome := func() {
		out = append(out, b.netIncome(groups), newSpacer(), newSpacer(), newHeader(LabelBalanceSheet))
		incomeClosed = true
	}
	for _, g := range groups {
		if combined && !incomeClosed && !slices.Contains(rules.Priority, g.Key) {
			closeIncome()
		}
		out = append(out, g)
		if st != StatementBAS && slices.Contains(rules.SpacerAfter, g.Key) {
			out = append(out, newSpacer())
		}
	}
	if combined && !incomeClosed {
		closeIncome()
	}
	return out
}

// appendSummaries inserts total revenue, gross margin and the grand total.
func (b *Builder) appendSummaries(st StatementType, rules StatementLayout, groups, nodes []*Node, opts StatementOptions) []*Node {
	if st == StatementCombined {
		total := b.summarise(SyntheticTotalRevenue, LabelTotalRevenue, groups, b.isRevenue)
		at := indexOfGroup(nodes, b.layout.CostOfSalesKey)
		if at < 0 {
			at = indexOfSynthetic(nodes, SyntheticNetIncome)
		}
		if at >= 0 {
			nodes = slices.Insert(nodes, at, total, newSpacer())
		}
	}
	if opts.IncludeGrossMargin {
		margin := b.summarise(SyntheticGrossMargin, LabelGrossMargin, groups, func(n *Node) bool {
			return b.isRevenue(n) || n.Key == b.layout.CostOfSalesKey
		})
		if at := indexOfGroup(nodes, b.layout.CostOfSalesKey); at >= 0 {
			nodes = slices.Insert(nodes, at+1, margin)
		} else {
			nodes = append(nodes, margin)
		}
	}
	nodes = append(nodes, grandTotal(rules.GrandTotalLabel, nodes))
	if st == StatementCombined {
		nodes = append(nodes, newSpacer(), newSpacer(), newHeader(LabelCashFlow))
	}
	return nodes
}

// grandTotal sums every level-1 row except gross margin. Spacers and headers
// carry no figures.
func grandTotal(label string, nodes []*Node) *Node {
	row := newSynthetic(SyntheticGrandTotal, label)
	for _, n := range nodes {
		if n.HasFigures() && n.Synthetic != SyntheticGrossMargin {
			row.absorb(n)
		}
	}
	row.calcDiffs()
	return row
}

func (b *Builder) netIncome(groups []*Node) *Node {
	return b.summarise(SyntheticNetIncome, LabelNetIncome, groups, func(n *Node) bool {
		for _, prefix := range b.layout.NetIncomePrefixes {
			if strings.HasPrefix(n.Key, prefix) {
				return true
			}
		}
		return false
	})
}

func (b *Builder) isRevenue(n *Node) bool {
	return b.layout.RevenuePrefix != "" && strings.HasPrefix(n.Key, b.layout.RevenuePrefix)
}

func (b *Builder) summarise(kind SyntheticKind, label string, groups []*Node, include func(*Node) bool) *Node {
	row := newSynthetic(kind, label)
	for _, g := range groups {
		if include(g) {
			row.absorb(g)
		}
	}
	row.calcDiffs()
	return row
}

func indexOfGroup(nodes []*Node, key string) int {
	if key == "" {
		return -1
	}
	return slices.IndexFunc(nodes, func(n *Node) bool {
		return n.Kind == NodeBranch && n.Key == key
	})
}

func indexOfSynthetic(nodes []*Node, kind SyntheticKind) int {
	return slices.IndexFunc(nodes, func(n *Node) bool {
		return n.Kind == NodeSynthetic && n.Synthetic == kind
	})
}

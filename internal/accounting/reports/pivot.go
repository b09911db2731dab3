package reports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PivotNode is a row of the period pivot. Values holds one figure per column.
type PivotNode struct {
	Kind     NodeKind
	Key      string
	Name     string
	Level    int
	Bold     bool
	Values   map[string]float64
	Children []*PivotNode
}

// Pivot is a three-level account tree with one column per period key.
type Pivot struct {
	Nodes   []*PivotNode `json:"nodes"`
	Columns []string     `json:"columns"`
}

// MarshalJSON writes every column as a field of the node itself.
func (n *PivotNode) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Values)+6)
	for col, v := range n.Values {
		out[col] = v
	}
	out["kind"] = n.Kind
	out["name"] = n.Name
	out["level"] = n.Level
	out["bold"] = n.Bold
	if n.Key != "" {
		out["key"] = n.Key
	}
	if len(n.Children) > 0 {
		out["children"] = n.Children
	}
	return json.Marshal(out)
}

// BuildPivot groups rows by plain account prefixes and spreads amounts over
// the distinct period keys found in the data. Revenue accounts are not split.
func (b *Builder) BuildPivot(rows []LedgerRow) (Pivot, error) {
	level1 := make(map[string]*PivotNode)
	level2 := make(map[string]*PivotNode)
	leaves := make(map[string]*PivotNode)
	groups := make([]*PivotNode, 0)
	seen := make(map[string]struct{})

	for i, row := range rows {
		code, err := row.code(i)
		if err != nil {
			return Pivot{}, err
		}
		col := strings.TrimSpace(row.PeriodKey)
		if col == "" {
			return Pivot{}, fmt.Errorf("%w: row %d has no period key", ErrMalformedRow, i)
		}
		seen[col] = struct{}{}
		k1, k2 := plainKeys(code)

		g1, ok := level1[k1]
		if !ok {
			g1 = newPivotNode(NodeBranch, k1, b.layout.Level1Label(k1), 1)
			level1[k1] = g1
			groups = append(groups, g1)
		}
		g2, ok := level2[k2]
		if !ok {
			g2 = newPivotNode(NodeBranch, k2, b.layout.Level2Label(k2), 2)
			level2[k2] = g2
			g1.Children = append(g1.Children, g2)
		}
		leaf, ok := leaves[code]
		if !ok {
			leaf = newPivotNode(NodeLeaf, code, code+" - "+row.Name, 3)
			leaves[code] = leaf
			g2.Children = append(g2.Children, leaf)
		}
		g1.Values[col] += row.Amount
		g2.Values[col] += row.Amount
		leaf.Values[col] += row.Amount
	}

	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	result := Pivot{Nodes: []*PivotNode{}, Columns: columns}
	if len(groups) == 0 {
		return result, nil
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	total := newPivotNode(NodeSynthetic, "", LabelGrandTotal, 1)
	total.Bold = true
	for _, g1 := range groups {
		for _, g2 := range g1.Children {
			for _, leaf := range g2.Children {
				leaf.finalize(columns)
			}
			sort.SliceStable(g2.Children, func(i, j int) bool { return g2.Children[i].Name < g2.Children[j].Name })
			g2.finalize(columns)
		}
		sort.SliceStable(g1.Children, func(i, j int) bool { return g1.Children[i].Key < g1.Children[j].Key })
		g1.finalize(columns)
		for _, col := range columns {
			total.Values[col] += g1.Values[col]
		}
	}
	total.finalize(columns)
	result.Nodes = append(groups, total)
	return result, nil
}

func newPivotNode(kind NodeKind, key, name string, level int) *PivotNode {
	return &PivotNode{Kind: kind, Key: key, Name: name, Level: level, Values: make(map[string]float64)}
}

// finalize rounds every column and fills columns the node never touched.
func (n *PivotNode) finalize(columns []string) {
	for _, col := range columns {
		n.Values[col] = round2(n.Values[col])
	}
}

package reports

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// NodeKind tags the variant of a statement node.
type NodeKind string

const (
	NodeBranch    NodeKind = "branch"
	NodeLeaf      NodeKind = "leaf"
	NodeSpacer    NodeKind = "spacer"
	NodeHeader    NodeKind = "header"
	NodeSynthetic NodeKind = "synthetic"
)

// SyntheticKind identifies a computed summary row.
type SyntheticKind string

const (
	SyntheticTotalRevenue SyntheticKind = "total_revenue"
	SyntheticGrossMargin  SyntheticKind = "gross_margin"
	SyntheticNetIncome    SyntheticKind = "net_income"
	SyntheticGrandTotal   SyntheticKind = "grand_total"
)

// Figures are the comparison values carried by data and synthetic nodes.
type Figures struct {
	AmountA float64
	AmountB float64
	WatA    float64
	NoiA    float64
	WatB    float64
	NoiB    float64
	WnA     float64
	WnB     float64
	DiffAbs float64
	DiffPct float64
}

// Node is one row of a statement tree.
type Node struct {
	Kind      NodeKind
	Synthetic SyntheticKind
	Key       string
	Name      string
	Level     int
	Bold      bool
	Figures
	Children []*Node
}

// HasFigures reports whether the node carries numbers. Spacers and headers
// only structure the presentation.
func (n *Node) HasFigures() bool {
	return n.Kind != NodeSpacer && n.Kind != NodeHeader
}

func newBranch(key, name string, level int) *Node {
	return &Node{Kind: NodeBranch, Key: key, Name: name, Level: level}
}

func newLeaf(key, name string) *Node {
	return &Node{Kind: NodeLeaf, Key: key, Name: name, Level: 3}
}

func newSpacer() *Node {
	return &Node{Kind: NodeSpacer, Level: 1}
}

func newHeader(name string) *Node {
	return &Node{Kind: NodeHeader, Name: name, Level: 1, Bold: true}
}

func newSynthetic(kind SyntheticKind, name string) *Node {
	return &Node{Kind: NodeSynthetic, Synthetic: kind, Name: name, Level: 1, Bold: true}
}

func (n *Node) add(amount float64, cc CostCenter, inA, inB bool) {
	if inA {
		n.AmountA += amount
		switch cc {
		case CostCenterWAT:
			n.WatA += amount
		case CostCenterNOI:
			n.NoiA += amount
		}
	}
	if inB {
		n.AmountB += amount
		switch cc {
		case CostCenterWAT:
			n.WatB += amount
		case CostCenterNOI:
			n.NoiB += amount
		}
	}
}

// absorb adds the raw sums of other into n.
func (n *Node) absorb(other *Node) {
	n.AmountA += other.AmountA
	n.AmountB += other.AmountB
	n.WatA += other.WatA
	n.NoiA += other.NoiA
	n.WatB += other.WatB
	n.NoiB += other.NoiB
}

// calcDiffs rounds the accumulated sums and derives the combined and
// difference fields. Runs once per node after accumulation.
func (n *Node) calcDiffs() {
	n.WatA = round2(n.WatA)
	n.NoiA = round2(n.NoiA)
	n.WatB = round2(n.WatB)
	n.NoiB = round2(n.NoiB)
	n.WnA = round2(n.WatA + n.NoiA)
	n.WnB = round2(n.WatB + n.NoiB)
	n.AmountA = round2(n.AmountA)
	n.AmountB = round2(n.AmountB)
	n.DiffAbs = round2(n.AmountB - n.AmountA)
	n.DiffPct = 0
	if n.AmountA != 0 {
		n.DiffPct = round2(n.DiffAbs / math.Abs(n.AmountA) * 100)
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

type nodeJSON struct {
	Kind      NodeKind      `json:"kind"`
	Synthetic SyntheticKind `json:"synthetic,omitempty"`
	Key       string        `json:"key,omitempty"`
	Name      string        `json:"name"`
	Level     int           `json:"level"`
	Bold      bool          `json:"bold"`
	AmountA   *float64      `json:"amountA"`
	AmountB   *float64      `json:"amountB"`
	WatA      *float64      `json:"watA"`
	NoiA      *float64      `json:"noiA"`
	WatB      *float64      `json:"watB"`
	NoiB      *float64      `json:"noiB"`
	WnA       *float64      `json:"wnA"`
	WnB       *float64      `json:"wnB"`
	DiffAbs   *float64      `json:"diffAbs"`
	DiffPct   *float64      `json:"diffPct"`
	Children  []*Node       `json:"children,omitempty"`
}

// MarshalJSON writes spacer and header figures as null.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		Kind:      n.Kind,
		Synthetic: n.Synthetic,
		Key:       n.Key,
		Name:      n.Name,
		Level:     n.Level,
		Bold:      n.Bold,
		Children:  n.Children,
	}
	if n.HasFigures() {
		f := n.Figures
		out.AmountA, out.AmountB = &f.AmountA, &f.AmountB
		out.WatA, out.NoiA = &f.WatA, &f.NoiA
		out.WatB, out.NoiB = &f.WatB, &f.NoiB
		out.WnA, out.WnB = &f.WnA, &f.WnB
		out.DiffAbs, out.DiffPct = &f.DiffAbs, &f.DiffPct
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a node written by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = Node{
		Kind:      in.Kind,
		Synthetic: in.Synthetic,
		Key:       in.Key,
		Name:      in.Name,
		Level:     in.Level,
		Bold:      in.Bold,
		Children:  in.Children,
		Figures: Figures{
			AmountA: deref(in.AmountA),
			AmountB: deref(in.AmountB),
			WatA:    deref(in.WatA),
			NoiA:    deref(in.NoiA),
			WatB:    deref(in.WatB),
			NoiB:    deref(in.NoiB),
			WnA:     deref(in.WnA),
			WnB:     deref(in.WnB),
			DiffAbs: deref(in.DiffAbs),
			DiffPct: deref(in.DiffPct),
		},
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

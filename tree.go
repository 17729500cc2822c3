package pcfg

import (
	"fmt"
	"strings"
)

// Node represents a single node in parsing tree. Leaves are terminals, or
// the epsilon marker under an epsilon production; internal nodes carry the
// rule that built them
type Node struct {
	// Children nodes
	Children []*Node

	// Symbol in current node
	Symbol Symbol

	// Span of the input covered by this node and its text
	Start, End int
	Text       string

	// Rule used to build the node, nil for leaves
	Rule *Rule
}

// Tree represents the parsing tree with the product of the weights of every
// rule used in it
type Tree struct {
	*Node
	Probability float64
}

// IsLeaf returns true for terminal and epsilon nodes
func (n *Node) IsLeaf() bool {
	return n.Rule == nil
}

// Weight is the probability of the production used to build the node, 1 for
// leaves
func (n *Node) Weight() float64 {
	if n.Rule == nil {
		return 1.0
	}
	return n.Rule.Weight
}

// Yield concatenates the terminals at the leaves
func (n *Node) Yield() string {
	var sb strings.Builder
	n.yield(&sb)
	return sb.String()
}

func (n *Node) yield(sb *strings.Builder) {
	if n.IsLeaf() {
		if !n.Symbol.IsEpsilon() {
			sb.WriteString(string(n.Symbol))
		}
		return
	}
	for _, child := range n.Children {
		child.yield(sb)
	}
}

// Rules lists the rules used in the subtree, in pre-order
func (n *Node) Rules() []*Rule {
	if n.IsLeaf() {
		return nil
	}
	rules := []*Rule{n.Rule}
	for _, child := range n.Children {
		rules = append(rules, child.Rules()...)
	}
	return rules
}

// Equal compares two trees structurally: same symbols, same rules and same
// spans everywhere
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Symbol != other.Symbol || n.Start != other.Start || n.End != other.End ||
		len(n.Children) != len(other.Children) {
		return false
	}
	if (n.Rule == nil) != (other.Rule == nil) {
		return false
	}
	if n.Rule != nil && n.Rule.key() != other.Rule.key() {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Bracketed renders the tree on one line, like "(S a (S (T ϵ)) b)"
func (n *Node) Bracketed() string {
	if n.IsLeaf() {
		return string(n.Symbol)
	}
	parts := []string{string(n.Symbol)}
	for _, child := range n.Children {
		parts = append(parts, child.Bracketed())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Convert the node to string
func (n *Node) String() string {
	return n.repr(0)
}

// repr get the string representation of the node recursively
func (n *Node) repr(level int) string {
	// Don't wrap with parentheses when it's a leaf node
	prefix := strings.Repeat(" ", level*2)
	if level != 0 {
		prefix = "\n" + prefix
	}

	if n.IsLeaf() {
		return prefix + string(n.Symbol)
	}

	childrenReprs := []string{}
	for _, child := range n.Children {
		childrenReprs = append(childrenReprs, child.repr(level+1))
	}
	return fmt.Sprintf(
		"%s(%s %s)",
		prefix,
		n.Symbol,
		strings.Join(childrenReprs, " "))
}

package pcfg

import (
	"fmt"
	"math"
	"strings"
)

// cykNode is the node used in CYK table. Each cell is a linked list holding
// the best log probability of every symbol deriving the span
type cykNode struct {
	symbol int
	logp   float64
	next   *cykNode
}

// nodePool is the pool that allocates and stores cykNode
const poolBatchSize = 4096

type nodePool struct {
	nodes  [][]cykNode
	row    int
	column int
}

// newNodePool create a new instance of nodePool
func newNodePool() *nodePool {
	return &nodePool{
		nodes: [][]cykNode{make([]cykNode, poolBatchSize)},
	}
}

// Get allocates a new cykNode from pool
func (pool *nodePool) Get() *cykNode {
	node := &pool.nodes[pool.row][pool.column]

	pool.column++
	if pool.column >= poolBatchSize {
		pool.nodes = append(pool.nodes, make([]cykNode, poolBatchSize))
		pool.row++
		pool.column = 0
	}
	return node
}

// insert records symbol in the cell, keeping the larger log probability when
// the symbol is already there
func (pool *nodePool) insert(cell **cykNode, symbol int, logp float64) {
	for node := *cell; node != nil; node = node.next {
		if node.symbol == symbol {
			if logp > node.logp {
				node.logp = logp
			}
			return
		}
	}

	// Insert into the head of linklist
	node := pool.Get()
	node.symbol = symbol
	node.logp = logp
	node.next = *cell
	*cell = node
}

// printRow prints a row in CYK table for debugging
func printRow(grammar *CNFGrammar, row []*cykNode, opts Options) {
	reprs := []string{}
	for i, node := range row {
		nodeReprs := []string{}
		for ; node != nil; node = node.next {
			nodeReprs = append(nodeReprs, string(grammar.Symbols[node.symbol]))
		}
		reprs = append(reprs, fmt.Sprintf("[%d: %s]", i, strings.Join(nodeReprs, " ")))
	}
	opts.debugf("%s", strings.Join(reprs, " "))
}

// CYK parses query using CYK algorithm. When query matches the grammar,
// returns the log probability of its most probable derivation
func CYK(grammar *CNFGrammar, query []Symbol) (float64, bool) {
	return cyk(grammar, query, Options{})
}

func cyk(grammar *CNFGrammar, query []Symbol, opts Options) (float64, bool) {
	if len(query) == 0 {
		if grammar.NullProbability > 0 {
			return math.Log(grammar.NullProbability), true
		}
		return math.Inf(-1), false
	}

	opts.debugf("======= CYK algorithm =======")
	pool := newNodePool()

	// table[length][start], row 0 stays empty
	table := make([][]*cykNode, len(query)+1)

	// Row 1: apply all terminal rules
	table[1] = make([]*cykNode, len(query))
	for i, tok := range query {
		for _, rule := range grammar.TerminalRules[tok] {
			pool.insert(&table[1][i], rule.Source, math.Log(rule.Probability))
		}
	}
	if opts.Debug {
		printRow(grammar, table[1], opts)
	}

	// Row 2 to row n: apply non-terminal rules
	// Length of span
	for length := 2; length <= len(query); length++ {
		columns := len(query) - length + 1
		table[length] = make([]*cykNode, columns)
		// Start of span
		for start := 0; start < columns; start++ {
			// Partition of span
			for partition := 1; partition < length; partition++ {
				for left := table[partition][start]; left != nil; left = left.next {
					rightRules, ok := grammar.Rules[left.symbol]
					if !ok {
						continue
					}
					right := table[length-partition][start+partition]
					for ; right != nil; right = right.next {
						// Ok, there are some rules A -> BC that B == left
						// and C == right
						for _, rule := range rightRules[right.symbol] {
							logp := math.Log(rule.Probability) + left.logp + right.logp
							pool.insert(&table[length][start], rule.Source, logp)
						}
					}
				}
			}
		}
		if opts.Debug {
			printRow(grammar, table[length], opts)
		}
	}

	// Find the root node
	for node := table[len(query)][0]; node != nil; node = node.next {
		if node.symbol == grammar.Start {
			return node.logp, true
		}
	}
	return math.Inf(-1), false
}

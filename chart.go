package pcfg

import (
	"fmt"
	"strings"
)

// justification is one way a non-terminal derives a span: the rule used and
// the offsets where each body symbol starts, followed by the span end. An
// epsilon rule over (i, i) has splits [i]
type justification struct {
	rule   *Rule
	splits []int
}

// chartCell holds the non-terminals deriving one span and, for each of them,
// every justification
type chartCell struct {
	derives []bool
	justs   map[int][]justification
}

// chart is the table of a single query. cells[start][length] covers the span
// (start, start+length)
type chart struct {
	grammar *Grammar
	tokens  []Symbol
	cells   [][]*chartCell
}

func newChart(grammar *Grammar, tokens []Symbol) *chart {
	c := &chart{
		grammar: grammar,
		tokens:  tokens,
		cells:   make([][]*chartCell, len(tokens)+1),
	}
	for start := range c.cells {
		c.cells[start] = make([]*chartCell, len(tokens)-start+1)
	}
	return c
}

// fill resolves every span by increasing length, so a span only ever reads
// shorter spans or itself
func (c *chart) fill() {
	n := len(c.tokens)
	for length := 0; length <= n; length++ {
		for start := 0; start+length <= n; start++ {
			c.fillCell(start, start+length)
		}
	}
}

// fillCell resolves the span (i, j). Rules whose other body symbols derive
// the empty string may depend on non-terminals of this very span, so symbols
// are added until a fixed point is reached
func (c *chart) fillCell(i, j int) {
	cell := &chartCell{
		derives: make([]bool, len(c.grammar.nonTerminals)),
		justs:   map[int][]justification{},
	}
	c.cells[i][j-i] = cell

	for changed := true; changed; {
		changed = false
		for _, rule := range c.grammar.rules {
			symbolId := c.grammar.index[rule.Left]
			if cell.derives[symbolId] {
				continue
			}
			found := false
			c.match(rule.Right, 0, i, j, nil, func([]int) bool {
				found = true
				return false
			})
			if found {
				cell.derives[symbolId] = true
				changed = true
			}
		}
	}

	// Every symbol of the span is known now, collect all the ways to get them
	for _, rule := range c.grammar.rules {
		symbolId := c.grammar.index[rule.Left]
		if !cell.derives[symbolId] {
			continue
		}
		splits := make([]int, 0, len(rule.Right)+1)
		c.match(rule.Right, 0, i, j, splits, func(splits []int) bool {
			cell.justs[symbolId] = append(cell.justs[symbolId], justification{
				rule:   rule,
				splits: append([]int(nil), splits...),
			})
			return true
		})
	}
}

// match enumerates the ways body[k:] derives the span (pos, end), calling
// visit with the split offsets of each. visit returns false to stop the
// enumeration, and so does match
func (c *chart) match(body []Symbol, k, pos, end int, splits []int, visit func([]int) bool) bool {
	if k == len(body) {
		if pos != end {
			return true
		}
		return visit(append(splits, end))
	}

	symbol := body[k]
	splits = append(splits, pos)
	if c.grammar.isTerminal[symbol] {
		if pos < end && c.tokens[pos] == symbol {
			return c.match(body, k+1, pos+1, end, splits, visit)
		}
		return true
	}

	symbolId := c.grammar.index[symbol]
	for next := pos; next <= end; next++ {
		if !c.derives(symbolId, pos, next) {
			continue
		}
		if !c.match(body, k+1, next, end, splits, visit) {
			return false
		}
	}
	return true
}

// derives reports whether the non-terminal derives the span (i, j). Spans
// not resolved yet derive nothing
func (c *chart) derives(symbolId, i, j int) bool {
	cell := c.cells[i][j-i]
	return cell != nil && cell.derives[symbolId]
}

// text returns the input covered by the span (i, j)
func (c *chart) text(i, j int) string {
	var sb strings.Builder
	for _, token := range c.tokens[i:j] {
		sb.WriteString(string(token))
	}
	return sb.String()
}

// print prints the chart row by row for debugging
func (c *chart) print(opts Options) {
	for length := 0; length <= len(c.tokens); length++ {
		reprs := []string{}
		for start := 0; start+length <= len(c.tokens); start++ {
			symbols := []string{}
			for symbolId, ok := range c.cells[start][length].derives {
				if ok {
					symbols = append(symbols, string(c.grammar.nonTerminals[symbolId]))
				}
			}
			reprs = append(reprs, fmt.Sprintf("[%d: %s]", start, strings.Join(symbols, " ")))
		}
		opts.debugf("chart length %d: %s", length, strings.Join(reprs, " "))
	}
}

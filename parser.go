package pcfg

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Parser decides membership and builds derivation trees for a grammar. It
// keeps no per-query state, so one Parser may serve several goroutines
type Parser struct {
	grammar *Grammar
	opts    Options

	cnfOnce    sync.Once
	cnfGrammar *CNFGrammar
}

// ParseResult is the outcome of one query. Trees is non-empty iff Member
type ParseResult struct {
	Input  string
	Member bool
	Trees  []*Tree

	// Truncated is set when more than Options.MaxTrees trees exist
	Truncated bool
}

// NewParser creates a new parser for grammar
func NewParser(grammar *Grammar, opts Options) *Parser {
	return &Parser{grammar: grammar, opts: opts}
}

// Parse parses input with default options
func Parse(grammar *Grammar, input string) (*ParseResult, error) {
	return NewParser(grammar, DefaultOptions()).Parse(input)
}

// Grammar returns the grammar of the parser
func (p *Parser) Grammar() *Grammar {
	return p.grammar
}

// tokenize splits input into one terminal per character. It fails when a
// character is outside the terminal alphabet
func (p *Parser) tokenize(input string) ([]Symbol, bool) {
	tokens := []Symbol{}
	for _, r := range input {
		token := Symbol(string(r))
		if !p.grammar.isTerminal[token] {
			return nil, false
		}
		tokens = append(tokens, token)
	}
	return tokens, true
}

// Parse decides whether input belongs to the language of the grammar and, if
// it does, returns its derivation trees. Non-membership is a normal result,
// the only error is ErrChartLimit when Options.MaxChartCells is set
func (p *Parser) Parse(input string) (*ParseResult, error) {
	result := &ParseResult{Input: input}
	tokens, ok := p.tokenize(input)
	if !ok {
		p.opts.debugf("%q has characters outside the terminal alphabet", input)
		return result, nil
	}

	if limit := p.opts.MaxChartCells; limit > 0 {
		spans := (len(tokens) + 1) * (len(tokens) + 2) / 2
		if cells := spans * len(p.grammar.nonTerminals); cells > limit {
			return nil, errors.Wrapf(ErrChartLimit, "%q needs %d cells, limit is %d", input, cells, limit)
		}
	}

	c := newChart(p.grammar, tokens)
	c.fill()
	if p.opts.Debug {
		c.print(p.opts)
	}

	start := p.grammar.index[p.grammar.start]
	if !c.derives(start, 0, len(tokens)) {
		return result, nil
	}

	root := newTreeBuilder(c).build(start, 0, len(tokens), p.opts.maxTrees())
	result.Member = true
	result.Trees = root.trees
	result.Truncated = root.more
	ensure(len(result.Trees) > 0, "member without derivation tree")
	return result, nil
}

// Best returns the most probable tree, the first one on ties. It returns nil
// when the input is not a member
func (r *ParseResult) Best() *Tree {
	var best *Tree
	for _, tree := range r.Trees {
		if best == nil || tree.Probability > best.Probability {
			best = tree
		}
	}
	return best
}

// spanKey identifies a chart entry: a non-terminal over a span
type spanKey struct {
	symbolId   int
	start, end int
}

// treeBuilder extracts trees from a filled chart. A derivation never enters
// the same chart entry twice on one root-to-leaf path, which keeps the set of
// trees finite for cyclic grammars and still contains a minimal derivation
// for every member.
//
// Every call gets a budget: no call builds more trees than it is allowed to
// return, and results are memoized per chart entry.
type treeBuilder struct {
	chart  *chart
	onPath map[spanKey]bool
	memo   map[spanKey][]*subtrees
}

func newTreeBuilder(c *chart) *treeBuilder {
	return &treeBuilder{
		chart:  c,
		onPath: map[spanKey]bool{},
		memo:   map[spanKey][]*subtrees{},
	}
}

// subtrees is the result of building one chart entry with some budget
type subtrees struct {
	trees []*Tree

	// more is set when trees were left out because of the budget
	more   bool
	budget int

	// touched holds the non-terminals over the same span that were entered,
	// or refused because they were on the path. blocked is the part of
	// touched that was on the path above the entry when it was built. A
	// result only depends on the path through blocked, since every other
	// entry of the path covers a larger span
	touched map[int]bool
	blocked map[int]bool
}

// reusable tells whether s can stand for a fresh build of key with budget
func (b *treeBuilder) reusable(key spanKey, s *subtrees, budget int) bool {
	if s.more && len(s.trees) < budget {
		return false
	}
	for symbolId := range s.touched {
		if b.onPath[spanKey{symbolId, key.start, key.end}] != s.blocked[symbolId] {
			return false
		}
	}
	return true
}

// take returns the first budget trees of s
func (s *subtrees) take(budget int) *subtrees {
	if len(s.trees) <= budget {
		return s
	}
	return &subtrees{
		trees:   s.trees[:budget],
		more:    true,
		budget:  budget,
		touched: s.touched,
		blocked: s.blocked,
	}
}

// build returns at most budget trees of the non-terminal over (i, j)
func (b *treeBuilder) build(symbolId, i, j, budget int) *subtrees {
	key := spanKey{symbolId, i, j}
	if b.onPath[key] {
		return &subtrees{touched: map[int]bool{symbolId: true}}
	}
	for _, s := range b.memo[key] {
		if b.reusable(key, s, budget) {
			return s.take(budget)
		}
	}

	result := &subtrees{budget: budget, touched: map[int]bool{symbolId: true}}
	b.onPath[key] = true
	cell := b.chart.cells[i][j-i]
	for _, just := range cell.justs[symbolId] {
		if len(result.trees) == budget {
			// Only find out whether one more tree exists
			if partials, _ := b.expand(just, 1, result.touched); len(partials) > 0 {
				result.more = true
				break
			}
			continue
		}

		partials, more := b.expand(just, budget-len(result.trees), result.touched)
		for _, p := range partials {
			result.trees = append(result.trees, &Tree{
				Node: &Node{
					Children: p.children,
					Symbol:   just.rule.Left,
					Start:    i,
					End:      j,
					Text:     b.chart.text(i, j),
					Rule:     just.rule,
				},
				Probability: just.rule.Weight * p.probability,
			})
		}
		if more {
			result.more = true
			break
		}
	}
	delete(b.onPath, key)

	result.blocked = map[int]bool{}
	for touched := range result.touched {
		if b.onPath[spanKey{touched, i, j}] {
			result.blocked[touched] = true
		}
	}
	b.remember(key, result)
	return result
}

// remember memoizes result. An entry built under the same path is replaced
// when result holds more trees
func (b *treeBuilder) remember(key spanKey, result *subtrees) {
	entries := b.memo[key]
	for k, s := range entries {
		if sameSet(s.blocked, result.blocked) {
			if !result.more || (s.more && len(result.trees) > len(s.trees)) {
				entries[k] = result
			}
			return
		}
	}
	b.memo[key] = append(entries, result)
}

func sameSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// partial is a prefix of the children of a node being built
type partial struct {
	children    []*Node
	probability float64
}

// expand builds at most budget combinations of children for one
// justification. It also reports whether combinations were left out. The
// non-terminals entered over the span of the justification are added to
// touched
func (b *treeBuilder) expand(just justification, budget int, touched map[int]bool) ([]partial, bool) {
	rule := just.rule
	if rule.IsEmpty() {
		start := just.splits[0]
		leaf := &Node{Symbol: Epsilon, Start: start, End: start}
		return []partial{{children: []*Node{leaf}, probability: 1.0}}, false
	}

	i, j := just.splits[0], just.splits[len(just.splits)-1]
	partials := []partial{{probability: 1.0}}
	more := false
	for k, symbol := range rule.Right {
		start, end := just.splits[k], just.splits[k+1]

		var options []*Tree
		if b.chart.grammar.isTerminal[symbol] {
			leaf := &Node{Symbol: symbol, Start: start, End: end, Text: string(symbol)}
			options = []*Tree{{Node: leaf, Probability: 1.0}}
		} else {
			sub := b.build(b.chart.grammar.index[symbol], start, end, budget)
			if start == i && end == j {
				for symbolId := range sub.touched {
					touched[symbolId] = true
				}
			}
			if len(sub.trees) == 0 {
				return nil, false
			}
			options = sub.trees
			more = more || sub.more
		}

		capacity := budget
		if len(partials) <= budget/len(options) {
			capacity = len(partials) * len(options)
		}
		next := make([]partial, 0, capacity)
	product:
		for _, p := range partials {
			for _, option := range options {
				if len(next) == budget {
					more = true
					break product
				}
				children := make([]*Node, len(p.children), len(p.children)+1)
				copy(children, p.children)
				next = append(next, partial{
					children:    append(children, option.Node),
					probability: p.probability * option.Probability,
				})
			}
		}
		partials = next
	}
	return partials, more
}

// Recognize decides membership only, through the CNF grammar and CYK
func (p *Parser) Recognize(input string) bool {
	_, ok := p.BestProbability(input)
	return ok
}

// BestProbability returns the probability of the most probable derivation of
// input, computed with CYK on the CNF grammar
func (p *Parser) BestProbability(input string) (float64, bool) {
	tokens, ok := p.tokenize(input)
	if !ok {
		return 0, false
	}
	logp, ok := cyk(p.CNF(), tokens, p.opts)
	if !ok {
		return 0, false
	}
	return math.Exp(logp), true
}

// CNF returns the grammar converted to Chomsky normal form, converting it on
// first use
func (p *Parser) CNF() *CNFGrammar {
	p.cnfOnce.Do(func() {
		p.cnfGrammar = convertToCNF(p.grammar, p.opts)
	})
	return p.cnfGrammar
}

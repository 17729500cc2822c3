package pcfg

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// weightTolerance is how far the weights of one head may sum away from 1
const weightTolerance = 1e-6

// Description is the declarative form of a grammar accepted by LoadGrammar.
//
// NonTerminals, Terminals and Start may be left empty, they are inferred from
// Rules: the non-terminals are the rule heads, the terminals are the other
// body symbols and the start symbol is the only non-terminal that never
// appears in a body.
type Description struct {
	Start        Symbol
	NonTerminals []Symbol
	Terminals    []Symbol
	Rules        []*Rule

	// Probabilistic makes the rule weights probabilities. Otherwise every
	// weight is forced to 1
	Probabilistic bool

	// Normalize divides the weights of each head by their sum instead of
	// rejecting heads whose weights do not sum to 1
	Normalize bool

	// Logger receives normalization warnings. nil means log.Default()
	Logger *log.Logger
}

// Grammar is a validated CFG or PCFG. It is immutable once built
type Grammar struct {
	start         Symbol
	nonTerminals  []Symbol
	terminals     []Symbol
	isNonTerminal map[Symbol]bool
	isTerminal    map[Symbol]bool
	index         map[Symbol]int
	rules         []*Rule
	productions   map[Symbol][]*Rule
	probabilistic bool
	nullable      map[Symbol]bool
}

// LoadGrammar validates desc and builds the grammar from it. It fails with a
// *ValidationError (recoverable with errors.As) when a rule references an
// undeclared symbol, a non-terminal has no production or, for a PCFG, the
// weights of some head do not sum to 1
func LoadGrammar(desc Description) (*Grammar, error) {
	if len(desc.Rules) == 0 {
		return nil, invalid("", "", "grammar has no rules")
	}

	g := &Grammar{
		isNonTerminal: map[Symbol]bool{},
		isTerminal:    map[Symbol]bool{},
		index:         map[Symbol]int{},
		productions:   map[Symbol][]*Rule{},
		probabilistic: desc.Probabilistic,
	}

	// Copy the rules so that later changes by the caller don't leak in
	for _, rule := range desc.Rules {
		if rule == nil {
			return nil, invalid("", "", "nil rule")
		}
		r := &Rule{Left: rule.Left, Weight: rule.Weight, Right: []Symbol{}}
		for _, symbol := range rule.Right {
			if !symbol.IsEpsilon() {
				r.Right = append(r.Right, symbol)
			}
		}
		g.rules = append(g.rules, r)
	}

	if err := g.declareNonTerminals(desc.NonTerminals); err != nil {
		return nil, err
	}
	if err := g.declareTerminals(desc.Terminals); err != nil {
		return nil, err
	}
	if err := g.checkRules(); err != nil {
		return nil, err
	}
	if err := g.checkWeights(desc); err != nil {
		return nil, err
	}
	if err := g.findStart(desc.Start); err != nil {
		return nil, err
	}

	g.nullable = g.findNullables()
	return g, nil
}

// declareNonTerminals records the declared non-terminals, or the rule heads
// when nothing is declared
func (g *Grammar) declareNonTerminals(declared []Symbol) error {
	if len(declared) == 0 {
		for _, rule := range g.rules {
			declared = append(declared, rule.Left)
		}
	}
	for _, symbol := range declared {
		switch {
		case symbol == "":
			return invalid("", "", "empty non-terminal name")
		case symbol.IsEpsilon():
			return invalid("", symbol, "epsilon is reserved and cannot be a non-terminal")
		case symbol.IsInternal():
			return invalid("", symbol, "names starting with <__ are reserved")
		}
		if g.isNonTerminal[symbol] {
			continue
		}
		g.isNonTerminal[symbol] = true
		g.index[symbol] = len(g.nonTerminals)
		g.nonTerminals = append(g.nonTerminals, symbol)
	}
	return nil
}

// declareTerminals records the declared terminals, or every body symbol that
// is not a non-terminal when nothing is declared. Epsilon is skipped, it is
// never part of the alphabet. An inferred terminal that is written like a
// non-terminal (upper-case letter or <name>) is an undeclared non-terminal
func (g *Grammar) declareTerminals(declared []Symbol) error {
	if len(declared) == 0 {
		for _, rule := range g.rules {
			for _, symbol := range rule.Right {
				if g.isNonTerminal[symbol] {
					continue
				}
				if symbol.looksNonTerminal() {
					return invalid(rule.Left, symbol, "undeclared non-terminal in production '%s'", rule.Body())
				}
				declared = append(declared, symbol)
			}
		}
	}
	for _, symbol := range declared {
		if symbol.IsEpsilon() || g.isTerminal[symbol] {
			continue
		}
		if g.isNonTerminal[symbol] {
			return invalid("", symbol, "declared both as terminal and non-terminal")
		}
		if !symbol.isSingleRune() {
			return invalid("", symbol, "terminals must be single characters")
		}
		g.isTerminal[symbol] = true
		g.terminals = append(g.terminals, symbol)
	}
	return nil
}

// checkRules verifies that every rule only uses declared symbols, that no
// production is repeated and that every non-terminal has a production
func (g *Grammar) checkRules() error {
	seen := map[string]bool{}
	for _, rule := range g.rules {
		if !g.isNonTerminal[rule.Left] {
			return invalid(rule.Left, "", "rule head is not a declared non-terminal")
		}
		for _, symbol := range rule.Right {
			if !g.isNonTerminal[symbol] && !g.isTerminal[symbol] {
				return invalid(rule.Left, symbol, "undeclared symbol in production '%s'", rule.Body())
			}
		}
		if seen[rule.key()] {
			return invalid(rule.Left, "", "duplicate production '%s'", rule.Body())
		}
		seen[rule.key()] = true
		g.productions[rule.Left] = append(g.productions[rule.Left], rule)
	}

	for _, symbol := range g.nonTerminals {
		if len(g.productions[symbol]) == 0 {
			return invalid(symbol, "", "non-terminal has no productions")
		}
	}
	return nil
}

// checkWeights enforces the PCFG invariant: weights in (0, 1] summing to 1
// for each head. In CFG mode every weight becomes 1
func (g *Grammar) checkWeights(desc Description) error {
	if !g.probabilistic {
		for _, rule := range g.rules {
			rule.Weight = 1.0
		}
		return nil
	}

	for _, symbol := range g.nonTerminals {
		sum := 0.0
		for _, rule := range g.productions[symbol] {
			w := rule.Weight
			if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 || (w > 1 && !desc.Normalize) {
				return invalid(symbol, "", "probability of '%s' is %s, expected a value in (0, 1]",
					rule.Body(), formatWeight(w))
			}
			sum += w
		}
		if nearlyEqual(sum, 1.0, weightTolerance) {
			continue
		}
		if !desc.Normalize {
			return invalid(symbol, "", "probabilities sum to %s, expected 1", formatWeight(sum))
		}
		Options{Logger: desc.Logger}.warnf("normalizing probabilities of %s, they sum to %s", symbol, formatWeight(sum))
		for _, rule := range g.productions[symbol] {
			rule.Weight /= sum
		}
	}
	return nil
}

// findStart checks the declared start symbol, or infers it as the only
// non-terminal that no rule produces
func (g *Grammar) findStart(start Symbol) error {
	if start != "" {
		if !g.isNonTerminal[start] {
			return invalid("", start, "start symbol is not a declared non-terminal")
		}
		g.start = start
		return nil
	}

	produced := map[Symbol]bool{}
	for _, rule := range g.rules {
		for _, symbol := range rule.Right {
			produced[symbol] = true
		}
	}
	candidates := []Symbol{}
	for _, symbol := range g.nonTerminals {
		if !produced[symbol] {
			candidates = append(candidates, symbol)
		}
	}
	if len(candidates) != 1 {
		return invalid("", "", "cannot infer the start symbol, %d candidates found", len(candidates))
	}
	g.start = candidates[0]
	return nil
}

// findNullables computes the nullable non-terminals with a fixed point: a
// symbol is nullable if one of its bodies only holds nullable symbols
func (g *Grammar) findNullables() map[Symbol]bool {
	nullable := map[Symbol]bool{}
	for changed := true; changed; {
		changed = false
		for _, rule := range g.rules {
			if nullable[rule.Left] {
				continue
			}
			allNullable := true
			for _, symbol := range rule.Right {
				if !nullable[symbol] {
					allNullable = false
					break
				}
			}
			if allNullable {
				nullable[rule.Left] = true
				changed = true
			}
		}
	}
	return nullable
}

// ParseGrammar parses grammar from string, one head per line:
//
//	S -> aSb | T
//	T -> Tb | ϵ
//
// PCFG bodies carry their probability, like "S -> aSb [0.4] | ϵ [0.6]".
// Empty lines and lines starting with '#' or ';' are skipped, except the
// directive ";!start: X" which sets the start symbol. Without it the head of
// the first rule is the start symbol
func ParseGrammar(grammarText string) (*Grammar, error) {
	desc := Description{}
	declared := map[Symbol]bool{}
	declare := func(symbol Symbol) {
		if !declared[symbol] {
			declared[symbol] = true
			desc.NonTerminals = append(desc.NonTerminals, symbol)
		}
	}

	weighted, total := 0, 0
	for _, line := range strings.Split(grammarText, "\n") {
		line = strings.TrimSpace(line)

		// Start command
		if strings.HasPrefix(line, ";!start:") {
			start := Symbol(strings.TrimSpace(line[len(";!start:"):]))
			if !start.looksNonTerminal() {
				return nil, errors.Errorf("ParseGrammar: unexpected start symbol: %s", start)
			}
			desc.Start = start
			continue
		}

		// Comments
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}

		// Parse this rule
		rules, w, err := parseRule(line)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			declare(rule.Left)
			for _, symbol := range rule.Right {
				if symbol.looksNonTerminal() {
					declare(symbol)
				}
			}
		}
		desc.Rules = append(desc.Rules, rules...)
		weighted += w
		total += len(rules)
	}

	if weighted != 0 && weighted != total {
		return nil, errors.Errorf(
			"ParseGrammar: %d of %d bodies carry a probability, expected all or none",
			weighted,
			total)
	}
	desc.Probabilistic = weighted != 0
	if desc.Start == "" && len(desc.Rules) > 0 {
		desc.Start = desc.Rules[0].Left
	}
	return LoadGrammar(desc)
}

// Start returns the start symbol
func (g *Grammar) Start() Symbol {
	return g.start
}

// IsProbabilistic returns true for a PCFG
func (g *Grammar) IsProbabilistic() bool {
	return g.probabilistic
}

// NonTerminals returns the non-terminals in declaration order
func (g *Grammar) NonTerminals() []Symbol {
	return append([]Symbol(nil), g.nonTerminals...)
}

// Terminals returns the terminal alphabet in declaration order
func (g *Grammar) Terminals() []Symbol {
	return append([]Symbol(nil), g.terminals...)
}

// Rules returns every production in declaration order
func (g *Grammar) Rules() []*Rule {
	return append([]*Rule(nil), g.rules...)
}

// Productions returns the productions of a non-terminal in declaration order
func (g *Grammar) Productions(symbol Symbol) []*Rule {
	return append([]*Rule(nil), g.productions[symbol]...)
}

// IsTerminal returns true for symbols of the terminal alphabet
func (g *Grammar) IsTerminal(symbol Symbol) bool {
	return g.isTerminal[symbol]
}

// IsNonTerminal returns true for declared non-terminals
func (g *Grammar) IsNonTerminal(symbol Symbol) bool {
	return g.isNonTerminal[symbol]
}

// IsNullable returns true if symbol derives the empty string
func (g *Grammar) IsNullable(symbol Symbol) bool {
	return g.nullable[symbol]
}

// Nullable returns the set of nullable non-terminals
func (g *Grammar) Nullable() map[Symbol]bool {
	nullable := make(map[Symbol]bool, len(g.nullable))
	for symbol := range g.nullable {
		nullable[symbol] = true
	}
	return nullable
}

// Reachable returns the non-terminals that appear in some derivation from
// the start symbol
func (g *Grammar) Reachable() map[Symbol]bool {
	graph := NewDirectedGraph()
	graph.AddVertex(Vertex(g.start))
	for _, rule := range g.rules {
		for _, symbol := range rule.Right {
			if g.isNonTerminal[symbol] {
				graph.Add(Vertex(rule.Left), Vertex(symbol), rule.Weight)
			}
		}
	}

	reachable := map[Symbol]bool{}
	for _, v := range graph.DFS(Vertex(g.start), map[Vertex]bool{}) {
		reachable[Symbol(v)] = true
	}
	return reachable
}

// IsCNF checks if the grammar is in Chomsky normal form, that is every rule
// is either A -> a or A -> BC
func (g *Grammar) IsCNF() bool {
	for _, rule := range g.rules {
		switch {
		case rule.IsUnary():
			if !g.isTerminal[rule.Right[0]] {
				return false
			}
		case rule.IsBinary():
			if !g.isNonTerminal[rule.Right[0]] || !g.isNonTerminal[rule.Right[1]] {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// orderedNonTerminals lists the start symbol first, then the rest in
// declaration order
func (g *Grammar) orderedNonTerminals() []Symbol {
	ordered := []Symbol{g.start}
	for _, symbol := range g.nonTerminals {
		if symbol != g.start {
			ordered = append(ordered, symbol)
		}
	}
	return ordered
}

// Notation renders the rules in the text notation read by ParseGrammar
func (g *Grammar) Notation() string {
	lines := []string{}
	if g.nonTerminals[0] != g.start {
		lines = append(lines, ";!start: "+string(g.start))
	}
	for _, symbol := range g.nonTerminals {
		bodies := []string{}
		for _, rule := range g.productions[symbol] {
			if g.probabilistic {
				bodies = append(bodies, rule.Body()+" ["+formatWeight(rule.Weight)+"]")
			} else {
				bodies = append(bodies, rule.Body())
			}
		}
		lines = append(lines, fmt.Sprintf("%s -> %s", symbol, strings.Join(bodies, " | ")))
	}
	return strings.Join(lines, "\n") + "\n"
}

// String shows the grammar in a readable format
func (g *Grammar) String() string {
	kind := "CFG"
	if g.probabilistic {
		kind = "PCFG"
	}

	var sb strings.Builder
	sb.WriteString(kind + "(\n")
	for _, symbol := range g.orderedNonTerminals() {
		bodies := []string{}
		for _, rule := range g.productions[symbol] {
			if g.probabilistic {
				bodies = append(bodies, rule.Body()+" ["+formatWeight(rule.Weight)+"]")
			} else {
				bodies = append(bodies, rule.Body())
			}
		}
		fmt.Fprintf(&sb, "\t%s --> %s\n", symbol, strings.Join(bodies, " | "))
	}
	sb.WriteString(")\n")

	fmt.Fprintf(&sb, "\n* Start Symbol: %s", g.start)
	fmt.Fprintf(&sb, "\n* Terminal Symbols: {%s}", joinSymbols(g.terminals))
	fmt.Fprintf(&sb, "\n* Non-Terminal Symbols: {%s}", joinSymbols(g.orderedNonTerminals()))
	return sb.String()
}

func joinSymbols(symbols []Symbol) string {
	texts := make([]string, len(symbols))
	for i, symbol := range symbols {
		texts[i] = string(symbol)
	}
	return strings.Join(texts, ", ")
}

package pcfg

import (
	"strings"
)

// CNFRuleBase is the base struct for CNFRule and CNFTerminalRule
type CNFRuleBase struct {
	// SymbolId in the left of rule
	Source int

	// Probability of this rule
	Probability float64
}

// CNFRule stores a non-terminal rule in CNF grammar. All of the symbols in this
// rule are represented by symbol-id
type CNFRule struct {
	CNFRuleBase

	// SymbolIds in the right of rule
	FirstTarget  int
	SecondTarget int
}

// CNFTerminalRule stores the terminal rule in the grammar
type CNFTerminalRule struct {
	CNFRuleBase

	// Terminal symbol in this rule
	TerminalTarget Symbol
}

// CNFGrammar stores the grammar in Chomsky normal form
type CNFGrammar struct {
	// Map from symbol name to its id
	SymbolIds map[Symbol]int

	// Map from symbolId to symbol name
	Symbols []Symbol

	// Map from terminal symbol to the rules producing it
	TerminalRules map[Symbol][]*CNFTerminalRule

	// Map from targets to rule. For example, rule: A -> BC. It maps (B, C) to
	// the rule itself
	Rules map[int]map[int][]*CNFRule

	// Start symbol id
	Start int

	// NullProbability is the probability of the best derivation of the empty
	// string from the start symbol, 0 if there is none
	NullProbability float64

	terminals map[Symbol]bool
	rules     []*Rule
}

// NewCNFGrammar creates a new instance of CNFGrammar over the terminal
// alphabet
func NewCNFGrammar(start Symbol, terminals []Symbol) *CNFGrammar {
	g := &CNFGrammar{
		SymbolIds:     map[Symbol]int{},
		Symbols:       []Symbol{},
		Rules:         map[int]map[int][]*CNFRule{},
		TerminalRules: map[Symbol][]*CNFTerminalRule{},
		terminals:     map[Symbol]bool{},
	}
	for _, terminal := range terminals {
		g.terminals[terminal] = true
	}
	g.Start = g.getSymbolId(start)
	return g
}

// getSymbolId get the id of given symbol. If the symbol not exist in grammar
// insert a new one
func (g *CNFGrammar) getSymbolId(s Symbol) int {
	if symbolId, ok := g.SymbolIds[s]; ok {
		return symbolId
	}
	symbolId := len(g.Symbols)
	g.SymbolIds[s] = symbolId
	g.Symbols = append(g.Symbols, s)
	return symbolId
}

// AddRule adds a new rule into grammar. The rule has to be A -> a or A -> BC
func (g *CNFGrammar) AddRule(rule *Rule) {
	ensure(
		rule.IsBinary() || (rule.IsUnary() && g.terminals[rule.Right[0]]),
		"CNFGrammar::AddRule: invalid rule "+rule.String())
	ensure(
		rule.IsUnary() || !g.terminals[rule.Right[0]] && !g.terminals[rule.Right[1]],
		"CNFGrammar::AddRule: invalid rule "+rule.String())
	g.rules = append(g.rules, rule)

	if rule.IsUnary() {
		// It's a terminal rule, like A -> a
		sourceId := g.getSymbolId(rule.Left)
		terminalSymbol := rule.Right[0]
		g.TerminalRules[terminalSymbol] = append(
			g.TerminalRules[terminalSymbol],
			&CNFTerminalRule{
				CNFRuleBase: CNFRuleBase{
					Source:      sourceId,
					Probability: rule.Weight,
				},
				TerminalTarget: terminalSymbol,
			})
		return
	}

	sourceId := g.getSymbolId(rule.Left)
	firstTargetId := g.getSymbolId(rule.Right[0])
	secondTargetId := g.getSymbolId(rule.Right[1])

	cnfRule := &CNFRule{
		CNFRuleBase: CNFRuleBase{
			Source:      sourceId,
			Probability: rule.Weight,
		},
		FirstTarget:  firstTargetId,
		SecondTarget: secondTargetId,
	}

	if _, ok := g.Rules[firstTargetId]; !ok {
		g.Rules[firstTargetId] = map[int][]*CNFRule{}
	}
	g.Rules[firstTargetId][secondTargetId] = append(
		g.Rules[firstTargetId][secondTargetId],
		cnfRule)
}

// RuleList returns the rules in the order they were added
func (g *CNFGrammar) RuleList() []*Rule {
	return append([]*Rule(nil), g.rules...)
}

// IsTerminal returns true for symbols of the terminal alphabet
func (g *CNFGrammar) IsTerminal(s Symbol) bool {
	return g.terminals[s]
}

// String prints one rule per line
func (g *CNFGrammar) String() string {
	lines := make([]string, len(g.rules))
	for i, rule := range g.rules {
		lines[i] = rule.String()
	}
	return strings.Join(lines, "\n")
}

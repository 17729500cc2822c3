package pcfg

import (
	"fmt"
	"math"
	"sort"
)

//
// Here are the functions that used to convert a grammar to CNF
// According to paper: http://www.cs.nyu.edu/courses/fall07/V22.0453-001/cnf.pdf
//
// Weights follow the most probable derivation: a rule that replaces a chain
// of rules gets the largest product among the chains it stands for. CYK on
// the result gives the probability of the best parse, and membership is
// unchanged except for the empty string, which is kept in NullProbability.
//

// cnfConverter holds the rules while they are rewritten step by step
type cnfConverter struct {
	grammar *Grammar
	opts    Options
	rules   []*Rule
	count   int
}

// ConvertToCNF converts the grammar to Chomsky normal form
func ConvertToCNF(grammar *Grammar) *CNFGrammar {
	return convertToCNF(grammar, Options{})
}

func convertToCNF(grammar *Grammar, opts Options) *CNFGrammar {
	c := &cnfConverter{grammar: grammar, opts: opts}
	for _, rule := range grammar.rules {
		c.rules = append(c.rules, rule.clone())
	}
	c.print("Original Grammar")

	c.addTermVariables()
	c.print("Add Term Variables")

	c.reduceHigherRules()
	c.print("Reduce Higher Rules")

	nullables := c.findNullables()
	c.removeNullRules(nullables)
	c.print("Remove Null Rules")

	c.removeUnitRules()
	c.print("Remove Unit Rules")

	c.removeUnreachableRules()
	c.print("Remove Unreachable Rules")

	cnfGrammar := NewCNFGrammar(grammar.start, grammar.terminals)
	cnfGrammar.NullProbability = nullables[grammar.start]
	for _, rule := range c.rules {
		cnfGrammar.AddRule(rule)
	}
	return cnfGrammar
}

// print dumps the rules in debug mode
func (c *cnfConverter) print(step string) {
	if !c.opts.Debug {
		return
	}
	c.opts.debugf("======= %s =======", step)
	for _, rule := range c.rules {
		c.opts.debugf("%s", rule)
	}
}

// newSymbol creates a fresh internal non-terminal
func (c *cnfConverter) newSymbol(kind string, from Symbol) Symbol {
	c.count++
	return InternalSymbol(fmt.Sprintf("%s_%s_%d", kind, from.Text(), c.count))
}

func (c *cnfConverter) isTerminal(s Symbol) bool {
	return c.grammar.isTerminal[s]
}

// addTermVariables eliminates terminal symbols except in right hand sides of
// size 1
func (c *cnfConverter) addTermVariables() {
	terminalSymbols := map[Symbol]Symbol{}
	added := []*Rule{}
	for _, rule := range c.rules {
		if len(rule.Right) < 2 {
			continue
		}
		for i, symbol := range rule.Right {
			if !c.isTerminal(symbol) {
				continue
			}
			nonTerminalSymbol, ok := terminalSymbols[symbol]
			if !ok {
				// Add the corresponded non-terminal symbol if not exist
				nonTerminalSymbol = c.newSymbol("t", symbol)
				terminalSymbols[symbol] = nonTerminalSymbol
				added = append(added, &Rule{
					Left:   nonTerminalSymbol,
					Right:  []Symbol{symbol},
					Weight: 1.0,
				})
			}
			rule.Right[i] = nonTerminalSymbol
		}
	}
	c.rules = append(c.rules, added...)
}

// reduceHigherRules converts rule with right-hand size larger than 2 into a set
// of binary rules:
//
//	U -> W_0 X_1, X_1 -> W_1 X_2, ..., X_k-2 -> W_k-2 W_k-1
func (c *cnfConverter) reduceHigherRules() {
	binaryRules := []*Rule{}
	for _, rule := range c.rules {
		if len(rule.Right) <= 2 {
			binaryRules = append(binaryRules, rule)
			continue
		}

		k := len(rule.Right)
		left, weight := rule.Left, rule.Weight
		for i := 0; i < k-2; i++ {
			x := c.newSymbol("x", rule.Left)
			binaryRules = append(binaryRules, &Rule{
				Left:   left,
				Right:  []Symbol{rule.Right[i], x},
				Weight: weight,
			})
			left, weight = x, 1.0
		}
		binaryRules = append(binaryRules, &Rule{
			Left:   left,
			Right:  []Symbol{rule.Right[k-2], rule.Right[k-1]},
			Weight: weight,
		})
	}
	c.rules = binaryRules
}

// findNullables finds nullable symbols and the probability of their best
// derivation of the empty string, assuming all rules have at most 2 symbols
// on the right. Weights never exceed 1, so a cycle can't improve a
// derivation and the iteration stops
func (c *cnfConverter) findNullables() map[Symbol]float64 {
	nullable := map[Symbol]float64{}
	for changed := true; changed; {
		changed = false
		for _, rule := range c.rules {
			nullProb := rule.Weight
			for _, symbol := range rule.Right {
				nullProb *= nullable[symbol]
			}
			if nullProb > nullable[rule.Left] {
				nullable[rule.Left] = nullProb
				changed = true
			}
		}
	}
	return nullable
}

// removeNullRules removes null rules (A -> ϵ) from grammar. For rule A -> BC,
// if B is nullable, add new rule A -> C, and the other way around
func (c *cnfConverter) removeNullRules(nullables map[Symbol]float64) {
	added := []*Rule{}
	for _, rule := range c.rules {
		if !rule.IsBinary() {
			continue
		}
		A, B, C := rule.Left, rule.Right[0], rule.Right[1]
		if p := nullables[B]; p > 0 {
			added = append(added, &Rule{Left: A, Right: []Symbol{C}, Weight: rule.Weight * p})
		}
		if p := nullables[C]; p > 0 {
			added = append(added, &Rule{Left: A, Right: []Symbol{B}, Weight: rule.Weight * p})
		}
	}

	rules := []*Rule{}
	for _, rule := range append(c.rules, added...) {
		// Remove empty rules and rules like X -> X
		if rule.IsEmpty() || (rule.IsUnary() && rule.Left == rule.Right[0]) {
			continue
		}
		rules = append(rules, rule)
	}
	c.rules = mergeRules(rules)
}

// removeUnitRules removes unit rules like A -> B. For every pair A, B where A
// reaches B through unit rules, the rules of B are copied to A with the
// probability of the most probable chain, found by shortest path over -log p
func (c *cnfConverter) removeUnitRules() {
	graph := NewDirectedGraph()
	rules := []*Rule{}
	occursLeft := map[Symbol][]*Rule{}
	for _, rule := range c.rules {
		if rule.IsUnary() && !c.isTerminal(rule.Right[0]) {
			// -math.Log(): Some tricks to apply shortPath in probability
			graph.Add(Vertex(rule.Left), Vertex(rule.Right[0]), -math.Log(rule.Weight))
			continue
		}
		rules = append(rules, rule)
		occursLeft[rule.Left] = append(occursLeft[rule.Left], rule)
	}

	distance := graph.Floyd()
	vertices := sortedVertices(graph)
	for _, s := range vertices {
		for _, t := range vertices {
			negativeLogP := distance[s][t]
			if s == t || math.IsInf(negativeLogP, 1) {
				continue
			}
			transProb := math.Exp(-negativeLogP)
			for _, targetRule := range occursLeft[Symbol(t)] {
				rules = append(rules, &Rule{
					Left:   Symbol(s),
					Right:  targetRule.Right,
					Weight: transProb * targetRule.Weight,
				})
			}
		}
	}
	c.rules = mergeRules(rules)
}

// removeUnreachableRules drops the rules of symbols the start symbol never
// reaches
func (c *cnfConverter) removeUnreachableRules() {
	graph := NewDirectedGraph()
	graph.AddVertex(Vertex(c.grammar.start))
	for _, rule := range c.rules {
		for _, symbol := range rule.Right {
			if !c.isTerminal(symbol) {
				graph.Add(Vertex(rule.Left), Vertex(symbol), rule.Weight)
			}
		}
	}
	reachable := map[Vertex]bool{}
	graph.DFS(Vertex(c.grammar.start), reachable)

	rules := []*Rule{}
	for _, rule := range c.rules {
		if reachable[Vertex(rule.Left)] {
			rules = append(rules, rule)
		}
	}
	c.rules = rules
}

// mergeRules keeps one rule per (left, right) pair with the largest weight,
// in order of first appearance
func mergeRules(rules []*Rule) []*Rule {
	merged := []*Rule{}
	byKey := map[string]*Rule{}
	for _, rule := range rules {
		if existing, ok := byKey[rule.key()]; ok {
			existing.Weight = math.Max(existing.Weight, rule.Weight)
			continue
		}
		rule = rule.clone()
		byKey[rule.key()] = rule
		merged = append(merged, rule)
	}
	return merged
}

func sortedVertices(graph *DirectedGraph) []Vertex {
	vertices := make([]Vertex, 0, len(graph.Vertices))
	for v := range graph.Vertices {
		vertices = append(vertices, v)
	}
	sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })
	return vertices
}

package pcfg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cnfTestGrammars = []string{
	balancedGrammar,
	"S -> SS [0.4] | a [0.6]",
	"S -> aSb [0.5] | T [0.5]\nT -> Tb [0.3] | ϵ [0.7]",
	"A -> B [0.5] | a [0.5]\nB -> A [0.4] | b [0.6]",
	"S -> SS [0.3] | a [0.5] | ϵ [0.2]",
	"S -> SA [0.3] | AS [0.2] | a [0.5]\nA -> a [1]",
	"S -> aSc [0.5] | B [0.5]\nB -> Bb [0.3] | ϵ [0.3] | Sb [0.4]",
	"S -> AbA [1]\nA -> aA [0.5] | ϵ [0.5]",
	"<e> -> <e>+<t> [0.4] | <t> [0.6]\n<t> -> x [0.7] | (<e>) [0.3]",
	"S -> a | U\nU -> Ub\nV -> v",
}

// allStrings lists every string over alphabet up to maxLen characters
func allStrings(alphabet []Symbol, maxLen int) []string {
	strs := []string{""}
	last := []string{""}
	for n := 1; n <= maxLen; n++ {
		next := []string{}
		for _, s := range last {
			for _, a := range alphabet {
				next = append(next, s+string(a))
			}
		}
		strs = append(strs, next...)
		last = next
	}
	return strs
}

func TestConvertToCNFShape(t *testing.T) {
	for _, text := range cnfTestGrammars {
		g := mustParseGrammar(t, text)
		cnf := ConvertToCNF(g)

		assert.Equal(t, g.Start(), cnf.Symbols[cnf.Start], text)
		for _, r := range cnf.RuleList() {
			if r.IsUnary() {
				assert.True(t, cnf.IsTerminal(r.Right[0]), "%s: %s", text, r)
				continue
			}
			require.True(t, r.IsBinary(), "%s: %s", text, r)
			assert.False(t, cnf.IsTerminal(r.Right[0]), "%s: %s", text, r)
			assert.False(t, cnf.IsTerminal(r.Right[1]), "%s: %s", text, r)
			assert.LessOrEqual(t, r.Weight, 1.0, "%s: %s", text, r)
			assert.Greater(t, r.Weight, 0.0, "%s: %s", text, r)
		}
	}
}

func TestConvertToCNFInternalSymbols(t *testing.T) {
	g := mustParseGrammar(t, "S -> abS | bbA | ϵ\nA -> aaa")
	cnf := ConvertToCNF(g)

	seen := map[Symbol]bool{}
	for _, s := range cnf.Symbols {
		assert.False(t, seen[s], "duplicate symbol %s", s)
		seen[s] = true
		if !g.IsNonTerminal(s) {
			assert.True(t, s.IsInternal(), "%s is neither declared nor internal", s)
		}
	}
	assert.Equal(t, 1.0, cnf.NullProbability)
	assert.NotEmpty(t, cnf.String())
}

func TestCYKNullProbability(t *testing.T) {
	g := mustParseGrammar(t, "S -> aSb [0.5] | T [0.5]\nT -> Tb [0.3] | ϵ [0.7]")
	cnf := ConvertToCNF(g)
	assert.InDelta(t, 0.35, cnf.NullProbability, 1e-12)

	logp, ok := CYK(cnf, nil)
	require.True(t, ok)
	assert.InDelta(t, math.Log(0.35), logp, 1e-12)

	logp, ok = CYK(cnf, []Symbol{"a", "b"})
	require.True(t, ok)
	assert.InDelta(t, math.Log(0.175), logp, 1e-12)

	_, ok = CYK(cnf, []Symbol{"b", "a"})
	assert.False(t, ok)
}

func TestCYKUnitCycle(t *testing.T) {
	p := NewParser(mustParseGrammar(t, "A -> B [0.5] | a [0.5]\nB -> A [0.4] | b [0.6]"), DefaultOptions())

	prob, ok := p.BestProbability("a")
	require.True(t, ok)
	assert.InDelta(t, 0.5, prob, 1e-12)

	prob, ok = p.BestProbability("b")
	require.True(t, ok)
	assert.InDelta(t, 0.3, prob, 1e-12)

	_, ok = p.BestProbability("ab")
	assert.False(t, ok)
	_, ok = p.BestProbability("c")
	assert.False(t, ok)
}

func TestCYKNullableCycle(t *testing.T) {
	p := NewParser(mustParseGrammar(t, "S -> SS [0.3] | a [0.5] | ϵ [0.2]"), DefaultOptions())

	prob, ok := p.BestProbability("aa")
	require.True(t, ok)
	assert.InDelta(t, 0.075, prob, 1e-12)

	prob, ok = p.BestProbability("a")
	require.True(t, ok)
	assert.InDelta(t, 0.5, prob, 1e-12)

	prob, ok = p.BestProbability("")
	require.True(t, ok)
	assert.InDelta(t, 0.2, prob, 1e-12)
}

// The chart parser and CYK on the converted grammar must agree on membership
// and on the probability of the best derivation
func TestCYKMatchesChart(t *testing.T) {
	for _, text := range cnfTestGrammars {
		g := mustParseGrammar(t, text)
		p := NewParser(g, DefaultOptions())

		maxLen := 5
		if len(g.Terminals()) > 3 {
			maxLen = 4
		}
		for _, input := range allStrings(g.Terminals(), maxLen) {
			result := mustParse(t, p, input)
			require.False(t, result.Truncated, "%s: %q", text, input)

			prob, ok := p.BestProbability(input)
			require.Equal(t, result.Member, ok, "%s: %q", text, input)
			assert.Equal(t, ok, p.Recognize(input))
			if !ok {
				continue
			}
			assert.InDelta(t, result.Best().Probability, prob, 1e-9, "%s: %q", text, input)
		}
	}
}

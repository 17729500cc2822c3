package pcfg

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const balancedGrammar = `
# i <= j
S -> aSb | T
T -> Tb | ϵ
`

func mustParseGrammar(t *testing.T, text string) *Grammar {
	t.Helper()
	g, err := ParseGrammar(text)
	require.NoError(t, err)
	return g
}

func rule(left Symbol, weight float64, right ...Symbol) *Rule {
	return &Rule{Left: left, Right: right, Weight: weight}
}

func TestParseGrammar(t *testing.T) {
	g := mustParseGrammar(t, balancedGrammar)

	assert.Equal(t, Symbol("S"), g.Start())
	assert.False(t, g.IsProbabilistic())
	assert.Equal(t, []Symbol{"S", "T"}, g.NonTerminals())
	assert.Equal(t, []Symbol{"a", "b"}, g.Terminals())
	assert.True(t, g.IsTerminal("a"))
	assert.True(t, g.IsNonTerminal("T"))
	assert.False(t, g.IsTerminal("ϵ"))

	productions := g.Productions("T")
	require.Len(t, productions, 2)
	assert.Equal(t, "T -> Tb [1]", productions[0].String())
	assert.True(t, productions[1].IsEmpty())
	assert.Len(t, g.Rules(), 4)
}

func TestParseGrammarPCFG(t *testing.T) {
	g := mustParseGrammar(t, `
		; weather grammar
		<s> ::= <w> i <c> [0.7] | <c> <w> [0.3]
		<w> -> w [1]
		<c> -> s [0.5] | b [0.5]
	`)
	assert.True(t, g.IsProbabilistic())
	assert.Equal(t, Symbol("<s>"), g.Start())
	assert.Equal(t, []Symbol{"<s>", "<w>", "<c>"}, g.NonTerminals())
	assert.Equal(t, 0.7, g.Productions("<s>")[0].Weight)
}

func TestParseGrammarErrors(t *testing.T) {
	_, err := ParseGrammar("S -> a [0.5] | b")
	assert.Error(t, err, "mixed weighted and unweighted bodies")

	_, err = ParseGrammar(";!start: s\nS -> a")
	assert.Error(t, err, "terminal start symbol")

	_, err = ParseGrammar("S -> a\nb -> c")
	assert.Error(t, err, "terminal head")

	_, err = ParseGrammar("S -> aA")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "A has no production")
	assert.Equal(t, Symbol("A"), verr.Head)
}

func TestParseGrammarStartDirective(t *testing.T) {
	g := mustParseGrammar(t, ";!start: T\nS -> aSb | T\nT -> Tb | ϵ")
	assert.Equal(t, Symbol("T"), g.Start())

	again := mustParseGrammar(t, g.Notation())
	assert.Equal(t, Symbol("T"), again.Start())
}

func TestNotationRoundTrip(t *testing.T) {
	texts := []string{
		balancedGrammar,
		"S -> SS [0.4] | a [0.6]",
		"<e> -> <e>+<t> | <t>\n<t> -> x | (<e>)",
	}
	for _, text := range texts {
		g := mustParseGrammar(t, text)
		again := mustParseGrammar(t, g.Notation())
		assert.Equal(t, g.Notation(), again.Notation())
		assert.Equal(t, g.String(), again.String())
	}
}

func TestGrammarString(t *testing.T) {
	g := mustParseGrammar(t, balancedGrammar)
	expected := "CFG(\n" +
		"\tS --> aSb | T\n" +
		"\tT --> Tb | ϵ\n" +
		")\n" +
		"\n* Start Symbol: S" +
		"\n* Terminal Symbols: {a, b}" +
		"\n* Non-Terminal Symbols: {S, T}"
	assert.Equal(t, expected, g.String())

	p := mustParseGrammar(t, "S -> SS [0.4] | a [0.6]")
	assert.Contains(t, p.String(), "PCFG(\n\tS --> SS [0.4] | a [0.6]\n)")
}

func TestLoadGrammarInfersDeclarations(t *testing.T) {
	g, err := LoadGrammar(Description{
		Rules: []*Rule{
			rule("S", 0, "A", "B"),
			rule("A", 0, "a"),
			rule("B", 0, "b", "ϵ"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Symbol("S"), g.Start())
	assert.Equal(t, []Symbol{"S", "A", "B"}, g.NonTerminals())
	assert.Equal(t, []Symbol{"a", "b"}, g.Terminals())
	assert.Equal(t, []Symbol{"b"}, g.Productions("B")[0].Right, "epsilon is stripped from bodies")
	for _, r := range g.Rules() {
		assert.Equal(t, 1.0, r.Weight)
	}
}

func TestLoadGrammarCopiesRules(t *testing.T) {
	rules := []*Rule{rule("S", 0, "a")}
	g, err := LoadGrammar(Description{Start: "S", Rules: rules})
	require.NoError(t, err)

	rules[0].Right[0] = "b"
	assert.Equal(t, []Symbol{"a"}, g.Productions("S")[0].Right)
}

func TestLoadGrammarValidation(t *testing.T) {
	tests := []struct {
		name   string
		desc   Description
		head   Symbol
		symbol Symbol
	}{
		{
			name: "no rules",
			desc: Description{Start: "S"},
		},
		{
			name: "non-terminal without production",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S", "A"},
				Rules:        []*Rule{rule("S", 1, "a", "A")},
			},
			head: "A",
		},
		{
			name: "undeclared symbol",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S"},
				Terminals:    []Symbol{"a"},
				Rules:        []*Rule{rule("S", 1, "a", "b")},
			},
			head:   "S",
			symbol: "b",
		},
		{
			name: "undeclared non-terminal inferred as terminal",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S"},
				Rules:        []*Rule{rule("S", 1, "a", "U")},
			},
			head:   "S",
			symbol: "U",
		},
		{
			name: "undeclared non-terminal without declarations",
			desc: Description{
				Rules: []*Rule{rule("S", 1, "a", "<b>")},
			},
			head:   "S",
			symbol: "<b>",
		},
		{
			name: "undeclared head",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S"},
				Rules:        []*Rule{rule("S", 1, "a"), rule("X", 1, "a")},
			},
			head: "X",
		},
		{
			name: "probabilities do not sum to one",
			desc: Description{
				Start:         "S",
				Probabilistic: true,
				Rules:         []*Rule{rule("S", 0.5, "a"), rule("S", 0.4, "b")},
			},
			head: "S",
		},
		{
			name: "zero probability",
			desc: Description{
				Start:         "S",
				Probabilistic: true,
				Rules:         []*Rule{rule("S", 1, "a"), rule("S", 0, "b")},
			},
			head: "S",
		},
		{
			name: "probability above one",
			desc: Description{
				Start:         "S",
				Probabilistic: true,
				Rules:         []*Rule{rule("S", 1.5, "a"), rule("S", -0.5, "b")},
			},
			head: "S",
		},
		{
			name: "start symbol not declared",
			desc: Description{
				Start: "X",
				Rules: []*Rule{rule("S", 1, "a")},
			},
			symbol: "X",
		},
		{
			name: "start symbol cannot be inferred",
			desc: Description{
				Rules: []*Rule{rule("S", 1, "a", "S"), rule("S", 1, "a")},
			},
		},
		{
			name: "duplicate production",
			desc: Description{
				Start: "S",
				Rules: []*Rule{rule("S", 1, "a"), rule("S", 1, "a")},
			},
			head: "S",
		},
		{
			name: "multi-character terminal",
			desc: Description{
				Start:     "S",
				Terminals: []Symbol{"ab"},
				Rules:     []*Rule{rule("S", 1, "ab")},
			},
			symbol: "ab",
		},
		{
			name: "terminal and non-terminal overlap",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S"},
				Terminals:    []Symbol{"S", "a"},
				Rules:        []*Rule{rule("S", 1, "a")},
			},
			symbol: "S",
		},
		{
			name: "epsilon as non-terminal",
			desc: Description{
				Start:        "S",
				NonTerminals: []Symbol{"S", Epsilon},
				Rules:        []*Rule{rule("S", 1, "a")},
			},
			symbol: Epsilon,
		},
		{
			name: "reserved internal name",
			desc: Description{
				Rules: []*Rule{rule(InternalSymbol("x"), 1, "a")},
			},
			symbol: InternalSymbol("x"),
		},
		{
			name: "nil rule",
			desc: Description{Start: "S", Rules: []*Rule{nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := LoadGrammar(tt.desc)
			require.Error(t, err)
			assert.Nil(t, g)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
			assert.Equal(t, tt.head, verr.Head)
			assert.Equal(t, tt.symbol, verr.Symbol)
			assert.Contains(t, err.Error(), "invalid grammar")
		})
	}
}

func TestLoadGrammarAcceptsSumWithinTolerance(t *testing.T) {
	_, err := LoadGrammar(Description{
		Start:         "S",
		Probabilistic: true,
		Rules: []*Rule{
			rule("S", 1.0/3, "a"),
			rule("S", 1.0/3, "b"),
			rule("S", 1.0/3+1e-9, "c"),
		},
	})
	assert.NoError(t, err)
}

func TestLoadGrammarNormalize(t *testing.T) {
	var buf bytes.Buffer
	g, err := LoadGrammar(Description{
		Start:         "S",
		Probabilistic: true,
		Normalize:     true,
		Logger:        log.New(&buf, "", 0),
		Rules:         []*Rule{rule("S", 2, "a"), rule("S", 6, "b")},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, g.Productions("S")[0].Weight, 1e-12)
	assert.InDelta(t, 0.75, g.Productions("S")[1].Weight, 1e-12)
	assert.Contains(t, buf.String(), "[WARN] normalizing probabilities of S")
}

func TestAcceptsUnreachableAndUnproductive(t *testing.T) {
	g := mustParseGrammar(t, "S -> a | U\nU -> Ub\nV -> v")

	reachable := g.Reachable()
	assert.True(t, reachable["S"])
	assert.True(t, reachable["U"])
	assert.False(t, reachable["V"])
}

func TestNullable(t *testing.T) {
	g := mustParseGrammar(t, `
		S -> AB | c
		A -> aA | ϵ
		B -> b | C
		C -> ϵ | cC
		D -> d
	`)
	assert.Equal(t, map[Symbol]bool{"S": true, "A": true, "B": true, "C": true}, g.Nullable())
	assert.True(t, g.IsNullable("B"))
	assert.False(t, g.IsNullable("D"))
	assert.False(t, g.IsNullable("c"))
}

func TestIsCNF(t *testing.T) {
	assert.True(t, mustParseGrammar(t, "S -> AB | a\nA -> a\nB -> b").IsCNF())
	assert.False(t, mustParseGrammar(t, balancedGrammar).IsCNF())
	assert.False(t, mustParseGrammar(t, "S -> A | a\nA -> a").IsCNF())
	assert.False(t, mustParseGrammar(t, "S -> aB\nB -> b").IsCNF())
}

package pcfg

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Symbol represents a symbol in grammar rule, both terminal and non-terminal
type Symbol string

// Epsilon is the reserved empty-string marker. It only appears in rules and
// never matches a character of the input
const Epsilon = Symbol("ϵ")

var symbolTextRegexp = regexp.MustCompile("[^_A-Za-z0-9]+")

// epsilonAlias is the other spelling of epsilon accepted in rule text
const epsilonAlias = Symbol("ε")

// InternalSymbol creates an internal non-terminal symbol from name. Internal
// symbols are introduced by the CNF conversion and never clash with user
// symbols
func InternalSymbol(name string) Symbol {
	return Symbol("<__" + strings.TrimSpace(name) + ">")
}

// IsEpsilon returns true for both spellings of the empty-string marker
func (s Symbol) IsEpsilon() bool {
	return s == Epsilon || s == epsilonAlias
}

// IsInternal returns true if s was created by InternalSymbol
func (s Symbol) IsInternal() bool {
	return strings.HasPrefix(string(s), "<__")
}

// isSingleRune checks whether the symbol is exactly one character long, which
// is what a terminal has to be
func (s Symbol) isSingleRune() bool {
	return utf8.RuneCountInString(string(s)) == 1
}

// looksNonTerminal classifies a symbol written in rule text: an upper-case
// letter or a <name> token is a non-terminal
func (s Symbol) looksNonTerminal() bool {
	if len(s) > 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return true
	}
	r, size := utf8.DecodeRuneInString(string(s))
	return size == len(s) && unicode.IsUpper(r)
}

// Text return the text in Symbol, the text should be [_A-Za-z0-9] only, like
//
//	<city-name> -> "city_name"
//	S -> "S"
//	上 -> "_"
func (s Symbol) Text() string {
	text := string(s)
	if len(text) > 2 && text[0] == '<' && text[len(text)-1] == '>' {
		text = text[1 : len(text)-1]
	}
	return symbolTextRegexp.ReplaceAllString(text, "_")
}

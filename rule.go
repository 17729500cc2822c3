package pcfg

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Rule represents a production of the grammar: Left -> Right. An empty Right
// is an epsilon production
type Rule struct {
	Left   Symbol
	Right  []Symbol
	Weight float64
}

// IsBinary returns true if it's a binary rule, like A -> BC
func (r *Rule) IsBinary() bool {
	return len(r.Right) == 2
}

// IsUnary returns true if it's a unary rule, like A -> B
func (r *Rule) IsUnary() bool {
	return len(r.Right) == 1
}

// IsEmpty returns true for epsilon productions
func (r *Rule) IsEmpty() bool {
	return len(r.Right) == 0
}

// Body returns the right hand side in the notation accepted by ParseRule
func (r *Rule) Body() string {
	if r.IsEmpty() {
		return string(Epsilon)
	}
	var sb strings.Builder
	for _, symbol := range r.Right {
		sb.WriteString(string(symbol))
	}
	return sb.String()
}

// String converts rule to string format, like "S -> aSb [0.6]"
func (r *Rule) String() string {
	return string(r.Left) + " -> " + r.Body() + " [" + formatWeight(r.Weight) + "]"
}

// key identifies a rule by its symbols only
func (r *Rule) key() string {
	var sb strings.Builder
	sb.WriteString(string(r.Left))
	for _, symbol := range r.Right {
		sb.WriteByte(0)
		sb.WriteString(string(symbol))
	}
	return sb.String()
}

func (r *Rule) clone() *Rule {
	right := make([]Symbol, len(r.Right))
	copy(right, r.Right)
	return &Rule{Left: r.Left, Right: right, Weight: r.Weight}
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

// ruleSeparators are the accepted arrows between head and body, longest first
var ruleSeparators = []string{"::=", "-->", "->"}

// ParseRule parse rule from string
// The rule would be like:
//
//	S -> aSb [0.6] | T [0.4]
//
// Then returns
//
//	[{S, [a S b], 0.6}, {S, [T], 0.4}]
//
// Bodies without a weight get weight 1.0. Upper-case letters and <name>
// tokens are non-terminals, ϵ (or ε) stands for the empty body
func ParseRule(ruleText string) ([]*Rule, error) {
	rules, _, err := parseRule(ruleText)
	return rules, err
}

// parseRule does the work of ParseRule and also reports how many bodies
// carried an explicit weight
func parseRule(ruleText string) (rules []*Rule, weighted int, err error) {
	sepIndex, sep := -1, ""
	for _, s := range ruleSeparators {
		if i := strings.Index(ruleText, s); i >= 0 {
			sepIndex, sep = i, s
			break
		}
	}
	if sepIndex < 0 {
		return nil, 0, errors.Errorf("ParseRule: no rule arrow in '%s'", ruleText)
	}

	// Left part
	leftSymbol := Symbol(strings.TrimSpace(ruleText[:sepIndex]))
	if leftSymbol == "" || !leftSymbol.looksNonTerminal() {
		return nil, 0, errors.Errorf("ParseRule: '%s': terminal symbol in the left", ruleText)
	}

	// Right part
	for _, right := range strings.Split(ruleText[sepIndex+len(sep):], "|") {
		rule := &Rule{Left: leftSymbol, Weight: 1.0}

		body := strings.TrimSpace(right)
		if open := strings.LastIndex(body, "["); open >= 0 {
			if !strings.HasSuffix(body, "]") {
				return nil, 0, errors.Errorf("ParseRule: unclosed weight in '%s'", ruleText)
			}
			weightText := strings.TrimSpace(body[open+1 : len(body)-1])
			if rule.Weight, err = strconv.ParseFloat(weightText, 64); err != nil {
				return nil, 0, errors.Errorf(
					"ParseRule: float expected but '%s' found in '%s'",
					weightText,
					ruleText)
			}
			body = strings.TrimSpace(body[:open])
			weighted++
		}
		if body == "" {
			return nil, 0, errors.Errorf("ParseRule: empty alternative in '%s', write ϵ instead", ruleText)
		}

		symbols, err := splitBody(body)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "ParseRule: '%s'", ruleText)
		}
		rule.Right = make([]Symbol, 0, len(symbols))
		for _, symbol := range symbols {
			if symbol.IsEpsilon() {
				continue
			}
			rule.Right = append(rule.Right, symbol)
		}
		rules = append(rules, rule)
	}

	return rules, weighted, nil
}

// splitBody tokenizes a rule body into symbols: one symbol per character,
// except <name> tokens. Whitespace separates nothing and is skipped
func splitBody(body string) ([]Symbol, error) {
	symbols := []Symbol{}
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '<':
			end := i + 1
			for end < len(runes) && runes[end] != '>' && runes[end] != '<' && !unicode.IsSpace(runes[end]) {
				end++
			}
			if end >= len(runes) || runes[end] != '>' || end == i+1 {
				return nil, errors.Errorf("unclosed non-terminal '%s'", string(runes[i:end]))
			}
			symbols = append(symbols, Symbol(string(runes[i:end+1])))
			i = end
		case r == '>' || r == '[' || r == ']':
			return nil, errors.Errorf("unexpected '%c'", r)
		default:
			symbols = append(symbols, Symbol(string(r)))
		}
	}
	return symbols, nil
}

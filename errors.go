package pcfg

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrChartLimit is returned by Parse when the chart would exceed
// Options.MaxChartCells
var ErrChartLimit = errors.New("pcfg: chart size limit exceeded")

// ValidationError reports a grammar that violates a structural invariant.
// Head and Symbol name the offending rule head and symbol when there is one
type ValidationError struct {
	Head   Symbol
	Symbol Symbol
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Head != "" && e.Symbol != "":
		return fmt.Sprintf("invalid grammar: %s: symbol '%s': %s", e.Head, e.Symbol, e.Reason)
	case e.Head != "":
		return fmt.Sprintf("invalid grammar: %s: %s", e.Head, e.Reason)
	case e.Symbol != "":
		return fmt.Sprintf("invalid grammar: symbol '%s': %s", e.Symbol, e.Reason)
	}
	return "invalid grammar: " + e.Reason
}

// invalid builds a ValidationError carrying a stack trace
func invalid(head, symbol Symbol, format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{
		Head:   head,
		Symbol: symbol,
		Reason: fmt.Sprintf(format, args...),
	})
}

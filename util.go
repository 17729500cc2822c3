package pcfg

import (
	"fmt"
	"math"
)

// debugf prints a debug line when debug mode is enabled
func (o Options) debugf(format string, args ...interface{}) {
	if o.Debug {
		o.logger().Printf("[DEBUG] "+format, args...)
	}
}

// warnf prints a warning, debug mode or not
func (o Options) warnf(format string, args ...interface{}) {
	o.logger().Printf("[WARN] "+format, args...)
}

// ensure checks exp, if exp == false, panic with message
func ensure(exp bool, message string) {
	if !exp {
		panic(fmt.Sprintf("pcfg: %s", message))
	}
}

// nearlyEqual compares probabilities with an absolute tolerance
func nearlyEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

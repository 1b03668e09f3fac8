package board

import (
	"github.com/hailam/gomokuplay/internal/pattern"
)

// FiveRule selects when five in a row ends the game.
type FiveRule uint8

const (
	// Unbreakable: a five wins only if no reply by the opponent can break it
	// by capture.
	Unbreakable FiveRule = iota
	// Immediate: any five wins at once.
	Immediate
)

// String returns the rule name.
func (r FiveRule) String() string {
	if r == Immediate {
		return "immediate"
	}
	return "unbreakable"
}

// ParseFiveRule parses "unbreakable" or "immediate".
func ParseFiveRule(s string) (FiveRule, bool) {
	switch s {
	case "unbreakable", "":
		return Unbreakable, true
	case "immediate":
		return Immediate, true
	}
	return Unbreakable, false
}

// Rules holds the variant settings.
type Rules struct {
	// CaptureThreshold is the number of captured pairs that wins the game.
	// Zero disables the capture win.
	CaptureThreshold int

	// ForbidDoubleThree rejects moves that create two open threes at once.
	ForbidDoubleThree bool

	FiveRule FiveRule
}

// DefaultRules returns 5 pairs (10 stones), double-three forbidden and
// the unbreakable-five rule.
func DefaultRules() Rules {
	return Rules{
		CaptureThreshold:  5,
		ForbidDoubleThree: true,
		FiveRule:          Unbreakable,
	}
}

// Env bundles what every position of a game shares: the rules and the
// line evaluator with its memo cache.
type Env struct {
	eval    *pattern.Evaluator
	weights pattern.Weights
	rules   Rules
}

// NewEnv creates an environment. A nil evaluator gets the default motif
// table and a fresh memo table.
func NewEnv(eval *pattern.Evaluator, rules Rules) *Env {
	if eval == nil {
		eval = pattern.NewEvaluator(nil, pattern.NewTable())
	}
	return &Env{
		eval:    eval,
		weights: eval.Table().Weights(),
		rules:   rules,
	}
}

// DefaultEnv creates an environment with DefaultRules and a fresh memo.
func DefaultEnv() *Env {
	return NewEnv(nil, DefaultRules())
}

// Rules returns the variant settings.
func (e *Env) Rules() Rules {
	return e.rules
}

// Evaluator returns the line evaluator.
func (e *Env) Evaluator() *pattern.Evaluator {
	return e.eval
}

func (e *Env) captureTerm(c Captures) int64 {
	return e.weights.CaptureTerm(c.Black, c.White, e.rules.CaptureThreshold)
}

package board

import (
	"fmt"
	"strings"
)

// Move records a placement: who played, where, and the opponent stones it
// removed (always in pairs).
type Move struct {
	Color    Stone
	Cell     Cell
	Captured []Cell
}

// NoMove is the zero move, used for root positions.
var NoMove = Move{Cell: NoCell}

// IsNone returns true if the move is not a real placement.
func (m Move) IsNone() bool {
	return !m.Cell.IsValid()
}

// Pairs returns the number of pairs captured by the move.
func (m Move) Pairs() int {
	return len(m.Captured) / 2
}

// String returns "Black 9,9" optionally followed by "x a b ...".
func (m Move) String() string {
	if m.IsNone() {
		return "none"
	}
	s := fmt.Sprintf("%s %s", m.Color, m.Cell)
	if len(m.Captured) > 0 {
		parts := make([]string, len(m.Captured))
		for i, c := range m.Captured {
			parts[i] = c.String()
		}
		s += " x " + strings.Join(parts, " ")
	}
	return s
}

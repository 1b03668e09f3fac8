package engine

import (
	"cmp"
	"slices"

	"lukechampine.com/frand"

	"github.com/hailam/gomokuplay/internal/board"
)

// MoveOrderer sorts children for the search. The primary key is always the
// child's static score, best first for the side to move. Equal scores are
// broken by the history heuristic and then by cell.
type MoveOrderer struct {
	// History heuristic (indexed by cell): bumped on cutoffs
	history [board.NumCells]int32
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear ages the history table for a new game.
func (mo *MoveOrderer) Clear() {
	for i := range mo.history {
		mo.history[i] = 0
	}
}

// Age halves history scores between searches.
func (mo *MoveOrderer) Age() {
	for i := range mo.history {
		mo.history[i] /= 2
	}
}

// UpdateHistory rewards a move that caused a cutoff at the given depth.
func (mo *MoveOrderer) UpdateHistory(c board.Cell, depth int) {
	if !c.IsValid() {
		return
	}
	bonus := int32(depth * depth)
	if mo.history[c] > 1<<24 {
		mo.Age()
	}
	mo.history[c] += bonus
}

// History returns the history score of a cell.
func (mo *MoveOrderer) History(c board.Cell) int32 {
	return mo.history[c]
}

// Order sorts children in place: descending static score when White
// (the maximizer) is to move, ascending when Black is. With shuffle set,
// children are shuffled first so equal-score ties fall in random order.
func (mo *MoveOrderer) Order(children []*board.Position, maximize, shuffle bool) {
	if shuffle {
		frand.Shuffle(len(children), func(i, j int) {
			children[i], children[j] = children[j], children[i]
		})
	}
	slices.SortStableFunc(children, func(a, b *board.Position) int {
		var c int
		if maximize {
			c = cmp.Compare(b.Score(), a.Score())
		} else {
			c = cmp.Compare(a.Score(), b.Score())
		}
		if c != 0 || shuffle {
			return c
		}
		ca, cb := a.LastMove().Cell, b.LastMove().Cell
		if c = cmp.Compare(mo.history[cb], mo.history[ca]); c != 0 {
			return c
		}
		return cmp.Compare(ca, cb)
	})
}

package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/gomokuplay/internal/board"
)

// Search constants
const (
	Infinity int64 = math.MaxInt64
	MaxDepth       = 32

	// Nodes deeper than this drop their children once searched. The root,
	// its children and grandchildren stay cached for reuse on later turns.
	keepPly = 2
)

// RootResult is the outcome of one fixed-depth search.
type RootResult struct {
	Move      board.Cell
	Score     int64
	Depth     int
	Cancelled bool
}

// Searcher performs the alpha-beta minimax search. White maximizes the
// position score and Black minimizes it.
type Searcher struct {
	tt       *TranspositionTable
	orderer  *MoveOrderer
	stopFlag atomic.Bool
	nodes    atomic.Uint64

	// Shuffle equal-score root moves.
	Randomize bool
}

// NewSearcher creates a new searcher. tt may be nil.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{tt: tt, orderer: NewMoveOrderer()}
}

// Stop signals the search to stop. The walk notices between siblings.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// Stopped reports whether a stop was requested.
func (s *Searcher) Stopped() bool {
	return s.stopFlag.Load()
}

// Reset resets the searcher for a new search.
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes.Store(0)
	s.orderer.Age()
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes.Load()
}

// Search runs a full-window search of root to the given depth.
func (s *Searcher) Search(root *board.Position, depth int) RootResult {
	return s.SearchWithBounds(root, depth, -Infinity, Infinity)
}

// SearchWithBounds searches root with a custom window. If the search is
// stopped it returns the best child by last-known search value, marked
// Cancelled.
func (s *Searcher) SearchWithBounds(root *board.Position, depth int, alpha, beta int64) RootResult {
	s.nodes.Add(1)
	if depth <= 0 || root.IsTerminal() {
		return RootResult{Move: board.NoCell, Score: root.Score(), Depth: depth}
	}
	children := root.Expand()
	if len(children) == 0 {
		return RootResult{Move: board.NoCell, Score: root.Score(), Depth: depth}
	}

	maximize := root.SideToMove() == board.White
	s.orderer.Order(children, maximize, s.Randomize)

	best := worst(maximize)
	bestMove := board.NoCell
	stopped := false
	for i, child := range children {
		if i > 0 && s.stopFlag.Load() {
			stopped = true
			break
		}
		v := s.alphaBeta(child, depth-1, 1, alpha, beta)
		if better(v, best, maximize) || bestMove == board.NoCell {
			best = v
			bestMove = child.LastMove().Cell
		}
		if maximize {
			alpha = max(alpha, best)
		} else {
			beta = min(beta, best)
		}
		if beta <= alpha {
			s.orderer.UpdateHistory(bestMove, depth)
			break
		}
	}

	if stopped || s.stopFlag.Load() {
		move, score := fallback(children, maximize)
		return RootResult{Move: move, Score: score, Depth: depth, Cancelled: true}
	}
	root.SetSearchValue(best, depth)
	return RootResult{Move: bestMove, Score: best, Depth: depth}
}

// alphaBeta returns the minimax value of node searched to depth. ply is
// the distance from the root.
func (s *Searcher) alphaBeta(node *board.Position, depth, ply int, alpha, beta int64) int64 {
	s.nodes.Add(1)
	if depth == 0 || node.IsTerminal() {
		return node.Score()
	}

	alphaOrig, betaOrig := alpha, beta
	if s.tt != nil {
		if e, ok := s.tt.Lookup(node.Hash()); ok && int(e.Depth) >= depth {
			switch e.Flag {
			case TTExact:
				return e.Score
			case TTLowerBound:
				alpha = max(alpha, e.Score)
			case TTUpperBound:
				beta = min(beta, e.Score)
			}
			if alpha >= beta {
				return e.Score
			}
		}
	}

	children := node.Expand()
	if len(children) == 0 {
		return node.Score()
	}

	maximize := node.SideToMove() == board.White
	s.orderer.Order(children, maximize, false)

	best := worst(maximize)
	stopped := false
	for i, child := range children {
		if i > 0 && s.stopFlag.Load() {
			stopped = true
			break
		}
		v := s.alphaBeta(child, depth-1, ply+1, alpha, beta)
		if better(v, best, maximize) {
			best = v
		}
		if maximize {
			alpha = max(alpha, best)
		} else {
			beta = min(beta, best)
		}
		if beta <= alpha {
			s.orderer.UpdateHistory(child.LastMove().Cell, depth)
			break
		}
	}

	if ply >= keepPly {
		node.ReleaseChildren()
	}
	if stopped || s.stopFlag.Load() {
		return best
	}

	node.SetSearchValue(best, depth)
	if s.tt != nil {
		flag := TTExact
		if best <= alphaOrig {
			flag = TTUpperBound
		} else if best >= betaOrig {
			flag = TTLowerBound
		}
		s.tt.Store(node.Hash(), depth, best, flag)
	}
	return best
}

// fallback picks the child with the best last-known value. Children never
// searched contribute their static score.
func fallback(children []*board.Position, maximize bool) (board.Cell, int64) {
	bestMove := board.NoCell
	best := worst(maximize)
	for _, child := range children {
		v, _, _ := child.SearchValue()
		if bestMove == board.NoCell || better(v, best, maximize) {
			best = v
			bestMove = child.LastMove().Cell
		}
	}
	return bestMove, best
}

func worst(maximize bool) int64 {
	if maximize {
		return -Infinity
	}
	return Infinity
}

func better(v, best int64, maximize bool) bool {
	if maximize {
		return v > best
	}
	return v < best
}

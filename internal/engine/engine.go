// Package engine searches gomoku positions with alpha-beta minimax.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/pattern"
)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth   int           `json:"depth"`
	Score   int64         `json:"score"`
	Nodes   uint64        `json:"nodes"`
	Time    time.Duration `json:"time"`
	Move    board.Cell    `json:"move"`
	HashHit float64       `json:"hash_hit"` // TT hit rate, percent
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth     int           // Maximum depth (0 = MaxDepth)
	MoveTime  time.Duration // Time for this move (0 = no limit)
	Remaining time.Duration // Clock time left for the side to move
	Increment time.Duration // Clock increment per move
	Infinite  bool          // Search until stopped
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 2 ply, 300ms
	Medium                   // 4 ply, 1.5s
	Hard                     // 6 ply, 5s
)

// String returns the difficulty name.
func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Hard:
		return "hard"
	default:
		return "medium"
	}
}

// ParseDifficulty parses a difficulty name.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch s {
	case "easy":
		return Easy, true
	case "medium":
		return Medium, true
	case "hard":
		return Hard, true
	}
	return Medium, false
}

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 2, MoveTime: 300 * time.Millisecond},
	Medium: {Depth: 4, MoveTime: 1500 * time.Millisecond},
	Hard:   {Depth: 6, MoveTime: 5 * time.Second},
}

// Result is the outcome of a search. A cancelled search still carries a
// playable move.
type Result struct {
	Move      board.Cell
	Score     int64
	Depth     int
	Nodes     uint64
	Elapsed   time.Duration
	Cancelled bool
}

// Options configures an engine.
type Options struct {
	TTSizeMB   int
	Randomize  bool
	Difficulty Difficulty
}

// Engine is the gomoku AI engine. Searches are serialized.
type Engine struct {
	mu         sync.Mutex
	searcher   *Searcher
	tt         *TranspositionTable
	tm         *TimeManager
	difficulty Difficulty

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine with its own transposition table.
func NewEngine(opts Options) (*Engine, error) {
	tt, err := NewTranspositionTable(opts.TTSizeMB)
	if err != nil {
		return nil, err
	}
	s := NewSearcher(tt)
	s.Randomize = opts.Randomize
	return &Engine{
		searcher:   s,
		tt:         tt,
		tm:         NewTimeManager(),
		difficulty: opts.Difficulty,
	}, nil
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.mu.Lock()
	e.difficulty = d
	e.mu.Unlock()
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() Difficulty {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.difficulty
}

// SetRandomize toggles shuffling of equal-score root moves.
func (e *Engine) SetRandomize(on bool) {
	e.mu.Lock()
	e.searcher.Randomize = on
	e.mu.Unlock()
}

// Search finds the best move with the limits of the current difficulty.
func (e *Engine) Search(pos *board.Position) board.Cell {
	limits := DifficultySettings[e.Difficulty()]
	return e.SearchWithLimits(context.Background(), pos, limits).Move
}

// BestMove searches pos to a fixed depth and returns the chosen move and
// the time spent. Cancelling ctx ends the search early with a valid move.
func (e *Engine) BestMove(ctx context.Context, pos *board.Position, depth int) (board.Move, time.Duration) {
	r := e.SearchWithLimits(ctx, pos, SearchLimits{Depth: depth})
	if !r.Move.IsValid() {
		return board.NoMove, r.Elapsed
	}
	m := board.Move{Color: pos.SideToMove(), Cell: r.Move}
	if child, ok := pos.CachedChild(r.Move); ok {
		m = child.LastMove()
	}
	return m, r.Elapsed
}

// SearchWithLimits runs iterative deepening on pos. It stops at the depth
// limit, on a decisive score, when the time manager says so, or when ctx is
// done or Stop is called.
func (e *Engine) SearchWithLimits(ctx context.Context, pos *board.Position, limits SearchLimits) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	startTime := time.Now()

	if pos.StoneCount() == 0 {
		return Result{Move: board.Center, Score: pos.Score(), Elapsed: time.Since(startTime)}
	}

	e.searcher.Reset()
	e.tm.Init(limits, pos.Ply())

	maxDepth := MaxDepth
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline <-chan time.Time
	if !limits.Infinite && e.tm.MaximumTime() < time.Hour {
		timer := time.NewTimer(e.tm.MaximumTime())
		defer timer.Stop()
		deadline = timer.C
	}
	// The watcher is joined before the lock is released, so a late Stop
	// can never reach the next search.
	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-done:
		case <-ctx.Done():
			e.searcher.Stop()
		case <-deadline:
			e.searcher.Stop()
		}
	}()
	defer func() {
		close(done)
		<-watcherDone
	}()

	result := Result{Move: board.NoCell, Score: pos.Score()}
	stability := 0

	for depth := 1; depth <= maxDepth; depth++ {
		r := e.searcher.Search(pos, depth)
		if r.Cancelled {
			// A cancelled first iteration still beats no move at all.
			if result.Depth == 0 {
				result.Move, result.Score, result.Depth = r.Move, r.Score, depth
			}
			result.Cancelled = true
			break
		}
		if !r.Move.IsValid() {
			break
		}

		if r.Move == result.Move {
			stability++
			if stability == 2 || stability == 4 {
				e.tm.AdjustForStability(stability)
			}
		} else {
			stability = 0
		}
		result.Move, result.Score, result.Depth = r.Move, r.Score, depth

		elapsed := time.Since(startTime)
		log.Debug().
			Int("depth", depth).
			Int64("score", r.Score).
			Str("move", r.Move.String()).
			Uint64("nodes", e.searcher.Nodes()).
			Dur("elapsed", elapsed).
			Msg("iteration")
		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:   depth,
				Score:   r.Score,
				Nodes:   e.searcher.Nodes(),
				Time:    elapsed,
				Move:    r.Move,
				HashHit: e.tt.HitRate(),
			})
		}

		// Early termination: the move wins on the spot
		if child, ok := pos.CachedChild(r.Move); ok && child.IsTerminal() {
			break
		}

		if !limits.Infinite && limits.MoveTime == 0 && limits.Remaining == 0 {
			continue
		}
		// If we've used more than half the time, don't start another iteration
		if e.tm.PastOptimum() || e.tm.MaximumTime()-elapsed < elapsed {
			break
		}
	}

	result.Nodes = e.searcher.Nodes()
	result.Elapsed = time.Since(startTime)
	return result
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.searcher.Stop()
}

// Clear clears the transposition table and other caches.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
	e.searcher.orderer.Clear()
}

// Close releases the transposition table.
func (e *Engine) Close() {
	e.tt.Close()
}

// FormatScore converts a score to a human-readable string.
func FormatScore(score int64) string {
	win := pattern.DefaultWeights.Motif[pattern.Five]
	switch {
	case score >= win:
		return "white wins"
	case score <= -win:
		return "black wins"
	}
	return fmt.Sprintf("%+d", score)
}

package engine

import (
	"time"
)

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Maximum time allowed
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init initializes the time manager for a new search.
// ply is the number of moves already played.
func (tm *TimeManager) Init(limits SearchLimits, ply int) {
	tm.startTime = time.Now()

	// Fixed move time mode
	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	// Infinite or depth-limited mode
	if limits.Infinite || limits.Remaining == 0 {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	timeLeft := limits.Remaining

	// Estimate our moves remaining: games rarely last past 60 moves each
	mtg := 30 - ply/4
	if mtg < 8 {
		mtg = 8
	}

	baseTime := timeLeft/time.Duration(mtg) + limits.Increment*9/10
	tm.optimumTime = baseTime

	// The opening is shallow; save time for the middle game
	if ply < 6 {
		tm.optimumTime = baseTime * 60 / 100
	}

	// Maximum time: 4x optimum or 80% of remaining, whichever is smaller
	tm.maximumTime = min(tm.optimumTime*4, timeLeft*8/10)

	// Minimum times
	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 50*time.Millisecond {
		tm.maximumTime = 50 * time.Millisecond
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop returns true if we should stop searching.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the optimum time.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability shortens the optimum when the best move has not
// changed for several depths.
func (tm *TimeManager) AdjustForStability(stability int) {
	if stability >= 4 {
		tm.optimumTime = tm.optimumTime * 60 / 100
	} else if stability >= 2 {
		tm.optimumTime = tm.optimumTime * 80 / 100
	}
}

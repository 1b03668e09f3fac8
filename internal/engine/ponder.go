package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/gomokuplay/internal/board"
)

// Ponder is a search running in the background, typically on the position
// where the opponent is thinking. It fills the subtree that will be reused
// once the opponent moves.
type Ponder struct {
	cancel  context.CancelFunc
	g       *errgroup.Group
	results chan Result
	pos     *board.Position
}

// StartPonder searches pos on a worker goroutine. The result, cancelled or
// not, is handed back through a single-slot channel.
func (e *Engine) StartPonder(pos *board.Position, limits SearchLimits) *Ponder {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &Ponder{
		cancel:  cancel,
		g:       g,
		results: make(chan Result, 1),
		pos:     pos,
	}
	g.Go(func() error {
		log.Debug().Str("position", pos.LastMove().String()).Msg("ponder-start")
		r := e.SearchWithLimits(ctx, pos, limits)
		p.results <- r
		log.Debug().
			Int("depth", r.Depth).
			Bool("cancelled", r.Cancelled).
			Uint64("nodes", r.Nodes).
			Msg("ponder-done")
		return nil
	})
	return p
}

// Position returns the position being searched.
func (p *Ponder) Position() *board.Position {
	return p.pos
}

// Results returns the handoff channel. It receives exactly one result.
func (p *Ponder) Results() <-chan Result {
	return p.results
}

// Stop cancels the search and waits for the worker to exit. It returns the
// result unless it was already taken from Results.
func (p *Ponder) Stop() (Result, bool) {
	p.cancel()
	_ = p.g.Wait()
	select {
	case r := <-p.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the search finishes on its own and returns its result,
// unless it was already taken from Results.
func (p *Ponder) Wait() (Result, bool) {
	_ = p.g.Wait()
	p.cancel()
	select {
	case r := <-p.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Package game drives one human-versus-engine game: it keeps the current
// root position, reuses the searched subtree as moves are played, ponders
// during the human turn and records finished games.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/pattern"
	"github.com/hailam/gomokuplay/internal/storage"
)

var (
	// ErrGameOver is returned for moves after the game has ended.
	ErrGameOver = errors.New("game over")

	// ErrNotYourTurn is returned when a move is submitted for the color that
	// is not to move.
	ErrNotYourTurn = errors.New("not your turn")
)

// Controller owns the game state. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	cfg   config.Config
	env   *board.Env
	table *pattern.Table
	eng   *engine.Engine
	store *storage.Storage // nil: nothing is persisted

	root    *board.Position
	history []*board.Position
	ponder  *engine.Ponder
	human   board.Stone

	started  time.Time
	recorded bool
}

// New creates a controller. The pattern memo is loaded from store when
// persistence is enabled. store may be nil.
func New(cfg config.Config, eng *engine.Engine, store *storage.Storage) *Controller {
	table := pattern.NewTable()
	eval := pattern.NewEvaluator(nil, table)
	if store != nil && cfg.PersistPatterns {
		if _, err := store.LoadPatterns(table, eval.Table().Weights()); err != nil {
			log.Warn().Err(err).Msg("patterns-load-failed")
		}
	}
	c := &Controller{
		cfg:   cfg,
		env:   board.NewEnv(eval, cfg.BoardRules()),
		table: table,
		eng:   eng,
		store: store,
	}
	c.reset()
	return c
}

func (c *Controller) reset() {
	c.root = board.NewPosition(c.env)
	c.history = nil
	c.human = board.Black
	if c.cfg.HumanWhite {
		c.human = board.White
	}
	c.started = time.Now()
	c.recorded = false
	c.root.IsTerminal()
}

// NewGame discards the current game. When the human plays White the engine
// opens at the center and that move is returned; otherwise NoMove.
func (c *Controller) NewGame() (board.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPonder()
	c.reset()
	log.Info().Str("human", c.human.String()).Msg("new-game")

	if c.human != board.White {
		return board.NoMove, nil
	}
	child, err := c.root.Child(board.Center)
	if err != nil {
		return board.NoMove, err
	}
	c.advance(child)
	return child.LastMove(), nil
}

// SetConfig replaces the configuration. Rule changes apply from the next
// game. The player preferences it carries are saved when a store is
// attached; a failed save is returned after the new configuration is
// already in effect.
func (c *Controller) SetConfig(cfg config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.eng.SetDifficulty(cfg.EngineDifficulty())
	c.eng.SetRandomize(cfg.Randomize)
	if cfg.BoardRules() != c.env.Rules() {
		c.env = board.NewEnv(c.env.Evaluator(), cfg.BoardRules())
	}
	if c.store == nil {
		return nil
	}
	return errors.Wrap(savePreferences(c.store, cfg), "save preferences")
}

// Stats returns the recorded game statistics. Without a store they are
// empty.
func (c *Controller) Stats() (*storage.GameStats, error) {
	if c.store == nil {
		return storage.NewGameStats(), nil
	}
	return c.store.LoadStats()
}

// Config returns the current configuration.
func (c *Controller) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Position returns the current root.
func (c *Controller) Position() *board.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// Human returns the color played by the human.
func (c *Controller) Human() board.Stone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.human
}

// Over reports whether the game ended and who won.
func (c *Controller) Over() (bool, board.Stone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root.IsTerminal(), c.root.Winner()
}

// Play plays cell for the side to move.
func (c *Controller) Play(cell board.Cell) (board.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.play(c.root.SideToMove(), cell)
}

// PlayColor plays cell for color, which must be the side to move.
func (c *Controller) PlayColor(color board.Stone, cell board.Cell) (board.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.play(color, cell)
}

func (c *Controller) play(color board.Stone, cell board.Cell) (board.Move, error) {
	c.stopPonder()
	if c.root.IsTerminal() {
		return board.NoMove, ErrGameOver
	}
	if color != c.root.SideToMove() {
		return board.NoMove, errors.Wrapf(ErrNotYourTurn, "%s to move", c.root.SideToMove())
	}
	child, err := c.root.Child(cell)
	if err != nil {
		return board.NoMove, err
	}
	c.advance(child)
	return child.LastMove(), nil
}

// EngineMove searches the current root with the configured limits and plays
// the chosen move.
func (c *Controller) EngineMove(ctx context.Context) (board.Move, engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engineMove(ctx, c.cfg.Limits())
}

// EngineMoveWithLimits is EngineMove with explicit search limits.
func (c *Controller) EngineMoveWithLimits(ctx context.Context, limits engine.SearchLimits) (board.Move, engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engineMove(ctx, limits)
}

func (c *Controller) engineMove(ctx context.Context, limits engine.SearchLimits) (board.Move, engine.Result, error) {
	c.stopPonder()
	if c.root.IsTerminal() {
		return board.NoMove, engine.Result{}, ErrGameOver
	}
	r := c.eng.SearchWithLimits(ctx, c.root, limits)
	if !r.Move.IsValid() {
		return board.NoMove, r, errors.New("no legal move")
	}
	child, err := c.root.Child(r.Move)
	if err != nil {
		return board.NoMove, r, err
	}
	c.advance(child)
	log.Info().
		Str("move", child.LastMove().String()).
		Int("depth", r.Depth).
		Str("score", engine.FormatScore(r.Score)).
		Dur("elapsed", r.Elapsed).
		Msg("engine-move")
	return child.LastMove(), r, nil
}

// Suggest searches the current root for the side to move without playing.
func (c *Controller) Suggest(ctx context.Context) (board.Move, engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPonder()
	if c.root.IsTerminal() {
		return board.NoMove, engine.Result{}, ErrGameOver
	}
	r := c.eng.SearchWithLimits(ctx, c.root, c.cfg.Limits())
	m := board.Move{Color: c.root.SideToMove(), Cell: r.Move}
	if child, ok := c.root.CachedChild(r.Move); ok {
		m = child.LastMove()
	}
	return m, r, nil
}

// Undo returns to the position before the last move.
func (c *Controller) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return board.ErrNoMoveToUndo
	}
	c.stopPonder()
	c.root = c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	c.recorded = false
	return nil
}

// Ply returns the number of moves played in this game.
func (c *Controller) Ply() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// StartPonder begins a background search of the current root. It is a
// no-op when pondering is disabled, already running or the game is over.
func (c *Controller) StartPonder() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Ponder || c.ponder != nil || c.root.IsTerminal() || c.root.StoneCount() == 0 {
		return
	}
	limits := c.cfg.Limits()
	c.ponder = c.eng.StartPonder(c.root, engine.SearchLimits{Depth: limits.Depth, Infinite: true})
}

// Pondering reports whether a background search is attached.
func (c *Controller) Pondering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ponder != nil
}

// stopPonder cancels the background search and waits for it, so the tree
// under root is no longer touched by another goroutine.
func (c *Controller) stopPonder() {
	if c.ponder == nil {
		return
	}
	if r, ok := c.ponder.Stop(); ok {
		log.Debug().Int("depth", r.Depth).Uint64("nodes", r.Nodes).Msg("ponder-stopped")
	}
	c.ponder = nil
}

// advance makes child the new root. The previous root drops its child
// cache; the played child keeps its own subtree for the next search.
func (c *Controller) advance(child *board.Position) {
	prev := c.root
	prev.ReleaseChildren()
	c.history = append(c.history, prev)
	c.root = child

	if child.IsTerminal() {
		c.finish()
	}
}

func (c *Controller) finish() {
	winner := c.root.Winner()
	byCapture := false
	if t := c.env.Rules().CaptureThreshold; t > 0 {
		byCapture = c.root.CaptureCounts().Of(winner) >= t
	}
	log.Info().
		Str("winner", winner.String()).
		Bool("by_capture", byCapture).
		Int("moves", c.root.Ply()).
		Msg("game-over")

	if c.store == nil || c.recorded {
		return
	}
	c.recorded = true
	res := storage.GameResult{
		Won:        winner == c.human,
		ByCapture:  byCapture,
		Mode:       c.cfg.GameMode(),
		Difficulty: storage.Difficulty(c.cfg.EngineDifficulty()),
		Moves:      c.root.Ply(),
		Duration:   time.Since(c.started),
	}
	if err := c.store.RecordGame(res); err != nil {
		log.Warn().Err(err).Msg("record-game-failed")
	}
}

// Close stops pondering and saves the pattern memo when persistence is
// enabled.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPonder()
	if c.store == nil || !c.cfg.PersistPatterns {
		return nil
	}
	_, err := c.store.SavePatterns(c.table, c.env.Evaluator().Table().Weights())
	return err
}

// Patterns returns the shared pattern memo table.
func (c *Controller) Patterns() *pattern.Table {
	return c.table
}

package game

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/storage"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Difficulty = "easy"
	cfg.Depth = 2
	cfg.TTSizeMB = 4
	return cfg
}

func newController(t *testing.T, cfg config.Config, store *storage.Storage) *Controller {
	t.Helper()
	eng, err := engine.NewEngine(cfg.EngineOptions())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	c := New(cfg, eng, store)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func playAll(t *testing.T, c *Controller, cells ...[2]int) {
	t.Helper()
	for _, rc := range cells {
		_, err := c.Play(board.NewCell(rc[0], rc[1]))
		require.NoError(t, err, "play %v", rc)
	}
}

func TestNewGame(t *testing.T) {
	c := newController(t, testConfig(), nil)
	m, err := c.NewGame()
	require.NoError(t, err)
	assert.True(t, m.IsNone())
	assert.Equal(t, board.Black, c.Human())
	assert.Zero(t, c.Position().StoneCount())

	cfg := testConfig()
	cfg.HumanWhite = true
	c = newController(t, cfg, nil)
	m, err = c.NewGame()
	require.NoError(t, err)
	assert.Equal(t, board.Center, m.Cell)
	assert.Equal(t, board.Black, m.Color)
	assert.Equal(t, board.White, c.Human())
	assert.Equal(t, board.White, c.Position().SideToMove())
}

func TestPlayErrors(t *testing.T) {
	c := newController(t, testConfig(), nil)
	playAll(t, c, [2]int{9, 9})

	_, err := c.Play(board.NewCell(9, 9))
	assert.True(t, errors.Is(err, board.ErrCellOccupied))

	_, err = c.PlayColor(board.Black, board.NewCell(3, 3))
	assert.True(t, errors.Is(err, ErrNotYourTurn))
	assert.Equal(t, 1, c.Ply())
}

func TestEngineMoveReusesTree(t *testing.T) {
	c := newController(t, testConfig(), nil)
	playAll(t, c, [2]int{9, 9})

	m, r, err := c.EngineMove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.White, m.Color)
	assert.Equal(t, m.Cell, r.Move)
	assert.Equal(t, 2, c.Position().StoneCount())

	hint, _, err := c.Suggest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.Black, hint.Color)
	root := c.Position()
	require.True(t, root.Expanded())

	cached, ok := root.CachedChild(hint.Cell)
	require.True(t, ok)
	_, err = c.Play(hint.Cell)
	require.NoError(t, err)
	assert.Same(t, cached, c.Position())
}

func TestUndo(t *testing.T) {
	c := newController(t, testConfig(), nil)
	first := c.Position()
	playAll(t, c, [2]int{9, 9}, [2]int{9, 10})
	hash := c.Position().Hash()

	playAll(t, c, [2]int{8, 8})
	require.NoError(t, c.Undo())
	assert.Equal(t, hash, c.Position().Hash())
	assert.Equal(t, board.NewCell(9, 10), c.Position().LastMove().Cell)

	require.NoError(t, c.Undo())
	require.NoError(t, c.Undo())
	assert.Same(t, first, c.Position())
	assert.True(t, errors.Is(c.Undo(), board.ErrNoMoveToUndo))
}

func TestFinishedGameIsRecorded(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.Ponder = false
	c := newController(t, cfg, store)

	playAll(t, c,
		[2]int{9, 5}, [2]int{0, 0},
		[2]int{9, 6}, [2]int{0, 2},
		[2]int{9, 7}, [2]int{0, 4},
		[2]int{9, 8}, [2]int{0, 6},
		[2]int{9, 9})

	over, winner := c.Over()
	require.True(t, over)
	assert.Equal(t, board.Black, winner)

	_, err = c.Play(board.NewCell(5, 5))
	assert.True(t, errors.Is(err, ErrGameOver))
	_, _, err = c.EngineMove(context.Background())
	assert.True(t, errors.Is(err, ErrGameOver))

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.WinsByMode["hvc"])
	assert.Equal(t, 1, stats.WinsByDiff["easy"])
	assert.Zero(t, stats.WinsByCapture)
	assert.Equal(t, 9, stats.TotalMoves)

	require.NoError(t, c.Close())
	n, err := store.PatternCount()
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestPatternsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)

	cfg := testConfig()
	eng, err := engine.NewEngine(cfg.EngineOptions())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	c := New(cfg, eng, store)
	playAll(t, c, [2]int{9, 9}, [2]int{9, 10})
	saved := c.Patterns().Len()
	require.NoError(t, c.Close())
	require.NoError(t, store.Close())

	store, err = storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	c = newController(t, cfg, store)
	assert.Equal(t, saved, c.Patterns().Len())
}

func TestPonderStoppedBeforeMove(t *testing.T) {
	c := newController(t, testConfig(), nil)
	playAll(t, c, [2]int{9, 9}, [2]int{9, 10})

	c.StartPonder()
	assert.True(t, c.Pondering())
	c.StartPonder()

	_, err := c.Play(board.NewCell(10, 10))
	require.NoError(t, err)
	assert.False(t, c.Pondering())
	assert.Equal(t, 3, c.Position().StoneCount())
}

func TestSetConfig(t *testing.T) {
	c := newController(t, testConfig(), nil)
	cfg := testConfig()
	cfg.Rules.ForbidDoubleThree = false
	cfg.Difficulty = "hard"
	require.NoError(t, c.SetConfig(cfg))
	assert.Equal(t, "hard", c.Config().Difficulty)

	_, err := c.NewGame()
	require.NoError(t, err)
	assert.False(t, c.Position().Env().Rules().ForbidDoubleThree)
}

func TestTwoPlayerGameRecordedAsHumanVsHuman(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.Ponder = false
	cfg.TwoPlayer = true
	c := newController(t, cfg, store)
	playAll(t, c,
		[2]int{0, 0}, [2]int{9, 5},
		[2]int{0, 2}, [2]int{9, 6},
		[2]int{0, 4}, [2]int{9, 7},
		[2]int{0, 6}, [2]int{9, 8},
		[2]int{1, 1}, [2]int{9, 9})

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.Losses)
	assert.Zero(t, stats.GetWinRate())
	assert.Empty(t, stats.WinsByMode)
}

func TestStatsWithoutStore(t *testing.T) {
	c := newController(t, testConfig(), nil)
	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.GamesPlayed)
}

func TestSetConfigSavesPreferences(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	prefs := storage.DefaultPreferences()
	prefs.Username = "ana"
	require.NoError(t, store.SavePreferences(prefs))

	c := newController(t, testConfig(), store)
	cfg := testConfig()
	cfg.Difficulty = "hard"
	cfg.HumanWhite = true
	require.NoError(t, c.SetConfig(cfg))

	got, err := store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.Equal(t, storage.DifficultyHard, got.Difficulty)
	assert.Equal(t, storage.ColorWhite, got.PlayerColor)
}

func TestApplyPreferences(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// First launch: the given settings become the stored preferences.
	cfg := testConfig()
	cfg.HumanWhite = true
	got, err := ApplyPreferences(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	first, err := store.IsFirstLaunch()
	require.NoError(t, err)
	assert.False(t, first)

	// Later launches: stored preferences override the defaults.
	got, err = ApplyPreferences(config.Default(), store)
	require.NoError(t, err)
	assert.True(t, got.HumanWhite)
	assert.Equal(t, "easy", got.Difficulty)

	got, err = ApplyPreferences(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

package protocol

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/game"
	"github.com/hailam/gomokuplay/internal/storage"
)

func newProtocol(t *testing.T) (*Protocol, *game.Controller, *bytes.Buffer) {
	t.Helper()
	return newProtocolWithStore(t, nil)
}

func newProtocolWithStore(t *testing.T, store *storage.Storage) (*Protocol, *game.Controller, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Difficulty = "easy"
	cfg.TTSizeMB = 4
	cfg.Ponder = false
	eng, err := engine.NewEngine(cfg.EngineOptions())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	ctrl := game.New(cfg, eng, store)
	t.Cleanup(func() { _ = ctrl.Close() })

	var out bytes.Buffer
	return New(ctrl, eng, &out), ctrl, &out
}

func TestPlayAndGo(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	script := "play 9 9\ngo depth 2\nisready\nd\nscore\nquit\nplay 1 1\n"
	require.NoError(t, p.Run(strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "played Black 9,9")
	assert.Contains(t, text, "info depth 1")
	assert.Contains(t, text, "info depth 2")
	assert.Contains(t, text, "bestmove ")
	assert.Contains(t, text, "readyok")
	assert.Contains(t, text, "to move Black")
	assert.Contains(t, text, "score ")
	assert.Equal(t, 2, ctrl.Position().StoneCount(), "commands after quit are ignored")
}

func TestPlayErrors(t *testing.T) {
	p, _, out := newProtocol(t)
	p.Execute("play 9 9")
	p.Execute("play 9,9")
	p.Execute("play 30 1")
	p.Execute("play")
	p.Execute("undo")
	p.Execute("undo")
	p.Execute("bogus")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "played Black 9,9", lines[0])
	assert.Contains(t, lines[1], "cell occupied")
	assert.Contains(t, lines[2], "error")
	assert.Contains(t, lines[3], "error missing cell")
	assert.Equal(t, "ok", lines[4])
	assert.Contains(t, lines[5], "no move to undo")
	assert.Contains(t, lines[6], "unknown command")
}

func TestDoubleThreeRejected(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	for _, cmd := range []string{
		"play 9 9", "play 0 0",
		"play 9 10", "play 0 2",
		"play 10 11", "play 0 4",
		"play 11 11", "play 0 6",
		"play 9 11",
	} {
		p.Execute(cmd)
	}
	assert.Contains(t, out.String(), "error")
	assert.Contains(t, out.String(), "double three")
	assert.Equal(t, board.Black, ctrl.Position().SideToMove())
}

func TestStopInfiniteSearch(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	p.Execute("play 9 9")
	p.Execute("go infinite")
	time.Sleep(30 * time.Millisecond)
	p.Execute("stop")

	assert.Contains(t, out.String(), "bestmove ")
	assert.Equal(t, 2, ctrl.Position().StoneCount())
}

func TestSuggestDoesNotPlay(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	p.Execute("play 9 9")
	p.Execute("suggest")
	assert.Contains(t, out.String(), "suggest ")
	assert.Equal(t, 1, ctrl.Position().StoneCount())
}

func TestSetOption(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	p.Execute("setoption name Difficulty value hard")
	p.Execute("setoption name Depth value 3")
	p.Execute("setoption name FiveRule value immediate")
	p.Execute("setoption name Depth value deep")
	p.Execute("setoption name Colour value red")

	cfg := ctrl.Config()
	assert.Equal(t, "hard", cfg.Difficulty)
	assert.Equal(t, 3, cfg.Depth)
	assert.Equal(t, "immediate", cfg.Rules.FiveRule)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"ok", "ok", "ok"}, lines[:3])
	assert.Contains(t, lines[3], "error option Depth")
	assert.Contains(t, lines[4], "unknown option")
}

func TestNewGameEngineOpens(t *testing.T) {
	p, ctrl, out := newProtocol(t)
	p.Execute("setoption name HumanWhite value true")
	p.Execute("new")
	assert.Contains(t, out.String(), "move Black 9,9")
	assert.Equal(t, board.White, ctrl.Position().SideToMove())
}

func TestPNGCommand(t *testing.T) {
	p, _, out := newProtocol(t)
	path := filepath.Join(t.TempDir(), "b.png")
	p.Execute("play 9 9")
	p.Execute("png " + path)
	assert.Contains(t, out.String(), "wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestParseGoOptions(t *testing.T) {
	opts := parseGoOptions(strings.Fields("depth 5 movetime 250 time 60000 inc 1000"))
	assert.Equal(t, GoOptions{
		Depth:     5,
		MoveTime:  250 * time.Millisecond,
		Remaining: time.Minute,
		Increment: time.Second,
	}, opts)
	assert.True(t, parseGoOptions([]string{"infinite"}).Infinite)
}

func TestGameEndReported(t *testing.T) {
	p, _, out := newProtocol(t)
	for _, cmd := range []string{
		"play 9 5", "play 0 0",
		"play 9 6", "play 0 2",
		"play 9 7", "play 0 4",
		"play 9 8", "play 0 6",
		"play 9 9",
	} {
		p.Execute(cmd)
	}
	assert.Contains(t, out.String(), "result Black wins")
	p.Execute("go depth 1")
	p.Execute("isready")
	assert.Contains(t, out.String(), "error game over")
}

func TestStatsAndPreferences(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	p, _, out := newProtocolWithStore(t, store)

	script := strings.Join([]string{
		"stats",
		"setoption name difficulty value hard",
		"setoption name suggestions value false",
		"play 9 5", "play 0 0",
		"play 9 6", "play 0 2",
		"play 9 7", "play 0 4",
		"play 9 8", "play 0 6",
		"play 9 9",
		"stats",
		"quit",
	}, "\n")
	require.NoError(t, p.Run(strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "stats games 0 wins 0 losses 0 draws 0 captures 0 streak 0 best 0 winrate 0.0")
	assert.Contains(t, text, "stats games 1 wins 1 losses 0 draws 0 captures 0 streak 1 best 1 winrate 100.0")

	prefs, err := store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, storage.DifficultyHard, prefs.Difficulty)
	assert.False(t, prefs.Suggestions)
}

func TestStatsWithoutStore(t *testing.T) {
	p, _, out := newProtocol(t)
	p.Execute("stats")
	assert.Contains(t, out.String(), "stats games 0 wins 0")
}

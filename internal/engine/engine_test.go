package engine

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/gomokuplay/internal/board"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(Options{TTSizeMB: 4, Difficulty: Easy})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func play(t *testing.T, p *board.Position, cells ...[2]int) *board.Position {
	t.Helper()
	for _, rc := range cells {
		next, err := p.Play(board.NewCell(rc[0], rc[1]))
		require.NoError(t, err)
		p = next
	}
	return p
}

func fromGrid(t *testing.T, toMove board.Stone, black, white [][2]int) *board.Position {
	t.Helper()
	var g board.Snapshot
	for _, rc := range black {
		g[rc[0]][rc[1]] = uint8(board.Black)
	}
	for _, rc := range white {
		g[rc[0]][rc[1]] = uint8(board.White)
	}
	p, err := board.FromGrid(board.DefaultEnv(), g, board.Captures{}, toMove)
	require.NoError(t, err)
	return p
}

// fullBoardExcept fills every cell but one with a pattern that has no five
// in any direction: pairs of columns alternate, shifted by one pair per row.
func fullBoardExcept(t *testing.T, empty board.Cell) *board.Position {
	t.Helper()
	var g board.Snapshot
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			g[row][col] = uint8(1 + ((col+2*row)/2)%2)
		}
	}
	g[empty.Row()][empty.Col()] = 0
	p, err := board.FromGrid(board.DefaultEnv(), g, board.Captures{}, board.White)
	require.NoError(t, err)
	return p
}

func TestEmptyBoardPlaysCenter(t *testing.T) {
	eng := newTestEngine(t)
	pos := board.NewPosition(board.DefaultEnv())

	m, _ := eng.BestMove(context.Background(), pos, 3)
	assert.Equal(t, board.Center, m.Cell)
	assert.Equal(t, board.Black, m.Color)
}

func TestSingleLegalMoveDepthOne(t *testing.T) {
	eng := newTestEngine(t)
	only := board.NewCell(9, 9)
	pos := fullBoardExcept(t, only)
	require.Equal(t, []board.Cell{only}, pos.LegalMoves())
	require.False(t, pos.IsTerminal())

	child, err := pos.Play(only)
	require.NoError(t, err)

	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 1})
	assert.Equal(t, only, r.Move)
	assert.Equal(t, child.Score(), r.Score)
	assert.False(t, r.Cancelled)

	m, _ := eng.BestMove(context.Background(), pos, 1)
	assert.Equal(t, only, m.Cell)
	assert.Equal(t, board.White, m.Color)
}

func TestBlackCompletesFive(t *testing.T) {
	eng := newTestEngine(t)
	pos := fromGrid(t, board.Black,
		[][2]int{{9, 5}, {9, 6}, {9, 7}, {9, 8}},
		[][2]int{{3, 3}, {3, 5}, {14, 14}, {15, 12}})

	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 2})
	assert.Contains(t, []board.Cell{board.NewCell(9, 4), board.NewCell(9, 9)}, r.Move)
	assert.Less(t, r.Score, int64(0))

	child, ok := pos.CachedChild(r.Move)
	require.True(t, ok)
	assert.True(t, child.IsTerminal())
	assert.Equal(t, board.Black, child.Winner())
}

func TestWhiteBlocksFour(t *testing.T) {
	eng := newTestEngine(t)
	pos := fromGrid(t, board.White,
		[][2]int{{9, 5}, {9, 6}, {9, 7}, {9, 8}, {3, 3}},
		[][2]int{{9, 4}, {3, 5}, {14, 14}, {15, 12}})

	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 2})
	assert.Equal(t, board.NewCell(9, 9), r.Move)
}

func TestCancelledSearchReturnsLegalMove(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()),
		[2]int{9, 9}, [2]int{9, 10}, [2]int{10, 9}, [2]int{8, 10}, [2]int{11, 11})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := eng.SearchWithLimits(ctx, pos, SearchLimits{Depth: 8})
	assert.True(t, r.Cancelled)
	assert.True(t, pos.IsLegal(r.Move), "move %s", r.Move)
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()),
		[2]int{9, 9}, [2]int{9, 10}, [2]int{10, 9})

	time.AfterFunc(50*time.Millisecond, eng.Stop)
	start := time.Now()
	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Infinite: true})
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, r.Cancelled)
	assert.True(t, pos.IsLegal(r.Move))
}

func TestCancelAfterSearchDoesNotLeak(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9}, [2]int{9, 10})

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		first := eng.SearchWithLimits(ctx, pos, SearchLimits{Depth: 1})
		require.False(t, first.Cancelled)
		cancel()

		next := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 2})
		require.False(t, next.Cancelled, "round %d", i)
		require.Equal(t, 2, next.Depth)
	}
}

func TestMoveTimeLimit(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()),
		[2]int{9, 9}, [2]int{10, 10}, [2]int{8, 9})

	var infos []SearchInfo
	eng.OnInfo = func(info SearchInfo) { infos = append(infos, info) }

	start := time.Now()
	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{MoveTime: 200 * time.Millisecond})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, pos.IsLegal(r.Move))

	require.NotEmpty(t, infos)
	for i := 1; i < len(infos); i++ {
		assert.Equal(t, infos[i-1].Depth+1, infos[i].Depth)
	}
}

func TestSearchRecordsNodeValues(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9}, [2]int{9, 10})

	r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 2})
	v, depth, ok := pos.SearchValue()
	require.True(t, ok)
	assert.Equal(t, 2, depth)
	assert.Equal(t, r.Score, v)
	assert.Positive(t, r.Nodes)
}

func TestDifficultySearch(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetDifficulty(Easy)
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9})
	move := eng.Search(pos)
	assert.True(t, pos.IsLegal(move))
	assert.Equal(t, "easy", eng.Difficulty().String())

	d, ok := ParseDifficulty("hard")
	assert.True(t, ok)
	assert.Equal(t, Hard, d)
}

func TestRandomizedRootStillLegal(t *testing.T) {
	eng, err := NewEngine(Options{TTSizeMB: 1, Randomize: true})
	require.NoError(t, err)
	defer eng.Close()
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9})
	for i := 0; i < 3; i++ {
		r := eng.SearchWithLimits(context.Background(), pos, SearchLimits{Depth: 1})
		assert.True(t, pos.IsLegal(r.Move))
	}
}

func TestTranspositionTable(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)
	defer tt.Close()

	_, found := tt.Lookup(12345)
	assert.False(t, found)

	tt.Store(12345, 3, -77, TTExact)
	tt.Wait()
	e, found := tt.Lookup(12345)
	require.True(t, found)
	assert.Equal(t, int64(-77), e.Score)
	assert.Equal(t, int8(3), e.Depth)
	assert.Equal(t, TTExact, e.Flag)

	// A shallower result does not replace a deeper one.
	tt.Store(12345, 1, 5, TTLowerBound)
	tt.Wait()
	e, _ = tt.Lookup(12345)
	assert.Equal(t, int64(-77), e.Score)

	assert.InDelta(t, 66.6, tt.HitRate(), 0.1)

	tt.Clear()
	_, found = tt.Lookup(12345)
	assert.False(t, found)
}

func TestTranspositionReusedAcrossMoveOrders(t *testing.T) {
	eng := newTestEngine(t)
	a := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9}, [2]int{0, 0}, [2]int{9, 10})
	b := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 10}, [2]int{0, 0}, [2]int{9, 9})
	require.Equal(t, a.Hash(), b.Hash())

	ra := eng.SearchWithLimits(context.Background(), a, SearchLimits{Depth: 2})
	eng.tt.Wait()
	before := eng.tt.hits.Load()
	rb := eng.SearchWithLimits(context.Background(), b, SearchLimits{Depth: 2})
	assert.Greater(t, eng.tt.hits.Load(), before)
	assert.Equal(t, ra.Score, rb.Score)
}

// minimax is the plain fixed-depth minimax over the same move generator.
func minimax(p *board.Position, depth int) int64 {
	if depth == 0 || p.IsTerminal() {
		return p.Score()
	}
	children := p.Expand()
	if len(children) == 0 {
		return p.Score()
	}
	maximize := p.SideToMove() == board.White
	best := worst(maximize)
	for _, c := range children {
		if v := minimax(c, depth-1); better(v, best, maximize) {
			best = v
		}
	}
	return best
}

func randomOpening(t *testing.T, rng *rand.Rand, moves int) [][2]int {
	t.Helper()
	p := board.NewPosition(board.DefaultEnv())
	var cells [][2]int
	for len(cells) < moves {
		rc := [2]int{7 + rng.IntN(5), 7 + rng.IntN(5)}
		next, err := p.Play(board.NewCell(rc[0], rc[1]))
		if err != nil {
			continue
		}
		p = next
		cells = append(cells, rc)
	}
	return cells
}

func TestAlphaBetaMatchesMinimax(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for game := 0; game < 4; game++ {
		opening := randomOpening(t, rng, 2+game)
		for depth := 2; depth <= 3; depth++ {
			want := minimax(play(t, board.NewPosition(board.DefaultEnv()), opening...), depth)

			plain := NewSearcher(nil).Search(play(t, board.NewPosition(board.DefaultEnv()), opening...), depth)
			assert.Equal(t, want, plain.Score, "opening %v depth %d", opening, depth)

			tt, err := NewTranspositionTable(1)
			require.NoError(t, err)
			cached := NewSearcher(tt)
			pos := play(t, board.NewPosition(board.DefaultEnv()), opening...)
			assert.Equal(t, want, cached.Search(pos, depth).Score, "opening %v depth %d with tt", opening, depth)
			tt.Wait()
			// A second pass answers from the table.
			assert.Equal(t, want, cached.Search(pos, depth).Score, "opening %v depth %d tt reuse", opening, depth)
			tt.Close()
		}
	}
}

func TestOrderByStaticScore(t *testing.T) {
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9}, [2]int{9, 10})
	children := pos.Expand()
	mo := NewMoveOrderer()

	// Black to move: ascending.
	mo.Order(children, false, false)
	for i := 1; i < len(children); i++ {
		assert.LessOrEqual(t, children[i-1].Score(), children[i].Score())
	}
	mo.Order(children, true, true)
	for i := 1; i < len(children); i++ {
		assert.GreaterOrEqual(t, children[i-1].Score(), children[i].Score())
	}
}

func TestPonderHandoff(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9}, [2]int{9, 10})

	p := eng.StartPonder(pos, SearchLimits{Depth: 2})
	r, ok := p.Wait()
	require.True(t, ok)
	assert.True(t, pos.IsLegal(r.Move))
	assert.Same(t, pos, p.Position())

	// The searched subtree stays on the position for reuse.
	assert.True(t, pos.Expanded())

	long := eng.StartPonder(pos, SearchLimits{Infinite: true})
	time.Sleep(20 * time.Millisecond)
	r, ok = long.Stop()
	require.True(t, ok)
	assert.True(t, r.Cancelled)
	assert.True(t, pos.IsLegal(r.Move))
}

func TestPonderResultChannel(t *testing.T) {
	eng := newTestEngine(t)
	pos := play(t, board.NewPosition(board.DefaultEnv()), [2]int{9, 9})

	p := eng.StartPonder(pos, SearchLimits{Depth: 1})
	select {
	case r := <-p.Results():
		assert.True(t, pos.IsLegal(r.Move))
	case <-time.After(10 * time.Second):
		t.Fatal("ponder did not finish")
	}
	_, ok := p.Stop()
	assert.False(t, ok, "result already taken")
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "+12", FormatScore(12))
	assert.Equal(t, "-3", FormatScore(-3))
	assert.Equal(t, "black wins", FormatScore(-Infinity))
}

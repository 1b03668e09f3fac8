package board

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/hailam/gomokuplay/internal/pattern"
)

// Lines are stored in fixed blocks. A child shares every block its move did
// not touch with its parent and copies the rest on first write.
const (
	linesPerBlock = 8
	numBlocks     = (NumLines + linesPerBlock - 1) / linesPerBlock
)

type lineBlock struct {
	enc  [linesPerBlock]uint32
	eval [linesPerBlock]pattern.LineEval
}

// Terminal state cache values.
const (
	terminalUnknown int8 = iota
	terminalNo
	terminalYes
)

// Snapshot is the grid as a 19x19 array of stone values {0,1,2}.
type Snapshot [Size][Size]uint8

// Position is a game state. Positions are immutable once returned: Apply
// builds a new position that shares unchanged line blocks with its parent.
// Only the child cache, the terminal cache and the search bookkeeping change
// after construction, and those belong to a single search walk at a time.
type Position struct {
	env *Env

	stones   [2]Bitboard // [plane]
	blocks   [numBlocks]*lineBlock
	owned    uint16 // blocks allocated by this position while staging
	captures Captures
	frontier Bitboard
	toMove   Stone
	last     Move
	ply      int

	lineScore int64
	score     int64
	fives     [2]int16 // lines holding a five, per plane

	hash uint64

	children  map[Cell]*Position
	forbidden Bitboard
	expanded  bool
	terminal  int8
	winner    Stone

	searchValue int64
	searchDepth int
	searched    bool
}

// NewPosition returns the empty board with Black to move.
func NewPosition(env *Env) *Position {
	p := &Position{env: env, toMove: Black, last: NoMove}
	zero := new(lineBlock)
	for i := range p.blocks {
		p.blocks[i] = zero
	}
	p.score = env.captureTerm(p.captures)
	p.hash = p.computeHash()
	return p
}

// FromGrid builds a position from a snapshot, evaluating every line from
// scratch. The frontier is every empty cell next to a stone.
func FromGrid(env *Env, grid Snapshot, captures Captures, toMove Stone) (*Position, error) {
	if !toMove.IsColor() {
		return nil, errors.Wrap(ErrNotAColor, "side to move")
	}
	p := &Position{env: env, toMove: toMove, last: NoMove, captures: captures}
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			s := Stone(grid[row][col])
			switch {
			case s == Empty:
			case s.IsColor():
				p.stones[s.plane()].Set(NewCell(row, col))
				p.ply++
			default:
				return nil, errors.Errorf("invalid stone %d at %d,%d", grid[row][col], row, col)
			}
		}
	}
	for id := 0; id < NumLines; id++ {
		p.setLine(id, p.encodeFromGrid(id))
	}
	p.frontier = frontierOf(p.stones)
	p.score = p.lineScore + env.captureTerm(p.captures)
	p.hash = p.computeHash()
	p.owned = 0
	return p, nil
}

// stage returns a child sharing all line blocks with p. The caller mutates
// the child and either returns it or drops it.
func (p *Position) stage() *Position {
	return &Position{
		env:       p.env,
		stones:    p.stones,
		blocks:    p.blocks,
		captures:  p.captures,
		frontier:  p.frontier,
		toMove:    p.toMove,
		ply:       p.ply,
		lineScore: p.lineScore,
		fives:     p.fives,
		hash:      p.hash,
		last:      NoMove,
	}
}

// Apply places a stone of the given color on cell and resolves captures.
// It returns the resulting position; p itself is never modified. Errors:
// ErrOutOfBounds, ErrCellOccupied, ErrDoubleThree, ErrNotAColor.
func (p *Position) Apply(color Stone, cell Cell) (*Position, error) {
	if !color.IsColor() {
		return nil, ErrNotAColor
	}
	if !cell.IsValid() {
		return nil, errors.Wrapf(ErrOutOfBounds, "cell %d", cell)
	}
	if p.StoneAt(cell) != Empty {
		return nil, errors.Wrapf(ErrCellOccupied, "%s", cell)
	}

	child := p.stage()
	evals := child.setStone(cell, Empty, color)

	if p.env.rules.ForbidDoubleThree {
		mover := pattern.Color(color)
		threes := 0
		for _, ev := range evals {
			if ev.HasOpenThree(mover) {
				threes++
				if threes > 1 {
					return nil, errors.Wrapf(ErrDoubleThree, "%s", cell)
				}
			}
		}
	}

	captured := child.findCaptures(color, cell)
	opp := color.Other()
	for _, c := range captured {
		child.setStone(c, opp, Empty)
	}
	if pairs := len(captured) / 2; pairs > 0 {
		child.addCaptures(color, pairs)
	}

	child.frontier = growFrontier(p.frontier, child.stones, cell, captured)
	if p.toMove != opp {
		child.hash ^= zobristSideToMove
	}
	child.toMove = opp
	child.ply++
	child.last = Move{Color: color, Cell: cell, Captured: captured}
	child.score = child.lineScore + p.env.captureTerm(child.captures)
	child.owned = 0
	return child, nil
}

// Play applies a move for the side to move.
func (p *Position) Play(cell Cell) (*Position, error) {
	return p.Apply(p.toMove, cell)
}

// Undo returns the position before the last move: the stone is removed, the
// captured stones are restored and the capture count is decremented. The
// frontier is rebuilt from the grid and the previous last move is not known.
func (p *Position) Undo() (*Position, error) {
	if p.last.IsNone() {
		return nil, ErrNoMoveToUndo
	}
	m := p.last
	q := p.stage()
	q.setStone(m.Cell, m.Color, Empty)
	opp := m.Color.Other()
	for _, c := range m.Captured {
		q.setStone(c, Empty, opp)
	}
	if pairs := m.Pairs(); pairs > 0 {
		q.addCaptures(m.Color, -pairs)
	}
	q.frontier = frontierOf(q.stones)
	if q.toMove != m.Color {
		q.hash ^= zobristSideToMove
	}
	q.toMove = m.Color
	q.ply--
	q.score = q.lineScore + p.env.captureTerm(q.captures)
	q.owned = 0
	return q, nil
}

// WithCaptures returns a copy of p with the capture counts replaced.
// The copy has no cached children.
func (p *Position) WithCaptures(c Captures) *Position {
	q := p.stage()
	q.last = p.last
	q.addCaptures(Black, c.Black-p.captures.Black)
	q.addCaptures(White, c.White-p.captures.White)
	q.score = q.lineScore + p.env.captureTerm(q.captures)
	return q
}

// setStone changes cell from old to s, updating the grid, the hash and the
// four lines through the cell. It returns the new evaluations of those lines.
func (p *Position) setStone(cell Cell, old, s Stone) [4]pattern.LineEval {
	if old != Empty {
		p.stones[old.plane()].Clear(cell)
		p.hash ^= ZobristStone(old, cell)
	}
	if s != Empty {
		p.stones[s.plane()].Set(cell)
		p.hash ^= ZobristStone(s, cell)
	}
	var evals [4]pattern.LineEval
	for i, ref := range lineRefs[cell] {
		enc := PlaceAt(p.lineEncoding(ref.ID), ref.Offset, old, s)
		evals[i] = p.setLine(ref.ID, enc)
	}
	return evals
}

func (p *Position) addCaptures(color Stone, n int) {
	if n == 0 {
		return
	}
	old := p.captures.Of(color)
	p.captures.add(color, n)
	p.hash ^= zobristCaptureDelta(color, old, old+n)
}

// setLine stores a line encoding and its evaluation, keeping the score sum
// and the five counts current.
func (p *Position) setLine(id int, enc uint32) pattern.LineEval {
	b := p.ownBlock(id / linesPerBlock)
	i := id % linesPerBlock
	old := b.eval[i]
	ev := p.env.eval.Evaluate(enc, lineLengths[id])
	b.enc[i] = enc
	b.eval[i] = ev

	p.lineScore += ev.Score - old.Score
	p.fives[0] += fiveDelta(old, ev, pattern.Black)
	p.fives[1] += fiveDelta(old, ev, pattern.White)
	return ev
}

func fiveDelta(old, ev pattern.LineEval, c pattern.Color) int16 {
	var d int16
	if ev.FiveOf(c) {
		d++
	}
	if old.FiveOf(c) {
		d--
	}
	return d
}

func (p *Position) ownBlock(bi int) *lineBlock {
	if p.owned&(1<<bi) == 0 {
		nb := new(lineBlock)
		if p.blocks[bi] != nil {
			*nb = *p.blocks[bi]
		}
		p.blocks[bi] = nb
		p.owned |= 1 << bi
	}
	return p.blocks[bi]
}

func (p *Position) lineEncoding(id int) uint32 {
	return p.blocks[id/linesPerBlock].enc[id%linesPerBlock]
}

func (p *Position) lineEval(id int) pattern.LineEval {
	return p.blocks[id/linesPerBlock].eval[id%linesPerBlock]
}

func (p *Position) encodeFromGrid(id int) uint32 {
	cells := lineCells[id]
	stones := make([]Stone, len(cells))
	for i, c := range cells {
		stones[i] = p.StoneAt(c)
	}
	return EncodeLine(stones)
}

func (p *Position) computeHash() uint64 {
	var h uint64
	for _, s := range []Stone{Black, White} {
		bb := p.stones[s.plane()]
		for _, c := range bb.Cells() {
			h ^= ZobristStone(s, c)
		}
		h ^= zobristCaptureKey(s, p.captures.Of(s))
	}
	if p.toMove == White {
		h ^= zobristSideToMove
	}
	return h
}

// StoneAt returns the stone on a cell.
func (p *Position) StoneAt(c Cell) Stone {
	switch {
	case p.stones[0].IsSet(c):
		return Black
	case p.stones[1].IsSet(c):
		return White
	}
	return Empty
}

// LineEncoding returns the current base-3 encoding of a line.
func (p *Position) LineEncoding(id int) uint32 {
	return p.lineEncoding(id)
}

// LineEval returns the cached evaluation of a line.
func (p *Position) LineEval(id int) pattern.LineEval {
	return p.lineEval(id)
}

// Score returns the aggregate score: the sum of line scores plus the
// capture term. Positive favors White.
func (p *Position) Score() int64 {
	return p.score
}

// RecomputeScore evaluates every line from the grid without the memo and
// returns the aggregate score. It must always equal Score.
func (p *Position) RecomputeScore() int64 {
	ev := pattern.NewEvaluator(p.env.eval.Table(), nil)
	var sum int64
	for id := 0; id < NumLines; id++ {
		sum += ev.Evaluate(p.encodeFromGrid(id), lineLengths[id]).Score
	}
	return sum + p.env.captureTerm(p.captures)
}

// CaptureCounts returns the captured pairs per color.
func (p *Position) CaptureCounts() Captures {
	return p.captures
}

// SideToMove returns the color to play.
func (p *Position) SideToMove() Stone {
	return p.toMove
}

// LastMove returns the move that produced this position, or NoMove.
func (p *Position) LastMove() Move {
	return p.last
}

// Ply returns the number of moves played.
func (p *Position) Ply() int {
	return p.ply
}

// Hash returns the Zobrist hash of stones, capture counts and side to move.
func (p *Position) Hash() uint64 {
	return p.hash
}

// Env returns the shared environment.
func (p *Position) Env() *Env {
	return p.env
}

// StoneCount returns the number of stones on the board.
func (p *Position) StoneCount() int {
	return p.stones[0].PopCount() + p.stones[1].PopCount()
}

// HasFive reports whether any line holds five in a row.
func (p *Position) HasFive() bool {
	return p.fives[0] > 0 || p.fives[1] > 0
}

// FiveOf reports whether color s holds five in a row.
func (p *Position) FiveOf(s Stone) bool {
	return s.IsColor() && p.fives[s.plane()] > 0
}

// LegalMoves returns the frontier cells not known to be forbidden, in
// ascending order. The empty board has no legal moves; callers open at Center.
func (p *Position) LegalMoves() []Cell {
	f := p.frontier.AndNot(p.forbidden)
	return f.Cells()
}

// IsLegal reports whether cell is an empty frontier cell not known to be
// forbidden.
func (p *Position) IsLegal(c Cell) bool {
	return c.IsValid() && p.frontier.IsSet(c) && !p.forbidden.IsSet(c)
}

// Child returns the cached position after the side to move plays cell,
// building it on first use. A cell rejected by the double-three rule is
// remembered and excluded from LegalMoves from then on.
func (p *Position) Child(c Cell) (*Position, error) {
	if ch, ok := p.children[c]; ok {
		return ch, nil
	}
	if c.IsValid() && p.forbidden.IsSet(c) {
		return nil, errors.Wrapf(ErrDoubleThree, "%s", c)
	}
	ch, err := p.Play(c)
	if err != nil {
		if errors.Is(err, ErrDoubleThree) {
			p.forbidden.Set(c)
		}
		return nil, err
	}
	if p.children == nil {
		p.children = make(map[Cell]*Position)
	}
	p.children[c] = ch
	return ch, nil
}

// Expand builds every legal child and returns them in cell order.
func (p *Position) Expand() []*Position {
	if !p.expanded {
		for _, c := range p.frontier.Cells() {
			_, _ = p.Child(c)
		}
		p.expanded = true
	}
	out := make([]*Position, 0, len(p.children))
	for _, c := range p.LegalMoves() {
		if ch, ok := p.children[c]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Expanded reports whether all children have been built.
func (p *Position) Expanded() bool {
	return p.expanded
}

// CachedChild returns a child only if it has already been built.
func (p *Position) CachedChild(c Cell) (*Position, bool) {
	ch, ok := p.children[c]
	return ch, ok
}

// ReleaseChildren drops the child cache.
func (p *Position) ReleaseChildren() {
	p.children = nil
	p.expanded = false
}

// SetSearchValue records the value a search computed for this node and the
// depth it searched.
func (p *Position) SetSearchValue(v int64, depth int) {
	p.searchValue = v
	p.searchDepth = depth
	p.searched = true
}

// SearchValue returns the last recorded search value and depth. Before any
// search it returns the static score at depth 0 and false.
func (p *Position) SearchValue() (int64, int, bool) {
	if !p.searched {
		return p.score, 0, false
	}
	return p.searchValue, p.searchDepth, true
}

// IsTerminal reports whether the game is over: a color reached the capture
// threshold, or a five stands that the opponent cannot break.
func (p *Position) IsTerminal() bool {
	if p.terminal == terminalUnknown {
		over, winner := p.checkTerminal()
		p.winner = winner
		if over {
			p.terminal = terminalYes
		} else {
			p.terminal = terminalNo
		}
	}
	return p.terminal == terminalYes
}

// Winner returns the winning color of a terminal position, or Empty.
func (p *Position) Winner() Stone {
	if !p.IsTerminal() {
		return Empty
	}
	return p.winner
}

func (p *Position) checkTerminal() (bool, Stone) {
	rules := p.env.rules
	if t := rules.CaptureThreshold; t > 0 {
		if p.captures.Black >= t {
			return true, Black
		}
		if p.captures.White >= t {
			return true, White
		}
	}

	blackFive, whiteFive := p.FiveOf(Black), p.FiveOf(White)
	var holder Stone
	switch {
	case !blackFive && !whiteFive:
		return false, Empty
	case blackFive && whiteFive:
		if p.last.IsNone() {
			return true, p.toMove.Other()
		}
		return true, p.last.Color
	case blackFive:
		holder = Black
	default:
		holder = White
	}

	if rules.FiveRule == Immediate {
		return true, holder
	}
	// The opponent already had its reply and the five still stands.
	if holder == p.toMove {
		return true, holder
	}

	replier := holder.Other()
	for _, c := range p.frontier.Cells() {
		child, err := p.Child(c)
		if err != nil {
			continue
		}
		if !child.FiveOf(holder) {
			return false, Empty
		}
		if t := rules.CaptureThreshold; t > 0 && child.captures.Of(replier) >= t {
			return false, Empty
		}
	}
	return true, holder
}

// Snapshot returns the grid as stone values.
func (p *Position) Snapshot() Snapshot {
	var s Snapshot
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			s[row][col] = uint8(p.StoneAt(NewCell(row, col)))
		}
	}
	return s
}

// String renders the board with row and column indices.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("   ")
	for col := 0; col < Size; col++ {
		sb.WriteByte(' ')
		sb.WriteByte("0123456789"[col%10])
	}
	sb.WriteByte('\n')
	for row := 0; row < Size; row++ {
		sb.WriteByte("0123456789"[row/10])
		sb.WriteByte("0123456789"[row%10])
		sb.WriteByte(' ')
		for col := 0; col < Size; col++ {
			sb.WriteByte(' ')
			sb.WriteByte(p.StoneAt(NewCell(row, col)).Char())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

package pattern

import "sync/atomic"

// Flags summarizes the decisive motifs on a line.
type Flags uint8

const (
	FiveBlack Flags = 1 << iota
	FiveWhite
	OpenThreeBlack
	OpenThreeWhite
)

// LineEval is the cached evaluation of one line: its score (White positive)
// and the motif flags the position logic needs.
type LineEval struct {
	Score int64
	Flags Flags
}

// HasFive reports whether either color has five in a row on the line.
func (e LineEval) HasFive() bool {
	return e.Flags&(FiveBlack|FiveWhite) != 0
}

// FiveOf reports whether color c has five in a row on the line.
func (e LineEval) FiveOf(c Color) bool {
	if c == Black {
		return e.Flags&FiveBlack != 0
	}
	return e.Flags&FiveWhite != 0
}

// HasOpenThree reports whether color c has an open three on the line.
func (e LineEval) HasOpenThree(c Color) bool {
	if c == Black {
		return e.Flags&OpenThreeBlack != 0
	}
	return e.Flags&OpenThreeWhite != 0
}

// Key identifies a line by encoding and length. Two lines with the same
// encoding but different lengths score differently, so both are packed.
type Key uint64

// MakeKey packs an encoding and a line length.
func MakeKey(enc uint32, length int) Key {
	return Key(uint64(enc)<<5 | uint64(length))
}

// Encoding returns the packed line encoding.
func (k Key) Encoding() uint32 {
	return uint32(k >> 5)
}

// Length returns the packed line length.
func (k Key) Length() int {
	return int(k & 31)
}

// Cache stores line evaluations. Implementations must be safe for
// concurrent use; Put never replaces an existing entry.
type Cache interface {
	Get(k Key) (LineEval, bool)
	Put(k Key, e LineEval)
}

// Evaluator scores lines through a MotifTable, memoizing results.
type Evaluator struct {
	table *MotifTable
	cache Cache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewEvaluator creates an evaluator. A nil table uses DefaultMotifTable;
// a nil cache disables memoization.
func NewEvaluator(table *MotifTable, cache Cache) *Evaluator {
	if table == nil {
		table = DefaultMotifTable()
	}
	return &Evaluator{table: table, cache: cache}
}

// Table returns the motif table used for scoring.
func (e *Evaluator) Table() *MotifTable {
	return e.table
}

// Cache returns the memo cache, or nil.
func (e *Evaluator) Cache() Cache {
	return e.cache
}

// Evaluate returns the score and flags of a line with the given encoding
// and length.
func (e *Evaluator) Evaluate(enc uint32, length int) LineEval {
	if enc == 0 {
		return LineEval{}
	}
	if e.cache == nil {
		return e.table.scoreLine(enc, length)
	}
	k := MakeKey(enc, length)
	if ev, ok := e.cache.Get(k); ok {
		e.hits.Add(1)
		return ev
	}
	e.misses.Add(1)
	ev := e.table.scoreLine(enc, length)
	e.cache.Put(k, ev)
	return ev
}

// Stats returns memo hits and misses since creation.
func (e *Evaluator) Stats() (hits, misses uint64) {
	return e.hits.Load(), e.misses.Load()
}

// HitRate returns the memo hit rate as a percentage.
func (e *Evaluator) HitRate() float64 {
	h, m := e.Stats()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m) * 100
}

// scoreLine slides every window width across the line.
func (t *MotifTable) scoreLine(enc uint32, length int) LineEval {
	var ev LineEval
	for _, w := range Widths {
		mod := pow3[w]
		windows := t.windows[w]
		v := enc
		for n := length; n >= w && v != 0; n-- {
			if win := v % mod; win != 0 {
				m := windows[win]
				if m.black != None {
					ev.Score -= t.weights.Motif[m.black]
					ev.Flags |= flagFor(m.black, Black)
				}
				if m.white != None {
					ev.Score += t.weights.Motif[m.white]
					ev.Flags |= flagFor(m.white, White)
				}
			}
			v /= 3
		}
	}
	return ev
}

func flagFor(m Motif, c Color) Flags {
	switch m {
	case Five:
		if c == Black {
			return FiveBlack
		}
		return FiveWhite
	case OpenThree:
		if c == Black {
			return OpenThreeBlack
		}
		return OpenThreeWhite
	}
	return 0
}

package board

import (
	"math/bits"
	"strings"
)

const bitboardWords = (NumCells + 63) / 64

// Bitboard is a 361-bit set with one bit per cell (bit i = Cell i).
// It is a value type: assignment copies it.
type Bitboard [bitboardWords]uint64

// CellBB returns a bitboard with only the given cell set.
func CellBB(c Cell) Bitboard {
	var b Bitboard
	b.Set(c)
	return b
}

// Set sets the bit for the given cell.
func (b *Bitboard) Set(c Cell) {
	b[c>>6] |= 1 << (c & 63)
}

// Clear clears the bit for the given cell.
func (b *Bitboard) Clear(c Cell) {
	b[c>>6] &^= 1 << (c & 63)
}

// IsSet returns true if the bit for the given cell is set.
func (b *Bitboard) IsSet(c Cell) bool {
	return b[c>>6]&(1<<(c&63)) != 0
}

// PopCount returns the number of set bits.
func (b *Bitboard) PopCount() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty returns true if no bit is set.
func (b *Bitboard) IsEmpty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

// Or returns the union of two bitboards.
func (b Bitboard) Or(o Bitboard) Bitboard {
	for i := range b {
		b[i] |= o[i]
	}
	return b
}

// AndNot returns b with every bit of o cleared.
func (b Bitboard) AndNot(o Bitboard) Bitboard {
	for i := range b {
		b[i] &^= o[i]
	}
	return b
}

// Cells returns the set cells in ascending order.
func (b *Bitboard) Cells() []Cell {
	cells := make([]Cell, 0, b.PopCount())
	for i, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			cells = append(cells, Cell(i*64+tz))
			w &= w - 1 // clear LSB
		}
	}
	return cells
}

// String renders the bitboard as a 19x19 grid of 1s and dots.
func (b Bitboard) String() string {
	var sb strings.Builder
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b.IsSet(NewCell(row, col)) {
				sb.WriteString("1 ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

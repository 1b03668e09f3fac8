// Package board implements the 19x19 gomoku position: stones, line encodings,
// captures and the legal-move frontier.
package board

import (
	"fmt"

	"github.com/pkg/errors"
)

// Size is the board width and height.
const Size = 19

// NumCells is the number of cells on the board.
const NumCells = Size * Size

// Cell represents a board cell (0-360), row-major: (0,0)=0, (18,18)=360.
type Cell uint16

// NoCell marks the absence of a cell.
const NoCell Cell = NumCells

// Center is the middle of the board, used for the opening move.
const Center Cell = (Size/2)*Size + Size/2

// NewCell creates a cell from row and column (0-indexed). Callers must pass
// in-range coordinates; use NewCellChecked for untrusted input.
func NewCell(row, col int) Cell {
	return Cell(row*Size + col)
}

// NewCellChecked creates a cell, rejecting out-of-range coordinates.
func NewCellChecked(row, col int) (Cell, error) {
	if !InBounds(row, col) {
		return NoCell, errors.Wrapf(ErrOutOfBounds, "(%d,%d)", row, col)
	}
	return NewCell(row, col), nil
}

// InBounds reports whether (row, col) lies on the board.
func InBounds(row, col int) bool {
	return row >= 0 && row < Size && col >= 0 && col < Size
}

// Row returns the row of the cell.
func (c Cell) Row() int {
	return int(c) / Size
}

// Col returns the column of the cell.
func (c Cell) Col() int {
	return int(c) % Size
}

// IsValid returns true if the cell is on the board.
func (c Cell) IsValid() bool {
	return c < NoCell
}

// String returns "row,col".
func (c Cell) String() string {
	if !c.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d,%d", c.Row(), c.Col())
}

// ParseCell parses "row col" or "row,col".
func ParseCell(s string) (Cell, error) {
	var row, col int
	if _, err := fmt.Sscanf(s, "%d,%d", &row, &col); err != nil {
		if _, err := fmt.Sscanf(s, "%d %d", &row, &col); err != nil {
			return NoCell, errors.Errorf("invalid cell: %q", s)
		}
	}
	return NewCellChecked(row, col)
}

// Neighbor returns the cell offset by (dr, dc) and whether it is on the board.
func (c Cell) Neighbor(dr, dc int) (Cell, bool) {
	r, col := c.Row()+dr, c.Col()+dc
	if !InBounds(r, col) {
		return NoCell, false
	}
	return NewCell(r, col), true
}

// directions lists the 8 compass directions as (dr, dc).
var directions = [8][2]int{
	{0, 1}, {0, -1}, {1, 0}, {-1, 0},
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

// neighbors[c] holds the on-board cells at Chebyshev distance 1 from c.
var neighbors [NumCells][]Cell

func init() {
	for c := Cell(0); c < NoCell; c++ {
		for _, d := range directions {
			if n, ok := c.Neighbor(d[0], d[1]); ok {
				neighbors[c] = append(neighbors[c], n)
			}
		}
	}
}

package board

import "github.com/pkg/errors"

var (
	// ErrCellOccupied is returned when a stone is placed on a non-empty cell.
	ErrCellOccupied = errors.New("cell occupied")

	// ErrDoubleThree is returned when a placement creates two open threes
	// for the mover at once.
	ErrDoubleThree = errors.New("double three")

	// ErrOutOfBounds is returned for coordinates off the board.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrNoMoveToUndo is returned by Undo on a position without a last move.
	ErrNoMoveToUndo = errors.New("no move to undo")

	// ErrNotAColor is returned when Empty is passed where a color is required.
	ErrNotAColor = errors.New("not a color")
)

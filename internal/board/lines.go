package board

// Line layout: 19 rows, 19 columns, 37 main diagonals, 37 anti-diagonals.
// Every cell lies on exactly one line of each family.
const (
	lineRow      = 0
	lineColumn   = lineRow + Size
	lineMainDiag = lineColumn + Size
	lineAntiDiag = lineMainDiag + 2*Size - 1

	// NumLines is the total number of lines.
	NumLines = lineAntiDiag + 2*Size - 1
)

// pow3[i] = 3^i. A 19-cell line encoding peaks below 3^19 < 2^32.
var pow3 [Size + 1]uint32

// LineRef locates a cell within one line: the line id and the digit offset
// of the cell in that line's encoding.
type LineRef struct {
	ID     int
	Offset int
}

var (
	lineRefs    [NumCells][4]LineRef
	lineLengths [NumLines]int
	lineCells   [NumLines][]Cell
)

func init() {
	pow3[0] = 1
	for i := 1; i <= Size; i++ {
		pow3[i] = pow3[i-1] * 3
	}

	for c := Cell(0); c < NoCell; c++ {
		row, col := c.Row(), c.Col()
		lineRefs[c] = [4]LineRef{
			{ID: lineRow + row, Offset: col},
			{ID: lineColumn + col, Offset: row},
			{ID: lineMainDiag + (Size - 1) + col - row, Offset: (Size - 1) - max(col, row)},
			{ID: lineAntiDiag + col + row, Offset: (Size - 1) - max((Size-1)-row, col)},
		}
		for _, ref := range lineRefs[c] {
			lineLengths[ref.ID]++
		}
	}

	// lineCells[id][offset] = cell
	for id := range lineCells {
		lineCells[id] = make([]Cell, lineLengths[id])
	}
	for c := Cell(0); c < NoCell; c++ {
		for _, ref := range lineRefs[c] {
			lineCells[ref.ID][ref.Offset] = c
		}
	}
}

// LinesThrough returns the row, column, main diagonal and anti-diagonal
// through a cell, each with the cell's offset in that line.
func LinesThrough(c Cell) [4]LineRef {
	return lineRefs[c]
}

// LineLength returns the number of cells on a line.
func LineLength(id int) int {
	return lineLengths[id]
}

// LineCells returns the cells of a line ordered by offset.
func LineCells(id int) []Cell {
	return lineCells[id]
}

// PlaceAt returns the encoding with the digit at offset changed from old to s.
func PlaceAt(enc uint32, offset int, old, s Stone) uint32 {
	return enc - uint32(old)*pow3[offset] + uint32(s)*pow3[offset]
}

// DigitAt returns the stone stored at offset in an encoding.
func DigitAt(enc uint32, offset int) Stone {
	return Stone(enc / pow3[offset] % 3)
}

// EncodeLine encodes a stone sequence, stones[i] at offset i.
func EncodeLine(stones []Stone) uint32 {
	var enc uint32
	for i := len(stones) - 1; i >= 0; i-- {
		enc = enc*3 + uint32(stones[i])
	}
	return enc
}

package board

// rays[c][d] holds the three cells stepping from c in direction d, NoCell
// where the ray leaves the board.
var rays [NumCells][8][3]Cell

func init() {
	for c := Cell(0); c < NoCell; c++ {
		for d, dir := range directions {
			for k := 0; k < 3; k++ {
				n, ok := c.Neighbor(dir[0]*(k+1), dir[1]*(k+1))
				if !ok {
					n = NoCell
				}
				rays[c][d][k] = n
			}
		}
	}
}

// findCaptures returns the opponent stones bracketed by a color stone just
// placed on cell: for each direction, distance 1 and 2 hold the opponent and
// distance 3 holds the mover. Cells come in pairs.
func (p *Position) findCaptures(color Stone, cell Cell) []Cell {
	opp := color.Other()
	var captured []Cell
	for d := range rays[cell] {
		ray := &rays[cell][d]
		if ray[2] == NoCell {
			continue
		}
		if p.StoneAt(ray[0]) == opp && p.StoneAt(ray[1]) == opp && p.StoneAt(ray[2]) == color {
			captured = append(captured, ray[0], ray[1])
		}
	}
	return captured
}

package board

// frontierOf returns every empty cell adjacent to a stone.
func frontierOf(stones [2]Bitboard) Bitboard {
	occ := stones[0].Or(stones[1])
	var f Bitboard
	for _, c := range occ.Cells() {
		for _, n := range neighbors[c] {
			f.Set(n)
		}
	}
	return f.AndNot(occ)
}

// growFrontier updates a parent's frontier for a stone placed on cell and
// the given cells vacated by captures.
func growFrontier(f Bitboard, stones [2]Bitboard, cell Cell, vacated []Cell) Bitboard {
	occ := stones[0].Or(stones[1])
	f.Clear(cell)
	for _, n := range neighbors[cell] {
		if !occ.IsSet(n) {
			f.Set(n)
		}
	}
	for _, c := range vacated {
		f.Set(c)
	}
	return f
}

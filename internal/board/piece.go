package board

// Stone is the content of a cell. The numeric values double as the base-3
// digits used in line encodings.
type Stone uint8

const (
	Empty Stone = iota
	Black
	White
)

// Other returns the opposing color. Empty stays Empty.
func (s Stone) Other() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// IsColor returns true for Black and White.
func (s Stone) IsColor() bool {
	return s == Black || s == White
}

// String returns the stone name.
func (s Stone) String() string {
	switch s {
	case Black:
		return "Black"
	case White:
		return "White"
	default:
		return "Empty"
	}
}

// Char returns the single-character board glyph.
func (s Stone) Char() byte {
	switch s {
	case Black:
		return 'X'
	case White:
		return 'O'
	default:
		return '.'
	}
}

// plane returns the bit plane index for a color (0 for Black, 1 for White).
func (s Stone) plane() int {
	return int(s) - 1
}

// Captures holds the number of captured pairs per color.
type Captures struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Of returns the capture count for a color.
func (c Captures) Of(s Stone) int {
	if s == White {
		return c.White
	}
	if s == Black {
		return c.Black
	}
	return 0
}

func (c *Captures) add(s Stone, n int) {
	if s == White {
		c.White += n
	} else if s == Black {
		c.Black += n
	}
}

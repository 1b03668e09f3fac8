// Package pattern scores fixed-width stone motifs along a board line.
package pattern

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Color identifies a side. Values match the base-3 digits of a line
// encoding: 0 empty, 1 black, 2 white.
type Color uint8

const (
	NoColor Color = iota
	Black
	White
)

func (c Color) other() Color {
	return 3 - c
}

// Motif is a scored window shape, ordered by importance.
type Motif uint8

const (
	None Motif = iota
	CaptureSetup
	Two
	Three
	OpenThree
	Four
	OpenFour
	Five

	NumMotifs
)

var motifNames = [NumMotifs]string{
	None:         "none",
	CaptureSetup: "capture-setup",
	Two:          "two",
	Three:        "three",
	OpenThree:    "open-three",
	Four:         "four",
	OpenFour:     "open-four",
	Five:         "five",
}

// String returns the motif name.
func (m Motif) String() string {
	if m >= NumMotifs {
		return fmt.Sprintf("motif(%d)", uint8(m))
	}
	return motifNames[m]
}

// Window widths, widest first.
var Widths = [3]int{6, 5, 4}

// MaxWidth is the widest window.
const MaxWidth = 6

// pow3[i] = 3^i
var pow3 = [...]uint32{1, 3, 9, 27, 81, 243, 729, 2187, 6561, 19683, 59049, 177147,
	531441, 1594323, 4782969, 14348907, 43046721, 129140163, 387420489, 1162261467}

// Weights is the tunable value table. Each motif must outrank every
// combination of lower motifs that fits on one line.
type Weights struct {
	Motif [NumMotifs]int64

	// CapturePair is scored per captured pair of difference.
	CapturePair int64

	// CaptureWin is added for the side that reached the capture threshold.
	CaptureWin int64
}

// DefaultWeights scales each category by 500 over the previous one.
var DefaultWeights = Weights{
	Motif: [NumMotifs]int64{
		None:         0,
		CaptureSetup: 1,
		Two:          500,
		Three:        250_000,
		OpenThree:    125_000_000,
		Four:         62_500_000_000,
		OpenFour:     31_250_000_000_000,
		Five:         15_625_000_000_000_000,
	},
	CapturePair: 62_500_000_000,
	CaptureWin:  15_625_000_000_000_000,
}

// Fingerprint hashes every weight. Memoized line scores are only valid
// under the weights that produced them.
func (w Weights) Fingerprint() uint64 {
	var buf [(NumMotifs + 2) * 8]byte
	for i, v := range w.Motif {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	binary.LittleEndian.PutUint64(buf[NumMotifs*8:], uint64(w.CapturePair))
	binary.LittleEndian.PutUint64(buf[(NumMotifs+1)*8:], uint64(w.CaptureWin))
	return xxhash.Sum64(buf[:])
}

// CaptureTerm returns the capture contribution to a position score,
// White positive.
func (w Weights) CaptureTerm(black, white, threshold int) int64 {
	term := int64(white-black) * w.CapturePair
	if threshold > 0 {
		if white >= threshold {
			term += w.CaptureWin
		}
		if black >= threshold {
			term -= w.CaptureWin
		}
	}
	return term
}

// windowMatch is the motif a window forms for each color.
type windowMatch struct {
	black Motif
	white Motif
}

// MotifTable maps every window value of each width to its motif per color.
// It is immutable after construction and safe to share.
type MotifTable struct {
	weights Weights
	windows [MaxWidth + 1][]windowMatch
}

// NewMotifTable builds the lookup tables for the given weights.
func NewMotifTable(w Weights) *MotifTable {
	t := &MotifTable{weights: w}
	for _, width := range Widths {
		t.windows[width] = make([]windowMatch, pow3[width])
	}

	for _, c := range []Color{Black, White} {
		// Width 6: open shapes need room on both sides.
		t.addTemplates(c, OpenFour, "_XXXX_")
		t.addTemplates(c, OpenThree, "_XXX__", "_XX_X_")

		// Width 5: classified by stone count when the window is free of the opponent.
		for v := uint32(0); v < pow3[5]; v++ {
			own, opp := countDigits(v, 5, c)
			if opp > 0 {
				continue
			}
			switch own {
			case 5:
				t.set(5, v, c, Five)
			case 4:
				t.set(5, v, c, Four)
			case 3:
				t.set(5, v, c, Three)
			case 2:
				t.set(5, v, c, Two)
			}
		}

		// Width 4: an enemy pair with our stone on one end and room on the other.
		t.addTemplates(c, CaptureSetup, "XOO_")
	}
	return t
}

var defaultTable = NewMotifTable(DefaultWeights)

// DefaultMotifTable returns the shared table built from DefaultWeights.
func DefaultMotifTable() *MotifTable {
	return defaultTable
}

// Weights returns the value table.
func (t *MotifTable) Weights() Weights {
	return t.weights
}

// Value returns the points for a motif.
func (t *MotifTable) Value(m Motif) int64 {
	return t.weights.Motif[m]
}

// Match returns the motif a window forms for a color.
func (t *MotifTable) Match(width int, window uint32, c Color) Motif {
	m := t.windows[width][window]
	if c == Black {
		return m.black
	}
	return m.white
}

// addTemplates registers templates and their reverses. In a template X is
// the color c, O the opponent and _ an empty cell; character i is digit i.
func (t *MotifTable) addTemplates(c Color, m Motif, templates ...string) {
	for _, tpl := range templates {
		t.set(len(tpl), templateValue(tpl, c), c, m)
		t.set(len(tpl), templateValue(reverse(tpl), c), c, m)
	}
}

func (t *MotifTable) set(width int, v uint32, c Color, m Motif) {
	if c == Black {
		t.windows[width][v].black = m
	} else {
		t.windows[width][v].white = m
	}
}

func templateValue(tpl string, c Color) uint32 {
	var v uint32
	for i := len(tpl) - 1; i >= 0; i-- {
		var d Color
		switch tpl[i] {
		case 'X':
			d = c
		case 'O':
			d = c.other()
		}
		v = v*3 + uint32(d)
	}
	return v
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func countDigits(v uint32, width int, c Color) (own, opp int) {
	for i := 0; i < width; i++ {
		switch Color(v % 3) {
		case c:
			own++
		case c.other():
			opp++
		}
		v /= 3
	}
	return own, opp
}

package board

// Zobrist hash keys for position hashing.
// Uses PRNG with fixed seed for reproducibility.
var (
	zobristStone      [2][NumCells]uint64 // [plane][Cell]
	zobristCaptures   [2][maxHashedCaptures + 1]uint64
	zobristSideToMove uint64 // XOR when White to move
)

// Capture counts beyond this share a key; the game ends long before.
const maxHashedCaptures = 31

func init() {
	rng := newPRNG(0x6F0C_0A7E_19B1_D5E3)
	for p := 0; p < 2; p++ {
		for c := range zobristStone[p] {
			zobristStone[p][c] = rng.next()
		}
	}
	for p := 0; p < 2; p++ {
		for n := range zobristCaptures[p] {
			zobristCaptures[p][n] = rng.next()
		}
	}
	zobristSideToMove = rng.next()
}

// Simple PRNG for reproducible Zobrist keys
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

// ZobristStone returns the key for a stone of color s on cell c.
func ZobristStone(s Stone, c Cell) uint64 {
	return zobristStone[s.plane()][c]
}

func zobristCaptureKey(s Stone, n int) uint64 {
	return zobristCaptures[s.plane()][min(n, maxHashedCaptures)]
}

// zobristCaptureDelta is the hash change when s's count moves from old to n.
func zobristCaptureDelta(s Stone, old, n int) uint64 {
	return zobristCaptureKey(s, old) ^ zobristCaptureKey(s, n)
}

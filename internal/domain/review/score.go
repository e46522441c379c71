package review

// mateScale is the centipawn-equivalent magnitude used when comparing a
// forced mate against centipawn scores. Closer mates resolve higher.
const mateScale = 10000

// Score is either a centipawn evaluation or a mate-in-N, never both.
// Stored values are always from White's perspective.
type Score struct {
	mate  bool
	value int
}

func Centipawns(v int) Score { return Score{value: v} }

// MateIn builds a mate score. Positive n means White mates in n moves,
// negative n means Black mates in -n moves.
func MateIn(n int) Score { return Score{mate: true, value: n} }

func (s Score) IsMate() bool { return s.mate }

func (s Score) Centipawns() (int, bool) {
	if s.mate {
		return 0, false
	}
	return s.value, true
}

func (s Score) Mate() (int, bool) {
	if !s.mate {
		return 0, false
	}
	return s.value, true
}

// Resolved collapses the score onto a single centipawn axis so that mates
// compare above any static evaluation.
func (s Score) Resolved() int {
	if !s.mate {
		return s.value
	}
	if s.value >= 0 {
		return mateScale - s.value
	}
	return -(mateScale + s.value)
}

// POV returns the resolved score from the given color's perspective.
func (s Score) POV(c Color) int {
	v := s.Resolved()
	if c == Black {
		return -v
	}
	return v
}

// Flip mirrors the score to the other side's perspective.
func (s Score) Flip() Score {
	return Score{mate: s.mate, value: -s.value}
}

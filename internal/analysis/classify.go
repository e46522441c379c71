package analysis

import (
	"chess_review/internal/domain/review"
)

// Thresholds are the ascending centipawn-loss bands for classification,
// compared against the phase-adjusted loss. Kept as data so shallower
// analysis depths can run with looser bands.
type Thresholds struct {
	Best       float64
	Good       float64
	Inaccuracy float64
	Miss       float64
	Mistake    float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Best:       5,
		Good:       40,
		Inaccuracy: 90,
		Miss:       140,
		Mistake:    220,
	}
}

// Dominance forgiveness: positions already decisively won before the move
// and still clearly won after it do not deserve loss-band punishment.
const (
	dominantBefore = 600
	dominantAfter  = 500
)

// Flags are the contextual facts that outrank the loss bands.
type Flags struct {
	Book      bool
	Brilliant bool
	Great     bool
	Best      bool
	Forced    bool
}

// Classify maps a centipawn loss plus context onto one label.
// Precedence: book > brilliant > forced > phase-adjusted bands.
func Classify(loss int, flags Flags, moveNumber int, evalBefore, evalAfter review.Score, mover review.Color, isCheck bool, t Thresholds) review.Classification {
	if flags.Book {
		return review.ClassificationBook
	}
	if flags.Brilliant {
		return review.ClassificationBrilliant
	}
	if flags.Forced {
		return review.ClassificationForced
	}

	adjusted := float64(loss) * phaseMultiplier(moveNumber)

	if flags.Great || (isCheck && adjusted <= t.Best) {
		return review.ClassificationGreat
	}
	// A played best move can never be a miss.
	if flags.Best {
		return review.ClassificationBest
	}

	before := evalBefore.POV(mover)
	after := evalAfter.POV(mover)
	if before >= dominantBefore && after >= dominantAfter && adjusted <= t.Miss {
		return review.ClassificationGood
	}

	switch {
	case adjusted <= t.Best:
		return review.ClassificationBest
	case adjusted <= t.Good:
		return review.ClassificationGood
	case adjusted <= t.Inaccuracy:
		return review.ClassificationInaccuracy
	case adjusted <= t.Miss:
		return review.ClassificationMiss
	case adjusted <= t.Mistake:
		return review.ClassificationMistake
	default:
		return review.ClassificationBlunder
	}
}

// phaseMultiplier discounts the raw loss outside the contested middlegame,
// where shallow-depth evaluation swings are less trustworthy.
func phaseMultiplier(moveNumber int) float64 {
	switch {
	case moveNumber <= 6:
		return 0.85
	case moveNumber <= 20:
		return 0.95
	case moveNumber <= 25:
		return 1.0
	default:
		return 0.9
	}
}

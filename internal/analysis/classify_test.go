package analysis

import (
	"testing"

	"chess_review/internal/domain/review"
)

func TestClassifyBands(t *testing.T) {
	thresholds := DefaultThresholds()
	even := review.Centipawns(0)

	tests := []struct {
		loss int
		want review.Classification
	}{
		{0, review.ClassificationBest},
		{5, review.ClassificationBest},
		{6, review.ClassificationGood},
		{40, review.ClassificationGood},
		{41, review.ClassificationInaccuracy},
		{90, review.ClassificationInaccuracy},
		{91, review.ClassificationMiss},
		{140, review.ClassificationMiss},
		{141, review.ClassificationMistake},
		{220, review.ClassificationMistake},
		{221, review.ClassificationBlunder},
	}

	// Move number 22 sits in the unit-multiplier window, so the raw loss
	// is compared against the bands as is.
	for _, tt := range tests {
		got := Classify(tt.loss, Flags{}, 22, even, even, review.White, false, thresholds)
		if got != tt.want {
			t.Errorf("loss %d: got %s, want %s", tt.loss, got, tt.want)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	thresholds := DefaultThresholds()
	even := review.Centipawns(0)

	tests := []struct {
		name  string
		loss  int
		flags Flags
		want  review.Classification
	}{
		{"book wins over everything", 300, Flags{Book: true, Brilliant: true}, review.ClassificationBook},
		{"brilliant wins over forced", 10, Flags{Brilliant: true, Forced: true}, review.ClassificationBrilliant},
		{"forced wins over bands", 300, Flags{Forced: true}, review.ClassificationForced},
		{"great flag", 0, Flags{Great: true, Best: true}, review.ClassificationGreat},
		{"best flag despite loss", 50, Flags{Best: true}, review.ClassificationBest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.loss, tt.flags, 22, even, even, review.White, false, thresholds)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyCheckingBestMoveIsGreat(t *testing.T) {
	even := review.Centipawns(0)
	got := Classify(0, Flags{}, 22, even, even, review.White, true, DefaultThresholds())
	if got != review.ClassificationGreat {
		t.Errorf("lossless check: got %s, want great", got)
	}
}

func TestClassifyPhaseMultiplier(t *testing.T) {
	thresholds := DefaultThresholds()
	even := review.Centipawns(0)

	tests := []struct {
		name       string
		moveNumber int
		loss       int
		want       review.Classification
	}{
		// 100 cp adjusted to 85 in the opening stays an inaccuracy.
		{"opening discount", 3, 100, review.ClassificationInaccuracy},
		// The same loss in the middlegame crosses into miss territory.
		{"early middlegame", 15, 100, review.ClassificationMiss},
		{"late middlegame full weight", 22, 100, review.ClassificationMiss},
		// 100 cp adjusted to 90 in the endgame lands on the boundary.
		{"endgame discount", 40, 100, review.ClassificationInaccuracy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.loss, Flags{}, tt.moveNumber, even, even, review.White, false, thresholds)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyDominanceForgiveness(t *testing.T) {
	thresholds := DefaultThresholds()

	// White is completely winning before and after; a 120 cp slip is
	// forgiven down to good.
	got := Classify(120, Flags{}, 22, review.Centipawns(700), review.Centipawns(550), review.White, false, thresholds)
	if got != review.ClassificationGood {
		t.Errorf("dominant position slip: got %s, want good", got)
	}

	// The same slip in an even position is a miss.
	got = Classify(120, Flags{}, 22, review.Centipawns(0), review.Centipawns(-120), review.White, false, thresholds)
	if got != review.ClassificationMiss {
		t.Errorf("even position slip: got %s, want miss", got)
	}

	// Forgiveness never covers a genuine collapse.
	got = Classify(300, Flags{}, 22, review.Centipawns(900), review.Centipawns(600), review.White, false, thresholds)
	if got != review.ClassificationBlunder {
		t.Errorf("dominant blunder: got %s, want blunder", got)
	}

	// Black's dominance is measured from Black's side.
	got = Classify(120, Flags{}, 22, review.Centipawns(-700), review.Centipawns(-550), review.Black, false, thresholds)
	if got != review.ClassificationGood {
		t.Errorf("black dominant slip: got %s, want good", got)
	}
}

package review

import "testing"

func TestScoreResolved(t *testing.T) {
	tests := []struct {
		name  string
		score Score
		want  int
	}{
		{"positive centipawns", Centipawns(120), 120},
		{"negative centipawns", Centipawns(-45), -45},
		{"white mates in 2", MateIn(2), 9998},
		{"black mates in 3", MateIn(-3), -9997},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.score.Resolved(); got != tt.want {
				t.Errorf("Resolved() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMateOutranksCentipawns(t *testing.T) {
	if MateIn(5).Resolved() <= Centipawns(900).Resolved() {
		t.Error("a forced mate must resolve above any static evaluation")
	}
	if MateIn(1).Resolved() <= MateIn(4).Resolved() {
		t.Error("a closer mate must resolve higher")
	}
	if MateIn(-1).Resolved() >= MateIn(-4).Resolved() {
		t.Error("a closer mate against must resolve lower")
	}
}

func TestScorePOVAndFlip(t *testing.T) {
	s := Centipawns(150)
	if s.POV(White) != 150 || s.POV(Black) != -150 {
		t.Errorf("POV mismatch: white %d black %d", s.POV(White), s.POV(Black))
	}

	m := MateIn(2)
	if m.POV(Black) != -m.POV(White) {
		t.Error("POV must be antisymmetric")
	}

	flipped := m.Flip()
	if n, ok := flipped.Mate(); !ok || n != -2 {
		t.Errorf("Flip of mate-in-2 = %v, want mate-in--2", flipped)
	}
	if !flipped.IsMate() {
		t.Error("Flip must preserve mate-ness")
	}
}

func TestScoreAccessors(t *testing.T) {
	if _, ok := Centipawns(10).Mate(); ok {
		t.Error("centipawn score must not report a mate")
	}
	if _, ok := MateIn(3).Centipawns(); ok {
		t.Error("mate score must not report centipawns")
	}
	if cp, ok := Centipawns(-7).Centipawns(); !ok || cp != -7 {
		t.Errorf("Centipawns() = %d,%v", cp, ok)
	}
}

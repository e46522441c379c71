package book

import (
	"testing"

	"chess_review/internal/pgn"
)

func TestKnownLineIsBook(t *testing.T) {
	b := Default()

	moves := pgn.Parse("1. e4 e5 2. Nf3 Nc6 3. Bb5")
	if len(moves) != 5 {
		t.Fatalf("expected 5 parsed moves, got %d", len(moves))
	}
	for _, m := range moves {
		if !b.IsBookMove(m.FenBefore, m.Uci, m.Ply) {
			t.Errorf("ply %d (%s) should be book", m.Ply, m.San)
		}
	}
}

func TestUnrelatedLineNotBook(t *testing.T) {
	b := Default()

	for _, m := range pgn.Parse("1. a4 h5 2. Ra3") {
		if b.IsBookMove(m.FenBefore, m.Uci, m.Ply) {
			t.Errorf("ply %d (%s) should not be book", m.Ply, m.San)
		}
	}
}

func TestContinuationFromBookPositionIsBook(t *testing.T) {
	b := Default()

	// After 1. e4 e5 the position is in the table, so even an offbeat
	// continuation still counts as leaving theory on the next move.
	moves := pgn.Parse("1. e4 e5 2. Ke2")
	if len(moves) != 3 {
		t.Fatalf("expected 3 parsed moves, got %d", len(moves))
	}
	last := moves[2]
	if !b.IsBookMove(last.FenBefore, last.Uci, last.Ply) {
		t.Error("continuation from a known position should be book")
	}

	// One move later the table no longer knows the position.
	deeper := pgn.Parse("1. e4 e5 2. Ke2 Nc6 3. Ke1")
	out := deeper[4]
	if b.IsBookMove(out.FenBefore, out.Uci, out.Ply) {
		t.Error("position two moves off theory should not be book")
	}
}

func TestBookPlyCeiling(t *testing.T) {
	b := Default()

	m := pgn.Parse("1. e4")[0]
	if !b.IsBookMove(m.FenBefore, m.Uci, 1) {
		t.Fatal("1. e4 should be book at ply 1")
	}
	if b.IsBookMove(m.FenBefore, m.Uci, maxBookPly+1) {
		t.Error("no move past the ply ceiling should be book")
	}
}

func TestLookup(t *testing.T) {
	b := Default()

	moves := pgn.Parse("1. e4 c5")
	entry, ok := b.Lookup(moves[1].FenAfter)
	if !ok {
		t.Fatal("Sicilian position should be in the book")
	}
	if entry.EcoCode != "B20" || entry.Name != "Sicilian Defense" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if _, ok := b.Lookup("8/8/8/8/8/8/8/k6K w - - 0 1"); ok {
		t.Error("bare-kings position should not be in the book")
	}
}

func TestIsBookMoveBadInput(t *testing.T) {
	b := Default()

	if b.IsBookMove("not a fen", "e2e4", 1) {
		t.Error("invalid FEN must degrade to not-book")
	}
	start := pgn.Parse("1. e4")[0].FenBefore
	if b.IsBookMove(start, "e2e5", 1) {
		t.Error("illegal move must degrade to not-book")
	}
}

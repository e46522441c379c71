package puzzle

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
)

type fakeStore struct {
	saved []puzzle.Puzzle
	err   error
}

func (s *fakeStore) SavePuzzles(ctx context.Context, puzzles []puzzle.Puzzle) error {
	if s.err != nil {
		return s.err
	}
	s.saved = puzzles
	return nil
}

func TestFromMistakes(t *testing.T) {
	store := &fakeStore{}
	uc := NewPuzzleUseCase(store, zap.NewNop().Sugar())

	moves := []review.AnalyzedMove{
		{
			Ply:            3,
			Color:          review.White,
			Fen:            "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			San:            "a4",
			Classification: review.ClassificationBlunder,
			BestMove:       "Nf3",
			BestMoveUci:    "g1f3",
			HasPuzzle:      true,
		},
		{Ply: 4, Color: review.Black, Classification: review.ClassificationBest},
	}

	puzzles, err := uc.FromMistakes(context.Background(), "rev-1", review.White, moves)
	if err != nil {
		t.Fatalf("FromMistakes: %v", err)
	}
	if len(puzzles) != 1 {
		t.Fatalf("got %d puzzles, want 1", len(puzzles))
	}

	p := puzzles[0]
	if p.ID == "" {
		t.Error("puzzle id not assigned")
	}
	if p.ReviewID != "rev-1" || p.Ply != 3 {
		t.Errorf("puzzle keys: %+v", p)
	}
	if p.SolutionMove != "Nf3" || p.SolutionUci != "g1f3" || p.PlayedMove != "a4" {
		t.Errorf("puzzle moves: %+v", p)
	}
	if p.Classification != review.ClassificationBlunder {
		t.Errorf("classification = %s", p.Classification)
	}
	if len(store.saved) != 1 {
		t.Errorf("store saw %d puzzles", len(store.saved))
	}
}

func TestFromMistakesNoCandidates(t *testing.T) {
	store := &fakeStore{err: errors.New("must not be called")}
	uc := NewPuzzleUseCase(store, zap.NewNop().Sugar())

	puzzles, err := uc.FromMistakes(context.Background(), "rev-1", review.White, []review.AnalyzedMove{
		{Classification: review.ClassificationBest, Color: review.White},
	})
	if err != nil || puzzles != nil {
		t.Errorf("got %v, %v; want nil, nil", puzzles, err)
	}
}

func TestFromMistakesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("mongo down")}
	uc := NewPuzzleUseCase(store, zap.NewNop().Sugar())

	_, err := uc.FromMistakes(context.Background(), "rev-1", review.White, []review.AnalyzedMove{
		{HasPuzzle: true, Fen: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", BestMoveUci: "g1f3"},
	})
	if err == nil {
		t.Error("store error must propagate")
	}
}

func TestInferTheme(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		uci  string
		want puzzle.Theme
	}{
		{
			name: "back rank mate",
			fen:  "6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1",
			uci:  "d1d8",
			want: puzzle.ThemeCheckmate,
		},
		{
			name: "check with escape",
			fen:  "6k1/5pp1/7p/8/8/8/5PPP/3R2K1 w - - 0 1",
			uci:  "d1d8",
			want: puzzle.ThemeCheck,
		},
		{
			name: "pawn capture",
			fen:  "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2",
			uci:  "e4d5",
			want: puzzle.ThemeCapture,
		},
		{
			name: "kingside castle",
			fen:  "4k3/8/8/8/8/8/8/4K2R w K - 0 1",
			uci:  "e1g1",
			want: puzzle.ThemeCastle,
		},
		{
			name: "quiet development",
			fen:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			uci:  "g1f3",
			want: puzzle.ThemeQuiet,
		},
		{
			name: "invalid fen degrades to quiet",
			fen:  "broken",
			uci:  "e2e4",
			want: puzzle.ThemeQuiet,
		},
		{
			name: "illegal move degrades to quiet",
			fen:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			uci:  "e2e5",
			want: puzzle.ThemeQuiet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferTheme(tt.fen, tt.uci); got != tt.want {
				t.Errorf("InferTheme = %s, want %s", got, tt.want)
			}
		})
	}
}

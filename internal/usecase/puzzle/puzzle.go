package puzzle

import (
	"context"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
	"chess_review/internal/pgn"
)

type PuzzleStore interface {
	SavePuzzles(ctx context.Context, puzzles []puzzle.Puzzle) error
}

// PuzzleUseCase turns a player's classified mistakes into practice
// puzzles: the position before the mistake plus the engine move.
type PuzzleUseCase struct {
	store PuzzleStore
	log   *zap.SugaredLogger
}

func NewPuzzleUseCase(store PuzzleStore, log *zap.SugaredLogger) *PuzzleUseCase {
	return &PuzzleUseCase{store: store, log: log}
}

func (p *PuzzleUseCase) FromMistakes(ctx context.Context, reviewID string, playerColor review.Color, moves []review.AnalyzedMove) ([]puzzle.Puzzle, error) {
	now := time.Now()

	var puzzles []puzzle.Puzzle
	for _, m := range moves {
		if !m.HasPuzzle {
			continue
		}
		puzzles = append(puzzles, puzzle.Puzzle{
			ID:             uuid.New().String(),
			ReviewID:       reviewID,
			Ply:            m.Ply,
			Fen:            m.Fen,
			SolutionMove:   m.BestMove,
			SolutionUci:    m.BestMoveUci,
			PlayedMove:     m.San,
			Classification: m.Classification,
			Theme:          InferTheme(m.Fen, m.BestMoveUci),
			CreatedAt:      now,
		})
	}

	if len(puzzles) == 0 {
		return nil, nil
	}
	if err := p.store.SavePuzzles(ctx, puzzles); err != nil {
		return nil, err
	}

	p.log.Infow("puzzles generated", "review", reviewID, "count", len(puzzles))
	return puzzles, nil
}

// InferTheme is a simple move-shape heuristic over the solution move:
// checkmate > check > capture > castle, otherwise quiet.
func InferTheme(fen, solutionUci string) puzzle.Theme {
	game, err := pgn.GameFromFEN(fen)
	if err != nil {
		return puzzle.ThemeQuiet
	}
	pos := game.Position()
	mv, err := (chess.UCINotation{}).Decode(pos, solutionUci)
	if err != nil {
		return puzzle.ThemeQuiet
	}

	if next := pos.Update(mv); next != nil && next.Status() == chess.Checkmate {
		return puzzle.ThemeCheckmate
	}
	switch {
	case mv.HasTag(chess.Check):
		return puzzle.ThemeCheck
	case mv.HasTag(chess.Capture) || mv.HasTag(chess.EnPassant):
		return puzzle.ThemeCapture
	case mv.HasTag(chess.KingSideCastle) || mv.HasTag(chess.QueenSideCastle):
		return puzzle.ThemeCastle
	default:
		return puzzle.ThemeQuiet
	}
}

package puzzle

import (
	"time"

	"chess_review/internal/domain/review"
)

// Theme is a coarse move-shape label used to group practice puzzles.
type Theme string

const (
	ThemeCheckmate Theme = "checkmate"
	ThemeCheck     Theme = "check"
	ThemeCapture   Theme = "capture"
	ThemeCastle    Theme = "castle"
	ThemeQuiet     Theme = "quiet"
)

// Puzzle is one practice position derived from a player's mistake: the
// position before the mistake plus the move the engine preferred.
type Puzzle struct {
	ID             string                `json:"puzzle_id" bson:"puzzle_id"`
	ReviewID       string                `json:"review_id" bson:"review_id"`
	Ply            int                   `json:"ply" bson:"ply"`
	Fen            string                `json:"fen" bson:"fen"`
	SolutionMove   string                `json:"solution_move" bson:"solution_move"`
	SolutionUci    string                `json:"solution_uci" bson:"solution_uci"`
	PlayedMove     string                `json:"played_move" bson:"played_move"`
	Classification review.Classification `json:"classification" bson:"classification"`
	Theme          Theme                 `json:"theme" bson:"theme"`
	CreatedAt      time.Time             `json:"created_at" bson:"created_at"`
}

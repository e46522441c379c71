package review

import "time"

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Classification is the closed set of per-move quality labels.
type Classification string

const (
	ClassificationBook       Classification = "book"
	ClassificationBrilliant  Classification = "brilliant"
	ClassificationGreat      Classification = "great"
	ClassificationBest       Classification = "best"
	ClassificationGood       Classification = "good"
	ClassificationInaccuracy Classification = "inaccuracy"
	ClassificationMiss       Classification = "miss"
	ClassificationMistake    Classification = "mistake"
	ClassificationBlunder    Classification = "blunder"
	ClassificationForced     Classification = "forced"
	ClassificationNone       Classification = "none"
)

// IsMistakeWorthy reports whether the move should feed puzzle generation.
func (c Classification) IsMistakeWorthy() bool {
	switch c {
	case ClassificationInaccuracy, ClassificationMiss, ClassificationMistake, ClassificationBlunder:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// EvaluationResult is one normalized engine verdict for a position.
// The score is always from White's perspective regardless of the side to move.
type EvaluationResult struct {
	Score        Score
	BestMoveUci  string
	BestMoveSan  string
	DepthReached int
}

type AnalyzedMove struct {
	Ply            int            `json:"ply" bson:"ply"`
	Color          Color          `json:"color" bson:"color"`
	Fen            string         `json:"fen" bson:"fen"`
	San            string         `json:"san" bson:"san"`
	Uci            string         `json:"uci" bson:"uci"`
	Classification Classification `json:"classification" bson:"classification"`
	EvalBefore     int            `json:"eval_before" bson:"eval_before"`
	EvalAfter      int            `json:"eval_after" bson:"eval_after"`
	MateBefore     *int           `json:"mate_before,omitempty" bson:"mate_before,omitempty"`
	MateAfter      *int           `json:"mate_after,omitempty" bson:"mate_after,omitempty"`
	BestMove       string         `json:"best_move,omitempty" bson:"best_move,omitempty"`
	BestMoveUci    string         `json:"best_move_uci,omitempty" bson:"best_move_uci,omitempty"`
	CentipawnLoss  int            `json:"centipawn_loss" bson:"centipawn_loss"`
	HasPuzzle      bool           `json:"has_puzzle" bson:"has_puzzle"`
}

type AccuracySummary struct {
	Color      Color   `json:"color" bson:"color"`
	Brilliant  int     `json:"brilliant" bson:"brilliant"`
	Great      int     `json:"great" bson:"great"`
	Best       int     `json:"best" bson:"best"`
	Good       int     `json:"good" bson:"good"`
	Book       int     `json:"book" bson:"book"`
	Inaccuracy int     `json:"inaccuracy" bson:"inaccuracy"`
	Miss       int     `json:"miss" bson:"miss"`
	Mistake    int     `json:"mistake" bson:"mistake"`
	Blunder    int     `json:"blunder" bson:"blunder"`
	Forced     int     `json:"forced" bson:"forced"`
	TotalMoves int     `json:"total_moves" bson:"total_moves"`
	Accuracy   float64 `json:"accuracy" bson:"accuracy"`
}

// AnalysisConfig carries the engine knobs for one analysis run.
// Threads == 0 means "resolve to the host default", resolved once per run.
type AnalysisConfig struct {
	QuickDepth    int
	CriticalDepth int
	MaxMoveTimeMs int
	Threads       int
	HashSizeMb    int
}

type GameMeta struct {
	Pgn         string `json:"pgn" bson:"pgn"`
	PlayerColor Color  `json:"player_color" bson:"player_color"`
	White       string `json:"white" bson:"white"`
	Black       string `json:"black" bson:"black"`
}

type GameReview struct {
	ID           string           `json:"review_id" bson:"review_id"`
	Meta         GameMeta         `json:"meta" bson:"meta"`
	EcoCode      string           `json:"eco_code,omitempty" bson:"eco_code,omitempty"`
	OpeningName  string           `json:"opening_name,omitempty" bson:"opening_name,omitempty"`
	Status       Status           `json:"status" bson:"status"`
	Progress     float64          `json:"progress" bson:"progress"`
	Error        string           `json:"error,omitempty" bson:"error,omitempty"`
	Moves        []AnalyzedMove   `json:"moves,omitempty" bson:"-"`
	WhiteSummary *AccuracySummary `json:"white_summary,omitempty" bson:"white_summary,omitempty"`
	BlackSummary *AccuracySummary `json:"black_summary,omitempty" bson:"black_summary,omitempty"`
	CreatedAt    time.Time        `json:"created_at" bson:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// ProgressUpdate is what observers of a running analysis see.
type ProgressUpdate struct {
	ReviewID string  `json:"review_id"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
}

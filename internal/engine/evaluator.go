package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
	"chess_review/internal/pgn"
)

// sessionIO is the slice of Session the evaluator needs; tests plug in a
// scripted fake here.
type sessionIO interface {
	send(cmd string) error
	lines() <-chan string
}

type searchState int

const (
	stateIdle searchState = iota
	statePositionSubmitted
	stateSearching
	stateDepthReached
	stateTimedOut
	stateCompleted
)

const stopDrainTimeout = time.Second

// Evaluator drives depth- and time-bounded searches over one engine
// session and caches normalized results keyed by FEN. The cache lives for
// one lease only.
type Evaluator struct {
	io    sessionIO
	cfg   review.AnalysisConfig
	log   *zap.SugaredLogger
	cache map[string]review.EvaluationResult
	state searchState
}

func newEvaluator(io sessionIO, cfg review.AnalysisConfig, log *zap.SugaredLogger) *Evaluator {
	return &Evaluator{
		io:    io,
		cfg:   cfg,
		log:   log,
		cache: make(map[string]review.EvaluationResult),
		state: stateIdle,
	}
}

type searchSnapshot struct {
	depth    int
	score    review.Score
	hasScore bool
	pvFirst  string
}

// Evaluate returns a normalized evaluation of fen. A cached result is
// reused only when it is at least as deep as requested and, when a best
// move is needed, actually carries one. Hitting the wall-clock budget
// yields the deepest partial result observed, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, fen string, requiredDepth int, needBestMove bool) (review.EvaluationResult, error) {
	if cached, ok := e.cache[fen]; ok {
		if cached.DepthReached >= requiredDepth && (!needBestMove || cached.BestMoveUci != "") {
			return cached, nil
		}
	}

	game, err := pgn.GameFromFEN(fen)
	if err != nil {
		return review.EvaluationResult{}, fmt.Errorf("invalid fen %q: %w", fen, err)
	}

	if e.state == stateSearching {
		e.stopSearch()
	}

	e.state = statePositionSubmitted
	if err := e.io.send("position fen " + fen); err != nil {
		e.state = stateIdle
		return review.EvaluationResult{}, err
	}
	if err := e.io.send(fmt.Sprintf("go depth %d movetime %d", requiredDepth, e.cfg.MaxMoveTimeMs)); err != nil {
		e.state = stateIdle
		return review.EvaluationResult{}, err
	}
	e.state = stateSearching

	// The engine stops itself on movetime; the local timer is the backstop
	// for engines that keep streaming past the budget.
	budget := time.Duration(e.cfg.MaxMoveTimeMs) * time.Millisecond
	timer := time.NewTimer(budget + budget/4 + 100*time.Millisecond)
	defer timer.Stop()

	var last searchSnapshot
	var bestmove string

loop:
	for {
		select {
		case <-ctx.Done():
			e.stopSearch()
			e.state = stateIdle
			return review.EvaluationResult{}, ctx.Err()

		case line, ok := <-e.io.lines():
			if !ok {
				e.state = stateIdle
				return review.EvaluationResult{}, errs.ErrEngineUnavailable
			}
			if snap, ok := parseInfoLine(line); ok {
				last = snap
				if snap.depth >= requiredDepth {
					e.state = stateDepthReached
					bestmove = e.stopSearch()
					break loop
				}
			} else if mv, ok := parseBestMove(line); ok {
				bestmove = mv
				e.state = stateDepthReached
				break loop
			}

		case <-timer.C:
			e.state = stateTimedOut
			e.log.Debugw("search budget hit", "fen", fen, "depth", last.depth)
			bestmove = e.stopSearch()
			break loop
		}
	}

	if !last.hasScore && bestmove == "" {
		e.state = stateIdle
		return review.EvaluationResult{}, errs.ErrEngineUnavailable
	}

	result := e.buildResult(game, last, bestmove)
	e.cache[fen] = result
	e.state = stateCompleted

	return result, nil
}

// stopSearch force-stops an in-flight search and drains the stream up to
// the terminal bestmove line, so no stale lines bleed into the next call.
func (e *Evaluator) stopSearch() string {
	e.io.send("stop")

	deadline := time.After(stopDrainTimeout)
	for {
		select {
		case line, ok := <-e.io.lines():
			if !ok {
				return ""
			}
			if mv, isBest := parseBestMove(line); isBest {
				return mv
			}
		case <-deadline:
			return ""
		}
	}
}

// buildResult normalizes the raw mover-perspective score to White's
// perspective and validates the candidate best move against the position
// being evaluated before accepting it.
func (e *Evaluator) buildResult(game *chess.Game, last searchSnapshot, bestmove string) review.EvaluationResult {
	pos := game.Position()

	score := last.score
	if pos.Turn() == chess.Black {
		score = score.Flip()
	}

	candidate := bestmove
	if candidate == "" {
		candidate = last.pvFirst
	}

	var bestUci, bestSan string
	if candidate != "" && candidate != "(none)" {
		if mv, err := (chess.UCINotation{}).Decode(pos, candidate); err == nil {
			bestUci = candidate
			bestSan = chess.AlgebraicNotation{}.Encode(pos, mv)
		}
	}

	return review.EvaluationResult{
		Score:        score,
		BestMoveUci:  bestUci,
		BestMoveSan:  bestSan,
		DepthReached: last.depth,
	}
}

// parseInfoLine extracts depth, score and the principal variation head from
// an incremental info line. Lines without a score (currmove chatter and the
// like) are ignored.
func parseInfoLine(line string) (searchSnapshot, bool) {
	if !strings.HasPrefix(line, "info") {
		return searchSnapshot{}, false
	}

	var snap searchSnapshot
	fields := strings.Fields(line)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				snap.depth, _ = strconv.Atoi(fields[i+1])
			}
		case "score":
			if i+2 < len(fields) {
				value, err := strconv.Atoi(fields[i+2])
				if err != nil {
					continue
				}
				switch fields[i+1] {
				case "cp":
					snap.score = review.Centipawns(value)
					snap.hasScore = true
				case "mate":
					snap.score = review.MateIn(value)
					snap.hasScore = true
				}
			}
		case "pv":
			if i+1 < len(fields) {
				snap.pvFirst = fields[i+1]
			}
		}
	}

	if !snap.hasScore {
		return searchSnapshot{}, false
	}
	return snap, true
}

func parseBestMove(line string) (string, bool) {
	if !strings.HasPrefix(line, "bestmove") {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

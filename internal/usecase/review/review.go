package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/analysis"
	"chess_review/internal/book"
	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
	"chess_review/internal/pgn"
)

// checkpointEvery bounds how often persistence progress checkpoints are
// written; in-memory observers still see every move.
const checkpointEvery = 4

type ReviewStore interface {
	CreateReview(ctx context.Context, meta review.GameMeta) (string, error)
	UpdateProgress(ctx context.Context, reviewID string, fraction float64, status review.Status) error
	SaveMoves(ctx context.Context, reviewID string, moves []review.AnalyzedMove) error
	SetOpening(ctx context.Context, reviewID, ecoCode, name string) error
	CompleteReview(ctx context.Context, reviewID string, white, black review.AccuracySummary) error
	FailReview(ctx context.Context, reviewID, message string) error
	GetReviewWithMoves(ctx context.Context, reviewID string) (*review.GameReview, error)
}

type PositionEvaluator interface {
	Evaluate(ctx context.Context, fen string, requiredDepth int, needBestMove bool) (review.EvaluationResult, error)
}

// EngineSessions leases the shared engine. The orchestrator is the sole
// owner for a run's duration and releases on every exit path.
type EngineSessions interface {
	Acquire(ownerID string, cfg review.AnalysisConfig) (PositionEvaluator, error)
	Release(ownerID string)
}

type PuzzleGenerator interface {
	FromMistakes(ctx context.Context, reviewID string, playerColor review.Color, moves []review.AnalyzedMove) ([]puzzle.Puzzle, error)
}

// Syncer pushes completed reviews to the remote side, best effort only.
type Syncer interface {
	PushReview(ctx context.Context, rev *review.GameReview, moves []review.AnalyzedMove, puzzles []puzzle.Puzzle) error
}

type runState struct {
	reviewID string
	cancel   context.CancelFunc

	mu       sync.Mutex
	last     review.ProgressUpdate
	subs     map[chan review.ProgressUpdate]struct{}
	finished bool
}

func (rs *runState) isFinished() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.finished
}

func (rs *runState) report(status review.Status, fraction float64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	// Progress never goes backwards.
	if fraction < rs.last.Progress {
		fraction = rs.last.Progress
	}
	rs.last = review.ProgressUpdate{ReviewID: rs.reviewID, Status: status, Progress: fraction}
	for sub := range rs.subs {
		select {
		case sub <- rs.last:
		default:
		}
	}
	if status == review.StatusCompleted || status == review.StatusFailed {
		for sub := range rs.subs {
			close(sub)
		}
		rs.subs = nil
		rs.finished = true
	}
}

type ReviewUseCase struct {
	store      ReviewStore
	engines    EngineSessions
	puzzles    PuzzleGenerator
	syncer     Syncer
	book       *book.Book
	cfg        review.AnalysisConfig
	thresholds analysis.Thresholds
	log        *zap.SugaredLogger
	baseCtx    context.Context

	mu     sync.Mutex
	active *runState
}

func NewReviewUseCase(
	baseCtx context.Context,
	store ReviewStore,
	engines EngineSessions,
	puzzles PuzzleGenerator,
	syncer Syncer,
	openingBook *book.Book,
	cfg review.AnalysisConfig,
	log *zap.SugaredLogger,
) *ReviewUseCase {
	return &ReviewUseCase{
		store:      store,
		engines:    engines,
		puzzles:    puzzles,
		syncer:     syncer,
		book:       openingBook,
		cfg:        cfg,
		thresholds: analysis.DefaultThresholds(),
		log:        log,
		baseCtx:    baseCtx,
	}
}

// StartAnalysis parses the transcript, creates the review record and kicks
// off the run. A second request while one run is active is rejected, not
// queued.
func (u *ReviewUseCase) StartAnalysis(ctx context.Context, meta review.GameMeta) (string, error) {
	parsed := pgn.Parse(meta.Pgn)
	if len(parsed) == 0 {
		return "", errs.ErrEmptyGame
	}

	u.mu.Lock()
	if u.active != nil && !u.active.isFinished() {
		u.mu.Unlock()
		return "", errs.ErrAnalysisActive
	}

	reviewID, err := u.store.CreateReview(ctx, meta)
	if err != nil {
		u.mu.Unlock()
		return "", fmt.Errorf("create review: %w", err)
	}

	runCtx, cancel := context.WithCancel(u.baseCtx)
	rs := &runState{
		reviewID: reviewID,
		cancel:   cancel,
		subs:     make(map[chan review.ProgressUpdate]struct{}),
		last:     review.ProgressUpdate{ReviewID: reviewID, Status: review.StatusPending},
	}
	u.active = rs
	u.mu.Unlock()

	go u.run(runCtx, rs, meta, parsed)

	return reviewID, nil
}

// Cancel requests cooperative cancellation of the running analysis.
func (u *ReviewUseCase) Cancel(reviewID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.active == nil || u.active.reviewID != reviewID || u.active.isFinished() {
		return errs.ErrReviewNotFound
	}
	u.active.cancel()
	return nil
}

// Subscribe attaches a progress observer to the running analysis. The
// channel is closed when the run finishes.
func (u *ReviewUseCase) Subscribe(reviewID string) (<-chan review.ProgressUpdate, func(), error) {
	u.mu.Lock()
	rs := u.active
	u.mu.Unlock()

	if rs == nil || rs.reviewID != reviewID {
		return nil, nil, errs.ErrReviewNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.finished {
		return nil, nil, errs.ErrReviewNotFound
	}

	sub := make(chan review.ProgressUpdate, 16)
	sub <- rs.last
	rs.subs[sub] = struct{}{}

	unsubscribe := func() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if _, ok := rs.subs[sub]; ok {
			delete(rs.subs, sub)
			close(sub)
		}
	}
	return sub, unsubscribe, nil
}

func (u *ReviewUseCase) GetReview(ctx context.Context, reviewID string) (*review.GameReview, error) {
	return u.store.GetReviewWithMoves(ctx, reviewID)
}

// run drives one full analysis: per-move loop, summaries, persistence,
// puzzle generation and the best-effort sync. The engine session is
// released on every exit path.
func (u *ReviewUseCase) run(ctx context.Context, rs *runState, meta review.GameMeta, parsed []pgn.ParsedMove) {
	started := time.Now()
	defer u.engines.Release(rs.reviewID)

	rs.report(review.StatusAnalyzing, 0)
	u.checkpoint(rs.reviewID, 0, review.StatusAnalyzing)

	evaluator, err := u.engines.Acquire(rs.reviewID, u.cfg)
	if err != nil {
		u.fail(rs, fmt.Sprintf("engine acquire failed: %v", err))
		return
	}

	moves := make([]review.AnalyzedMove, 0, len(parsed))
	var opening book.Entry
	var haveOpening bool

	for i, pm := range parsed {
		if ctx.Err() != nil {
			u.failCancelled(rs)
			return
		}

		analyzed, err := u.analyzeMove(ctx, evaluator, pm)
		if err != nil {
			if ctx.Err() != nil {
				u.failCancelled(rs)
				return
			}
			u.fail(rs, fmt.Sprintf("evaluation failed at ply %d: %v", pm.Ply, err))
			return
		}

		if analyzed.Classification == review.ClassificationBook {
			if entry, ok := u.book.Lookup(pm.FenAfter); ok {
				opening = entry
				haveOpening = true
			}
		}
		moves = append(moves, analyzed)

		fraction := float64(i+1) / float64(len(parsed))
		rs.report(review.StatusAnalyzing, fraction)
		if (i+1)%checkpointEvery == 0 {
			u.checkpoint(rs.reviewID, fraction, review.StatusAnalyzing)
		}
	}

	whiteSummary := analysis.Summarize(moves, review.White)
	blackSummary := analysis.Summarize(moves, review.Black)

	markPuzzleMoves(moves, meta.PlayerColor)

	if err := u.store.SaveMoves(ctx, rs.reviewID, moves); err != nil {
		u.fail(rs, fmt.Sprintf("saving moves failed: %v", err))
		return
	}
	if haveOpening {
		if err := u.store.SetOpening(ctx, rs.reviewID, opening.EcoCode, opening.Name); err != nil {
			u.log.Warnw("opening metadata not saved", "review", rs.reviewID, "error", err)
		}
	}
	if err := u.store.CompleteReview(ctx, rs.reviewID, whiteSummary, blackSummary); err != nil {
		u.fail(rs, fmt.Sprintf("completing review failed: %v", err))
		return
	}

	puzzles, err := u.puzzles.FromMistakes(ctx, rs.reviewID, meta.PlayerColor, moves)
	if err != nil {
		u.log.Warnw("puzzle generation failed", "review", rs.reviewID, "error", err)
		puzzles = nil
	}

	u.pushRemote(ctx, rs.reviewID, moves, puzzles)

	rs.report(review.StatusCompleted, 1)
	u.checkpoint(rs.reviewID, 1, review.StatusCompleted)
	u.log.Infow("analysis completed",
		"review", rs.reviewID, "moves", len(moves), "took", time.Since(started))
}

// analyzeMove classifies one ply. Book moves never touch the engine; all
// other moves get a quick pass and, when the verdict is severe or looks
// like a brilliancy, a deeper confirmation pass.
func (u *ReviewUseCase) analyzeMove(ctx context.Context, evaluator PositionEvaluator, pm pgn.ParsedMove) (review.AnalyzedMove, error) {
	if u.book.IsBookMove(pm.FenBefore, pm.Uci, pm.Ply) {
		return review.AnalyzedMove{
			Ply:            pm.Ply,
			Color:          pm.SideToMove,
			Fen:            pm.FenBefore,
			San:            pm.San,
			Uci:            pm.Uci,
			Classification: review.ClassificationBook,
		}, nil
	}

	analyzed, err := u.evaluateAndClassify(ctx, evaluator, pm, u.cfg.QuickDepth)
	if err != nil {
		return review.AnalyzedMove{}, err
	}

	if needsCriticalPass(analyzed) {
		deeper, err := u.evaluateAndClassify(ctx, evaluator, pm, u.cfg.CriticalDepth)
		if err == nil {
			analyzed = deeper
		} else if ctx.Err() != nil {
			return review.AnalyzedMove{}, err
		}
	}
	return analyzed, nil
}

// needsCriticalPass flags verdicts worth confirming at critical depth:
// severe punishments and potential brilliancies.
func needsCriticalPass(m review.AnalyzedMove) bool {
	switch m.Classification {
	case review.ClassificationInaccuracy, review.ClassificationMiss,
		review.ClassificationMistake, review.ClassificationBlunder,
		review.ClassificationBrilliant:
		return true
	}
	return false
}

func (u *ReviewUseCase) evaluateAndClassify(ctx context.Context, evaluator PositionEvaluator, pm pgn.ParsedMove, depth int) (review.AnalyzedMove, error) {
	evalBefore, err := evaluator.Evaluate(ctx, pm.FenBefore, depth, true)
	if err != nil {
		return review.AnalyzedMove{}, err
	}
	if ctx.Err() != nil {
		return review.AnalyzedMove{}, ctx.Err()
	}
	evalAfter, err := evaluator.Evaluate(ctx, pm.FenAfter, depth, false)
	if err != nil {
		return review.AnalyzedMove{}, err
	}
	if ctx.Err() != nil {
		return review.AnalyzedMove{}, ctx.Err()
	}

	mover := pm.SideToMove
	loss := evalBefore.Score.POV(mover) - evalAfter.Score.POV(mover)
	if loss < 0 {
		loss = 0
	}

	isBest := evalBefore.BestMoveUci != "" && evalBefore.BestMoveUci == pm.Uci
	if isBest {
		loss = 0
	}
	forced := pm.LegalMoveCount == 1
	isCheck := strings.ContainsAny(pm.San, "+#")

	mateBefore := evalBefore.Score.IsMate()
	mateAfter := evalAfter.Score.IsMate()

	brilliant := !forced && analysis.IsBrilliant(analysis.BrilliantContext{
		FenBefore:      pm.FenBefore,
		San:            pm.San,
		Uci:            pm.Uci,
		EvalBefore:     evalBefore.Score,
		EvalAfter:      evalAfter.Score,
		Mover:          mover,
		CentipawnLoss:  loss,
		LegalMoveCount: pm.LegalMoveCount,
		MateBefore:     mateBefore,
		MateAfter:      mateAfter,
		IsEngineBest:   isBest,
	})

	// An engine-best move that walks out of a forced mate is a find worth
	// its own label.
	escapedMate := mateBefore && evalBefore.Score.POV(mover) < 0 && !mateAfter
	flags := analysis.Flags{
		Brilliant: brilliant,
		Great:     isBest && escapedMate,
		Best:      isBest,
		Forced:    forced,
	}

	moveNumber := (pm.Ply + 1) / 2
	classification := analysis.Classify(loss, flags, moveNumber, evalBefore.Score, evalAfter.Score, mover, isCheck, u.thresholds)
	if classification == review.ClassificationBest {
		loss = 0
	}

	analyzed := review.AnalyzedMove{
		Ply:            pm.Ply,
		Color:          mover,
		Fen:            pm.FenBefore,
		San:            pm.San,
		Uci:            pm.Uci,
		Classification: classification,
		BestMove:       evalBefore.BestMoveSan,
		BestMoveUci:    evalBefore.BestMoveUci,
		CentipawnLoss:  loss,
	}
	fillScore(&analyzed, evalBefore.Score, evalAfter.Score)
	return analyzed, nil
}

func fillScore(m *review.AnalyzedMove, before, after review.Score) {
	if cp, ok := before.Centipawns(); ok {
		m.EvalBefore = cp
	} else if n, ok := before.Mate(); ok {
		mate := n
		m.MateBefore = &mate
	}
	if cp, ok := after.Centipawns(); ok {
		m.EvalAfter = cp
	} else if n, ok := after.Mate(); ok {
		mate := n
		m.MateAfter = &mate
	}
}

func markPuzzleMoves(moves []review.AnalyzedMove, playerColor review.Color) {
	for i := range moves {
		if moves[i].Color == playerColor && moves[i].Classification.IsMistakeWorthy() && moves[i].BestMoveUci != "" {
			moves[i].HasPuzzle = true
		}
	}
}

func (u *ReviewUseCase) checkpoint(reviewID string, fraction float64, status review.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.UpdateProgress(ctx, reviewID, fraction, status); err != nil {
		u.log.Warnw("progress checkpoint failed", "review", reviewID, "error", err)
	}
}

func (u *ReviewUseCase) fail(rs *runState, message string) {
	u.log.Errorw("analysis failed", "review", rs.reviewID, "reason", message)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.FailReview(ctx, rs.reviewID, message); err != nil {
		u.log.Errorw("marking review failed errored", "review", rs.reviewID, "error", err)
	}
	rs.report(review.StatusFailed, 0)
}

func (u *ReviewUseCase) failCancelled(rs *runState) {
	message := errs.ErrAnalysisCancelled.Error()
	u.log.Infow("analysis cancelled", "review", rs.reviewID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.FailReview(ctx, rs.reviewID, message); err != nil {
		u.log.Errorw("marking review cancelled errored", "review", rs.reviewID, "error", err)
	}
	rs.report(review.StatusFailed, 0)
}

// pushRemote is the best-effort sync: a failure is logged and swallowed,
// the local result stands.
func (u *ReviewUseCase) pushRemote(ctx context.Context, reviewID string, moves []review.AnalyzedMove, puzzles []puzzle.Puzzle) {
	rev, err := u.store.GetReviewWithMoves(ctx, reviewID)
	if err != nil {
		u.log.Warnw("remote sync skipped, review not readable", "review", reviewID, "error", err)
		return
	}
	if err := u.syncer.PushReview(ctx, rev, moves, puzzles); err != nil {
		u.log.Warnw("remote sync failed", "review", reviewID, "error", err)
	}
}

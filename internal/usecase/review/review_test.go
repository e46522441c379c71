package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/book"
	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
)

type fakeStore struct {
	mu         sync.Mutex
	nextID     int
	savedMoves []review.AnalyzedMove
	opening    [2]string
	completed  bool
	failedWith string
	saveErr    error
	readErr    error
}

func (s *fakeStore) CreateReview(ctx context.Context, meta review.GameMeta) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("rev-%d", s.nextID), nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, reviewID string, fraction float64, status review.Status) error {
	return nil
}

func (s *fakeStore) SaveMoves(ctx context.Context, reviewID string, moves []review.AnalyzedMove) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedMoves = moves
	return nil
}

func (s *fakeStore) SetOpening(ctx context.Context, reviewID, ecoCode, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opening = [2]string{ecoCode, name}
	return nil
}

func (s *fakeStore) CompleteReview(ctx context.Context, reviewID string, white, black review.AccuracySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
	return nil
}

func (s *fakeStore) FailReview(ctx context.Context, reviewID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedWith = message
	return nil
}

func (s *fakeStore) GetReviewWithMoves(ctx context.Context, reviewID string) (*review.GameReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return &review.GameReview{ID: reviewID, Moves: s.savedMoves}, nil
}

func (s *fakeStore) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *fakeStore) failureMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedWith
}

func (s *fakeStore) movesSaved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.savedMoves)
}

// fakeEvaluator returns a flat evaluation; block, when set, stalls every
// call until released or the context dies.
type fakeEvaluator struct {
	block chan struct{}
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, fen string, requiredDepth int, needBestMove bool) (review.EvaluationResult, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return review.EvaluationResult{}, ctx.Err()
		}
	}
	return review.EvaluationResult{
		Score:        review.Centipawns(15),
		DepthReached: requiredDepth,
	}, nil
}

type fakeEngines struct {
	mu         sync.Mutex
	evaluator  *fakeEvaluator
	acquireErr error
	acquired   int
	released   int
}

func (f *fakeEngines) Acquire(ownerID string, cfg review.AnalysisConfig) (PositionEvaluator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return f.evaluator, nil
}

func (f *fakeEngines) Release(ownerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeEngines) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakePuzzles struct {
	mu     sync.Mutex
	called bool
	err    error
}

func (f *fakePuzzles) FromMistakes(ctx context.Context, reviewID string, playerColor review.Color, moves []review.AnalyzedMove) ([]puzzle.Puzzle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	return nil, f.err
}

type fakeSyncer struct {
	mu     sync.Mutex
	called bool
	err    error
}

func (f *fakeSyncer) PushReview(ctx context.Context, rev *review.GameReview, moves []review.AnalyzedMove, puzzles []puzzle.Puzzle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	return f.err
}

type fixture struct {
	uc      *ReviewUseCase
	store   *fakeStore
	engines *fakeEngines
	puzzles *fakePuzzles
	syncer  *fakeSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &fakeStore{},
		engines: &fakeEngines{evaluator: &fakeEvaluator{}},
		puzzles: &fakePuzzles{},
		syncer:  &fakeSyncer{},
	}
	cfg := review.AnalysisConfig{QuickDepth: 12, CriticalDepth: 18, MaxMoveTimeMs: 100}
	f.uc = NewReviewUseCase(context.Background(), f.store, f.engines, f.puzzles, f.syncer, book.Default(), cfg, zap.NewNop().Sugar())
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Off-book moves so the fake engine is actually consulted.
const testGame = "1. a4 h5 2. Ra3 Rh6"

func TestAnalysisCompletes(t *testing.T) {
	f := newFixture(t)

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	reviewID, err := f.uc.StartAnalysis(context.Background(), meta)
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if reviewID == "" {
		t.Fatal("empty review id")
	}

	waitFor(t, "completion", f.store.isCompleted)
	if got := f.store.movesSaved(); got != 4 {
		t.Errorf("saved %d moves, want 4", got)
	}
	if f.engines.releaseCount() != 1 {
		t.Errorf("engine released %d times, want 1", f.engines.releaseCount())
	}
	f.puzzles.mu.Lock()
	puzzlesCalled := f.puzzles.called
	f.puzzles.mu.Unlock()
	if !puzzlesCalled {
		t.Error("puzzle generation never ran")
	}
	f.syncer.mu.Lock()
	syncCalled := f.syncer.called
	f.syncer.mu.Unlock()
	if !syncCalled {
		t.Error("remote sync never ran")
	}
}

func TestEmptyGameRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.StartAnalysis(context.Background(), review.GameMeta{Pgn: "1-0"})
	if !errors.Is(err, errs.ErrEmptyGame) {
		t.Errorf("err = %v, want ErrEmptyGame", err)
	}
}

func TestSecondRunRejectedWhileActive(t *testing.T) {
	f := newFixture(t)
	f.engines.evaluator.block = make(chan struct{})

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	if _, err := f.uc.StartAnalysis(context.Background(), meta); err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	if _, err := f.uc.StartAnalysis(context.Background(), meta); !errors.Is(err, errs.ErrAnalysisActive) {
		t.Errorf("err = %v, want ErrAnalysisActive", err)
	}

	close(f.engines.evaluator.block)
	waitFor(t, "completion", f.store.isCompleted)

	// The slot frees up once the run reports its terminal state.
	waitFor(t, "slot release", func() bool {
		_, err := f.uc.StartAnalysis(context.Background(), meta)
		return err == nil
	})
}

func TestCancelStopsRun(t *testing.T) {
	f := newFixture(t)
	f.engines.evaluator.block = make(chan struct{})

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	reviewID, err := f.uc.StartAnalysis(context.Background(), meta)
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	if err := f.uc.Cancel(reviewID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	waitFor(t, "cancellation", func() bool { return f.store.failureMessage() != "" })
	if f.store.isCompleted() {
		t.Error("cancelled run must not complete")
	}
	waitFor(t, "engine release", func() bool { return f.engines.releaseCount() == 1 })
}

func TestCancelUnknownReview(t *testing.T) {
	f := newFixture(t)
	if err := f.uc.Cancel("nope"); !errors.Is(err, errs.ErrReviewNotFound) {
		t.Errorf("err = %v, want ErrReviewNotFound", err)
	}
}

func TestEngineAcquireFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	f.engines.acquireErr = errs.ErrSessionBusy

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	if _, err := f.uc.StartAnalysis(context.Background(), meta); err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	waitFor(t, "failure", func() bool { return f.store.failureMessage() != "" })
	waitFor(t, "engine release", func() bool { return f.engines.releaseCount() == 1 })
}

func TestSaveMovesFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = errors.New("mongo down")

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	if _, err := f.uc.StartAnalysis(context.Background(), meta); err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	waitFor(t, "failure", func() bool { return f.store.failureMessage() != "" })
	if f.store.isCompleted() {
		t.Error("run with unsaved moves must not complete")
	}
}

func TestPuzzleAndSyncFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.puzzles.err = errors.New("puzzle store down")
	f.syncer.err = errors.New("remote down")

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	if _, err := f.uc.StartAnalysis(context.Background(), meta); err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	waitFor(t, "completion despite side failures", f.store.isCompleted)
	if msg := f.store.failureMessage(); msg != "" {
		t.Errorf("run failed with %q, side channels must be best effort", msg)
	}
}

func TestSubscribeStreamsMonotoneProgress(t *testing.T) {
	f := newFixture(t)
	f.engines.evaluator.block = make(chan struct{})

	meta := review.GameMeta{Pgn: testGame, PlayerColor: review.White}
	reviewID, err := f.uc.StartAnalysis(context.Background(), meta)
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	updates, unsubscribe, err := f.uc.Subscribe(reviewID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	close(f.engines.evaluator.block)

	last := -1.0
	var final review.ProgressUpdate
	for update := range updates {
		if update.ReviewID != reviewID {
			t.Errorf("update for %q, want %q", update.ReviewID, reviewID)
		}
		if update.Progress < last {
			t.Errorf("progress went backwards: %f after %f", update.Progress, last)
		}
		last = update.Progress
		final = update
	}
	if final.Status != review.StatusCompleted || final.Progress != 1 {
		t.Errorf("final update = %+v, want completed at 1", final)
	}
}

func TestMarkPuzzleMoves(t *testing.T) {
	moves := []review.AnalyzedMove{
		{Color: review.White, Classification: review.ClassificationBlunder, BestMoveUci: "e2e4"},
		{Color: review.Black, Classification: review.ClassificationBlunder, BestMoveUci: "e7e5"},
		{Color: review.White, Classification: review.ClassificationBest, BestMoveUci: "d2d4"},
		{Color: review.White, Classification: review.ClassificationMistake, BestMoveUci: ""},
	}
	markPuzzleMoves(moves, review.White)

	want := []bool{true, false, false, false}
	for i, m := range moves {
		if m.HasPuzzle != want[i] {
			t.Errorf("move %d HasPuzzle = %v, want %v", i, m.HasPuzzle, want[i])
		}
	}
}

func TestNeedsCriticalPass(t *testing.T) {
	deep := []review.Classification{
		review.ClassificationInaccuracy, review.ClassificationMiss,
		review.ClassificationMistake, review.ClassificationBlunder,
		review.ClassificationBrilliant,
	}
	for _, c := range deep {
		if !needsCriticalPass(review.AnalyzedMove{Classification: c}) {
			t.Errorf("%s should trigger the critical pass", c)
		}
	}
	for _, c := range []review.Classification{review.ClassificationBest, review.ClassificationGood, review.ClassificationBook} {
		if needsCriticalPass(review.AnalyzedMove{Classification: c}) {
			t.Errorf("%s should not trigger the critical pass", c)
		}
	}
}

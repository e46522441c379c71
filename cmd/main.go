package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chess_review/internal/adapters"
	"chess_review/internal/book"
	"chess_review/internal/bootstrap"
	reviewDelivery "chess_review/internal/delivery/review"
	"chess_review/internal/domain/review"
	"chess_review/internal/engine"
	ownMiddleware "chess_review/internal/middleware"
	"chess_review/internal/repository"
	puzzleuc "chess_review/internal/usecase/puzzle"
	reviewuc "chess_review/internal/usecase/review"
)

type dataBaseAdapters struct {
	redisAdapter *adapters.AdapterRedis
	mongoAdapter *adapters.AdapterMongo
}

// engineSessions adapts the concrete engine manager to the orchestrator's
// session interface.
type engineSessions struct {
	manager *engine.Manager
}

func (e engineSessions) Acquire(ownerID string, cfg review.AnalysisConfig) (reviewuc.PositionEvaluator, error) {
	evaluator, err := e.manager.Acquire(ownerID, cfg)
	if err != nil {
		return nil, err
	}
	return evaluator, nil
}

func (e engineSessions) Release(ownerID string) {
	e.manager.Release(ownerID)
}

func main() {
	logger := NewLogger()
	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Error("Failed to setup configuration", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	databaseAdapters := initDatabaseAdapters(ctx, logger, cfg)
	defer databaseAdapters.mongoAdapter.Close(ctx)
	defer databaseAdapters.redisAdapter.Close(ctx)

	handler := initializeReviewHandler(ctx, cfg, logger, databaseAdapters)

	r := chi.NewRouter()
	router(r, handler, cfg.IsLocalCors)

	addr := ":" + cfg.ServerPort
	logger.Infof("Server is running on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func router(r *chi.Mux, h *reviewDelivery.ReviewHandler, isLocalCors bool) {
	if isLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)

	r.Post("/review/start", h.HandleStartReview)
	r.Post("/review/cancel", h.HandleCancelReview)
	r.Get("/review", h.HandleGetReview)
	r.Get("/review/puzzles", h.HandleGetPuzzles)
	r.Get("/review/progress", h.HandleProgress)
}

func initDatabaseAdapters(ctx context.Context, log *zap.SugaredLogger, cfg *bootstrap.Config) *dataBaseAdapters {
	mongoAdapter := adapters.NewAdapterMongo(cfg)
	if err := mongoAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize MongoDB", zap.Error(err))
	}

	redisAdapter := adapters.NewAdapterRedis(cfg)
	if err := redisAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	log.Info("Database adapters initialized")
	return &dataBaseAdapters{
		redisAdapter: redisAdapter,
		mongoAdapter: mongoAdapter,
	}
}

func initializeReviewHandler(
	ctx context.Context,
	cfg *bootstrap.Config,
	log *zap.SugaredLogger,
	databaseAdapters *dataBaseAdapters,
) *reviewDelivery.ReviewHandler {
	storage := repository.NewReviewStorage(log, databaseAdapters.mongoAdapter, databaseAdapters.redisAdapter)
	syncClient := repository.NewSyncClient(cfg, log)
	puzzles := puzzleuc.NewPuzzleUseCase(storage, log)

	sessions := engineSessions{manager: engine.NewManager(cfg.EnginePath, log)}
	analysisCfg := review.AnalysisConfig{
		QuickDepth:    cfg.QuickDepth,
		CriticalDepth: cfg.CriticalDepth,
		MaxMoveTimeMs: cfg.MaxMoveTimeMs,
		Threads:       cfg.EngineThreads,
		HashSizeMb:    cfg.EngineHashMb,
	}

	uc := reviewuc.NewReviewUseCase(ctx, storage, sessions, puzzles, syncClient, book.Default(), analysisCfg, log)
	return reviewDelivery.NewReviewHandler(*cfg, log, uc, storage)
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
	time.Sleep(1 * time.Second) // let in-flight connections close
}

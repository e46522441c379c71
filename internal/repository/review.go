package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"chess_review/internal/adapters"
	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
)

const (
	collectionReviews = "reviews"
	collectionMoves   = "review_moves"
	collectionPuzzles = "puzzles"

	mongoOpTimeout = 5 * time.Second

	progressKeyPrefix = "review:progress:"
	progressTTL       = 24 * time.Hour
)

type ReviewStorage struct {
	log   *zap.SugaredLogger
	mongo *adapters.AdapterMongo
	redis *adapters.AdapterRedis
}

func NewReviewStorage(log *zap.SugaredLogger, mongoAdapter *adapters.AdapterMongo, redisAdapter *adapters.AdapterRedis) *ReviewStorage {
	return &ReviewStorage{
		log:   log,
		mongo: mongoAdapter,
		redis: redisAdapter,
	}
}

// moveDoc wraps one analyzed move with its review id for storage; moves
// live in their own collection keyed by (review_id, ply).
type moveDoc struct {
	ReviewID            string `bson:"review_id"`
	review.AnalyzedMove `bson:",inline"`
}

func (r *ReviewStorage) CreateReview(ctx context.Context, meta review.GameMeta) (string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	rev := review.GameReview{
		ID:        uuid.New().String(),
		Meta:      meta,
		Status:    review.StatusPending,
		CreatedAt: time.Now(),
	}

	collection := r.mongo.Database.Collection(collectionReviews)
	if _, err := collection.InsertOne(ctxTimeout, rev); err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}
	return rev.ID, nil
}

// UpdateProgress persists the durable checkpoint in mongo and mirrors it
// into redis for cheap reads by observers that missed the live stream.
func (r *ReviewStorage) UpdateProgress(ctx context.Context, reviewID string, fraction float64, status review.Status) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	collection := r.mongo.Database.Collection(collectionReviews)
	update := bson.M{"$set": bson.M{"progress": fraction, "status": status}}
	result, err := collection.UpdateOne(ctxTimeout, bson.M{"review_id": reviewID}, update)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrReviewNotFound
	}

	r.cacheProgress(ctxTimeout, review.ProgressUpdate{ReviewID: reviewID, Status: status, Progress: fraction})
	return nil
}

func (r *ReviewStorage) SaveMoves(ctx context.Context, reviewID string, moves []review.AnalyzedMove) error {
	if len(moves) == 0 {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	collection := r.mongo.Database.Collection(collectionMoves)

	// A rerun of the same review replaces its moves wholesale.
	if _, err := collection.DeleteMany(ctxTimeout, bson.M{"review_id": reviewID}); err != nil {
		return fmt.Errorf("clear moves: %w", err)
	}

	docs := make([]interface{}, 0, len(moves))
	for _, m := range moves {
		docs = append(docs, moveDoc{ReviewID: reviewID, AnalyzedMove: m})
	}
	if _, err := collection.InsertMany(ctxTimeout, docs); err != nil {
		return fmt.Errorf("insert moves: %w", err)
	}
	return nil
}

func (r *ReviewStorage) SetOpening(ctx context.Context, reviewID, ecoCode, name string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	collection := r.mongo.Database.Collection(collectionReviews)
	update := bson.M{"$set": bson.M{"eco_code": ecoCode, "opening_name": name}}
	if _, err := collection.UpdateOne(ctxTimeout, bson.M{"review_id": reviewID}, update); err != nil {
		return fmt.Errorf("set opening: %w", err)
	}
	return nil
}

func (r *ReviewStorage) CompleteReview(ctx context.Context, reviewID string, white, black review.AccuracySummary) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now()
	collection := r.mongo.Database.Collection(collectionReviews)
	update := bson.M{"$set": bson.M{
		"status":        review.StatusCompleted,
		"progress":      1.0,
		"white_summary": white,
		"black_summary": black,
		"completed_at":  now,
	}}
	result, err := collection.UpdateOne(ctxTimeout, bson.M{"review_id": reviewID}, update)
	if err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrReviewNotFound
	}

	r.cacheProgress(ctxTimeout, review.ProgressUpdate{ReviewID: reviewID, Status: review.StatusCompleted, Progress: 1})
	return nil
}

func (r *ReviewStorage) FailReview(ctx context.Context, reviewID, message string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	collection := r.mongo.Database.Collection(collectionReviews)
	update := bson.M{"$set": bson.M{
		"status": review.StatusFailed,
		"error":  message,
	}}
	if _, err := collection.UpdateOne(ctxTimeout, bson.M{"review_id": reviewID}, update); err != nil {
		return fmt.Errorf("fail review: %w", err)
	}

	r.cacheProgress(ctxTimeout, review.ProgressUpdate{ReviewID: reviewID, Status: review.StatusFailed})
	return nil
}

func (r *ReviewStorage) GetReviewWithMoves(ctx context.Context, reviewID string) (*review.GameReview, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var rev review.GameReview
	collection := r.mongo.Database.Collection(collectionReviews)
	err := collection.FindOne(ctxTimeout, bson.M{"review_id": reviewID}).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find review: %w", err)
	}

	movesCollection := r.mongo.Database.Collection(collectionMoves)
	findOpts := options.Find().SetSort(bson.M{"ply": 1})
	cursor, err := movesCollection.Find(ctxTimeout, bson.M{"review_id": reviewID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find moves: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var docs []moveDoc
	if err := cursor.All(ctxTimeout, &docs); err != nil {
		return nil, fmt.Errorf("decode moves: %w", err)
	}
	rev.Moves = make([]review.AnalyzedMove, 0, len(docs))
	for _, d := range docs {
		rev.Moves = append(rev.Moves, d.AnalyzedMove)
	}

	return &rev, nil
}

func (r *ReviewStorage) SavePuzzles(ctx context.Context, puzzles []puzzle.Puzzle) error {
	if len(puzzles) == 0 {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(puzzles))
	for _, p := range puzzles {
		docs = append(docs, p)
	}

	collection := r.mongo.Database.Collection(collectionPuzzles)
	if _, err := collection.InsertMany(ctxTimeout, docs); err != nil {
		return fmt.Errorf("insert puzzles: %w", err)
	}
	return nil
}

func (r *ReviewStorage) GetPuzzlesByReview(ctx context.Context, reviewID string) ([]puzzle.Puzzle, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	collection := r.mongo.Database.Collection(collectionPuzzles)
	findOpts := options.Find().SetSort(bson.M{"ply": 1})
	cursor, err := collection.Find(ctxTimeout, bson.M{"review_id": reviewID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find puzzles: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var puzzles []puzzle.Puzzle
	if err := cursor.All(ctxTimeout, &puzzles); err != nil {
		return nil, fmt.Errorf("decode puzzles: %w", err)
	}
	return puzzles, nil
}

// ProgressCheckpoint reads the redis mirror of the last checkpoint. Used
// by observers attaching after the in-memory run is gone.
func (r *ReviewStorage) ProgressCheckpoint(ctx context.Context, reviewID string) (review.ProgressUpdate, error) {
	payload, err := r.redis.GetClient().Get(ctx, progressKeyPrefix+reviewID).Result()
	if err != nil {
		return review.ProgressUpdate{}, errs.ErrReviewNotFound
	}

	var update review.ProgressUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return review.ProgressUpdate{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return update, nil
}

// cacheProgress is best effort: a redis hiccup never fails the mongo write.
func (r *ReviewStorage) cacheProgress(ctx context.Context, update review.ProgressUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := r.redis.GetClient().Set(ctx, progressKeyPrefix+update.ReviewID, payload, progressTTL).Err(); err != nil {
		r.log.Warnw("progress cache write failed", "review", update.ReviewID, "error", err)
	}
}

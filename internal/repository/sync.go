package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/bootstrap"
	"chess_review/internal/domain/puzzle"
	"chess_review/internal/domain/review"
)

// SyncClient pushes completed reviews to the configured remote endpoint.
// An empty sync url disables the push entirely.
type SyncClient struct {
	cfg    *bootstrap.Config
	log    *zap.SugaredLogger
	client *http.Client
}

func NewSyncClient(cfg *bootstrap.Config, log *zap.SugaredLogger) *SyncClient {
	return &SyncClient{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type syncPayload struct {
	Review  *review.GameReview    `json:"review"`
	Moves   []review.AnalyzedMove `json:"moves"`
	Puzzles []puzzle.Puzzle       `json:"puzzles,omitempty"`
}

func (s *SyncClient) PushReview(ctx context.Context, rev *review.GameReview, moves []review.AnalyzedMove, puzzles []puzzle.Puzzle) error {
	if s.cfg.SyncUrl == "" {
		return nil
	}

	body, err := json.Marshal(syncPayload{Review: rev, Moves: moves, Puzzles: puzzles})
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SyncUrl, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push review: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned %s", resp.Status)
	}

	s.log.Infow("review synced", "review", rev.ID, "url", s.cfg.SyncUrl)
	return nil
}

package review

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess_review/internal/bootstrap"
	domain "chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
	"chess_review/internal/httpresponse"
	"chess_review/internal/repository"
	reviewuc "chess_review/internal/usecase/review"
	"chess_review/internal/utils"
)

type ReviewHandler struct {
	cfg     bootstrap.Config
	log     *zap.SugaredLogger
	uc      *reviewuc.ReviewUseCase
	storage *repository.ReviewStorage
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewReviewHandler(cfg bootstrap.Config, log *zap.SugaredLogger, uc *reviewuc.ReviewUseCase, storage *repository.ReviewStorage) *ReviewHandler {
	return &ReviewHandler{
		cfg:     cfg,
		log:     log,
		uc:      uc,
		storage: storage,
	}
}

type startReviewResponse struct {
	ReviewID string `json:"review_id"`
}

func (h *ReviewHandler) HandleStartReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpresponse.WriteResponseWithStatus(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	var meta domain.GameMeta
	if err := utils.DecodeJSONRequest(r, &meta); err != nil {
		h.log.Errorw("start review: bad request", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if meta.PlayerColor != domain.Black {
		meta.PlayerColor = domain.White
	}

	reviewID, err := h.uc.StartAnalysis(r.Context(), meta)
	switch {
	case errors.Is(err, errs.ErrEmptyGame):
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, errs.ErrAnalysisActive):
		httpresponse.WriteResponseWithStatus(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Errorw("start review failed", "error", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}

	h.log.Infow("review started", "review", reviewID)
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, startReviewResponse{ReviewID: reviewID})
}

func (h *ReviewHandler) HandleCancelReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpresponse.WriteResponseWithStatus(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	reviewID := r.URL.Query().Get("review_id")
	if reviewID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "review_id is required")
		return
	}

	if err := h.uc.Cancel(reviewID); err != nil {
		httpresponse.WriteResponseWithStatus(w, http.StatusNotFound, err.Error())
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, "cancellation requested")
}

func (h *ReviewHandler) HandleGetReview(w http.ResponseWriter, r *http.Request) {
	reviewID := r.URL.Query().Get("review_id")
	if reviewID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "review_id is required")
		return
	}

	rev, err := h.uc.GetReview(r.Context(), reviewID)
	if errors.Is(err, errs.ErrReviewNotFound) {
		httpresponse.WriteResponseWithStatus(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Errorw("get review failed", "review", reviewID, "error", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, rev)
}

func (h *ReviewHandler) HandleGetPuzzles(w http.ResponseWriter, r *http.Request) {
	reviewID := r.URL.Query().Get("review_id")
	if reviewID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "review_id is required")
		return
	}

	puzzles, err := h.storage.GetPuzzlesByReview(r.Context(), reviewID)
	if err != nil {
		h.log.Errorw("get puzzles failed", "review", reviewID, "error", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, puzzles)
}

// HandleProgress streams progress frames over a websocket. If the run is
// no longer in memory the last persisted checkpoint is sent instead, so a
// late observer still learns the terminal state.
func (h *ReviewHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	reviewID := r.URL.Query().Get("review_id")
	if reviewID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "review_id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe, err := h.uc.Subscribe(reviewID)
	if err != nil {
		h.sendCheckpoint(conn, reviewID)
		return
	}
	defer unsubscribe()

	// Reader goroutine only notices the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				h.log.Warnw("progress write failed", "review", reviewID, "error", err)
				return
			}
		case <-clientGone:
			return
		}
	}
}

func (h *ReviewHandler) sendCheckpoint(conn *websocket.Conn, reviewID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update, err := h.storage.ProgressCheckpoint(ctx, reviewID)
	if err != nil {
		conn.WriteJSON(domain.ProgressUpdate{ReviewID: reviewID, Status: domain.StatusFailed})
		return
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	conn.WriteJSON(update)
}

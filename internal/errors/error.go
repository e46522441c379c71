package errors

import "errors"

var (
	ErrReviewNotFound    = errors.New("review was not found")
	ErrAnalysisActive    = errors.New("an analysis run is already active")
	ErrAnalysisCancelled = errors.New("analysis was cancelled")
	ErrEngineUnavailable = errors.New("engine is not available")
	ErrSessionBusy       = errors.New("engine session is held by another owner")
	ErrEmptyGame         = errors.New("transcript contains no playable moves")
)

package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for a blank question.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable is returned when no vector could be produced
	// for the question. It is not retried here.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreUnavailable is returned when the record store query fails.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// Stage is a step of one retrieval request.
type Stage string

const (
	StageReceived  Stage = "received"
	StageEmbedded  Stage = "embedded"
	StageRetrieved Stage = "retrieved"
	StageBudgeted  Stage = "budgeted"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// StageError records the stage a request failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or "" if none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestionSet is returned by Start when no questions are supplied.
	ErrEmptyQuestionSet = errors.New("empty question set")
	// ErrInvalidStageTransition is returned when an operation is not valid in the current stage.
	ErrInvalidStageTransition = errors.New("invalid stage transition")
	// ErrQuestionsUnavailable is returned by Ingest when no questions could be produced.
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	// ErrClosed is wrapped into the error of any command sent after the session loop stopped.
	ErrClosed = errors.New("orchestrator closed")
)

func invalidTransition(op string, stage Stage) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidStageTransition, op, stage)
}

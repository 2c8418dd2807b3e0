// Package interview drives a single spoken interview session: it owns the session state,
// times each question, hands answers to an evaluator and publishes every stage change.
package interview

import "time"

// Stage is one state of the per-session state machine.
type Stage string

const (
	StageCreated        Stage = "created"
	StageUploading      Stage = "uploading"
	StageQuestionsReady Stage = "questions_ready"
	StageAsking         Stage = "asking"
	StageRecording      Stage = "recording"
	StageEvaluating     Stage = "evaluating"
	StageFinished       Stage = "finished"
)

// Terminal reports whether no further transitions are accepted.
func (s Stage) Terminal() bool { return s == StageFinished }

// EndReason explains why a session reached StageFinished.
type EndReason string

const (
	EndCompleted            EndReason = "completed"
	EndAborted              EndReason = "aborted"
	EndSessionTimeout       EndReason = "session_timeout"
	EndQuestionsUnavailable EndReason = "questions_unavailable"
)

// Question is immutable once generated.
type Question struct {
	Text           string   `json:"text"`
	ExpectedTopics []string `json:"expected_topics,omitempty"`
}

// Evaluation is the normalized verdict on one answer. Score is on a 0-10 scale.
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Provider string  `json:"provider,omitempty"`
}

// Answer is write-once per question index.
type Answer struct {
	QuestionIndex int         `json:"question_index"`
	RawTranscript string      `json:"raw_transcript"`
	TimedOut      bool        `json:"timed_out"`
	SubmittedAt   time.Time   `json:"submitted_at"`
	Evaluation    *Evaluation `json:"evaluation,omitempty"`
	// EvaluationUnavailable is set when evaluation failed; Evaluation stays nil.
	EvaluationUnavailable bool `json:"evaluation_unavailable,omitempty"`
}

// Summary aggregates the answers recorded so far.
type Summary struct {
	Answered    int     `json:"answered"`
	TimedOut    int     `json:"timed_out"`
	Evaluated   int     `json:"evaluated"`
	Unavailable int     `json:"unavailable"`
	Score       float64 `json:"score"`
}

// Status is a point-in-time copy of the session.
type Status struct {
	SessionID    string     `json:"session_id"`
	Stage        Stage      `json:"stage"`
	CurrentIndex int        `json:"current_index"`
	Total        int        `json:"total"`
	Question     *Question  `json:"question,omitempty"`
	Answers      []Answer   `json:"answers"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	EndReason    EndReason  `json:"end_reason,omitempty"`
	Failure      string     `json:"failure,omitempty"`
	Summary      Summary    `json:"summary"`
}

// StageChange is published once per transition.
type StageChange struct {
	SessionID string    `json:"session_id"`
	Stage     Stage     `json:"stage"`
	Index     int       `json:"index"`
	Question  *Question `json:"question,omitempty"`
	// Answer carries the answer just recorded (Evaluating) or just evaluated (Asking, Finished).
	Answer    *Answer   `json:"answer,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
	EndReason EndReason `json:"end_reason,omitempty"`
	Failure   string    `json:"failure,omitempty"`
	At        time.Time `json:"at"`
}

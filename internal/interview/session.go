package interview

import (
	"fmt"
	"time"
)

// session is owned by the orchestrator loop; every method assumes the caller holds the lock.
type session struct {
	id           string
	questions    []Question
	currentIndex int
	answers      []Answer
	stage        Stage
	startedAt    time.Time
	endedAt      time.Time
	endReason    EndReason
	failure      string
}

func newSession() *session {
	return &session{stage: StageCreated}
}

func (s *session) moveTo(to Stage) error {
	if s.stage.Terminal() || !canTransition(s.stage, to) {
		return invalidTransition(fmt.Sprintf("move to %s", to), s.stage)
	}
	s.stage = to
	return nil
}

// record stores the answer for the current question. Each index is written once.
func (s *session) record(answer Answer) error {
	if answer.QuestionIndex != s.currentIndex {
		return fmt.Errorf("answer for question %d while asking %d", answer.QuestionIndex, s.currentIndex)
	}
	if len(s.answers) != s.currentIndex {
		return fmt.Errorf("question %d already answered", answer.QuestionIndex)
	}
	s.answers = append(s.answers, answer)
	return nil
}

func (s *session) answer(index int) *Answer {
	if index < 0 || index >= len(s.answers) {
		return nil
	}
	return &s.answers[index]
}

// advance moves the cursor forward by exactly one question.
func (s *session) advance() error {
	if len(s.answers) != s.currentIndex+1 {
		return fmt.Errorf("question %d has no recorded answer", s.currentIndex)
	}
	if s.currentIndex+1 >= len(s.questions) {
		return fmt.Errorf("no question after %d", s.currentIndex)
	}
	s.currentIndex++
	return nil
}

func (s *session) summary() Summary {
	var sum Summary
	var total float64
	for _, a := range s.answers {
		if a.TimedOut {
			sum.TimedOut++
		} else {
			sum.Answered++
		}
		switch {
		case a.Evaluation != nil:
			sum.Evaluated++
			total += a.Evaluation.Score
		case a.EvaluationUnavailable:
			sum.Unavailable++
		}
	}
	if sum.Evaluated > 0 {
		sum.Score = total / float64(sum.Evaluated)
	}
	return sum
}

func (s *session) status() Status {
	st := Status{
		SessionID:    s.id,
		Stage:        s.stage,
		CurrentIndex: s.currentIndex,
		Total:        len(s.questions),
		Answers:      make([]Answer, len(s.answers)),
		EndReason:    s.endReason,
		Failure:      s.failure,
		Summary:      s.summary(),
	}
	for i, a := range s.answers {
		st.Answers[i] = copyAnswer(a)
	}
	if s.currentIndex < len(s.questions) && !s.stage.Terminal() {
		q := s.questions[s.currentIndex]
		st.Question = &q
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		st.EndedAt = &ended
	}
	return st
}

func copyAnswer(a Answer) Answer {
	if a.Evaluation != nil {
		eval := *a.Evaluation
		a.Evaluation = &eval
	}
	return a
}

package interview

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Stage
		expect   bool
	}{
		{StageCreated, StageAsking, true},
		{StageCreated, StageUploading, true},
		{StageUploading, StageQuestionsReady, true},
		{StageQuestionsReady, StageAsking, true},
		{StageAsking, StageRecording, true},
		{StageAsking, StageEvaluating, true},
		{StageRecording, StageEvaluating, true},
		{StageEvaluating, StageAsking, true},
		{StageEvaluating, StageFinished, true},
		{StageAsking, StageFinished, true},
		{StageCreated, StageEvaluating, false},
		{StageEvaluating, StageRecording, false},
		{StageRecording, StageAsking, false},
		{StageFinished, StageAsking, false},
		{StageFinished, StageFinished, false},
	}

	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.expect {
			t.Fatalf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.expect, got)
		}
	}
}

func TestEveryStageCanAbort(t *testing.T) {
	for from := range transitions {
		if !canTransition(from, StageFinished) {
			t.Fatalf("%s cannot reach finished", from)
		}
	}
}

func TestNextAfterEvaluation(t *testing.T) {
	if stage, index := nextAfterEvaluation(0, 2); stage != StageAsking || index != 1 {
		t.Fatalf("expected asking 1, got %s %d", stage, index)
	}
	if stage, index := nextAfterEvaluation(1, 2); stage != StageFinished || index != 1 {
		t.Fatalf("expected finished 1, got %s %d", stage, index)
	}
}

func TestSessionRecordIsWriteOnce(t *testing.T) {
	s := newSession()
	s.questions = questions("Q1", "Q2")

	if err := s.record(Answer{QuestionIndex: 1}); err == nil {
		t.Fatalf("expected error for unreached index")
	}
	if err := s.record(Answer{QuestionIndex: 0, RawTranscript: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.record(Answer{QuestionIndex: 0, RawTranscript: "b"}); err == nil {
		t.Fatalf("expected error for second answer")
	}
	if err := s.advance(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.advance(); err == nil {
		t.Fatalf("expected error advancing past unanswered question")
	}
	if s.currentIndex != 1 {
		t.Fatalf("expected index 1, got %d", s.currentIndex)
	}
}

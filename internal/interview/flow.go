package interview

// transitions lists the stages reachable from each non-terminal stage.
var transitions = map[Stage][]Stage{
	StageCreated:        {StageUploading, StageAsking, StageFinished},
	StageUploading:      {StageQuestionsReady, StageFinished},
	StageQuestionsReady: {StageAsking, StageFinished},
	StageAsking:         {StageRecording, StageEvaluating, StageFinished},
	StageRecording:      {StageEvaluating, StageFinished},
	StageEvaluating:     {StageAsking, StageFinished},
}

func canTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// capturing reports whether an answer may be taken in stage s.
func capturing(s Stage) bool {
	return s == StageAsking || s == StageRecording
}

// nextAfterEvaluation applies the advance rule shared by evaluationDone and evaluationFailed.
func nextAfterEvaluation(index, total int) (Stage, int) {
	if index+1 < total {
		return StageAsking, index + 1
	}
	return StageFinished, index
}

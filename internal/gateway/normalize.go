package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/ddsha441981/interview-assistant/internal/interview"
)

// Kind selects the shape a text provider's reply is normalized into.
type Kind string

const (
	KindQuestions  Kind = "questions"
	KindEvaluation Kind = "evaluation"
)

func (k Kind) capability() (Capability, error) {
	switch k {
	case KindQuestions:
		return CapabilityQuestionGeneration, nil
	case KindEvaluation:
		return CapabilityEvaluation, nil
	default:
		return "", fmt.Errorf("unknown result kind %q", k)
	}
}

// NormalizedResult is the provider-agnostic reply. Exactly one of Questions or Evaluation is set,
// according to Kind.
type NormalizedResult struct {
	Kind       Kind
	Provider   string
	Questions  []interview.Question
	Evaluation *interview.Evaluation
	Raw        string
}

type questionPayload struct {
	Text           string   `mapstructure:"text"`
	Question       string   `mapstructure:"question"`
	ExpectedTopics []string `mapstructure:"expected_topics"`
	Topics         []string `mapstructure:"topics"`
}

type evaluationPayload struct {
	Score    *float64 `mapstructure:"score"`
	Feedback string   `mapstructure:"feedback"`
	Reason   string   `mapstructure:"reason"`
}

func normalize(kind Kind, raw string) (*NormalizedResult, error) {
	var data any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", kind, err)
	}

	result := &NormalizedResult{Kind: kind, Raw: raw}
	switch kind {
	case KindQuestions:
		questions, err := normalizeQuestions(data)
		if err != nil {
			return nil, err
		}
		result.Questions = questions
	case KindEvaluation:
		evaluation, err := normalizeEvaluation(data)
		if err != nil {
			return nil, err
		}
		result.Evaluation = evaluation
	default:
		return nil, fmt.Errorf("unknown result kind %q", kind)
	}
	return result, nil
}

func normalizeQuestions(data any) ([]interview.Question, error) {
	if obj, ok := data.(map[string]any); ok {
		data = obj["questions"]
	}
	items, ok := data.([]any)
	if !ok {
		return nil, errors.New("questions response is not a list")
	}

	questions := make([]interview.Question, 0, len(items))
	for i, item := range items {
		if text, ok := item.(string); ok {
			item = map[string]any{"text": text}
		}

		var payload questionPayload
		if err := weakDecode(item, &payload); err != nil {
			return nil, fmt.Errorf("decode question %d: %w", i, err)
		}

		text := strings.TrimSpace(payload.Text)
		if text == "" {
			text = strings.TrimSpace(payload.Question)
		}
		if text == "" {
			continue
		}

		topics := payload.ExpectedTopics
		if len(topics) == 0 {
			topics = payload.Topics
		}
		questions = append(questions, interview.Question{Text: text, ExpectedTopics: cleanTopics(topics)})
	}

	if len(questions) == 0 {
		return nil, errors.New("questions response is empty")
	}
	return questions, nil
}

func normalizeEvaluation(data any) (*interview.Evaluation, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, errors.New("evaluation response is not an object")
	}

	var payload evaluationPayload
	if err := weakDecode(obj, &payload); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	if payload.Score == nil || math.IsNaN(*payload.Score) {
		return nil, errors.New("evaluation response has no score")
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		feedback = strings.TrimSpace(payload.Reason)
	}

	return &interview.Evaluation{
		Score:    math.Max(0, math.Min(10, *payload.Score)),
		Feedback: feedback,
	}, nil
}

func weakDecode(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func cleanTopics(topics []string) []string {
	var out []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// extractJSON strips markdown fences and any prose around the outermost JSON value.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	start := strings.IndexAny(raw, "[{")
	if start < 0 {
		return raw
	}
	closing := "}"
	if raw[start] == '[' {
		closing = "]"
	}
	if end := strings.LastIndex(raw, closing); end > start {
		return raw[start : end+1]
	}
	return raw
}

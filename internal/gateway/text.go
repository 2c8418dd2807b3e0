package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
	"github.com/ddsha441981/interview-assistant/internal/utils"
)

const maxLogLength = 200

// Generate sends prompt to the providers for kind in order and returns the first reply that
// normalizes cleanly. A reply that cannot be normalized counts as a failed attempt.
func (g *Gateway) Generate(ctx context.Context, prompt string, kind Kind) (*NormalizedResult, error) {
	capability, err := kind.capability()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}

	providers := g.providers.QuestionGeneration
	if capability == CapabilityEvaluation {
		providers = g.providers.Evaluation
	}
	system := systemPrompt(kind)

	g.logger.Debug("provider request",
		zap.String(logger.FieldCapability, string(capability)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, maxLogLength)))

	var result *NormalizedResult
	candidates := make([]candidate, 0, len(providers))
	for _, p := range providers {
		candidates = append(candidates, candidate{
			name: p.Name(),
			call: func(ctx context.Context) error {
				raw, err := p.Generate(ctx, system, prompt)
				if err != nil {
					return err
				}
				g.logger.Debug("provider response",
					zap.String(logger.FieldProvider, p.Name()),
					zap.Int("response_length", utf8.RuneCountInString(raw)),
					zap.String("response_preview", utils.TruncateForLog(raw, maxLogLength)))

				normalized, err := normalize(kind, raw)
				if err != nil {
					return err
				}
				result = normalized
				return nil
			},
		})
	}

	provider, err := g.fallback(ctx, capability, candidates)
	if err != nil {
		return nil, err
	}
	result.Provider = provider
	if result.Evaluation != nil {
		result.Evaluation.Provider = provider
	}
	return result, nil
}

// GenerateQuestions asks for count questions tailored to the resume text.
func (g *Gateway) GenerateQuestions(ctx context.Context, resume string, count int) ([]interview.Question, error) {
	if strings.TrimSpace(resume) == "" {
		return nil, errors.New("resume text must not be empty")
	}
	if count <= 0 {
		return nil, fmt.Errorf("question count must be positive, got %d", count)
	}

	result, err := g.Generate(ctx, buildQuestionsPrompt(resume, count), KindQuestions)
	if err != nil {
		return nil, err
	}

	questions := result.Questions
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// Evaluate grades one transcript. An empty transcript is still sent and graded.
func (g *Gateway) Evaluate(ctx context.Context, question interview.Question, transcript string) (*interview.Evaluation, error) {
	result, err := g.Generate(ctx, buildEvaluationPrompt(question.Text, question.ExpectedTopics, transcript), KindEvaluation)
	if err != nil {
		return nil, err
	}
	return result.Evaluation, nil
}

// QuestionSource binds resume text and count into a source for Orchestrator.Ingest.
func (g *Gateway) QuestionSource(resume string, count int) interview.QuestionSource {
	return interview.QuestionSourceFunc(func(ctx context.Context) ([]interview.Question, error) {
		return g.GenerateQuestions(ctx, resume, count)
	})
}

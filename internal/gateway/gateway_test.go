package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddsha441981/interview-assistant/internal/ai"
	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/speech"
)

const evaluationJSON = `{"score": 8, "feedback": "Solid answer."}`

func TestEvaluateUsesFirstProvider(t *testing.T) {
	primary := newFakeText("gemini", reply{text: evaluationJSON})
	secondary := newFakeText("openrouter", reply{text: evaluationJSON})
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{primary, secondary}}, log)

	eval, err := g.Evaluate(context.Background(), interview.Question{Text: "What is a channel?"}, "a pipe")
	require.NoError(t, err)

	assert.Equal(t, 8.0, eval.Score)
	assert.Equal(t, "Solid answer.", eval.Feedback)
	assert.Equal(t, "gemini", eval.Provider)
	assert.Equal(t, 0, secondary.calls())
	require.Len(t, log.all(), 1)
	assert.Equal(t, OutcomeSuccess, log.all()[0].Outcome)
	assert.Contains(t, primary.prompts[0], "What is a channel?")
	assert.Contains(t, primary.systems[0], "grading")
}

func TestFallbackOnTimeout(t *testing.T) {
	slow := newFakeText("gemini", reply{block: true})
	fast := newFakeText("openrouter", reply{text: evaluationJSON})
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{slow, fast}}, log)

	eval, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", eval.Provider)

	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, OutcomeTimeout, calls[0].Outcome)
	assert.ErrorIs(t, calls[0].Err, ErrProviderTimeout)
	assert.Equal(t, "gemini", calls[0].Provider)
	assert.Equal(t, OutcomeSuccess, calls[1].Outcome)
	assert.Equal(t, 1, slow.calls(), "timeouts are not retried on the same provider")
}

func TestTransientErrorRetriedOnce(t *testing.T) {
	flaky := newFakeText("gemini",
		reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusBadGateway}},
		reply{text: evaluationJSON},
	)
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{flaky}}, log)

	eval, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, "gemini", eval.Provider)

	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[0].Attempt)
	assert.Equal(t, 2, calls[1].Attempt)
}

func TestTransientErrorRetriedOnlyOnce(t *testing.T) {
	down := newFakeText("gemini", reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusServiceUnavailable}})
	backup := newFakeText("openrouter", reply{text: evaluationJSON})
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{down, backup}}, log)

	_, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, down.calls())
	assert.Len(t, log.all(), 3)
}

func TestPermanentErrorNotRetried(t *testing.T) {
	bad := newFakeText("gemini", reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusUnauthorized}})
	backup := newFakeText("openrouter", reply{text: evaluationJSON})
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{bad, backup}}, &callLog{})

	_, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls())
}

func TestRetryDisabled(t *testing.T) {
	down := newFakeText("gemini", reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusInternalServerError}})
	g, err := New(Providers{Evaluation: []TextProvider{down}}, Config{AttemptTimeout: time.Second})
	require.NoError(t, err)

	_, err = g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.Equal(t, 1, down.calls())
}

func TestAllProvidersExhausted(t *testing.T) {
	first := newFakeText("gemini", reply{err: errors.New("connection reset")})
	second := newFakeText("openrouter", reply{text: "I think the answer is fine"})
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{first, second}}, log)

	_, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, CapabilityEvaluation, exhausted.Capability)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, "gemini", exhausted.Failures[0].Provider)
	assert.Equal(t, "openrouter", exhausted.Failures[1].Provider)
	assert.ErrorIs(t, exhausted.Failures[1].Err, ErrProviderError)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestParentCancellationStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := newFakeText("gemini", reply{block: true})
	second := newFakeText("openrouter", reply{text: evaluationJSON})
	g, err := New(Providers{Evaluation: []TextProvider{first, second}}, Config{AttemptTimeout: time.Minute})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = g.Evaluate(ctx, interview.Question{Text: "q"}, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls())
}

func TestNoProviders(t *testing.T) {
	g := newTestGateway(t, Providers{}, &callLog{})
	_, err := g.GenerateQuestions(context.Background(), "resume", 3)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestGenerateQuestionsTrimsToCount(t *testing.T) {
	p := newFakeText("gemini", reply{text: "```json\n{\"questions\": [\"One?\", {\"text\": \"Two?\", \"expected_topics\": [\"x\"]}, \"Three?\"]}\n```"})
	g := newTestGateway(t, Providers{QuestionGeneration: []TextProvider{p}}, &callLog{})

	questions, err := g.GenerateQuestions(context.Background(), "Go developer, 5 years", 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "One?", questions[0].Text)
	assert.Equal(t, []string{"x"}, questions[1].ExpectedTopics)
	assert.Contains(t, p.prompts[0], "exactly 2 interview questions")
	assert.Contains(t, p.prompts[0], "Go developer, 5 years")
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	g := newTestGateway(t, Providers{}, &callLog{})
	_, err := g.Generate(context.Background(), "prompt", Kind("poem"))
	assert.Error(t, err)
}

func TestQuestionSource(t *testing.T) {
	p := newFakeText("gemini", reply{text: `["Why Go?"]`})
	g := newTestGateway(t, Providers{QuestionGeneration: []TextProvider{p}}, &callLog{})

	questions, err := g.QuestionSource("resume", 1).Questions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interview.Question{{Text: "Why Go?"}}, questions)
}

func TestSynthesizeFallsBack(t *testing.T) {
	broken := &fakeSpeech{name: "sarvam", err: errors.New("boom")}
	backup := &fakeSpeech{name: "backup", audio: &speech.Audio{Data: []byte("wav")}}
	log := &callLog{}
	g := newTestGateway(t, Providers{Speech: []SpeechProvider{broken, backup}}, log)

	audio, err := g.Synthesize(context.Background(), "hello", "anushka")
	require.NoError(t, err)
	assert.Equal(t, "wav", string(audio.Data))
	assert.Equal(t, 1, broken.n)

	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, CapabilitySpeech, calls[0].Capability)
}

func TestSynthesizeEmptyAudioIsFailure(t *testing.T) {
	empty := &fakeSpeech{name: "sarvam", audio: &speech.Audio{}}
	g := newTestGateway(t, Providers{Speech: []SpeechProvider{empty}}, &callLog{})

	_, err := g.Synthesize(context.Background(), "hello", "anushka")
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
}

func TestNewRejectsNegativeTimeout(t *testing.T) {
	_, err := New(Providers{}, Config{AttemptTimeout: -time.Second})
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{newFakeText("gemini", reply{text: evaluationJSON})}}, &callLog{})
	assert.True(t, g.Supports(CapabilityEvaluation))
	assert.False(t, g.Supports(CapabilityQuestionGeneration))
	assert.False(t, g.Supports(CapabilitySpeech))
}

func TestRetryWaitsForProviderHint(t *testing.T) {
	var waited []time.Duration
	original := wait
	wait = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	defer func() { wait = original }()

	limited := newFakeText("gemini",
		reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusTooManyRequests, RetryAfter: 20 * time.Millisecond}},
		reply{text: evaluationJSON},
	)
	g, err := New(Providers{Evaluation: []TextProvider{limited}}, Config{
		AttemptTimeout: time.Second,
		RetryTransient: true,
		RetryBackoff:   5 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, waited)
	assert.Equal(t, 2, limited.calls())
}

func TestRetryUsesBackoffWithoutHint(t *testing.T) {
	var waited []time.Duration
	original := wait
	wait = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	defer func() { wait = original }()

	down := newFakeText("gemini", reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusBadGateway}})
	g, err := New(Providers{Evaluation: []TextProvider{down}}, Config{
		AttemptTimeout: time.Second,
		RetryTransient: true,
		RetryBackoff:   5 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, waited, "one pause for the single retry")
	assert.Equal(t, 2, down.calls())
}

func TestHintLongerThanAttemptWindowNotRetried(t *testing.T) {
	limited := newFakeText("gemini",
		reply{err: &ai.StatusError{Provider: "gemini", Code: http.StatusTooManyRequests, RetryAfter: time.Minute}},
	)
	backup := newFakeText("openrouter", reply{text: evaluationJSON})
	log := &callLog{}
	g := newTestGateway(t, Providers{Evaluation: []TextProvider{limited, backup}}, log)

	eval, err := g.Evaluate(context.Background(), interview.Question{Text: "q"}, "a")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", eval.Provider)
	assert.Equal(t, 1, limited.calls())
	assert.Len(t, log.all(), 2)
}

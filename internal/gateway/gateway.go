// Package gateway puts one call contract in front of the configured AI and speech providers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/ai"
	"github.com/ddsha441981/interview-assistant/internal/logger"
	"github.com/ddsha441981/interview-assistant/internal/speech"
	"github.com/ddsha441981/interview-assistant/internal/utils"
)

type Capability string

const (
	CapabilityQuestionGeneration Capability = "question-generation"
	CapabilityEvaluation         Capability = "evaluation"
	CapabilitySpeech             Capability = "speech"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

const DefaultAttemptTimeout = 30 * time.Second

var wait = utils.WaitFor

// ProviderCall describes a single attempt against a single provider.
type ProviderCall struct {
	Provider   string
	Capability Capability
	Attempt    int
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    Outcome
	Err        error
}

type TextProvider interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type SpeechProvider interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string) (*speech.Audio, error)
}

// Providers lists the providers for each capability in fallback order.
type Providers struct {
	QuestionGeneration []TextProvider
	Evaluation         []TextProvider
	Speech             []SpeechProvider
}

type Config struct {
	// AttemptTimeout bounds each attempt. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration
	// RetryTransient allows one more attempt on the same provider after a transient failure.
	RetryTransient bool
	// RetryBackoff is the pause before that retry when the provider did not ask for one.
	RetryBackoff time.Duration
	// Observer receives every ProviderCall. It must not block.
	Observer func(ProviderCall)
	Logger   *zap.Logger
	Now      func() time.Time
}

// Gateway holds no per-call state; it is safe for concurrent use.
type Gateway struct {
	providers Providers
	cfg       Config
	logger    *zap.Logger
}

func New(providers Providers, cfg Config) (*Gateway, error) {
	if cfg.AttemptTimeout < 0 {
		return nil, fmt.Errorf("attempt timeout must not be negative")
	}
	if cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("retry backoff must not be negative")
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gateway{
		providers: providers,
		cfg:       cfg,
		logger:    logger.WithFields(cfg.Logger),
	}, nil
}

// Supports reports whether at least one provider is configured for capability.
func (g *Gateway) Supports(capability Capability) bool {
	switch capability {
	case CapabilityQuestionGeneration:
		return len(g.providers.QuestionGeneration) > 0
	case CapabilityEvaluation:
		return len(g.providers.Evaluation) > 0
	case CapabilitySpeech:
		return len(g.providers.Speech) > 0
	default:
		return false
	}
}

// candidate is one provider's attempt, already bound to its arguments.
type candidate struct {
	name string
	call func(ctx context.Context) error
}

// fallback walks candidates in order and returns the name of the first one that succeeds.
func (g *Gateway) fallback(ctx context.Context, capability Capability, candidates []candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%s: %w", capability, ErrNoProviders)
	}

	var failures []ProviderCall
	for _, c := range candidates {
		for attempt := 1; ; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			call, err := g.attempt(ctx, capability, c, attempt)
			g.record(call)
			if call.Outcome == OutcomeSuccess {
				return c.name, nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures = append(failures, call)

			delay, retry := g.retryDelay(call, err)
			if attempt > 1 || !retry {
				break
			}
			if err := wait(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	return "", &ExhaustedError{Capability: capability, Failures: failures}
}

// retryDelay reports whether a failed first attempt earns its one retry and how long to pause first.
// A provider asking for a pause longer than an attempt window is not retried.
func (g *Gateway) retryDelay(call ProviderCall, err error) (time.Duration, bool) {
	if !g.cfg.RetryTransient || call.Outcome != OutcomeError || !ai.IsTransient(err) {
		return 0, false
	}
	delay := ai.RetryAfter(err)
	if delay == 0 {
		delay = g.cfg.RetryBackoff
	}
	if delay > g.cfg.AttemptTimeout {
		return 0, false
	}
	return delay, true
}

func (g *Gateway) attempt(ctx context.Context, capability Capability, c candidate, attempt int) (ProviderCall, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()

	call := ProviderCall{
		Provider:   c.name,
		Capability: capability,
		Attempt:    attempt,
		StartedAt:  g.cfg.Now(),
	}

	err := c.call(attemptCtx)
	call.Duration = g.cfg.Now().Sub(call.StartedAt)

	switch {
	case err == nil:
		call.Outcome = OutcomeSuccess
	case ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		call.Outcome = OutcomeTimeout
		call.Err = fmt.Errorf("%w after %s: %w", ErrProviderTimeout, g.cfg.AttemptTimeout, err)
	default:
		call.Outcome = OutcomeError
		call.Err = fmt.Errorf("%w: %w", ErrProviderError, err)
	}
	return call, err
}

func (g *Gateway) record(call ProviderCall) {
	fields := append(logger.ProviderFields(call.Provider, string(call.Capability)),
		zap.Int("attempt", call.Attempt),
		zap.String("outcome", string(call.Outcome)),
		zap.Duration("duration", call.Duration),
	)
	if call.Outcome == OutcomeSuccess {
		g.logger.Debug("provider call", fields...)
	} else {
		g.logger.Warn("provider call failed", append(fields, zap.Error(call.Err))...)
	}

	if g.cfg.Observer != nil {
		g.cfg.Observer(call)
	}
}

// Synthesize turns text into audio using the speech providers in order.
func (g *Gateway) Synthesize(ctx context.Context, text, voice string) (*speech.Audio, error) {
	var audio *speech.Audio
	candidates := make([]candidate, 0, len(g.providers.Speech))
	for _, p := range g.providers.Speech {
		candidates = append(candidates, candidate{
			name: p.Name(),
			call: func(ctx context.Context) error {
				out, err := p.Synthesize(ctx, text, voice)
				if err != nil {
					return err
				}
				if out == nil || len(out.Data) == 0 {
					return errors.New("empty audio")
				}
				audio = out
				return nil
			},
		})
	}

	if _, err := g.fallback(ctx, CapabilitySpeech, candidates); err != nil {
		return nil, err
	}
	return audio, nil
}

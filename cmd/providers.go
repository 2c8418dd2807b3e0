package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/ai/gemini"
	"github.com/ddsha441981/interview-assistant/internal/ai/openrouter"
	"github.com/ddsha441981/interview-assistant/internal/gateway"
	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
	"github.com/ddsha441981/interview-assistant/internal/secrets"
	"github.com/ddsha441981/interview-assistant/internal/speech"
	"github.com/ddsha441981/interview-assistant/internal/speech/sarvam"
)

// providerSet builds each named provider at most once, however many capabilities list it.
type providerSet struct {
	ctx    context.Context
	cfg    *ProvidersConfig
	logger *zap.Logger

	text   map[string]gateway.TextProvider
	speech map[string]gateway.SpeechProvider
}

func newProviderSet(ctx context.Context, cfg *ProvidersConfig, log *zap.Logger) *providerSet {
	if cfg == nil {
		cfg = &ProvidersConfig{}
	}
	return &providerSet{
		ctx:    ctx,
		cfg:    cfg,
		logger: log,
		text:   make(map[string]gateway.TextProvider),
		speech: make(map[string]gateway.SpeechProvider),
	}
}

func (p *providerSet) textProviders(capability gateway.Capability, names []string) []gateway.TextProvider {
	var out []gateway.TextProvider
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		provider, ok := p.text[name]
		if !ok {
			var err error
			provider, err = p.newTextProvider(name)
			if err != nil {
				p.logger.Warn("skipping provider", append(logger.ProviderFields(name, string(capability)), zap.Error(err))...)
				continue
			}
			p.text[name] = provider
			if m, ok := provider.(interface{ Model() string }); ok {
				p.logger.Info("provider ready", append(logger.ProviderFields(name, string(capability)), zap.String("model", m.Model()))...)
			}
		}
		out = append(out, provider)
	}
	return out
}

func (p *providerSet) newTextProvider(name string) (gateway.TextProvider, error) {
	switch name {
	case "gemini":
		cfg := p.cfg.Gemini
		if cfg == nil {
			cfg = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		return gemini.NewGenerator(p.ctx, gemini.Options{
			APIKey: apiKey,
			Model:  cfg.Model,
			Logger: p.logger,
		})

	case "openrouter":
		cfg := p.cfg.OpenRouter
		if cfg == nil {
			cfg = &OpenRouterConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openrouter api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "OPENROUTER_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.openrouter.api-key-file or OPENROUTER_API_KEY_FILE)", err)
		}
		var opts []openrouter.Option
		if cfg.Model != "" {
			opts = append(opts, openrouter.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(cfg.BaseURL))
		}
		return openrouter.New(apiKey, opts...)

	default:
		return nil, fmt.Errorf("unsupported text provider: %s", name)
	}
}

func (p *providerSet) speechProviders(names []string) []gateway.SpeechProvider {
	var out []gateway.SpeechProvider
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		provider, ok := p.speech[name]
		if !ok {
			var err error
			provider, err = p.newSpeechProvider(name)
			if err != nil {
				p.logger.Warn("skipping provider", append(logger.ProviderFields(name, string(gateway.CapabilitySpeech)), zap.Error(err))...)
				continue
			}
			p.speech[name] = provider
		}
		out = append(out, provider)
	}
	return out
}

func (p *providerSet) newSpeechProvider(name string) (gateway.SpeechProvider, error) {
	switch name {
	case "sarvam":
		cfg := p.cfg.Sarvam
		if cfg == nil {
			cfg = &SarvamConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "sarvam api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "SARVAM_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set providers.sarvam.api-key-file or SARVAM_API_KEY_FILE)", err)
		}
		return sarvam.New(sarvam.Config{
			APIKey:   apiKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
		})
	default:
		return nil, fmt.Errorf("unsupported speech provider: %s", name)
	}
}

// buildGateway wires the configured providers. Evaluation must end up with at least one provider.
func buildGateway(ctx context.Context, config *Config, log *zap.Logger) (*gateway.Gateway, error) {
	caps := config.Capabilities
	if caps == nil {
		caps = &CapabilitiesConfig{}
	}
	providersCfg := config.Providers
	if providersCfg == nil {
		providersCfg = &ProvidersConfig{}
	}

	set := newProviderSet(ctx, providersCfg, log)
	providers := gateway.Providers{
		QuestionGeneration: set.textProviders(gateway.CapabilityQuestionGeneration, caps.QuestionGeneration),
		Evaluation:         set.textProviders(gateway.CapabilityEvaluation, caps.Evaluation),
	}
	if config.Speech != nil && config.Speech.Enabled {
		providers.Speech = set.speechProviders(caps.Speech)
	}

	if len(providers.Evaluation) == 0 {
		return nil, fmt.Errorf("no usable evaluation provider among %v", caps.Evaluation)
	}

	return gateway.New(providers, gateway.Config{
		AttemptTimeout: providersCfg.AttemptTimeout,
		RetryTransient: providersCfg.RetryTransient,
		RetryBackoff:   providersCfg.RetryBackoff,
		Logger:         log,
	})
}

// buildSpeaker returns nil when speech is disabled or no speech provider is usable.
func buildSpeaker(config *Config, gw *gateway.Gateway, log *zap.Logger) (interview.Speaker, error) {
	if config.Speech == nil || !config.Speech.Enabled || !gw.Supports(gateway.CapabilitySpeech) {
		return nil, nil
	}

	var player speech.Player = speech.Nop{}
	if dir := strings.TrimSpace(config.Speech.OutputDir); dir != "" {
		sink, err := speech.NewFileSink(dir, log)
		if err != nil {
			return nil, err
		}
		player = sink
	}

	speaker, err := speech.NewSpeaker(gw, player, log)
	if err != nil {
		return nil, err
	}
	return speaker, nil
}

func interviewConfig(config *Config) interview.Config {
	cfg := config.Interview
	if cfg == nil {
		cfg = &InterviewConfig{}
	}
	return interview.Config{
		AnswerTimeout:     cfg.AnswerTimeout,
		SessionTimeout:    cfg.SessionTimeout,
		EvaluationTimeout: cfg.EvaluationTimeout,
		VoiceID:           cfg.Voice,
	}
}

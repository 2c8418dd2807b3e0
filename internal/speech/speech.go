// Package speech turns question text into audio and hands it to a player.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Audio is one synthesized utterance.
type Audio struct {
	Data       []byte
	Format     string
	SampleRate int
	Voice      string
	Provider   string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)
}

type Player interface {
	Play(ctx context.Context, audio *Audio) error
}

// Speaker synthesizes text and plays it. It satisfies interview.Speaker.
type Speaker struct {
	synth  Synthesizer
	player Player
	logger *zap.Logger
}

func NewSpeaker(synth Synthesizer, player Player, logger *zap.Logger) (*Speaker, error) {
	if synth == nil {
		return nil, errors.New("speech synthesizer is required")
	}
	if player == nil {
		player = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{synth: synth, player: player, logger: logger}, nil
}

// Speak returns once playback finished or ctx was cancelled.
func (s *Speaker) Speak(ctx context.Context, text, voiceID string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("nothing to speak")
	}

	audio, err := s.synth.Synthesize(ctx, text, voiceID)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("playing synthesized audio",
		zap.String("provider", audio.Provider),
		zap.String("voice", audio.Voice),
		zap.Int("bytes", len(audio.Data)))

	if err := s.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Nop discards audio.
type Nop struct{}

func (Nop) Play(ctx context.Context, audio *Audio) error { return ctx.Err() }

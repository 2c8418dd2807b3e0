// Package sarvam synthesizes speech with the Sarvam text-to-speech API.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ddsha441981/interview-assistant/internal/ai"
	"github.com/ddsha441981/interview-assistant/internal/speech"
)

const (
	providerName    = "sarvam"
	defaultBaseURL  = "https://api.sarvam.ai"
	defaultModel    = "bulbul:v2"
	defaultLanguage = "en-IN"
	defaultVoice    = "anushka"
	sampleRate      = 22050
)

// Config holds the Sarvam connection settings. Zero values fall back to defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("sarvam api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaultLanguage
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, http: client}, nil
}

func (c *Client) Name() string { return providerName }

type ttsRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
	Model              string `json:"model"`
	SampleRate         int    `json:"speech_sample_rate"`
}

type ttsResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// Synthesize returns WAV audio for text spoken in voice.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (*speech.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}
	if voice = strings.TrimSpace(voice); voice == "" {
		voice = defaultVoice
	}

	buf, err := json.Marshal(ttsRequest{
		Text:               text,
		TargetLanguageCode: c.cfg.Language,
		Speaker:            voice,
		Model:              c.cfg.Model,
		SampleRate:         sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/text-to-speech", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", providerName, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &ai.StatusError{Provider: providerName, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded ttsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", providerName, err)
	}
	if len(decoded.Audios) == 0 {
		return nil, fmt.Errorf("%s: response has no audio", providerName)
	}

	files := make([][]byte, 0, len(decoded.Audios))
	for i, chunk := range decoded.Audios {
		raw, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("%s: decode audio chunk %d: %w", providerName, i, err)
		}
		files = append(files, raw)
	}
	data, err := joinWAV(files)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}

	return &speech.Audio{
		Data:       data,
		Format:     "wav",
		SampleRate: sampleRate,
		Voice:      voice,
		Provider:   providerName,
	}, nil
}

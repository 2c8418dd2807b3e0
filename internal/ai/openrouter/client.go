// Package openrouter talks to OpenAI-compatible chat completion endpoints such as OpenRouter.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ddsha441981/interview-assistant/internal/ai"
)

const (
	providerName   = "openrouter"
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
)

type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the model sent with every request.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTimeout customizes the client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

type Client struct {
	opts       options
	httpClient *http.Client
}

func New(apiKey string, opts ...Option) (*Client, error) {
	o := options{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}
	if strings.TrimSpace(o.model) == "" {
		o.model = defaultModel
	}
	if strings.TrimSpace(o.baseURL) == "" {
		o.baseURL = defaultBaseURL
	}

	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: o.timeout}
	}
	return &Client{opts: o, httpClient: client}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Model() string { return c.opts.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends a single-turn chat completion and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	payload := chatRequest{Model: c.opts.model}
	if system = strings.TrimSpace(system); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: prompt})

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.baseURL, "/")+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", providerName, err)
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(body))
		if decodeErr == nil && decoded.Error != nil {
			message = decoded.Error.Message
		}
		return "", &ai.StatusError{Provider: providerName, Code: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%s: decode response: %w", providerName, decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: response has no choices", providerName)
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s: empty response", providerName)
	}
	return text, nil
}

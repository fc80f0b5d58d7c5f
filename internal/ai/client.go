// Package ai is the chat-completion gateway used by the study assistant.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/errs"
)

// Defaults for Groq's OpenAI-compatible endpoint.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultTimeout = 60 * time.Second
)

// Config configures the gateway.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client sends one system + one user message per completion. No streaming, no retry.
type Client struct {
	api     *openai.Client // nil when no credential is configured
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// New builds a gateway client. A missing API key is logged here; the client is still usable
// and every Complete fails with errs.ErrGateway without touching the network.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{model: cfg.Model, timeout: cfg.Timeout, log: log}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		log.Error("AI gateway credential missing; assistant requests will fail")
		return c
	}
	oc := openai.DefaultConfig(key)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	c.api = openai.NewClientWithConfig(oc)
	log.Info("AI gateway ready", zap.String("base_url", oc.BaseURL), zap.String("model", cfg.Model))
	return c
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.api != nil }

// Complete returns the first choice's message content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("%w: missing API key", errs.ErrGateway)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		c.log.Warn("completion failed", zap.Error(err), zap.Duration("dur", time.Since(start)))
		return "", gatewayError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", errs.ErrGateway)
	}
	c.log.Debug("completion",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_bytes", len(system)+len(user)),
		zap.Duration("dur", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

func gatewayError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", errs.ErrGateway, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: status %d", errs.ErrGateway, reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("%w: %v", errs.ErrGateway, err)
}

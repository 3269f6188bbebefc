// Package openai implements llm.Extractor on the OpenAI chat completions API.
package openai

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

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	failureMessage = "Failed to parse lease with AI"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string // text prompts
	VisionModel string // prompts carrying an image
	MaxTokens   int
	// JSONMode requests response_format=json_object for text prompts. Older
	// models such as gpt-4 reject it.
	JSONMode   bool
	HTTPClient *http.Client
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: log}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Extract calls chat/completions with temperature 0 and returns the first
// choice's content verbatim.
func (c *Client) Extract(ctx context.Context, p prompt.Prompt) (string, error) {
	start := time.Now()
	model := c.cfg.Model
	var user any = p.User
	if p.HasImage() {
		model = c.cfg.VisionModel
		user = []map[string]any{
			{"type": "text", "text": p.User},
			{"type": "image_url", "image_url": map[string]any{"url": p.ImageURL}},
		}
	}

	body := map[string]any{
		"model":       model,
		"temperature": 0,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": p.System},
			{"role": "user", "content": user},
		},
	}
	if c.cfg.JSONMode && !p.HasImage() {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		c.logger.Error("OpenAI request failed",
			logger.String("model", model),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return "", models.ExtractionError(failureMessage, err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", models.ExtractionError(failureMessage, fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == nil || strings.TrimSpace(*cc.Choices[0].Message.Content) == "" {
		return "", models.ExtractionError(failureMessage, errors.New("no content in openai response"))
	}

	content := *cc.Choices[0].Message.Content
	c.logger.Info("OpenAI extraction finished",
		logger.String("model", model),
		logger.String("finish_reason", cc.Choices[0].FinishReason),
		logger.Int("content_len", len(content)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Service: "OpenAI", Code: resp.StatusCode, Body: models.Truncate(string(raw), 500)}
	}
	return raw, nil
}

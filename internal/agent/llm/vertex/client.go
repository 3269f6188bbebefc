// Package vertex implements llm.Extractor on Gemini models served by Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const failureMessage = "Failed to parse lease with AI"

type Config struct {
	ProjectID string
	Region    string
	Model     string
	MaxTokens int
}

// generator is the part of *genai.GenerativeModel the client uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	model  generator
	base   *genai.Client
	logger logger.Logger
}

// NewClient connects to Vertex AI with application default credentials.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := base.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	if cfg.MaxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(cfg.MaxTokens))
	}

	c := newWithGenerator(model, log)
	c.base = base
	return c, nil
}

func newWithGenerator(g generator, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{model: g, logger: log}
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.base == nil {
		return nil
	}
	return c.base.Close()
}

// Extract sends the prompt and returns the concatenated text parts of the
// first candidate. The system message travels as the leading text part.
func (c *Client) Extract(ctx context.Context, p prompt.Prompt) (string, error) {
	parts := make([]genai.Part, 0, 3)
	if p.System != "" {
		parts = append(parts, genai.Text(p.System))
	}
	if p.HasImage() {
		parts = append(parts, genai.FileData{MIMEType: imageMIME(p.ImageURL), FileURI: p.ImageURL})
	}
	parts = append(parts, genai.Text(p.User))

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("Vertex AI request failed", logger.Error(err))
		return "", models.ExtractionError(failureMessage, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", models.ExtractionError(failureMessage, errors.New("no content in vertex response"))
	}
	c.logger.Info("Vertex AI extraction finished", logger.Int("content_len", len(text)))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func imageMIME(url string) string {
	switch strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

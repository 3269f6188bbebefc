// Package pdfco converts lease PDFs through the PDF.co REST API.
package pdfco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.pdf.co/v1"
	sourceName     = "pdfco"
)

// Config configures the PDF.co client.
type Config struct {
	BaseURL    string
	APIKey     string
	Retry      retry.Policy
	HTTPClient *http.Client
}

// Client is a thin JSON client for PDF.co.
type Client struct {
	baseURL    string
	apiKey     string
	policy     retry.Policy
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a PDF.co client.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		policy:     cfg.Retry,
		httpClient: cfg.HTTPClient,
		logger:     log,
	}
}

// response covers the fields PDF.co returns from the convert endpoints.
// "error" is a boolean on success and failure, but older endpoints send a string.
type response struct {
	Body      string          `json:"body"`
	URLs      []string        `json:"urls"`
	PageCount int             `json:"pageCount"`
	Error     json.RawMessage `json:"error"`
	Status    int             `json:"status"`
	Message   string          `json:"message"`
}

func (r *response) failed() bool {
	v := strings.TrimSpace(string(r.Error))
	return v != "" && v != "false" && v != "null" && v != `""`
}

func (r *response) reason() string {
	if r.Message != "" {
		return r.Message
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil && s != "" {
		return s
	}
	return "Unknown error"
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (*response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out response
	err = retry.Do(ctx, c.policy, c.logger, "pdfco"+path, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.StatusError{Service: "PDF.co", Code: resp.StatusCode, Body: models.Truncate(string(raw), 500)}
		}
		out = response{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

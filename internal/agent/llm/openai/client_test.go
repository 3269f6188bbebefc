package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
)

type captured struct {
	Model          string           `json:"model"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens"`
	ResponseFormat map[string]any   `json:"response_format"`
	Messages       []map[string]any `json:"messages"`
}

func server(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_Text(t *testing.T) {
	var got captured
	srv := server(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"tenant_name\":\"Acme Corp\"}"},"finish_reason":"stop"}]}`, &got)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4", MaxTokens: 1000}, nil)

	out, err := c.Extract(context.Background(), prompt.Prompt{System: "sys", User: "Lease document text:\n..."})
	require.NoError(t, err)

	assert.Equal(t, `{"tenant_name":"Acme Corp"}`, out)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, float64(0), got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.Nil(t, got.ResponseFormat)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0]["role"])
	assert.Equal(t, "sys", got.Messages[0]["content"])
}

func TestExtract_JSONMode(t *testing.T) {
	var got captured
	srv := server(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &got)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", JSONMode: true}, nil)

	_, err := c.Extract(context.Background(), prompt.Prompt{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestExtract_Vision(t *testing.T) {
	var got captured
	srv := server(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &got)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, VisionModel: "gpt-4o", JSONMode: true}, nil)

	_, err := c.Extract(context.Background(), prompt.Prompt{System: "sys", User: "u", ImageURL: "https://cdn/p1.png"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Nil(t, got.ResponseFormat)
	parts, ok := got.Messages[1]["content"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "https://cdn/p1.png", image["image_url"].(map[string]any)["url"])
}

func TestExtract_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		reply  string
	}{
		"no choices":   {http.StatusOK, `{"choices":[]}`},
		"null content": {http.StatusOK, `{"choices":[{"message":{"content":null}}]}`},
		"not json":     {http.StatusOK, `<html>`},
		"server error": {http.StatusInternalServerError, `{"error":{"message":"boom"}}`},
		"bad api key":  {http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := server(t, tc.status, tc.reply, nil)
			c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

			_, err := c.Extract(context.Background(), prompt.Prompt{User: "u"})
			var e *models.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, models.KindExtraction, e.Kind)
			assert.Equal(t, "Failed to parse lease with AI", e.Message)
		})
	}
}

func TestExtract_StatusIsVisibleToRetry(t *testing.T) {
	srv := server(t, http.StatusTooManyRequests, `{}`, nil)
	_, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil).Extract(context.Background(), prompt.Prompt{User: "u"})
	assert.True(t, retry.IsTransient(err))
}

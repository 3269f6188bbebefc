package llm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
)

var fast = retry.Policy{MaxAttempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

func TestWithRetry_RetriesRateLimits(t *testing.T) {
	calls := 0
	ext := WithRetry(ExtractorFunc(func(context.Context, prompt.Prompt) (string, error) {
		calls++
		if calls == 1 {
			return "", models.ExtractionError("Failed to parse lease with AI", &retry.StatusError{Service: "OpenAI", Code: http.StatusTooManyRequests})
		}
		return `{"tenant_name":"Acme Corp"}`, nil
	}), fast, nil)

	out, err := ext.Extract(context.Background(), prompt.Prompt{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"tenant_name":"Acme Corp"}`, out)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_DoesNotRetryEmptyReply(t *testing.T) {
	calls := 0
	ext := WithRetry(ExtractorFunc(func(context.Context, prompt.Prompt) (string, error) {
		calls++
		return "", models.ExtractionError("Failed to parse lease with AI", nil)
	}), fast, nil)

	_, err := ext.Extract(context.Background(), prompt.Prompt{})
	assert.Equal(t, models.KindExtraction, models.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SingleAttemptIsPassthrough(t *testing.T) {
	inner := ExtractorFunc(func(context.Context, prompt.Prompt) (string, error) { return "", nil })
	_, wrapped := WithRetry(inner, retry.NoRetry, nil).(*retrying)
	assert.False(t, wrapped)
}

// Package llm defines the structured extractor and its retry policy.
package llm

import (
	"context"

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// Extractor sends a prompt to a generative model and returns its raw text
// reply. The reply is not parsed here.
type Extractor interface {
	Extract(ctx context.Context, p prompt.Prompt) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, p prompt.Prompt) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, p prompt.Prompt) (string, error) {
	return f(ctx, p)
}

type retrying struct {
	next   Extractor
	policy retry.Policy
	logger logger.Logger
}

// WithRetry retries next on network failures, 5xx and 429 responses.
func WithRetry(next Extractor, policy retry.Policy, log logger.Logger) Extractor {
	if policy.MaxAttempts <= 1 {
		return next
	}
	return &retrying{next: next, policy: policy, logger: log}
}

func (r *retrying) Extract(ctx context.Context, p prompt.Prompt) (string, error) {
	var out string
	err := retry.Do(ctx, r.policy, r.logger, "llm.extract", func(ctx context.Context) error {
		var err error
		out, err = r.next.Extract(ctx, p)
		return err
	})
	return out, err
}

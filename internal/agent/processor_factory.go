// Package agent builds the converters and the extractor selected by config.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/agent/document/pdf"
	"github.com/feichai0017/lease-parser/internal/agent/document/pdfco"
	"github.com/feichai0017/lease-parser/internal/agent/document/textract"
	"github.com/feichai0017/lease-parser/internal/agent/llm"
	"github.com/feichai0017/lease-parser/internal/agent/llm/openai"
	"github.com/feichai0017/lease-parser/internal/agent/llm/vertex"
	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// ProcessorFactory holds one converter per mode.
type ProcessorFactory struct {
	converters map[models.Mode]document.Converter
	logger     logger.Logger
}

// NewProcessorFactory builds the text converter named by the converter
// backend and the PDF.co image converter. stager may be nil, in which case
// image mode only accepts pdfUrl sources.
func NewProcessorFactory(ctx context.Context, cfg *config.Config, stager document.Stager, log logger.Logger) (*ProcessorFactory, error) {
	f := &ProcessorFactory{
		converters: make(map[models.Mode]document.Converter),
		logger:     log,
	}

	pdfcoClient := pdfco.NewClient(pdfco.Config{
		BaseURL: cfg.Converter.PDFCoURL,
		APIKey:  cfg.Converter.PDFCoAPIKey,
		Retry:   retry.FromConfig(cfg.Retry),
	}, log.Named("pdfco"))

	switch cfg.Converter.Backend {
	case config.ConverterPDFCo:
		f.converters[models.TextMode] = pdfco.NewTextConverter(pdfcoClient)
	case config.ConverterTextract:
		tc, err := textract.New(ctx, textract.Config{
			Region:        cfg.Converter.AWS.Region,
			AccessKey:     cfg.Converter.AWS.AccessKey,
			SecretKey:     cfg.Converter.AWS.SecretKey,
			MinConfidence: 80,
			MaxDownload:   cfg.MaxUploadBytes(),
		}, log.Named("textract"))
		if err != nil {
			return nil, fmt.Errorf("failed to create textract converter: %w", err)
		}
		f.converters[models.TextMode] = tc
	case config.ConverterLocal:
		f.converters[models.TextMode] = pdf.NewLocalTextConverter(log.Named("pdf"), cfg.MaxUploadBytes())
	default:
		return nil, fmt.Errorf("unsupported converter backend: %s", cfg.Converter.Backend)
	}
	f.converters[models.ImageMode] = pdfco.NewImageConverter(pdfcoClient, stager)

	return f, nil
}

// GetConverter returns the converter for mode.
func (f *ProcessorFactory) GetConverter(mode models.Mode) (document.Converter, error) {
	c, ok := f.converters[mode]
	if !ok {
		f.logger.Error("No converter found", logger.String("mode", string(mode)))
		return nil, models.BadRequest(fmt.Sprintf("unsupported mode: %s", mode))
	}
	return c, nil
}

// NewExtractor builds the configured model client wrapped with the retry
// policy. The returned close function releases backend connections.
func NewExtractor(ctx context.Context, cfg *config.Config, log logger.Logger) (llm.Extractor, func() error, error) {
	noop := func() error { return nil }
	policy := retry.FromConfig(cfg.Retry)

	switch cfg.Extractor.Backend {
	case config.ExtractorOpenAI:
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.Extractor.OpenAIAPIKey,
			BaseURL:     cfg.Extractor.OpenAIURL,
			Model:       cfg.Extractor.Model,
			VisionModel: cfg.Extractor.VisionModel,
			MaxTokens:   cfg.Extractor.MaxTokens,
			JSONMode:    cfg.Extractor.JSONMode,
		}, log.Named("openai"))
		return llm.WithRetry(client, policy, log), noop, nil

	case config.ExtractorVertex:
		if cfg.Extractor.VertexProject == "" {
			// Requests fail on credential resolution before reaching the extractor.
			return unconfigured("Vertex AI project not configured (VERTEX_PROJECT_ID)"), noop, nil
		}
		client, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID: cfg.Extractor.VertexProject,
			Region:    cfg.Extractor.VertexRegion,
			Model:     cfg.Extractor.VertexModel,
			MaxTokens: cfg.Extractor.MaxTokens,
		}, log.Named("vertex"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return llm.WithRetry(client, policy, log), client.Close, nil

	default:
		return nil, nil, errors.New("unsupported extractor backend: " + cfg.Extractor.Backend)
	}
}

func unconfigured(msg string) llm.Extractor {
	return llm.ExtractorFunc(func(context.Context, prompt.Prompt) (string, error) {
		return "", models.MissingCredential(msg)
	})
}

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

func TestProcessorFactory_Backends(t *testing.T) {
	tests := []struct {
		backend  string
		wantText string
	}{
		{config.ConverterPDFCo, "pdfco"},
		{config.ConverterLocal, "local"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Converter.Backend = tt.backend

			f, err := NewProcessorFactory(context.Background(), cfg, nil, logger.NewTestLogger())
			require.NoError(t, err)

			text, err := f.GetConverter(models.TextMode)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text.Name())
			assert.Equal(t, models.TextMode, text.Mode())

			image, err := f.GetConverter(models.ImageMode)
			require.NoError(t, err)
			assert.Equal(t, "pdfco", image.Name())
			assert.Equal(t, models.ImageMode, image.Mode())
		})
	}
}

func TestProcessorFactory_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Converter.Backend = "tesseract"
	_, err := NewProcessorFactory(context.Background(), cfg, nil, logger.NewTestLogger())
	assert.Error(t, err)

	f, err := NewProcessorFactory(context.Background(), config.Default(), nil, logger.NewTestLogger())
	require.NoError(t, err)
	_, err = f.GetConverter(models.Mode("audio"))
	assert.Equal(t, models.KindBadRequest, models.KindOf(err))
}

func TestNewExtractor(t *testing.T) {
	cfg := config.Default()
	ex, closeFn, err := NewExtractor(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)
	assert.NotNil(t, ex)
	assert.NoError(t, closeFn())

	cfg.Extractor.Backend = config.ExtractorVertex
	ex, _, err = NewExtractor(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), prompt.Prompt{User: "x"})
	assert.Equal(t, models.KindMissingCredential, models.KindOf(err))

	cfg.Extractor.Backend = "llama"
	_, _, err = NewExtractor(context.Background(), cfg, logger.NewTestLogger())
	assert.Error(t, err)
}

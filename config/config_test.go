package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envFrom(map[string]string{
		"PDFCO_API_KEY":      "pdf-key",
		"OPENAI_API_KEY":     "oa-key",
		"MAX_UPLOAD_SIZE_MB": "10",
		"CONVERTER_TIMEOUT":  "15s",
		"LOG_OUTPUTS":        "stdout, logs/x.log",
		"STAGING_USE_SSL":    "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "pdf-key", cfg.Converter.PDFCoAPIKey)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
	assert.Equal(t, 15*time.Second, cfg.Converter.Timeout)
	assert.Equal(t, []string{"stdout", "logs/x.log"}, cfg.Log.Outputs)
	assert.True(t, cfg.Staging.UseSSL)
}

func TestApplyEnv_RejectsMalformedNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envFrom(map[string]string{"MAX_UPLOAD_SIZE_MB": "fifty"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_UPLOAD_SIZE_MB")
}

func TestDefault_UploadLimitIs50MB(t *testing.T) {
	assert.Equal(t, int64(50*1024*1024), Default().MaxUploadBytes())
}

func TestResolve(t *testing.T) {
	t.Run("missing conversion key", func(t *testing.T) {
		cfg := Default()
		cfg.Extractor.OpenAIAPIKey = "oa"
		_, err := cfg.Resolve()

		var mc *MissingCredentialError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, "PDFCO_API_KEY", mc.Setting)
		assert.Contains(t, err.Error(), "PDF.co")
	})

	t.Run("missing model key", func(t *testing.T) {
		cfg := Default()
		cfg.Converter.PDFCoAPIKey = "pdf"
		_, err := cfg.Resolve()

		var mc *MissingCredentialError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, "OPENAI_API_KEY", mc.Setting)
		assert.Equal(t, "OpenAI API key not configured (OPENAI_API_KEY)", err.Error())
	})

	t.Run("local converter needs no conversion key", func(t *testing.T) {
		cfg := Default()
		cfg.Converter.Backend = ConverterLocal
		cfg.Extractor.OpenAIAPIKey = "oa"
		creds, err := cfg.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "oa", creds.OpenAIAPIKey)
	})

	t.Run("vertex needs a project", func(t *testing.T) {
		cfg := Default()
		cfg.Converter.PDFCoAPIKey = "pdf"
		cfg.Extractor.Backend = ExtractorVertex
		_, err := cfg.Resolve()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "VERTEX_PROJECT_ID")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Converter.Backend = "tesseract"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Staging.Backend = StagingS3
	assert.Error(t, cfg.Validate(), "bucket is required")
	cfg.Staging.Bucket = "leases"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  maxUploadMB: 20
extractor:
  model: gpt-4o-mini
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OPENAI_MODEL", "gpt-4.1")

	cfg, err := Load(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, int64(20), cfg.Server.MaxUploadMB)
	assert.Equal(t, "gpt-4.1", cfg.Extractor.Model)
	assert.Equal(t, "gpt-4o", cfg.Extractor.VisionModel)
}

package converters

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "日本...", Preview("日本語", 2))
	assert.Equal(t, "", Preview("", 5))
}

func TestConvert_TextMode(t *testing.T) {
	c := NewResponseConverter(10)
	body := strings.Repeat("x", 40)
	resp := c.Convert(
		&models.IngestRequest{CorrelationID: "corr-1", Mode: models.TextMode},
		&models.ParseOutcome{
			Result:   &models.ExtractionResult{TenantName: "Acme Corp"},
			Document: models.NewTextDocument(body, "pdfco", 3),
			Mode:     models.TextMode,
			Filename: "lease.pdf",
			Elapsed:  1500 * time.Millisecond,
		},
	)

	assert.True(t, resp.Success)
	assert.Equal(t, "lease.pdf", resp.Filename)
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.Equal(t, strings.Repeat("x", 10)+"...", resp.ExtractedText)
	assert.Equal(t, 3, resp.PageCount)
	assert.Empty(t, resp.PageImageURL)
	assert.Equal(t, int64(1500), resp.ProcessingMs)
}

func TestConvert_ImageMode(t *testing.T) {
	resp := NewResponseConverter(0).Convert(
		&models.IngestRequest{LeaseUploadID: "lease-7", Mode: models.ImageMode},
		&models.ParseOutcome{
			Result:   &models.ExtractionResult{},
			Document: models.NewPageImagesDocument([]string{"https://img/1.png", "https://img/2.png"}, "pdfco"),
			Mode:     models.ImageMode,
		},
	)

	assert.Equal(t, "lease-7", resp.LeaseUploadID)
	assert.Equal(t, "https://img/1.png", resp.PageImageURL)
	assert.Equal(t, 2, resp.PageCount)
	assert.Empty(t, resp.ExtractedText)
}

func TestConvert_LeaseDataAlwaysPresent(t *testing.T) {
	resp := NewResponseConverter(0).Convert(&models.IngestRequest{}, &models.ParseOutcome{})
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &body))
	var lease map[string]any
	require.NoError(t, json.Unmarshal(body["leaseData"], &lease))
	assert.Len(t, lease, 14)
}

// Package textract converts lease PDFs to text with AWS Textract.
package textract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const sourceName = "textract"

// Analyzer is the subset of the Textract API the converter calls.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

type Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
	// MaxDownload bounds the size of PDFs fetched from a pdfUrl.
	MaxDownload int64
}

// Converter runs AnalyzeDocument with the FORMS feature and flattens lines
// and key/value pairs into one text body. Textract's synchronous API only
// accepts single-page PDFs; longer documents fail as ConversionError.
type Converter struct {
	api        Analyzer
	cfg        Config
	httpClient *http.Client
	logger     logger.Logger
}

// New builds a Converter backed by a real Textract client. Static
// credentials are used when provided, the default AWS chain otherwise.
func New(ctx context.Context, cfg Config, log logger.Logger) (*Converter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewWithAPI(textract.NewFromConfig(awsCfg), cfg, log), nil
}

// NewWithAPI builds a Converter around an existing Analyzer.
func NewWithAPI(api Analyzer, cfg Config, log logger.Logger) *Converter {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxDownload <= 0 {
		cfg.MaxDownload = 50 << 20
	}
	return &Converter{api: api, cfg: cfg, httpClient: http.DefaultClient, logger: log}
}

func (c *Converter) Name() string      { return sourceName }
func (c *Converter) Mode() models.Mode { return models.TextMode }

func (c *Converter) Convert(ctx context.Context, req *models.IngestRequest) (*models.ConvertedDocument, error) {
	data, err := document.Source(ctx, c.httpClient, req, c.cfg.MaxDownload)
	if err != nil {
		return nil, err
	}

	out, err := c.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeForms},
	})
	if err != nil {
		return nil, models.ConversionError("Textract analysis failed", err)
	}

	lines := c.lines(out.Blocks)
	for _, f := range formFields(out.Blocks) {
		lines = append(lines, f.Key+": "+f.Value)
	}
	body := strings.Join(lines, "\n")
	if strings.TrimSpace(body) == "" {
		return nil, models.ConversionError("PDF conversion failed: Textract found no text", nil)
	}

	pages := 1
	if out.DocumentMetadata != nil && out.DocumentMetadata.Pages != nil {
		pages = int(*out.DocumentMetadata.Pages)
	}
	c.logger.Debug("Textract conversion finished",
		logger.Int("lines", len(lines)),
		logger.Int("pages", pages),
	)
	return models.NewTextDocument(body, sourceName, pages), nil
}

func (c *Converter) lines(blocks []types.Block) []string {
	var texts []string
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeLine || b.Text == nil {
			continue
		}
		if b.Confidence != nil && *b.Confidence < c.cfg.MinConfidence {
			continue
		}
		texts = append(texts, *b.Text)
	}
	return texts
}

type formField struct {
	Key   string
	Value string
}

func formFields(blocks []types.Block) []formField {
	byID := make(map[string]types.Block, len(blocks))
	for _, b := range blocks {
		if b.Id != nil {
			byID[*b.Id] = b
		}
	}

	var fields []formField
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeKeyValueSet || len(b.EntityTypes) == 0 || b.EntityTypes[0] != types.EntityTypeKey {
			continue
		}
		key := childText(b, byID)
		value := ""
		for _, rel := range b.Relationships {
			if rel.Type != types.RelationshipTypeValue {
				continue
			}
			for _, id := range rel.Ids {
				if vb, ok := byID[id]; ok {
					value = childText(vb, byID)
				}
			}
		}
		if key != "" && value != "" {
			fields = append(fields, formField{Key: key, Value: value})
		}
	}
	return fields
}

func childText(b types.Block, byID map[string]types.Block) string {
	var words []string
	for _, rel := range b.Relationships {
		if rel.Type != types.RelationshipTypeChild {
			continue
		}
		for _, id := range rel.Ids {
			if child, ok := byID[id]; ok && child.Text != nil {
				words = append(words, *child.Text)
			}
		}
	}
	return strings.Join(words, " ")
}

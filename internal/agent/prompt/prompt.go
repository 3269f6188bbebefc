// Package prompt renders a converted lease document into model instructions.
package prompt

import (
	"fmt"
	"strings"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/schema"
)

const systemMessage = "You are an expert at extracting structured data from commercial real estate lease documents. " +
	"Always return valid JSON that matches the exact field names provided."

// Prompt is the provider-neutral request handed to an extractor.
type Prompt struct {
	System string
	User   string
	// ImageURL is the first page image for vision extraction, empty in text mode.
	ImageURL string
}

// HasImage reports whether the prompt targets a vision model.
func (p Prompt) HasImage() bool {
	return p.ImageURL != ""
}

// Option tunes Build.
type Option func(*options)

type options struct {
	maxChars int
}

// WithMaxChars caps the document text embedded in the prompt. n <= 0 means no cap.
func WithMaxChars(n int) Option {
	return func(o *options) { o.maxChars = n }
}

// Build renders doc against s. It has no side effects.
func Build(doc *models.ConvertedDocument, s *schema.Schema, opts ...Option) (Prompt, error) {
	if doc == nil {
		return Prompt{}, fmt.Errorf("prompt: nil document")
	}
	if s == nil {
		return Prompt{}, fmt.Errorf("prompt: nil schema")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var b strings.Builder
	switch doc.Kind {
	case models.KindText:
		body := strings.TrimSpace(doc.Body)
		if body == "" {
			return Prompt{}, models.ConversionError("PDF conversion returned no text", nil)
		}
		if o.maxChars > 0 {
			body = models.Truncate(body, o.maxChars)
		}
		writeInstructions(&b, s, "commercial lease document")
		b.WriteString("\nLease document text:\n")
		b.WriteString(body)
		return Prompt{System: systemMessage, User: b.String()}, nil

	case models.KindPageImages:
		url := doc.FirstPage()
		if url == "" {
			return Prompt{}, models.ConversionError("PDF conversion returned no page images", nil)
		}
		writeInstructions(&b, s, "image of the first page of a commercial lease document")
		return Prompt{System: systemMessage, User: b.String(), ImageURL: url}, nil

	default:
		return Prompt{}, fmt.Errorf("prompt: unknown document kind %q", doc.Kind)
	}
}

func writeInstructions(b *strings.Builder, s *schema.Schema, subject string) {
	fmt.Fprintf(b, "Extract the following information from this %s. ", subject)
	b.WriteString("Return ONLY a valid JSON object with these exact fields, no markdown and no commentary:\n\n")
	b.WriteString(s.Skeleton())
	b.WriteString("\n\nInstructions:\n")
	for _, f := range s.Fields() {
		fmt.Fprintf(b, "- %s: %s\n", f.Name, f.Instruction)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Numbers must be plain JSON numbers: no currency symbols, no thousands separators, no units.\n")
	b.WriteString("- Dates must use YYYY-MM-DD format.\n")
	b.WriteString(`- renewal_option must be lowercase "yes" or "no".` + "\n")
	b.WriteString(`- For fields you cannot find in the document, use empty string "" for text fields and 0 for numbers.` + "\n")
	b.WriteString("- Do not add keys that are not listed above.\n")
}

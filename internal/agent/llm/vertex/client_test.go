package vertex

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
)

type fakeModel struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func reply(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, len(texts))
	for i, t := range texts {
		parts[i] = genai.Text(t)
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}}}
}

func TestExtract_Text(t *testing.T) {
	m := &fakeModel{resp: reply(`{"tenant_name":`, `"Acme Corp"}`)}
	out, err := newWithGenerator(m, nil).Extract(context.Background(), prompt.Prompt{System: "sys", User: "user"})
	require.NoError(t, err)

	assert.Equal(t, `{"tenant_name":"Acme Corp"}`, out)
	assert.Equal(t, []genai.Part{genai.Text("sys"), genai.Text("user")}, m.parts)
}

func TestExtract_Image(t *testing.T) {
	m := &fakeModel{resp: reply(`{}`)}
	_, err := newWithGenerator(m, nil).Extract(context.Background(), prompt.Prompt{User: "user", ImageURL: "https://cdn/p1.png?sig=1"})
	require.NoError(t, err)

	require.Len(t, m.parts, 2)
	assert.Equal(t, genai.FileData{MIMEType: "image/png", FileURI: "https://cdn/p1.png?sig=1"}, m.parts[0])
}

func TestExtract_Failures(t *testing.T) {
	_, err := newWithGenerator(&fakeModel{err: errors.New("quota")}, nil).Extract(context.Background(), prompt.Prompt{User: "u"})
	assert.Equal(t, models.KindExtraction, models.KindOf(err))

	_, err = newWithGenerator(&fakeModel{resp: &genai.GenerateContentResponse{}}, nil).Extract(context.Background(), prompt.Prompt{User: "u"})
	assert.Equal(t, models.KindExtraction, models.KindOf(err))
}

func TestImageMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", imageMIME("https://cdn/page.JPG"))
	assert.Equal(t, "image/png", imageMIME("https://cdn/page"))
}

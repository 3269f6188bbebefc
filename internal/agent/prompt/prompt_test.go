package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/schema"
)

func TestBuild_Text(t *testing.T) {
	s := schema.Lease()
	doc := models.NewTextDocument("LEASE AGREEMENT between Landlord and Acme Corp, Suite 200", "pdfco", 3)

	p, err := Build(doc, s)
	require.NoError(t, err)

	assert.False(t, p.HasImage())
	assert.Contains(t, p.System, "commercial real estate lease documents")
	assert.Contains(t, p.User, s.Skeleton())
	assert.Contains(t, p.User, "YYYY-MM-DD")
	assert.Contains(t, p.User, `"yes" or "no"`)
	assert.True(t, strings.HasSuffix(p.User, "Lease document text:\nLEASE AGREEMENT between Landlord and Acme Corp, Suite 200"))
	for _, name := range s.Names() {
		assert.Contains(t, p.User, "- "+name+": ", name)
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	doc := models.NewTextDocument("body", "pdfco", 1)
	a, err := Build(doc, schema.Lease())
	require.NoError(t, err)
	b, err := Build(doc, schema.Lease())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_TruncatesText(t *testing.T) {
	doc := models.NewTextDocument(strings.Repeat("a", 100), "pdfco", 1)
	p, err := Build(doc, schema.Lease(), WithMaxChars(10))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.User, "\n"+strings.Repeat("a", 10)))
}

func TestBuild_Image(t *testing.T) {
	doc := models.NewPageImagesDocument([]string{"https://cdn/p1.png", "https://cdn/p2.png"}, "pdfco")
	p, err := Build(doc, schema.Lease())
	require.NoError(t, err)

	assert.True(t, p.HasImage())
	assert.Equal(t, "https://cdn/p1.png", p.ImageURL)
	assert.NotContains(t, p.User, "p2.png")
	assert.NotContains(t, p.User, "Lease document text")
}

func TestBuild_EmptyDocument(t *testing.T) {
	_, err := Build(models.NewTextDocument("   ", "pdfco", 1), schema.Lease())
	assert.Equal(t, models.KindConversion, models.KindOf(err))

	_, err = Build(&models.ConvertedDocument{Kind: models.KindPageImages}, schema.Lease())
	assert.Equal(t, models.KindConversion, models.KindOf(err))

	_, err = Build(nil, schema.Lease())
	assert.Error(t, err)
}

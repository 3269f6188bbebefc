package textract

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
)

type fakeAnalyzer struct {
	out   *textract.AnalyzeDocumentOutput
	err   error
	input *textract.AnalyzeDocumentInput
}

func (f *fakeAnalyzer) AnalyzeDocument(_ context.Context, in *textract.AnalyzeDocumentInput, _ ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error) {
	f.input = in
	return f.out, f.err
}

func line(text string, conf float32) types.Block {
	return types.Block{BlockType: types.BlockTypeLine, Text: aws.String(text), Confidence: aws.Float32(conf)}
}

func word(id, text string) types.Block {
	return types.Block{BlockType: types.BlockTypeWord, Id: aws.String(id), Text: aws.String(text)}
}

func leaseBlocks() []types.Block {
	return []types.Block{
		line("COMMERCIAL LEASE AGREEMENT", 99),
		line("smudge", 10),
		word("w1", "Tenant:"),
		word("w2", "Acme"),
		word("w3", "Corp"),
		{
			BlockType:   types.BlockTypeKeyValueSet,
			Id:          aws.String("k1"),
			EntityTypes: []types.EntityType{types.EntityTypeKey},
			Relationships: []types.Relationship{
				{Type: types.RelationshipTypeChild, Ids: []string{"w1"}},
				{Type: types.RelationshipTypeValue, Ids: []string{"v1"}},
			},
		},
		{
			BlockType:     types.BlockTypeKeyValueSet,
			Id:            aws.String("v1"),
			EntityTypes:   []types.EntityType{types.EntityTypeValue},
			Relationships: []types.Relationship{{Type: types.RelationshipTypeChild, Ids: []string{"w2", "w3"}}},
		},
	}
}

func TestConvert_LinesAndForms(t *testing.T) {
	api := &fakeAnalyzer{out: &textract.AnalyzeDocumentOutput{
		Blocks:           leaseBlocks(),
		DocumentMetadata: &types.DocumentMetadata{Pages: aws.Int32(1)},
	}}
	conv := NewWithAPI(api, Config{MinConfidence: 80}, nil)

	doc, err := conv.Convert(context.Background(), &models.IngestRequest{
		Upload: &models.Upload{Filename: "lease.pdf", Data: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)

	assert.Equal(t, "COMMERCIAL LEASE AGREEMENT\nTenant:: Acme Corp", doc.Body)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, "textract", doc.Source)
	assert.Equal(t, []byte("%PDF-1.4"), api.input.Document.Bytes)
	assert.Equal(t, []types.FeatureType{types.FeatureTypeForms}, api.input.FeatureTypes)
}

func TestConvert_Failures(t *testing.T) {
	req := &models.IngestRequest{Upload: &models.Upload{Data: []byte("%PDF-1.4")}}

	_, err := NewWithAPI(&fakeAnalyzer{err: errors.New("UnsupportedDocumentException")}, Config{}, nil).Convert(context.Background(), req)
	assert.Equal(t, models.KindConversion, models.KindOf(err))

	_, err = NewWithAPI(&fakeAnalyzer{out: &textract.AnalyzeDocumentOutput{}}, Config{}, nil).Convert(context.Background(), req)
	assert.Equal(t, models.KindConversion, models.KindOf(err))
}

package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
)

func TestDecodeEnrichment_KnownKinds(t *testing.T) {
	payload := []byte(`{"entities":["pgvector","hnsw"],"topics":["indexing"],"summary":"tuning notes"}`)

	e, err := domain.DecodeEnrichment(payload)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"pgvector", "hnsw"}, e.Entities())
	assert.Equal(t, []string{"indexing"}, e.Topics())
	assert.Equal(t, "tuning notes", e.Summary())
}

func TestDecodeEnrichment_PreservesUnknownKeys(t *testing.T) {
	payload := []byte(`{"summary":"notes","sentiment":{"score":0.7}}`)

	e, err := domain.DecodeEnrichment(payload)
	require.NoError(t, err)

	var raw []domain.EnrichmentItem
	for _, item := range e {
		if item.Kind == domain.EnrichmentRaw {
			raw = append(raw, item)
		}
	}
	require.Len(t, raw, 1, "unrecognized payload keys are kept, not dropped")
	assert.Contains(t, string(raw[0].Raw), "sentiment")
}

func TestDecodeEnrichment_EmptyPayload(t *testing.T) {
	e, err := domain.DecodeEnrichment(nil)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestDecodeEnrichment_MalformedPayload(t *testing.T) {
	_, err := domain.DecodeEnrichment([]byte(`{broken`))
	assert.Error(t, err)
}

func TestEnrichment_EncodeRoundTrip(t *testing.T) {
	original, err := domain.DecodeEnrichment([]byte(`{"entities":["a"],"summary":"s"}`))
	require.NoError(t, err)

	data, err := original.Encode()
	require.NoError(t, err)

	restored, err := domain.DecodeStoredEnrichment(data)
	require.NoError(t, err)
	assert.Equal(t, original.Entities(), restored.Entities())
	assert.Equal(t, original.Summary(), restored.Summary())
}

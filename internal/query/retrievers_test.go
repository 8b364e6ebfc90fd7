package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
)

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	docs := []*model.Document{
		{ID: "far_dfars-2024-000001", ContentHash: "a",
			Title: "Cyber incident reporting", Source: "far_dfars", DocumentType: "rule",
			PublicationDate: "2024-03-15", Content: "Contractors report incidents.",
			State: model.StateCommitted},
		{ID: "nist-2020-000001", ContentHash: "b",
			Title: "Protecting CUI", Source: "nist", DocumentType: "guidance",
			PublicationDate: "2020-02-01", Content: "Security requirements for CUI.",
			State: model.StateCommitted},
	}
	for _, d := range docs {
		require.NoError(t, m.CommitDocument(context.Background(), d))
	}
	return m
}

func TestRelationalRetrieverKeyword(t *testing.T) {
	r := &RelationalRetriever{Store: seedStore(t), Limit: 10}

	items, err := r.Retrieve(context.Background(), model.SubQuery{
		Type: model.SubQueryKeyword, Text: "incident",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "far_dfars-2024-000001", items[0].DocumentID)
	assert.NotEmpty(t, items[0].Content)
}

func TestRelationalRetrieverTemporalBounds(t *testing.T) {
	r := &RelationalRetriever{Store: seedStore(t), Limit: 10}

	items, err := r.Retrieve(context.Background(), model.SubQuery{
		Type: model.SubQueryTemporal, DateFrom: "2024-01-01", DateTo: "2024-12-31",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "far_dfars-2024-000001", items[0].DocumentID)
}

func TestRelationalRetrieverEntityID(t *testing.T) {
	r := &RelationalRetriever{Store: seedStore(t), Limit: 10}

	items, err := r.Retrieve(context.Background(), model.SubQuery{
		Type: model.SubQueryEntity, Text: "nist-2020-000001",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1.0, items[0].Score)
}

func TestRelationalRetrieverSkipsRelational(t *testing.T) {
	r := &RelationalRetriever{Store: seedStore(t), Limit: 10}

	items, err := r.Retrieve(context.Background(), model.SubQuery{
		Type: model.SubQueryRelational, Text: "incident", RelationType: "cites",
	})
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestRelationalRetrieverMissingEntity(t *testing.T) {
	r := &RelationalRetriever{Store: seedStore(t), Limit: 10}

	items, err := r.Retrieve(context.Background(), model.SubQuery{
		Type: model.SubQueryEntity, Text: "iso-1999-000042",
	})
	require.NoError(t, err, "a missing document is no evidence, not an error")
	assert.Empty(t, items)
}

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/model"
)

func TestUpsertDocumentParams(t *testing.T) {
	fd := newFakeDriver()
	fd.results[UpsertDocumentQuery] = result(record([]string{"id"}, []interface{}{"iso-2024-000001"}))
	s := NewStore(fd)

	err := s.UpsertDocument(context.Background(), &model.Document{
		ID: "iso-2024-000001", ContentHash: "h1", Title: "Risk management",
		Source: "iso", DocumentType: "standard", PublicationDate: "2024-04-01",
	})
	require.NoError(t, err)

	require.Len(t, fd.executed, 1)
	params := fd.executed[0].params
	assert.Equal(t, "iso-2024-000001", params["id"])
	assert.Equal(t, "h1", params["content_hash"])
	assert.Equal(t, "iso", params["source"])
}

func TestDocumentNotFound(t *testing.T) {
	fd := newFakeDriver()
	s := NewStore(fd)

	_, err := s.Document(context.Background(), "iso-2024-999999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDocumentFields(t *testing.T) {
	fd := newFakeDriver()
	keys := []string{"id", "content_hash", "title", "source", "document_type", "publication_date"}
	fd.results[GetDocumentQuery] = result(record(keys, []interface{}{
		"nist-2023-000001", "h9", "Zero trust architecture", "nist", "guidance", "2023-08-01",
	}))
	s := NewStore(fd)

	f, err := s.Document(context.Background(), "nist-2023-000001")
	require.NoError(t, err)
	assert.Equal(t, "h9", f.ContentHash)
	assert.Equal(t, "guidance", f.DocumentType)
}

func TestUpsertRelationshipMissingEndpoint(t *testing.T) {
	fd := newFakeDriver()
	s := NewStore(fd)

	err := s.UpsertRelationship(context.Background(), &model.Relationship{
		SourceID: "iso-2024-000001", TargetID: "iso-2024-999999", Type: "references",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNeighborsDirection(t *testing.T) {
	fd := newFakeDriver()
	keys := []string{"id", "title", "type", "confidence", "source_id"}
	fd.results[GetNeighborsQuery] = result(
		record(keys, []interface{}{"b", "Doc B", "cites", 0.9, "a"}),
		record(keys, []interface{}{"c", "Doc C", "supersedes", 0.8, "c"}),
	)
	s := NewStore(fd)

	ns, err := s.Neighbors(context.Background(), "a", "")
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.True(t, ns[0].Outbound)
	assert.False(t, ns[1].Outbound)
	assert.Equal(t, 0.9, ns[0].Confidence)
}

func TestNeighborsByType(t *testing.T) {
	fd := newFakeDriver()
	s := NewStore(fd)

	_, err := s.Neighbors(context.Background(), "a", "cites")
	require.NoError(t, err)
	require.Len(t, fd.executed, 1)
	assert.Equal(t, GetNeighborsByTypeQuery, fd.executed[0].query)
	assert.Equal(t, "cites", fd.executed[0].params["type"])
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	fd := newFakeDriver()
	fd.results[SetEmbeddingQuery] = result(record([]string{"id"}, []interface{}{"a"}))
	fd.results[GetEmbeddingsQuery] = result(record(
		[]string{"id", "title", "embedding"},
		[]interface{}{"a", "Doc A", []interface{}{0.1, 0.2, 0.3}},
	))
	s := NewStore(fd)

	require.NoError(t, s.SetEmbedding(context.Background(), "a", []float32{0.1, 0.2, 0.3}))

	embs, err := s.Embeddings(context.Background())
	require.NoError(t, err)
	require.Len(t, embs, 1)
	assert.Len(t, embs[0].Vector, 3)
}

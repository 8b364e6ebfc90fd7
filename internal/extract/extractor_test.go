package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func newExtractor(l *stubLLM) *Extractor {
	return NewExtractor(l, config.Default().Prompts, logger.Nop())
}

func testDoc() *model.Document {
	return &model.Document{
		ID:      "far_dfars-2024-000003",
		Title:   "Assessing Contractor Implementation of Cybersecurity Requirements",
		Content: "This rule implements the framework described in 48 CFR 204 and supersedes prior guidance.",
	}
}

func testCandidates() []Candidate {
	return []Candidate{
		{ID: "far_dfars-2023-000001", Title: "48 CFR 204 Administrative Matters"},
		{ID: "nist-2020-000002", Title: "Protecting Controlled Unclassified Information"},
	}
}

func TestExtractFiltersModelOutput(t *testing.T) {
	l := &stubLLM{response: `{"relationships": [
		{"target_id": "far_dfars-2023-000001", "relationship_type": "implements", "confidence": 0.9, "context": "implements the framework"},
		{"target_id": "unknown-2020-000009", "relationship_type": "cites", "confidence": 0.8},
		{"target_id": "nist-2020-000002", "relationship_type": "contradicts", "confidence": 0.7},
		{"target_id": "far_dfars-2024-000003", "relationship_type": "cites", "confidence": 0.7}
	]}`}
	e := newExtractor(l)

	rels, err := e.Extract(context.Background(), testDoc(), testCandidates())
	require.NoError(t, err)

	require.Len(t, rels, 1, "unknown targets, unknown types and self-references are dropped")
	assert.Equal(t, "implements", rels[0].Type)
	assert.Equal(t, "far_dfars-2023-000001", rels[0].TargetID)
	assert.Equal(t, 0.9, rels[0].Confidence)
}

func TestExtractClampsConfidence(t *testing.T) {
	l := &stubLLM{response: `{"relationships": [
		{"target_id": "nist-2020-000002", "relationship_type": "references", "confidence": 3.5}
	]}`}
	e := newExtractor(l)

	rels, err := e.Extract(context.Background(), testDoc(), testCandidates())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, 0.5, rels[0].Confidence)
}

func TestExtractDegradesToCitationScan(t *testing.T) {
	l := &stubLLM{err: errors.New("model unavailable")}
	e := newExtractor(l)

	rels, err := e.Extract(context.Background(), testDoc(), testCandidates())
	require.NoError(t, err, "extraction failures never fail ingestion")

	require.Len(t, rels, 1)
	assert.Equal(t, "cites", rels[0].Type)
	assert.Equal(t, "far_dfars-2023-000001", rels[0].TargetID)
	assert.Contains(t, rels[0].Context, "CFR")
}

func TestExtractWithoutModel(t *testing.T) {
	e := NewExtractor(nil, config.Default().Prompts, logger.Nop())

	rels, err := e.Extract(context.Background(), testDoc(), testCandidates())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "cites", rels[0].Type)
}

func TestCitationScanNoMatches(t *testing.T) {
	e := NewExtractor(nil, config.Default().Prompts, logger.Nop())
	d := &model.Document{ID: "iso-2024-000001", Content: "plain prose without citations"}

	rels, err := e.Extract(context.Background(), d, testCandidates())
	require.NoError(t, err)
	assert.Empty(t, rels)
}

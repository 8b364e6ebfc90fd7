// Package semantic provides embedding-based document retrieval. Vectors live
// on the graph nodes; similarity is computed client-side, which is adequate
// at corpus scale and keeps the graph store pluggable.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agenthands/corpus/internal/graph"
	"github.com/agenthands/corpus/internal/llm"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

// Match is one semantic search hit.
type Match struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
}

// Index stores and searches document embeddings.
type Index interface {
	IndexDocument(ctx context.Context, d *model.Document) error
	Search(ctx context.Context, query string, topN int) ([]Match, error)
}

// VectorStore is the graph surface the index needs.
type VectorStore interface {
	SetEmbedding(ctx context.Context, id string, vector []float32) error
	Embeddings(ctx context.Context) ([]graph.Embedding, error)
}

type GraphIndex struct {
	embedder llm.EmbedderClient
	vectors  VectorStore
	log      *logger.Logger
}

func NewGraphIndex(embedder llm.EmbedderClient, vectors VectorStore, log *logger.Logger) *GraphIndex {
	return &GraphIndex{
		embedder: embedder,
		vectors:  vectors,
		log:      log.With("component", "semantic"),
	}
}

// IndexDocument embeds the title plus leading content and stores the vector
// on the document node. Without an embedder this is a no-op.
func (g *GraphIndex) IndexDocument(ctx context.Context, d *model.Document) error {
	if g.embedder == nil {
		return nil
	}
	text := d.Title
	if d.Content != "" {
		body := d.Content
		if len(body) > 2000 {
			body = body[:2000]
		}
		text += "\n" + body
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", d.ID, err)
	}
	return g.vectors.SetEmbedding(ctx, d.ID, vec)
}

func (g *GraphIndex) Search(ctx context.Context, query string, topN int) ([]Match, error) {
	if g.embedder == nil {
		return nil, nil
	}
	qvec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	embs, err := g.vectors.Embeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	matches := make([]Match, 0, len(embs))
	for _, e := range embs {
		score := cosine(qvec, e.Vector)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{DocumentID: e.ID, Title: e.Title, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topN > 0 && topN < len(matches) {
		matches = matches[:topN]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

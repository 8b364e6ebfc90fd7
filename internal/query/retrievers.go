package query

import (
	"context"
	"strings"

	"github.com/agenthands/corpus/internal/crosswalk"
	"github.com/agenthands/corpus/internal/graph"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/semantic"
	"github.com/agenthands/corpus/internal/store"
)

// RelationalRetriever serves keyword, entity and temporal sub-queries from
// the relational store.
type RelationalRetriever struct {
	Store store.Relational
	Limit int
}

func (r *RelationalRetriever) Name() string { return "relational" }

func (r *RelationalRetriever) Retrieve(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error) {
	if sq.Type == model.SubQueryRelational {
		return nil, nil
	}

	// Entity sub-queries carrying a document ID resolve directly.
	if sq.Type == model.SubQueryEntity {
		if _, err := model.ParseNurembergID(sq.Text); err == nil {
			d, err := r.Store.Document(ctx, sq.Text)
			if err != nil {
				return nil, nil
			}
			return []model.EvidenceItem{docEvidence(d, 1.0)}, nil
		}
	}

	filter := store.DocumentFilter{Text: sq.Text, Limit: r.Limit}
	if sq.Type == model.SubQueryTemporal {
		filter.DateFrom = sq.DateFrom
		filter.DateTo = sq.DateTo
	}
	docs, err := r.Store.SearchDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]model.EvidenceItem, 0, len(docs))
	for i := range docs {
		// Descending position score; term frequency is not tracked here.
		score := 1.0 - float64(i)*0.05
		if score < 0.1 {
			score = 0.1
		}
		out = append(out, docEvidence(&docs[i], score))
	}
	return out, nil
}

// GraphRetriever serves relational sub-queries by resolving anchor documents
// and walking their relationship edges, and entity sub-queries by graph
// search.
type GraphRetriever struct {
	Graph     *graph.Store
	Traverser *crosswalk.Traverser
	Limit     int
}

func (r *GraphRetriever) Name() string { return "graph" }

func (r *GraphRetriever) Retrieve(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error) {
	switch sq.Type {
	case model.SubQueryRelational:
		return r.expandRelated(ctx, sq)
	case model.SubQueryEntity, model.SubQueryKeyword:
		hits, err := r.Graph.SearchDocuments(ctx, graph.SearchFilter{Text: sq.Text, Limit: r.Limit})
		if err != nil {
			return nil, err
		}
		out := make([]model.EvidenceItem, 0, len(hits))
		for i, h := range hits {
			score := 0.8 - float64(i)*0.05
			if score < 0.1 {
				score = 0.1
			}
			out = append(out, model.EvidenceItem{DocumentID: h.ID, Title: h.Title, Score: score})
		}
		return out, nil
	}
	return nil, nil
}

func (r *GraphRetriever) expandRelated(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error) {
	anchors, err := r.Graph.SearchDocuments(ctx, graph.SearchFilter{Text: sq.Text, Limit: 3})
	if err != nil {
		return nil, err
	}
	var out []model.EvidenceItem
	seen := make(map[string]bool)
	for _, a := range anchors {
		nodes, err := r.Traverser.Walk(ctx, a.ID, sq.RelationType, 2)
		if err != nil {
			return nil, err
		}
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, model.EvidenceItem{DocumentID: a.ID, Title: a.Title, Score: 0.9})
		}
		for _, n := range nodes {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			// Closer documents score higher.
			out = append(out, model.EvidenceItem{
				DocumentID: n.ID,
				Title:      n.Title,
				Score:      0.8 / float64(n.Depth),
			})
		}
	}
	return out, nil
}

// SemanticRetriever serves keyword and entity sub-queries by embedding
// similarity.
type SemanticRetriever struct {
	Index semantic.Index
	TopN  int
}

func (r *SemanticRetriever) Name() string { return "semantic" }

func (r *SemanticRetriever) Retrieve(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error) {
	if sq.Type == model.SubQueryRelational || sq.Type == model.SubQueryTemporal {
		return nil, nil
	}
	matches, err := r.Index.Search(ctx, sq.Text, r.TopN)
	if err != nil {
		return nil, err
	}
	out := make([]model.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, model.EvidenceItem{DocumentID: m.DocumentID, Title: m.Title, Score: m.Score})
	}
	return out, nil
}

func docEvidence(d *model.Document, score float64) model.EvidenceItem {
	content := d.Content
	if len(content) > 1000 {
		if cut := strings.LastIndexByte(content[:1000], ' '); cut > 0 {
			content = content[:cut]
		} else {
			content = content[:1000]
		}
	}
	return model.EvidenceItem{
		DocumentID: d.ID,
		Title:      d.Title,
		Content:    content,
		Score:      score,
	}
}

package crosswalk

import (
	"context"
	"errors"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/graph"
	"github.com/agenthands/corpus/internal/model"
)

// fakeGraph is an in-memory Graph with switchable write failures.
type fakeGraph struct {
	docs      map[string]*graph.DocumentFields
	rels      map[string]model.Relationship
	neighbors map[string][]graph.Neighbor

	failDocWrites bool
	failRelWrites bool
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		docs:      make(map[string]*graph.DocumentFields),
		rels:      make(map[string]model.Relationship),
		neighbors: make(map[string][]graph.Neighbor),
	}
}

func (f *fakeGraph) UpsertDocument(ctx context.Context, d *model.Document) error {
	if f.failDocWrites {
		return errors.New("graph store unavailable")
	}
	f.docs[d.ID] = &graph.DocumentFields{
		ID:              d.ID,
		ContentHash:     d.ContentHash,
		Title:           d.Title,
		Source:          d.Source,
		DocumentType:    d.DocumentType,
		PublicationDate: d.PublicationDate,
	}
	return nil
}

func (f *fakeGraph) Document(ctx context.Context, id string) (*graph.DocumentFields, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeGraph) UpsertRelationship(ctx context.Context, r *model.Relationship) error {
	if f.failRelWrites {
		return errors.New("graph store unavailable")
	}
	f.rels[r.SourceID+"|"+r.TargetID+"|"+r.Type] = *r
	return nil
}

func (f *fakeGraph) Neighbors(ctx context.Context, id, relType string) ([]graph.Neighbor, error) {
	var out []graph.Neighbor
	for _, n := range f.neighbors[id] {
		if relType == "" || n.Type == relType {
			out = append(out, n)
		}
	}
	return out, nil
}

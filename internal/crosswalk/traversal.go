package crosswalk

import (
	"context"
	"fmt"

	"github.com/agenthands/corpus/internal/model"
)

// TraversalNode is one document reached during a graph walk.
type TraversalNode struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Depth      int     `json:"depth"`
	Via        string  `json:"via,omitempty"`
	Type       string  `json:"relationship_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Traverser walks relationship edges breadth-first with a visited set, so
// cycles terminate and each document appears once at its shortest depth.
type Traverser struct {
	graph    Graph
	maxDepth int
}

func NewTraverser(g Graph, maxDepth int) *Traverser {
	if maxDepth <= 0 {
		maxDepth = 6
	}
	return &Traverser{graph: g, maxDepth: maxDepth}
}

// Walk expands outward from root up to depth edges, optionally restricted to
// one relationship type. The root itself is not included in the result.
func (t *Traverser) Walk(ctx context.Context, root, relType string, depth int) ([]TraversalNode, error) {
	if depth <= 0 || depth > t.maxDepth {
		depth = t.maxDepth
	}
	if !model.KnownRelationshipType(relType) && relType != "" {
		return nil, fmt.Errorf("unknown relationship type %q", relType)
	}

	visited := map[string]bool{root: true}
	frontier := []string{root}
	var out []TraversalNode

	for level := 1; level <= depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			neighbors, err := t.graph.Neighbors(ctx, id, relType)
			if err != nil {
				return out, fmt.Errorf("failed to expand %s: %w", id, err)
			}
			for _, n := range neighbors {
				if visited[n.ID] {
					continue
				}
				visited[n.ID] = true
				out = append(out, TraversalNode{
					ID:         n.ID,
					Title:      n.Title,
					Depth:      level,
					Via:        id,
					Type:       n.Type,
					Confidence: n.Confidence,
				})
				next = append(next, n.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

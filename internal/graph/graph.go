package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/model"
)

// DocumentFields is the graph-side projection of a document, used for drift
// comparison against the relational row.
type DocumentFields struct {
	ID              string
	ContentHash     string
	Title           string
	Source          string
	DocumentType    string
	PublicationDate string
}

// Neighbor is one adjacent document reached over a relationship edge.
type Neighbor struct {
	ID         string
	Title      string
	Type       string
	Confidence float64
	// Outbound reports whether the edge points away from the queried node.
	Outbound bool
}

// Hit is a graph search result.
type Hit struct {
	ID              string
	Title           string
	Source          string
	PublicationDate string
}

// Embedding pairs a document with its stored vector.
type Embedding struct {
	ID     string
	Title  string
	Vector []float32
}

// SearchFilter narrows graph-side document searches.
type SearchFilter struct {
	Source       string
	DocumentType string
	Text         string
	DateFrom     string
	DateTo       string
	Limit        int
}

// Store wraps a Driver with the typed graph operations.
type Store struct {
	driver Driver
}

func NewStore(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) Bootstrap(ctx context.Context) error {
	return s.driver.BuildIndices(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// UpsertDocument mirrors the relational row into the graph. Idempotent: the
// node is keyed by id, repeated calls converge on the same state.
func (s *Store) UpsertDocument(ctx context.Context, d *model.Document) error {
	_, err := s.driver.ExecuteQuery(ctx, UpsertDocumentQuery, map[string]interface{}{
		"id":               d.ID,
		"content_hash":     d.ContentHash,
		"title":            d.Title,
		"source":           d.Source,
		"document_type":    d.DocumentType,
		"publication_date": d.PublicationDate,
		"updated_at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document node %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) Document(ctx context.Context, id string) (*DocumentFields, error) {
	res, err := s.driver.ExecuteQuery(ctx, GetDocumentQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to read document node %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return nil, apperr.ErrNotFound
	}
	rec := res.Records[0]
	return &DocumentFields{
		ID:              recString(rec, "id"),
		ContentHash:     recString(rec, "content_hash"),
		Title:           recString(rec, "title"),
		Source:          recString(rec, "source"),
		DocumentType:    recString(rec, "document_type"),
		PublicationDate: recString(rec, "publication_date"),
	}, nil
}

// UpsertRelationship writes an edge between two existing document nodes.
// Returns apperr.ErrNotFound when either endpoint node is missing.
func (s *Store) UpsertRelationship(ctx context.Context, r *model.Relationship) error {
	res, err := s.driver.ExecuteQuery(ctx, UpsertRelationshipQuery, map[string]interface{}{
		"source_id":  r.SourceID,
		"target_id":  r.TargetID,
		"type":       r.Type,
		"confidence": r.Confidence,
		"context":    r.Context,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relationship %s-[%s]->%s: %w",
			r.SourceID, r.Type, r.TargetID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: relationship endpoints %s, %s",
			apperr.ErrNotFound, r.SourceID, r.TargetID)
	}
	return nil
}

// Neighbors returns documents adjacent to id, optionally restricted to one
// relationship type.
func (s *Store) Neighbors(ctx context.Context, id, relType string) ([]Neighbor, error) {
	query := GetNeighborsQuery
	params := map[string]interface{}{"id": id}
	if relType != "" {
		query = GetNeighborsByTypeQuery
		params["type"] = relType
	}
	res, err := s.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to read neighbors of %s: %w", id, err)
	}
	out := make([]Neighbor, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, Neighbor{
			ID:         recString(rec, "id"),
			Title:      recString(rec, "title"),
			Type:       recString(rec, "type"),
			Confidence: recFloat(rec, "confidence"),
			Outbound:   recString(rec, "source_id") == id,
		})
	}
	return out, nil
}

func (s *Store) SearchDocuments(ctx context.Context, f SearchFilter) ([]Hit, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	res, err := s.driver.ExecuteQuery(ctx, SearchDocumentsQuery, map[string]interface{}{
		"source":        f.Source,
		"document_type": f.DocumentType,
		"text":          f.Text,
		"date_from":     f.DateFrom,
		"date_to":       f.DateTo,
		"limit":         limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search graph documents: %w", err)
	}
	out := make([]Hit, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, Hit{
			ID:              recString(rec, "id"),
			Title:           recString(rec, "title"),
			Source:          recString(rec, "source"),
			PublicationDate: recString(rec, "publication_date"),
		})
	}
	return out, nil
}

func (s *Store) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	vec := make([]interface{}, len(vector))
	for i, v := range vector {
		vec[i] = float64(v)
	}
	res, err := s.driver.ExecuteQuery(ctx, SetEmbeddingQuery, map[string]interface{}{
		"id": id, "embedding": vec,
	})
	if err != nil {
		return fmt.Errorf("failed to set embedding for %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: document node %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Embeddings(ctx context.Context) ([]Embedding, error) {
	res, err := s.driver.ExecuteQuery(ctx, GetEmbeddingsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings: %w", err)
	}
	out := make([]Embedding, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, Embedding{
			ID:     recString(rec, "id"),
			Title:  recString(rec, "title"),
			Vector: recVector(rec, "embedding"),
		})
	}
	return out, nil
}

func recString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recFloat(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func recVector(rec *neo4j.Record, key string) []float32 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, e := range raw {
		if f, ok := e.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

// Package ingest fetches documents from registered connectors and drives them
// through the fingerprint, validate, allocate and commit stages.
package ingest

import (
	"context"
	"fmt"
	"sync"
)

// RawDocument is a fetched document before fingerprinting.
type RawDocument struct {
	Title           string         `json:"title"`
	Source          string         `json:"source"`
	DocumentType    string         `json:"document_type"`
	PublicationDate string         `json:"publication_date"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FetchRequest scopes a connector fetch.
type FetchRequest struct {
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Query    string `json:"query,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Source is one document connector. Fetch errors wrapped in
// apperr.ErrSourceUnavailable are retried with backoff.
type Source interface {
	ID() string
	Fetch(ctx context.Context, req FetchRequest) ([]RawDocument, error)
}

// Registry holds the configured connectors.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
}

func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}
	return s, nil
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for id := range r.sources {
		out = append(out, id)
	}
	return out
}

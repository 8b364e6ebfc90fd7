package ingest

import (
	"context"
	"sync"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/extract"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
)

// stubSource replays canned batches and errors in order.
type stubSource struct {
	id      string
	batches [][]RawDocument
	errs    []error
	calls   int
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Fetch(ctx context.Context, req FetchRequest) ([]RawDocument, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.batches) {
		return s.batches[i], nil
	}
	if len(s.batches) > 0 {
		return s.batches[len(s.batches)-1], nil
	}
	return nil, nil
}

// memCommitter commits to the relational store only, recording calls.
type memCommitter struct {
	mu    sync.Mutex
	store *store.Memory
	rels  []model.Relationship
}

func (m *memCommitter) CommitDocument(ctx context.Context, d *model.Document) error {
	d.State = model.StateCommitted
	return m.store.CommitDocument(ctx, d)
}

func (m *memCommitter) CommitRelationship(ctx context.Context, rel *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels = append(m.rels, *rel)
	return nil
}

// flakyCommitter fails document commits transiently a fixed number of times.
type flakyCommitter struct {
	*memCommitter
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyCommitter) CommitDocument(ctx context.Context, d *model.Document) error {
	f.mu.Lock()
	f.attempts++
	fail := f.attempts <= f.failures
	f.mu.Unlock()
	if fail {
		return apperr.ErrSourceUnavailable
	}
	return f.memCommitter.CommitDocument(ctx, d)
}

// gateCommitter blocks the first commit until the job context is cancelled,
// signalling started so the test can cancel at a known point.
type gateCommitter struct {
	*memCommitter
	started chan struct{}
	once    sync.Once
}

func (g *gateCommitter) CommitDocument(ctx context.Context, d *model.Document) error {
	g.once.Do(func() { close(g.started) })
	<-ctx.Done()
	return ctx.Err()
}

type stubExtractor struct {
	rels []model.Relationship
}

func (s *stubExtractor) Extract(ctx context.Context, d *model.Document, candidates []extract.Candidate) ([]model.Relationship, error) {
	out := make([]model.Relationship, len(s.rels))
	copy(out, s.rels)
	for i := range out {
		out[i].SourceID = d.ID
	}
	return out, nil
}

type stubIndexer struct {
	mu      sync.Mutex
	indexed []string
}

func (s *stubIndexer) IndexDocument(ctx context.Context, d *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, d.ID)
	return nil
}

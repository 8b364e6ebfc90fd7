package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/model"
)

// Memory is an in-process Relational used by tests and local runs. It holds
// the same invariants as Postgres (unique hash, unique partition/sequence)
// under a single mutex.
type Memory struct {
	mu        sync.Mutex
	sequences map[string]int64
	allocs    map[string]*model.Allocation // keyed by content hash
	docs      map[string]*model.Document
	rels      map[string]*model.Relationship
	pending   map[int64]*model.PendingRelationship
	jobs      map[string]*model.IngestionJob
	nextPend  int64
}

func NewMemory() *Memory {
	return &Memory{
		sequences: make(map[string]int64),
		allocs:    make(map[string]*model.Allocation),
		docs:      make(map[string]*model.Document),
		rels:      make(map[string]*model.Relationship),
		pending:   make(map[int64]*model.PendingRelationship),
		jobs:      make(map[string]*model.IngestionJob),
	}
}

func (m *Memory) Bootstrap(ctx context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) NextSequence(ctx context.Context, partition string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[partition]++
	return m.sequences[partition], nil
}

func (m *Memory) AllocationByHash(ctx context.Context, contentHash string) (*model.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocs[contentHash]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allocs[a.ContentHash]; ok {
		return fmt.Errorf("%w: content hash %s", apperr.ErrConflict, a.ContentHash)
	}
	for _, other := range m.allocs {
		if other.Partition == a.Partition && other.Sequence == a.Sequence {
			return fmt.Errorf("%w: %s seq %d", apperr.ErrConflict, a.Partition, a.Sequence)
		}
	}
	cp := *a
	m.allocs[a.ContentHash] = &cp
	return nil
}

func (m *Memory) CommitDocument(ctx context.Context, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; !ok {
		cp := *d
		cp.UpdatedAt = time.Now().UTC()
		m.docs[d.ID] = &cp
	}
	if a, ok := m.allocs[d.ContentHash]; ok {
		a.Committed = true
	}
	return nil
}

func (m *Memory) SetDocumentState(ctx context.Context, id string, st model.DocumentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	d.State = st
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) RecordDuplicate(ctx context.Context, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; ok {
		return nil
	}
	cp := *d
	cp.UpdatedAt = time.Now().UTC()
	m.docs[d.ID] = &cp
	return nil
}

func (m *Memory) Document(ctx context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) DocumentByHash(ctx context.Context, contentHash string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Document
	for _, d := range m.docs {
		// Marker rows share the hash of their original; never return them.
		if d.ContentHash != contentHash || d.State == model.StateDuplicate {
			continue
		}
		if found == nil || d.UpdatedAt.Before(found.UpdatedAt) {
			found = d
		}
	}
	if found == nil {
		return nil, apperr.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *Memory) CommittedDocuments(ctx context.Context, offset, limit int) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Document
	for _, d := range m.docs {
		if d.State == model.StateCommitted || d.State == model.StateCommittedPartial {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SearchDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Document
	for _, d := range m.docs {
		if d.State != model.StateCommitted {
			continue
		}
		if f.Source != "" && d.Source != f.Source {
			continue
		}
		if f.DocumentType != "" && d.DocumentType != f.DocumentType {
			continue
		}
		if f.DateFrom != "" && d.PublicationDate < f.DateFrom {
			continue
		}
		if f.DateTo != "" && d.PublicationDate > f.DateTo {
			continue
		}
		if f.Text != "" && !matchesAllTerms(d, f.Text) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PublicationDate != out[j].PublicationDate {
			return out[i].PublicationDate > out[j].PublicationDate
		}
		return out[i].ID < out[j].ID
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// matchesAllTerms requires every whitespace-separated term to appear in the
// title or the content.
func matchesAllTerms(d *model.Document, text string) bool {
	haystack := strings.ToLower(d.Title + " " + d.Content)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func (m *Memory) InsertRelationship(ctx context.Context, r *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rels[r.SourceID+"|"+r.TargetID+"|"+r.Type] = &cp
	return nil
}

// Relationships returns all stored relationships, for test assertions.
func (m *Memory) Relationships() []model.Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Relationship, 0, len(m.rels))
	for _, r := range m.rels {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SourceID+out[i].TargetID < out[j].SourceID+out[j].TargetID
	})
	return out
}

func (m *Memory) EnqueuePending(ctx context.Context, r *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPend++
	m.pending[m.nextPend] = &model.PendingRelationship{
		ID:         m.nextPend,
		Rel:        *r,
		EnqueuedAt: time.Now().UTC(),
	}
	return nil
}

func (m *Memory) PendingRelationships(ctx context.Context) ([]model.PendingRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingRelationship, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeletePending(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.pending, id)
	}
	return nil
}

func (m *Memory) CreateJob(ctx context.Context, j *model.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneJob(j)
	m.jobs[j.ID] = cp
	return nil
}

func (m *Memory) UpdateJob(ctx context.Context, j *model.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return apperr.ErrNotFound
	}
	m.jobs[j.ID] = cloneJob(j)
	return nil
}

func (m *Memory) Job(ctx context.Context, id string) (*model.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneJob(j), nil
}

func cloneJob(j *model.IngestionJob) *model.IngestionJob {
	cp := *j
	cp.Errors = append([]model.JobError(nil), j.Errors...)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

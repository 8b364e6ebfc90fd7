// Package store defines the relational store protocol the pipeline layers
// above, plus its Postgres implementation. The relational store is the source
// of truth for document existence; the graph store is derived from it.
package store

import (
	"context"

	"github.com/agenthands/corpus/internal/model"
)

// DocumentFilter narrows structured document searches.
type DocumentFilter struct {
	Source       string
	DocumentType string
	Text         string
	DateFrom     string // YYYY-MM-DD inclusive
	DateTo       string // YYYY-MM-DD inclusive
	Limit        int
}

// Relational is the protocol any relational backend must satisfy. All
// mutations are atomic at document granularity; NextSequence is the single
// serialization point for allocation.
type Relational interface {
	// Bootstrap creates schema objects if missing.
	Bootstrap(ctx context.Context) error

	// NextSequence transactionally increments and returns the sequence
	// counter for a partition. Issued sequences are never reused.
	NextSequence(ctx context.Context, partition string) (int64, error)

	// AllocationByHash returns the live allocation for a content hash, or
	// apperr.ErrNotFound.
	AllocationByHash(ctx context.Context, contentHash string) (*model.Allocation, error)

	// InsertAllocation claims an ID. Returns apperr.ErrConflict when the
	// partition/sequence or the hash is already claimed by a concurrent
	// worker.
	InsertAllocation(ctx context.Context, a *model.Allocation) error

	// CommitDocument writes the document row and marks its allocation
	// committed in one transaction. All-or-nothing.
	CommitDocument(ctx context.Context, d *model.Document) error

	// SetDocumentState moves a stored document between lifecycle states
	// (committed, committed-partial, rejected).
	SetDocumentState(ctx context.Context, id string, st model.DocumentState) error

	// RecordDuplicate persists the terminal marker row for content that
	// hashed to an already-committed document. Idempotent on the marker id.
	RecordDuplicate(ctx context.Context, d *model.Document) error

	Document(ctx context.Context, id string) (*model.Document, error)
	DocumentByHash(ctx context.Context, contentHash string) (*model.Document, error)

	// CommittedDocuments pages through documents in committed or
	// committed-partial state, ordered by ID.
	CommittedDocuments(ctx context.Context, offset, limit int) ([]model.Document, error)

	// SearchDocuments runs a structured filter query over committed
	// documents.
	SearchDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, error)

	InsertRelationship(ctx context.Context, r *model.Relationship) error

	// EnqueuePending holds a relationship whose endpoints are not all
	// committed yet.
	EnqueuePending(ctx context.Context, r *model.Relationship) error
	PendingRelationships(ctx context.Context) ([]model.PendingRelationship, error)
	DeletePending(ctx context.Context, ids []int64) error

	CreateJob(ctx context.Context, j *model.IngestionJob) error
	UpdateJob(ctx context.Context, j *model.IngestionJob) error
	Job(ctx context.Context, id string) (*model.IngestionJob, error)

	Close()
}

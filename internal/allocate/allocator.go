// Package allocate assigns Nuremberg IDs. Allocation is idempotent on content
// hash and never reuses a sequence, so a crash between claim and commit leaves
// a gap, not a collision.
package allocate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
)

// Result is the outcome of an allocation attempt. Exactly one of Allocation
// or Duplicate is set.
type Result struct {
	Allocation *model.Allocation
	// Duplicate is the already-committed document carrying the same content
	// hash. Duplicates are a normal pipeline outcome, not an error.
	Duplicate *model.Document
}

type Allocator struct {
	store store.Relational
	log   *logger.Logger
	width int
	// maxAttempts bounds the sequence-claim retry loop under contention.
	maxAttempts int
}

func New(st store.Relational, cfg config.AllocatorConfig, log *logger.Logger) *Allocator {
	width := cfg.SequenceWidth
	if width <= 0 {
		width = model.DefaultSequenceWidth
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	return &Allocator{
		store:       st,
		log:         log.With("component", "allocator"),
		width:       width,
		maxAttempts: attempts,
	}
}

// Allocate claims a Nuremberg ID for the document. Re-running with the same
// content hash returns the existing allocation; content already committed
// short-circuits as a duplicate and the document moves to its terminal state.
// On success the document carries its new ID and the allocated state.
func (a *Allocator) Allocate(ctx context.Context, d *model.Document) (*Result, error) {
	if d.ContentHash == "" {
		return nil, fmt.Errorf("document has no content hash")
	}

	existing, err := a.store.DocumentByHash(ctx, d.ContentHash)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed duplicate check: %w", err)
	}
	if existing != nil && existing.State != model.StateRejected {
		d.State = model.StateDuplicate
		d.DuplicateOf = existing.ID
		a.log.Info("duplicate content", "duplicate_of", existing.ID, "hash", d.ContentHash)
		return &Result{Duplicate: existing}, nil
	}

	if alloc, err := a.store.AllocationByHash(ctx, d.ContentHash); err == nil {
		d.ID = alloc.ID
		d.State = model.StateAllocated
		return &Result{Allocation: alloc}, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed allocation lookup: %w", err)
	}

	partition, err := model.PartitionFor(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidationCritical, err)
	}
	year, _ := strconv.Atoi(d.PublicationDate[:4])

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		seq, err := a.store.NextSequence(ctx, partition)
		if err != nil {
			return nil, fmt.Errorf("failed to advance sequence: %w", err)
		}

		id := model.NurembergID{SourceType: d.Source, Year: year, Sequence: seq}
		alloc := &model.Allocation{
			ID:          id.Format(a.width),
			Partition:   partition,
			Sequence:    seq,
			ContentHash: d.ContentHash,
			CreatedAt:   time.Now().UTC(),
		}

		err = a.store.InsertAllocation(ctx, alloc)
		if err == nil {
			d.ID = alloc.ID
			d.State = model.StateAllocated
			return &Result{Allocation: alloc}, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("failed to claim allocation: %w", err)
		}

		// A concurrent worker may have claimed this hash between our lookup
		// and the insert; if so, adopt its allocation.
		if alloc, lookupErr := a.store.AllocationByHash(ctx, d.ContentHash); lookupErr == nil {
			d.ID = alloc.ID
			d.State = model.StateAllocated
			return &Result{Allocation: alloc}, nil
		}
		a.log.Warn("allocation claim conflict", "partition", partition, "seq", seq, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: partition %s after %d attempts",
		apperr.ErrAllocationExhausted, partition, a.maxAttempts)
}

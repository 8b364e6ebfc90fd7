package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/corpus/internal/allocate"
	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/extract"
	"github.com/agenthands/corpus/internal/hash"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
	"github.com/agenthands/corpus/internal/validate"
)

// Allocator claims Nuremberg IDs.
type Allocator interface {
	Allocate(ctx context.Context, d *model.Document) (*allocate.Result, error)
}

// Committer writes documents and relationships to both stores.
type Committer interface {
	CommitDocument(ctx context.Context, d *model.Document) error
	CommitRelationship(ctx context.Context, rel *model.Relationship) error
}

// Extractor finds relationships from a document to known candidates.
type Extractor interface {
	Extract(ctx context.Context, d *model.Document, candidates []extract.Candidate) ([]model.Relationship, error)
}

// Indexer maintains the semantic index. Indexing failures never fail a
// document.
type Indexer interface {
	IndexDocument(ctx context.Context, d *model.Document) error
}

// Coordinator runs ingestion jobs: fetch from a connector, then fan the
// documents out over a bounded worker pool through the pipeline stages.
type Coordinator struct {
	registry  *Registry
	store     store.Relational
	validator *validate.Validator
	allocator Allocator
	committer Committer
	extractor Extractor
	indexer   Indexer
	cfg       config.IngestConfig
	log       *logger.Logger

	// IDGen is swapped in tests for deterministic job IDs.
	IDGen func() string

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels map[string]context.CancelFunc
}

func NewCoordinator(
	registry *Registry,
	st store.Relational,
	validator *validate.Validator,
	allocator Allocator,
	committer Committer,
	extractor Extractor,
	indexer Indexer,
	cfg config.IngestConfig,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		registry:  registry,
		store:     st,
		validator: validator,
		allocator: allocator,
		committer: committer,
		extractor: extractor,
		indexer:   indexer,
		cfg:       cfg,
		log:       log.With("component", "ingest"),
		IDGen:     func() string { return uuid.NewString() },
		cancels:   make(map[string]context.CancelFunc),
	}
}

// StartJob creates a job record and runs the batch in the background. The
// returned job is the initial pending snapshot; poll the store for progress.
func (c *Coordinator) StartJob(ctx context.Context, sourceID string, req FetchRequest) (*model.IngestionJob, error) {
	src, err := c.registry.Get(sourceID)
	if err != nil {
		return nil, err
	}

	job := &model.IngestionJob{
		ID:        c.IDGen(),
		SourceID:  sourceID,
		State:     model.JobPending,
		StartedAt: time.Now().UTC(),
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// The job outlives the request; CancelJob is its only cancel signal.
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancels[job.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.cancels, job.ID)
			c.mu.Unlock()
		}()
		c.run(jctx, src, req, job)
	}()
	return job, nil
}

// CancelJob stops a running job cooperatively: in-flight document writes
// finish, no further documents are dispatched. Returns apperr.ErrNotFound
// when no job with that id is running.
func (c *Coordinator) CancelJob(id string) error {
	c.mu.Lock()
	cancel, ok := c.cancels[id]
	c.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	cancel()
	return nil
}

// Wait blocks until all running jobs finish. Used on shutdown and in tests.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) run(ctx context.Context, src Source, req FetchRequest, job *model.IngestionJob) {
	log := c.log.With("job", job.ID, "source", job.SourceID)

	raws, err := c.fetchWithRetry(ctx, src, req)
	if err != nil {
		log.Error("fetch failed", "error", err)
		c.finish(ctx, job, model.JobFailed, func(j *model.IngestionJob) {
			j.Errors = append(j.Errors, model.JobError{Stage: "fetch", Message: err.Error()})
		})
		return
	}

	c.update(ctx, job, func(j *model.IngestionJob) {
		j.State = model.JobProcessing
		j.Total = len(raws)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, raw := range raws {
		if gctx.Err() != nil {
			break
		}
		raw := raw
		g.Go(func() error {
			if gctx.Err() == nil {
				c.processDocument(gctx, job, raw)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		c.finish(ctx, job, model.JobFailed, func(j *model.IngestionJob) {
			j.Errors = append(j.Errors, model.JobError{Stage: "cancel", Message: "job cancelled before completion"})
		})
		log.Info("job cancelled", "processed", job.Processed, "failed", job.Failed)
		return
	}

	c.finish(ctx, job, model.JobCompleted, nil)
	log.Info("job finished", "processed", job.Processed, "failed", job.Failed,
		"duplicates", job.Duplicates)
}

func (c *Coordinator) fetchWithRetry(ctx context.Context, src Source, req FetchRequest) ([]RawDocument, error) {
	var raws []RawDocument
	err := c.retryTransient(ctx, "fetch", func() error {
		var err error
		raws, err = src.Fetch(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raws, nil
}

// retryTransient runs fn up to the configured attempt cap with exponential
// backoff between attempts. Permanent errors return immediately.
func (c *Coordinator) retryTransient(ctx context.Context, stage string, fn func() error) error {
	backoff := c.cfg.Backoff()
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil || !apperr.Transient(lastErr) || attempt >= c.cfg.MaxAttempts {
			return lastErr
		}
		c.log.Warn("transient failure, retrying", "stage", stage, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Coordinator) processDocument(ctx context.Context, job *model.IngestionJob, raw RawDocument) {
	d := &model.Document{
		Title:           raw.Title,
		Source:          raw.Source,
		DocumentType:    raw.DocumentType,
		PublicationDate: raw.PublicationDate,
		Content:         raw.Content,
		Metadata:        raw.Metadata,
		State:           model.StateFetched,
	}

	fingerprint, err := hash.Fingerprint(d.Content, d.Metadata)
	if err != nil {
		c.recordFailure(ctx, job, d, "fingerprint", err)
		return
	}
	d.ContentHash = fingerprint

	res := c.validator.Validate(d)
	if res.Blocking() {
		c.recordFailure(ctx, job, d, "validate",
			fmt.Errorf("%w: %s", apperr.ErrValidationCritical, res.Violations[0].Message))
		return
	}
	d.State = model.StateValidated

	var alloc *allocate.Result
	if err := c.retryTransient(ctx, "allocate", func() error {
		var err error
		alloc, err = c.allocator.Allocate(ctx, d)
		return err
	}); err != nil {
		c.recordFailure(ctx, job, d, "allocate", err)
		return
	}
	if alloc.Duplicate != nil {
		// The marker row keeps the duplicate-of reference queryable. The
		// content itself is already committed under the original id.
		d.ID = model.DuplicateMarkerID(d.ContentHash)
		if err := c.store.RecordDuplicate(ctx, d); err != nil {
			c.log.Warn("duplicate marker write failed", "id", d.ID, "error", err)
		}
		c.update(ctx, job, func(j *model.IngestionJob) {
			j.Processed++
			j.Duplicates++
		})
		return
	}

	if err := c.retryTransient(ctx, "commit", func() error {
		return c.committer.CommitDocument(ctx, d)
	}); err != nil {
		c.recordFailure(ctx, job, d, "commit", err)
		return
	}

	c.linkAndIndex(ctx, d)

	c.update(ctx, job, func(j *model.IngestionJob) { j.Processed++ })
}

// linkAndIndex runs the best-effort post-commit stages. The document is
// already committed; failures here are logged, never surfaced to the job.
func (c *Coordinator) linkAndIndex(ctx context.Context, d *model.Document) {
	candidates, err := c.candidates(ctx, d)
	if err != nil {
		c.log.Warn("candidate listing failed", "id", d.ID, "error", err)
	} else if len(candidates) > 0 && c.extractor != nil {
		rels, err := c.extractor.Extract(ctx, d, candidates)
		if err != nil {
			c.log.Warn("extraction failed", "id", d.ID, "error", err)
		}
		for i := range rels {
			if err := c.committer.CommitRelationship(ctx, &rels[i]); err != nil {
				c.log.Warn("relationship commit failed", "id", d.ID, "error", err)
			}
		}
	}

	if c.indexer != nil {
		if err := c.indexer.IndexDocument(ctx, d); err != nil {
			c.log.Warn("semantic indexing failed", "id", d.ID, "error", err)
		}
	}
}

const candidatePageSize = 500

func (c *Coordinator) candidates(ctx context.Context, d *model.Document) ([]extract.Candidate, error) {
	var out []extract.Candidate
	for offset := 0; ; offset += candidatePageSize {
		docs, err := c.store.CommittedDocuments(ctx, offset, candidatePageSize)
		if err != nil {
			return nil, err
		}
		for _, cd := range docs {
			if cd.ID == d.ID {
				continue
			}
			out = append(out, extract.Candidate{ID: cd.ID, Title: cd.Title})
		}
		if len(docs) < candidatePageSize {
			break
		}
	}
	return out, nil
}

func (c *Coordinator) recordFailure(ctx context.Context, job *model.IngestionJob, d *model.Document, stage string, err error) {
	name := d.ID
	if name == "" {
		name = d.Title
	}
	c.log.Warn("document failed", "job", job.ID, "document", name, "stage", stage, "error", err)
	c.update(ctx, job, func(j *model.IngestionJob) {
		j.Failed++
		j.Errors = append(j.Errors, model.JobError{Document: name, Stage: stage, Message: err.Error()})
	})
}

func (c *Coordinator) update(ctx context.Context, job *model.IngestionJob, mutate func(*model.IngestionJob)) {
	c.mu.Lock()
	mutate(job)
	snapshot := *job
	snapshot.Errors = append([]model.JobError(nil), job.Errors...)
	c.mu.Unlock()
	if err := c.store.UpdateJob(ctx, &snapshot); err != nil {
		c.log.Warn("job update failed", "job", job.ID, "error", err)
	}
}

func (c *Coordinator) finish(ctx context.Context, job *model.IngestionJob, state model.JobState, mutate func(*model.IngestionJob)) {
	// The terminal write must land even when the job context was cancelled.
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	c.update(ctx, job, func(j *model.IngestionJob) {
		if mutate != nil {
			mutate(j)
		}
		// Any failed document fails the job; partial results and counts stay.
		if state == model.JobCompleted && j.Failed > 0 {
			state = model.JobFailed
		}
		j.State = state
		j.FinishedAt = &now
	})
}

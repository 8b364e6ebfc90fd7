// Package crosswalk keeps the relational and graph representations of the
// corpus consistent. The relational store is authoritative; the graph is a
// derived projection healed by a periodic sweep.
package crosswalk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/graph"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
)

// Graph is the subset of graph operations the reconciler needs.
type Graph interface {
	UpsertDocument(ctx context.Context, d *model.Document) error
	Document(ctx context.Context, id string) (*graph.DocumentFields, error)
	UpsertRelationship(ctx context.Context, r *model.Relationship) error
	Neighbors(ctx context.Context, id, relType string) ([]graph.Neighbor, error)
}

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Scanned       int                  `json:"scanned"`
	PartialsFixed int                  `json:"partials_fixed"`
	DriftFixed    int                  `json:"drift_fixed"`
	Flushed       int                  `json:"relationships_flushed"`
	Orphans       []model.OrphanReport `json:"orphans,omitempty"`
}

type Reconciler struct {
	store     store.Relational
	graph     Graph
	log       *logger.Logger
	retention time.Duration
	pageSize  int
}

func NewReconciler(st store.Relational, g Graph, cfg config.CrosswalkConfig, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:     st,
		graph:     g,
		log:       log.With("component", "crosswalk"),
		retention: cfg.Retention(),
		pageSize:  200,
	}
}

// CommitDocument writes the document to both stores. The relational write is
// the commit point; a failed graph write leaves the document committed-partial
// for the sweep to finish. Callers never see the graph failure as an error.
func (r *Reconciler) CommitDocument(ctx context.Context, d *model.Document) error {
	d.State = model.StateCommitted
	if err := r.store.CommitDocument(ctx, d); err != nil {
		return fmt.Errorf("failed relational commit for %s: %w", d.ID, err)
	}

	if err := r.graph.UpsertDocument(ctx, d); err != nil {
		r.log.Warn("graph write failed, document committed-partial", "id", d.ID, "error", err)
		d.State = model.StateCommittedPartial
		if stErr := r.store.SetDocumentState(ctx, d.ID, model.StateCommittedPartial); stErr != nil {
			return fmt.Errorf("failed to record partial state for %s: %w", d.ID, stErr)
		}
	}
	return nil
}

// CommitRelationship writes a relationship to both stores once both endpoints
// are committed. Relationships with an uncommitted endpoint are queued and
// flushed by the sweep.
func (r *Reconciler) CommitRelationship(ctx context.Context, rel *model.Relationship) error {
	ok, err := r.endpointsCommitted(ctx, rel)
	if err != nil {
		return err
	}
	if !ok {
		if err := r.store.EnqueuePending(ctx, rel); err != nil {
			return fmt.Errorf("failed to queue relationship: %w", err)
		}
		r.log.Debug("relationship queued, endpoint not committed",
			"source", rel.SourceID, "target", rel.TargetID)
		return nil
	}
	return r.writeRelationship(ctx, rel)
}

func (r *Reconciler) writeRelationship(ctx context.Context, rel *model.Relationship) error {
	if err := r.store.InsertRelationship(ctx, rel); err != nil {
		return fmt.Errorf("failed relational relationship write: %w", err)
	}
	if err := r.graph.UpsertRelationship(ctx, rel); err != nil {
		// The graph edge catches up on the next sweep via the queue.
		r.log.Warn("graph relationship write failed, requeued",
			"source", rel.SourceID, "target", rel.TargetID, "error", err)
		if qErr := r.store.EnqueuePending(ctx, rel); qErr != nil {
			return fmt.Errorf("failed to requeue relationship: %w", qErr)
		}
	}
	return nil
}

func (r *Reconciler) endpointsCommitted(ctx context.Context, rel *model.Relationship) (bool, error) {
	for _, id := range []string{rel.SourceID, rel.TargetID} {
		d, err := r.store.Document(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed endpoint check for %s: %w", id, err)
		}
		if d.State != model.StateCommitted && d.State != model.StateCommittedPartial {
			return false, nil
		}
	}
	return true, nil
}

// Sweep runs one reconciliation pass: finish committed-partial documents,
// heal drift between the stores (relational wins), flush the pending
// relationship queue and expire entries past retention as orphans.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	for offset := 0; ; offset += r.pageSize {
		docs, err := r.store.CommittedDocuments(ctx, offset, r.pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to page documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		for i := range docs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			d := &docs[i]
			report.Scanned++
			if err := r.reconcileDocument(ctx, d, report); err != nil {
				r.log.Warn("reconcile failed", "id", d.ID, "error", err)
			}
		}
		if len(docs) < r.pageSize {
			break
		}
	}

	if err := r.flushPending(ctx, report); err != nil {
		return report, err
	}

	r.log.Info("sweep complete", "scanned", report.Scanned,
		"partials_fixed", report.PartialsFixed, "drift_fixed", report.DriftFixed,
		"flushed", report.Flushed, "orphans", len(report.Orphans))
	return report, nil
}

func (r *Reconciler) reconcileDocument(ctx context.Context, d *model.Document, report *SweepReport) error {
	fields, err := r.graph.Document(ctx, d.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if err := r.graph.UpsertDocument(ctx, d); err != nil {
			return err
		}
		if d.State == model.StateCommittedPartial {
			if err := r.store.SetDocumentState(ctx, d.ID, model.StateCommitted); err != nil {
				return err
			}
			report.PartialsFixed++
		} else {
			report.DriftFixed++
		}
		return nil

	case err != nil:
		return err
	}

	if d.State == model.StateCommittedPartial {
		// Node exists from a previous partial heal attempt; finish the state move.
		if err := r.store.SetDocumentState(ctx, d.ID, model.StateCommitted); err != nil {
			return err
		}
		report.PartialsFixed++
	}

	if drifted(d, fields) {
		if err := r.graph.UpsertDocument(ctx, d); err != nil {
			return err
		}
		report.DriftFixed++
	}
	return nil
}

// drifted compares the reconcilable field subset. The relational side is
// always the reference.
func drifted(d *model.Document, f *graph.DocumentFields) bool {
	return d.ContentHash != f.ContentHash ||
		d.Title != f.Title ||
		d.Source != f.Source ||
		d.DocumentType != f.DocumentType ||
		d.PublicationDate != f.PublicationDate
}

func (r *Reconciler) flushPending(ctx context.Context, report *SweepReport) error {
	pending, err := r.store.PendingRelationships(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending relationships: %w", err)
	}

	var done []int64
	cutoff := time.Now().Add(-r.retention)
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := r.endpointsCommitted(ctx, &p.Rel)
		if err != nil {
			r.log.Warn("pending endpoint check failed", "id", p.ID, "error", err)
			continue
		}
		if ok {
			rel := p.Rel
			if err := r.store.InsertRelationship(ctx, &rel); err != nil {
				r.log.Warn("pending relational write failed", "id", p.ID, "error", err)
				continue
			}
			if err := r.graph.UpsertRelationship(ctx, &rel); err != nil {
				r.log.Warn("pending graph write failed", "id", p.ID, "error", err)
				continue
			}
			done = append(done, p.ID)
			report.Flushed++
			continue
		}
		if p.EnqueuedAt.Before(cutoff) {
			report.Orphans = append(report.Orphans, model.OrphanReport{
				Rel:        p.Rel,
				EnqueuedAt: p.EnqueuedAt,
				Reason:     "endpoint never committed within retention",
			})
			done = append(done, p.ID)
			r.log.Warn("pending relationship orphaned",
				"source", p.Rel.SourceID, "target", p.Rel.TargetID)
		}
	}

	if err := r.store.DeletePending(ctx, done); err != nil {
		return fmt.Errorf("failed to clear pending queue: %w", err)
	}
	return nil
}

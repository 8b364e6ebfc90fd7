package crosswalk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
	"github.com/agenthands/corpus/internal/store"
)

func newReconciler(st store.Relational, g Graph, retention string) *Reconciler {
	cfg := config.Default().Crosswalk
	if retention != "" {
		cfg.PendingRetention = retention
	}
	return NewReconciler(st, g, cfg, logger.Nop())
}

func committedDoc(id, hash string) *model.Document {
	return &model.Document{
		ID: id, ContentHash: hash, Title: "Acquisition threshold update",
		Source: "far_dfars", DocumentType: "rule", PublicationDate: "2024-02-10",
		State: model.StateAllocated,
	}
}

func TestCommitDocumentBothStores(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	d := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, d))

	assert.Equal(t, model.StateCommitted, d.State)
	stored, err := st.Document(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCommitted, stored.State)
	assert.Contains(t, g.docs, d.ID)
}

func TestCommitDocumentGraphFailureIsPartial(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	g.failDocWrites = true
	r := newReconciler(st, g, "")
	ctx := context.Background()

	d := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, d), "graph outage does not fail the commit")

	stored, err := st.Document(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCommittedPartial, stored.State)
	assert.NotContains(t, g.docs, d.ID)
}

func TestSweepHealsPartial(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	g.failDocWrites = true
	d := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, d))

	g.failDocWrites = false
	report, err := r.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PartialsFixed)
	assert.Contains(t, g.docs, d.ID)
	stored, _ := st.Document(ctx, d.ID)
	assert.Equal(t, model.StateCommitted, stored.State)
}

func TestSweepHealsDriftRelationalWins(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	d := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, d))

	g.docs[d.ID].Title = "stale title"

	report, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DriftFixed)
	assert.Equal(t, d.Title, g.docs[d.ID].Title)
}

func TestSweepRestoresMissingNode(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	d := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, d))
	delete(g.docs, d.ID)

	report, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DriftFixed)
	assert.Contains(t, g.docs, d.ID)
}

func TestCommitRelationshipQueuesUncommittedEndpoint(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	a := committedDoc("far_dfars-2024-000001", "h1")
	require.NoError(t, r.CommitDocument(ctx, a))

	rel := &model.Relationship{
		SourceID: a.ID, TargetID: "far_dfars-2024-000002", Type: "cites", Confidence: 0.8,
	}
	require.NoError(t, r.CommitRelationship(ctx, rel))

	assert.Empty(t, g.rels)
	pend, err := st.PendingRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, pend, 1)

	// Once the other endpoint commits, the sweep flushes the queue.
	b := committedDoc("far_dfars-2024-000002", "h2")
	require.NoError(t, r.CommitDocument(ctx, b))

	report, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flushed)
	assert.Len(t, g.rels, 1)

	pend, err = st.PendingRelationships(ctx)
	require.NoError(t, err)
	assert.Empty(t, pend)
}

func TestCommitRelationshipBothCommitted(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "")
	ctx := context.Background()

	a := committedDoc("far_dfars-2024-000001", "h1")
	b := committedDoc("far_dfars-2024-000002", "h2")
	require.NoError(t, r.CommitDocument(ctx, a))
	require.NoError(t, r.CommitDocument(ctx, b))

	rel := &model.Relationship{SourceID: a.ID, TargetID: b.ID, Type: "supersedes", Confidence: 1}
	require.NoError(t, r.CommitRelationship(ctx, rel))

	assert.Len(t, g.rels, 1)
	assert.Len(t, st.Relationships(), 1)
}

func TestSweepExpiresOrphans(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGraph()
	r := newReconciler(st, g, "0s")
	ctx := context.Background()

	rel := &model.Relationship{
		SourceID: "far_dfars-2024-000001", TargetID: "far_dfars-2024-000099",
		Type: "references", Confidence: 0.7,
	}
	require.NoError(t, r.CommitRelationship(ctx, rel))

	report, err := r.Sweep(ctx)
	require.NoError(t, err)

	require.Len(t, report.Orphans, 1)
	assert.Equal(t, "far_dfars-2024-000099", report.Orphans[0].Rel.TargetID)

	pend, err := st.PendingRelationships(ctx)
	require.NoError(t, err)
	assert.Empty(t, pend, "orphaned entries leave the queue")
}

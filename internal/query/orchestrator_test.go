package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

func newOrchestrator(retrievers []Retriever, synth SynthesizerClient, cfg config.RetrievalConfig) *Orchestrator {
	return NewOrchestrator(
		NewDecomposer(cfg, logger.Nop()),
		retrievers, synth, nil, cfg, logger.Nop(),
	)
}

func evidence(id string, score float64) model.EvidenceItem {
	return model.EvidenceItem{DocumentID: id, Title: "Doc " + id, Score: score}
}

func TestAnswerMergesAndCorroborates(t *testing.T) {
	cfg := config.Default().Retrieval
	cfg.CorroborationWeight = 0.1
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: []model.EvidenceItem{
			evidence("a", 0.9), evidence("b", 0.5),
		}},
		&stubRetriever{name: "graph", items: []model.EvidenceItem{
			evidence("b", 0.6),
		}},
	}, synth, cfg)

	ans, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	require.NoError(t, err)

	require.Len(t, ans.Sources, 2)
	byID := make(map[string]model.EvidenceItem)
	for _, s := range ans.Sources {
		byID[s.DocumentID] = s
	}
	assert.Equal(t, 2, byID["b"].Corroboration)
	assert.InDelta(t, 0.7, byID["b"].Score, 1e-9, "best native score plus one corroboration bonus")
	assert.Equal(t, 1, byID["a"].Corroboration)
	assert.Empty(t, ans.DegradedSources)
	assert.False(t, ans.Partial)
}

func TestAnswerDegradedSourceReported(t *testing.T) {
	cfg := config.Default().Retrieval
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: []model.EvidenceItem{evidence("a", 0.9)}},
		&stubRetriever{name: "semantic", err: errors.New("index offline")},
	}, synth, cfg)

	ans, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"semantic"}, ans.DegradedSources)
	assert.True(t, ans.Partial)
	require.Len(t, ans.Sources, 1)
}

func TestAnswerSourceTimeout(t *testing.T) {
	cfg := config.Default().Retrieval
	cfg.SourceTimeout = "20ms"
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: []model.EvidenceItem{evidence("a", 0.9)}},
		&stubRetriever{name: "graph", delay: 500 * time.Millisecond},
	}, synth, cfg)

	start := time.Now()
	ans, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"graph"}, ans.DegradedSources)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "slow source is cut off, not awaited")
}

func TestAnswerTopNBound(t *testing.T) {
	cfg := config.Default().Retrieval
	cfg.TopN = 2
	items := []model.EvidenceItem{
		evidence("a", 0.9), evidence("b", 0.8), evidence("c", 0.7), evidence("d", 0.6),
	}
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: items},
	}, synth, cfg)

	ans, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	require.NoError(t, err)

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "a", ans.Sources[0].DocumentID)
	assert.Equal(t, "b", ans.Sources[1].DocumentID)
	assert.Len(t, synth.lastEvidence, 2, "synthesis sees only the ranked cut")
}

func TestAnswerNoEvidence(t *testing.T) {
	cfg := config.Default().Retrieval
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational"},
	}, synth, cfg)

	ans, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	require.NoError(t, err)

	assert.True(t, ans.Partial)
	assert.True(t, ans.Synthesis.LowConfidence)
	assert.Empty(t, ans.Sources)
	assert.Nil(t, synth.lastEvidence, "synthesis is skipped without evidence")
}

func TestAnswerLowConfidencePlanMarksSynthesis(t *testing.T) {
	cfg := config.Default().Retrieval
	synth := &stubSynth{}
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: []model.EvidenceItem{evidence("a", 0.9)}},
	}, synth, cfg)

	ans, err := o.Answer(context.Background(), "it?", model.UserContext{})
	require.NoError(t, err)

	assert.True(t, ans.Partial)
	assert.True(t, ans.Synthesis.LowConfidence)
}

func TestAnswerSynthesisErrorPropagates(t *testing.T) {
	cfg := config.Default().Retrieval
	o := newOrchestrator([]Retriever{
		&stubRetriever{name: "relational", items: []model.EvidenceItem{evidence("a", 0.9)}},
	}, &stubSynth{err: errors.New("model offline")}, cfg)

	_, err := o.Answer(context.Background(), "contractor cybersecurity requirements", model.UserContext{})
	assert.Error(t, err)
}

func TestMergeKeepsBestScoreAndOrder(t *testing.T) {
	cfg := config.Default().Retrieval
	cfg.CorroborationWeight = 0.2
	o := newOrchestrator(nil, &stubSynth{}, cfg)

	merged := o.merge([]model.EvidenceItem{
		{DocumentID: "a", Score: 0.5, Source: "relational"},
		{DocumentID: "a", Score: 0.9, Source: "semantic"},
		{DocumentID: "b", Score: 0.95, Source: "relational"},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].DocumentID)
	assert.InDelta(t, 1.1, merged[0].Score, 1e-9)
	assert.Equal(t, "semantic", merged[0].Source)
	assert.Equal(t, "b", merged[1].DocumentID)
}

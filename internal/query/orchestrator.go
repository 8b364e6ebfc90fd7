package query

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

// Retriever answers sub-queries from one backing store.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error)
}

// Synthesizer turns ranked evidence into a cited answer.
type SynthesizerClient interface {
	Synthesize(ctx context.Context, question string, evidence []model.EvidenceItem) (*model.Synthesis, error)
}

// Reranker reorders evidence content by relevance.
type Reranker interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}

// Orchestrator runs the full query pipeline. Sources that fail or time out
// degrade the answer instead of failing it; the response names them.
type Orchestrator struct {
	decomposer *Decomposer
	retrievers []Retriever
	synth      SynthesizerClient
	reranker   Reranker

	topN          int
	sourceTimeout time.Duration
	// corroborationWeight is the score bonus per extra source that returned
	// the same document, clamped to [0, 1.5].
	corroborationWeight float64
	log                 *logger.Logger
}

func NewOrchestrator(
	decomposer *Decomposer,
	retrievers []Retriever,
	synth SynthesizerClient,
	reranker Reranker,
	cfg config.RetrievalConfig,
	log *logger.Logger,
) *Orchestrator {
	weight := cfg.CorroborationWeight
	if weight < 0 {
		weight = 0
	}
	if weight > 1.5 {
		weight = 1.5
	}
	return &Orchestrator{
		decomposer:          decomposer,
		retrievers:          retrievers,
		synth:               synth,
		reranker:            reranker,
		topN:                cfg.TopN,
		sourceTimeout:       cfg.Timeout(),
		corroborationWeight: weight,
		log:                 log.With("component", "orchestrator"),
	}
}

// Answer runs decompose, fan-out, merge and synthesis for one question.
func (o *Orchestrator) Answer(ctx context.Context, question string, user model.UserContext) (*model.Answer, error) {
	dec := o.decomposer.Decompose(question, user)

	evidence, degraded := o.fanOut(ctx, dec.SubQueries)
	merged := o.merge(evidence)
	o.rerank(ctx, question, merged)
	if o.topN > 0 && len(merged) > o.topN {
		merged = merged[:o.topN]
	}

	ans := &model.Answer{
		Question:        question,
		Sources:         merged,
		DegradedSources: degraded,
		Partial:         len(degraded) > 0 || dec.HumanReview,
	}

	if len(merged) == 0 {
		ans.Synthesis = model.Synthesis{
			Summary:       "No matching documents were found in the corpus.",
			LowConfidence: true,
		}
		ans.Partial = true
		return ans, nil
	}

	synth, err := o.synth.Synthesize(ctx, question, merged)
	if err != nil {
		return nil, err
	}
	if dec.HumanReview {
		synth.LowConfidence = true
	}
	ans.Synthesis = *synth
	return ans, nil
}

// fanOut dispatches every sub-query to every retriever concurrently, each
// call bounded by the per-source timeout. A failed call degrades its source.
func (o *Orchestrator) fanOut(ctx context.Context, subs []model.SubQuery) ([]model.EvidenceItem, []string) {
	var mu sync.Mutex
	var evidence []model.EvidenceItem
	degraded := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range o.retrievers {
		for _, sq := range subs {
			r, sq := r, sq
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, o.sourceTimeout)
				defer cancel()

				items, err := r.Retrieve(callCtx, sq)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if errors.Is(err, context.DeadlineExceeded) {
						err = apperr.ErrSourceTimeout
					}
					o.log.Warn("source degraded", "source", r.Name(), "type", sq.Type, "error", err)
					degraded[r.Name()] = true
					return nil
				}
				for i := range items {
					items[i].Source = r.Name()
				}
				evidence = append(evidence, items...)
				return nil
			})
		}
	}
	_ = g.Wait()

	names := make([]string, 0, len(degraded))
	for n := range degraded {
		names = append(names, n)
	}
	sort.Strings(names)
	return evidence, names
}

// merge deduplicates by document ID, keeping the best native score per source
// and counting distinct corroborating sources. Final score is the best native
// score plus the corroboration bonus, giving multi-source agreement standing
// without letting it drown out relevance.
func (o *Orchestrator) merge(items []model.EvidenceItem) []model.EvidenceItem {
	type entry struct {
		item    model.EvidenceItem
		sources map[string]bool
	}
	byID := make(map[string]*entry)
	var order []string

	for _, it := range items {
		e, ok := byID[it.DocumentID]
		if !ok {
			byID[it.DocumentID] = &entry{item: it, sources: map[string]bool{it.Source: true}}
			order = append(order, it.DocumentID)
			continue
		}
		e.sources[it.Source] = true
		if it.Score > e.item.Score {
			e.item = it
		}
		if e.item.Content == "" {
			e.item.Content = it.Content
		}
	}

	out := make([]model.EvidenceItem, 0, len(order))
	for _, id := range order {
		e := byID[id]
		e.item.Corroboration = len(e.sources)
		e.item.Score += o.corroborationWeight * float64(len(e.sources)-1)
		out = append(out, e.item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

func (o *Orchestrator) rerank(ctx context.Context, question string, items []model.EvidenceItem) {
	if o.reranker == nil || len(items) < 2 {
		return
	}
	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.Title + " " + it.Content
	}
	indices, err := o.reranker.Rank(ctx, question, docs)
	if err != nil || len(indices) == 0 {
		return
	}
	reordered := make([]model.EvidenceItem, 0, len(items))
	seen := make(map[int]bool)
	for _, idx := range indices {
		if idx < 0 || idx >= len(items) || seen[idx] {
			continue
		}
		seen[idx] = true
		reordered = append(reordered, items[idx])
	}
	for i, it := range items {
		if !seen[i] {
			reordered = append(reordered, it)
		}
	}
	copy(items, reordered)
}

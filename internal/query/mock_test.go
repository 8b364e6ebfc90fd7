package query

import (
	"context"
	"time"

	"github.com/agenthands/corpus/internal/model"
)

// stubRetriever returns fixed evidence, optionally failing or stalling.
type stubRetriever struct {
	name  string
	items []model.EvidenceItem
	err   error
	delay time.Duration
}

func (s *stubRetriever) Name() string { return s.name }

func (s *stubRetriever) Retrieve(ctx context.Context, sq model.SubQuery) ([]model.EvidenceItem, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.EvidenceItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

// stubSynth echoes the evidence it was given as one key point each.
type stubSynth struct {
	lastEvidence []model.EvidenceItem
	synthesis    *model.Synthesis
	err          error
}

func (s *stubSynth) Synthesize(ctx context.Context, question string, evidence []model.EvidenceItem) (*model.Synthesis, error) {
	s.lastEvidence = evidence
	if s.err != nil {
		return nil, s.err
	}
	if s.synthesis != nil {
		return s.synthesis, nil
	}
	out := &model.Synthesis{Summary: "stub"}
	for _, e := range evidence {
		out.KeyPoints = append(out.KeyPoints, model.KeyPoint{
			Text:       e.Title,
			References: []string{e.DocumentID},
		})
		out.References = append(out.References, e.DocumentID)
	}
	return out, nil
}

package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/llm"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

type synthesisResponse struct {
	Summary   string `json:"summary"`
	KeyPoints []struct {
		Text       string   `json:"text"`
		References []string `json:"references"`
	} `json:"key_points"`
	Confidence float64 `json:"confidence"`
}

// Synthesizer produces cited answers. Every key point must reference at
// least one evidence document; points citing unknown IDs are dropped. Without
// a model, or when the model fails, it falls back to an extractive summary.
type Synthesizer struct {
	LLM     llm.LLMClient
	Prompts config.PromptsConfig
	log     *logger.Logger
}

func NewSynthesizer(llmClient llm.LLMClient, prompts config.PromptsConfig, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		LLM:     llmClient,
		Prompts: prompts,
		log:     log.With("component", "synthesizer"),
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []model.EvidenceItem) (*model.Synthesis, error) {
	if s.LLM == nil {
		return s.extractive(evidence), nil
	}

	var sb strings.Builder
	for _, e := range evidence {
		content := e.Content
		if content == "" {
			content = e.Title
		}
		if len(content) > 600 {
			content = content[:600]
		}
		fmt.Fprintf(&sb, "%s: %s\n", e.DocumentID, content)
	}
	prompt := fmt.Sprintf(s.Prompts.Synthesis, question, sb.String())

	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn("synthesis degraded to extractive answer", "error", err)
		return s.extractive(evidence), nil
	}
	parsed, err := llm.ParseJSON[synthesisResponse](response)
	if err != nil {
		s.log.Warn("unparseable synthesis response", "error", err)
		return s.extractive(evidence), nil
	}

	known := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		known[e.DocumentID] = true
	}

	out := &model.Synthesis{Summary: parsed.Summary}
	refSet := make(map[string]bool)
	for _, kp := range parsed.KeyPoints {
		var refs []string
		for _, ref := range kp.References {
			if known[ref] {
				refs = append(refs, ref)
			}
		}
		// The citation invariant: no supporting document, no claim.
		if len(refs) == 0 {
			s.log.Warn("dropped uncited key point", "text", kp.Text)
			continue
		}
		out.KeyPoints = append(out.KeyPoints, model.KeyPoint{Text: kp.Text, References: refs})
		for _, ref := range refs {
			refSet[ref] = true
		}
	}
	out.References = sortedKeys(refSet)
	out.LowConfidence = parsed.Confidence < 0.5 || len(out.KeyPoints) == 0

	if len(out.KeyPoints) == 0 && out.Summary == "" {
		return s.extractive(evidence), nil
	}
	return out, nil
}

// extractive builds a citation-safe answer directly from the top evidence.
func (s *Synthesizer) extractive(evidence []model.EvidenceItem) *model.Synthesis {
	out := &model.Synthesis{LowConfidence: true}
	if len(evidence) == 0 {
		out.Summary = "No matching documents were found in the corpus."
		return out
	}

	top := evidence
	if len(top) > 3 {
		top = top[:3]
	}
	refSet := make(map[string]bool)
	for _, e := range top {
		text := e.Title
		if e.Content != "" {
			snippet := e.Content
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			text = fmt.Sprintf("%s: %s", e.Title, snippet)
		}
		out.KeyPoints = append(out.KeyPoints, model.KeyPoint{
			Text:       text,
			References: []string{e.DocumentID},
		})
		refSet[e.DocumentID] = true
	}
	out.References = sortedKeys(refSet)
	out.Summary = fmt.Sprintf("Found %d relevant documents; summarization was unavailable, excerpts follow.", len(evidence))
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package extract finds cross-document relationships in regulatory text,
// using the configured model with a regex citation scan as fallback.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/llm"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

// Candidate is a committed document a relationship may point at.
type Candidate struct {
	ID    string
	Title string
}

type extractedRelationship struct {
	TargetID   string  `json:"target_id"`
	Type       string  `json:"relationship_type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type extractedRelationships struct {
	Relationships []extractedRelationship `json:"relationships"`
}

// Citation patterns for US regulatory text.
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\s+C\.?F\.?R\.?\s+(?:Part\s+)?\d+(?:\.\d+)?`),
	regexp.MustCompile(`\d+\s+U\.?S\.?C\.?\s+(?:§\s*)?\d+`),
	regexp.MustCompile(`Public\s+Law\s+\d+-\d+`),
	regexp.MustCompile(`\d+\s+(?:FR|Fed\.?\s+Reg\.?)\s+\d+`),
}

type Extractor struct {
	LLM     llm.LLMClient
	Prompts config.PromptsConfig
	log     *logger.Logger
}

func NewExtractor(llmClient llm.LLMClient, prompts config.PromptsConfig, log *logger.Logger) *Extractor {
	return &Extractor{
		LLM:     llmClient,
		Prompts: prompts,
		log:     log.With("component", "extractor"),
	}
}

// Extract returns relationships from the document to known candidates.
// Model output is filtered: unknown relationship types and targets outside
// the candidate set are dropped. A failed model call degrades to the
// citation scan instead of failing ingestion.
func (e *Extractor) Extract(ctx context.Context, d *model.Document, candidates []Candidate) ([]model.Relationship, error) {
	if e.LLM == nil || len(candidates) == 0 {
		return e.scanCitations(d, candidates), nil
	}

	var candidateList strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&candidateList, "- %s: %s\n", c.ID, c.Title)
	}
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	prompt := fmt.Sprintf(e.Prompts.Relationships, candidateList.String(), d.Title, truncate(d.Content, 8000))

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		e.log.Warn("relationship extraction degraded to citation scan", "document", d.ID, "error", err)
		return e.scanCitations(d, candidates), nil
	}

	result, err := llm.ParseJSON[extractedRelationships](response)
	if err != nil {
		e.log.Warn("unparseable extraction response", "document", d.ID, "error", err)
		return e.scanCitations(d, candidates), nil
	}

	var out []model.Relationship
	for _, r := range result.Relationships {
		if !known[r.TargetID] || r.TargetID == d.ID {
			continue
		}
		if !model.KnownRelationshipType(r.Type) {
			continue
		}
		conf := r.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		out = append(out, model.Relationship{
			SourceID:   d.ID,
			TargetID:   r.TargetID,
			Type:       r.Type,
			Confidence: conf,
			Context:    r.Context,
		})
	}
	return out, nil
}

// scanCitations finds formal citations in the text and links them to
// candidates whose title contains the cited designation.
func (e *Extractor) scanCitations(d *model.Document, candidates []Candidate) []model.Relationship {
	var cites []string
	for _, p := range citationPatterns {
		cites = append(cites, p.FindAllString(d.Content, -1)...)
	}
	if len(cites) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []model.Relationship
	for _, cite := range cites {
		norm := normalizeCitation(cite)
		for _, c := range candidates {
			if c.ID == d.ID || !strings.Contains(normalizeCitation(c.Title), norm) {
				continue
			}
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, model.Relationship{
				SourceID:   d.ID,
				TargetID:   c.ID,
				Type:       "cites",
				Confidence: 0.5,
				Context:    cite,
			})
		}
	}
	return out
}

func normalizeCitation(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

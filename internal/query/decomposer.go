// Package query implements the retrieval-augmented answer pipeline:
// decompose the question, fan retrieval out across the stores, merge and rank
// the evidence, then synthesize a cited answer.
package query

import (
	"fmt"
	"regexp"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

// Decomposer turns a natural-language question into typed sub-queries using
// deterministic rules, so the same question always produces the same plan.
// Results are cached per question and user context.
type Decomposer struct {
	minConfidence float64
	cache         *gocache.Cache
	log           *logger.Logger
}

func NewDecomposer(cfg config.RetrievalConfig, log *logger.Logger) *Decomposer {
	return &Decomposer{
		minConfidence: cfg.DecomposeMinConf,
		cache:         gocache.New(cfg.CacheExpiry(), 2*cfg.CacheExpiry()),
		log:           log.With("component", "decomposer"),
	}
}

var (
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	datePattern  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	rangePattern = regexp.MustCompile(`between\s+((?:19|20)\d{2})\s+and\s+((?:19|20)\d{2})`)
	sincePattern = regexp.MustCompile(`(?:since|after|from)\s+((?:19|20)\d{2})`)
	untilPattern = regexp.MustCompile(`(?:before|until|through)\s+((?:19|20)\d{2})`)
	idPattern    = regexp.MustCompile(`\b[a-z_]+(?:-[a-z_]+)*-(?:19|20)\d{2}-\d{3,}\b`)
	quotePattern = regexp.MustCompile(`"([^"]+)"`)

	// Ordered so multi-cue questions classify the same way every time.
	relationCues = []struct{ cue, relType string }{
		{"supersede", "supersedes"},
		{"replace", "supersedes"},
		{"citation", "cites"},
		{"cite", "cites"},
		{"reference", "references"},
		{"implement", "implements"},
		{"amend", "amends"},
	}

	stopwords = map[string]bool{
		"a": true, "an": true, "the": true, "of": true, "for": true,
		"in": true, "on": true, "to": true, "and": true, "or": true,
		"what": true, "which": true, "who": true, "how": true, "when": true,
		"is": true, "are": true, "was": true, "were": true, "do": true,
		"does": true, "did": true, "have": true, "has": true, "that": true,
		"it": true, "its": true, "this": true, "with": true, "about": true,
	}
)

// Decompose produces the ordered sub-query plan for a question. Confidence
// reflects how much of the question the rules could classify; below the
// configured floor the plan is flagged for human review.
func (d *Decomposer) Decompose(question string, user model.UserContext) *model.Decomposition {
	key := cacheKey(question, user)
	if cached, ok := d.cache.Get(key); ok {
		return cached.(*model.Decomposition)
	}

	q := strings.TrimSpace(question)
	lower := strings.ToLower(q)
	var subs []model.SubQuery
	matched := 0

	// Explicit document IDs and quoted phrases are entity lookups.
	for _, id := range idPattern.FindAllString(lower, -1) {
		subs = append(subs, model.SubQuery{Type: model.SubQueryEntity, Text: id})
		matched++
	}
	for _, m := range quotePattern.FindAllStringSubmatch(q, -1) {
		subs = append(subs, model.SubQuery{Type: model.SubQueryEntity, Text: m[1]})
		matched++
	}

	if from, to, ok := temporalBounds(lower); ok {
		subs = append(subs, model.SubQuery{
			Type:     model.SubQueryTemporal,
			Text:     keywords(lower),
			DateFrom: from,
			DateTo:   to,
		})
		matched++
	}

	for _, rc := range relationCues {
		if strings.Contains(lower, rc.cue) {
			subs = append(subs, model.SubQuery{
				Type:         model.SubQueryRelational,
				Text:         keywords(lower),
				RelationType: rc.relType,
			})
			matched++
			break
		}
	}

	// A keyword search over the significant terms always runs.
	kw := keywords(lower)
	subs = append(subs, model.SubQuery{Type: model.SubQueryKeyword, Text: kw})

	conf := confidence(kw, matched)
	dec := &model.Decomposition{
		Question:    question,
		SubQueries:  subs,
		Confidence:  conf,
		HumanReview: conf < d.minConfidence,
	}
	d.cache.Set(key, dec, gocache.DefaultExpiration)
	return dec
}

func cacheKey(question string, user model.UserContext) string {
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(question)), user.Role, user.Scope)
}

// temporalBounds extracts inclusive date bounds from range, open-ended and
// bare-year phrasings.
func temporalBounds(lower string) (from, to string, ok bool) {
	if m := rangePattern.FindStringSubmatch(lower); m != nil {
		return m[1] + "-01-01", m[2] + "-12-31", true
	}
	if m := sincePattern.FindStringSubmatch(lower); m != nil {
		return m[1] + "-01-01", "", true
	}
	if m := untilPattern.FindStringSubmatch(lower); m != nil {
		return "", m[1] + "-12-31", true
	}
	if m := datePattern.FindString(lower); m != "" {
		return m, m, true
	}
	if m := yearPattern.FindString(lower); m != "" {
		return m + "-01-01", m + "-12-31", true
	}
	return "", "", false
}

func keywords(lower string) string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_' && r != '-'
	})
	var kept []string
	for _, f := range fields {
		if !stopwords[f] && len(f) > 1 {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// confidence is deterministic: a base for a usable keyword set, a bonus per
// classified aspect, degraded for very short questions.
func confidence(kw string, matched int) float64 {
	terms := len(strings.Fields(kw))
	if terms == 0 {
		return 0.1
	}
	conf := 0.5
	if terms >= 3 {
		conf += 0.1
	}
	conf += 0.15 * float64(matched)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// Flush clears the plan cache. Used when retrieval configuration changes.
func (d *Decomposer) Flush() {
	d.cache.Flush()
}

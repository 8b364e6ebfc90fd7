package model

// SubQueryType classifies a decomposed sub-query and determines which store
// the orchestrator dispatches it to.
type SubQueryType string

const (
	SubQueryKeyword    SubQueryType = "keyword"
	SubQueryEntity     SubQueryType = "entity"
	SubQueryTemporal   SubQueryType = "temporal"
	SubQueryRelational SubQueryType = "relational"
)

// SubQuery is one typed retrieval request produced by the decomposer.
type SubQuery struct {
	Type SubQueryType `json:"type"`
	Text string       `json:"text"`
	// Temporal bounds (inclusive, YYYY-MM-DD) when Type is temporal.
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	// Relationship type and anchor entity when Type is relational.
	RelationType string `json:"relation_type,omitempty"`
}

// UserContext scopes decomposition to the asking user. It participates in the
// cache key, so identical questions from identical contexts reproduce
// identical sub-query sets.
type UserContext struct {
	Role  string `json:"role,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// Decomposition is the full, ordered decomposer output.
type Decomposition struct {
	Question    string     `json:"question"`
	SubQueries  []SubQuery `json:"sub_queries"`
	Confidence  float64    `json:"confidence"`
	HumanReview bool       `json:"human_review"`
}

// EvidenceItem is a scored retrieval match from one source.
type EvidenceItem struct {
	DocumentID string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content,omitempty"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"` // relational | graph | semantic
	// Number of distinct sources that returned this document after merging.
	Corroboration int `json:"corroboration,omitempty"`
}

// KeyPoint is one synthesized claim with its supporting document IDs. A key
// point with no references is never emitted.
type KeyPoint struct {
	Text       string   `json:"text"`
	References []string `json:"references"`
}

// Synthesis is the cited answer produced from ranked evidence.
type Synthesis struct {
	Summary       string     `json:"summary"`
	KeyPoints     []KeyPoint `json:"key_points"`
	References    []string   `json:"references"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
}

// Answer is the full query response: synthesis, the evidence it drew from,
// and any degradation the caller should know about.
type Answer struct {
	Question        string         `json:"question"`
	Synthesis       Synthesis      `json:"synthesis"`
	Sources         []EvidenceItem `json:"sources"`
	DegradedSources []string       `json:"degraded_sources,omitempty"`
	Partial         bool           `json:"partial,omitempty"`
}

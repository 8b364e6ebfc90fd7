package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port int    `toml:"port"`
	Mode string `toml:"mode"` // dev | prod, controls log output
}

func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
	)
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

func (c *Neo4jConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required),
	)
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type AllocatorConfig struct {
	SequenceWidth int `toml:"sequence_width"`
	MaxAttempts   int `toml:"max_attempts"`
}

func (c *AllocatorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SequenceWidth, validation.Min(1), validation.Max(12)),
		validation.Field(&c.MaxAttempts, validation.Min(1)),
	)
}

type CrosswalkConfig struct {
	SweepInterval    string `toml:"sweep_interval"`
	DriftSLA         string `toml:"drift_sla"`
	PendingRetention string `toml:"pending_retention"`
	MaxTraversal     int    `toml:"max_traversal_depth"`
}

func (c *CrosswalkConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SweepInterval, validation.By(duration)),
		validation.Field(&c.DriftSLA, validation.By(duration)),
		validation.Field(&c.PendingRetention, validation.By(duration)),
		validation.Field(&c.MaxTraversal, validation.Min(1)),
	)
}

func (c *CrosswalkConfig) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, 5*time.Minute)
}

func (c *CrosswalkConfig) DriftWindow() time.Duration {
	return parseDuration(c.DriftSLA, 15*time.Minute)
}

func (c *CrosswalkConfig) Retention() time.Duration {
	return parseDuration(c.PendingRetention, 24*time.Hour)
}

type IngestConfig struct {
	Workers     int    `toml:"workers"`
	MaxAttempts int    `toml:"max_attempts"`
	BackoffBase string `toml:"backoff_base"`
}

func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1)),
		validation.Field(&c.MaxAttempts, validation.Min(1)),
		validation.Field(&c.BackoffBase, validation.By(duration)),
	)
}

func (c *IngestConfig) Backoff() time.Duration {
	return parseDuration(c.BackoffBase, time.Second)
}

type RetrievalConfig struct {
	TopN                 int     `toml:"top_n"`
	SourceTimeout        string  `toml:"source_timeout"`
	CorroborationWeight  float64 `toml:"corroboration_weight"`
	Rerank               bool    `toml:"rerank"`
	DecomposeMinConf     float64 `toml:"decompose_min_confidence"`
	DecomposeCacheExpiry string  `toml:"decompose_cache_expiry"`
}

func (c *RetrievalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TopN, validation.Min(1)),
		validation.Field(&c.SourceTimeout, validation.By(duration)),
		validation.Field(&c.CorroborationWeight, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (c *RetrievalConfig) Timeout() time.Duration {
	return parseDuration(c.SourceTimeout, 5*time.Second)
}

func (c *RetrievalConfig) CacheExpiry() time.Duration {
	return parseDuration(c.DecomposeCacheExpiry, 10*time.Minute)
}

// PromptsConfig holds the model prompt templates. Each is a fmt template;
// operators may override them but must keep the placeholder count.
type PromptsConfig struct {
	Relationships string `toml:"relationships"`
	Synthesis     string `toml:"synthesis"`
}

const defaultRelationshipsPrompt = `You are a regulatory document analyst.

Known documents (id: title):
%s

Analyze the document below and identify relationships from it to the known
documents. Valid relationship types: cites, references, supersedes, implements, amends.

Title: %s
Content:
%s

Respond with ONLY a JSON object of the form:
{"relationships": [{"target_id": "...", "relationship_type": "...", "confidence": 0.0, "context": "..."}]}
Only include targets from the known document list.`

const defaultSynthesisPrompt = `You are a regulatory research assistant. Answer the question using ONLY the evidence provided.

Question: %s

Evidence (id: content):
%s

Respond with ONLY a JSON object of the form:
{"summary": "...", "key_points": [{"text": "...", "references": ["evidence-id"]}], "confidence": 0.0}
Every key point must cite at least one evidence id. Do not invent evidence ids.`

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Neo4j     Neo4jConfig     `toml:"neo4j"`
	LLM       LLMConfig       `toml:"llm"`
	Allocator AllocatorConfig `toml:"allocator"`
	Crosswalk CrosswalkConfig `toml:"crosswalk"`
	Ingest    IngestConfig    `toml:"ingest"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Prompts   PromptsConfig   `toml:"prompts"`
}

func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.Server, &c.Postgres, &c.Neo4j, &c.Allocator, &c.Crosswalk, &c.Ingest, &c.Retrieval,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a config with workable defaults for everything except the
// store endpoints.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, Mode: "dev"},
		Allocator: AllocatorConfig{SequenceWidth: 6, MaxAttempts: 5},
		Crosswalk: CrosswalkConfig{
			SweepInterval:    "5m",
			DriftSLA:         "15m",
			PendingRetention: "24h",
			MaxTraversal:     6,
		},
		Ingest: IngestConfig{Workers: 4, MaxAttempts: 3, BackoffBase: "1s"},
		Retrieval: RetrievalConfig{
			TopN:                 10,
			SourceTimeout:        "5s",
			CorroborationWeight:  0.1,
			DecomposeMinConf:     0.4,
			DecomposeCacheExpiry: "10m",
		},
		Prompts: PromptsConfig{
			Relationships: defaultRelationshipsPrompt,
			Synthesis:     defaultSynthesisPrompt,
		},
	}
}

// Load reads a TOML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func duration(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Package graph keeps the derived graph projection of the corpus in a
// neo4j-protocol store (Memgraph or Neo4j) and exposes the typed operations
// the crosswalk and query layers need.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/corpus/internal/logger"
)

// Driver abstracts query execution so tests can substitute a fake.
type Driver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

type BoltDriver struct {
	driver neo4j.DriverWithContext
	log    *logger.Logger
}

func NewBoltDriver(uri, username, password string, log *logger.Logger) (*BoltDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}
	log.Info("connected to graph store", "uri", uri)
	return &BoltDriver{driver: driver, log: log.With("component", "graph")}, nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *BoltDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Document(id);",
		"CREATE INDEX ON :Document(content_hash);",
		"CREATE INDEX ON :Document(source);",
		"CREATE INDEX ON :Document(publication_date);",
	}
	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index might already exist.
			d.log.Warn("failed to create index", "query", q, "error", err)
		}
	}
	return nil
}

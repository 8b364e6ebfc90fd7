package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// fakeDriver records executed queries and returns canned results keyed by
// query string.
type fakeDriver struct {
	results  map[string]neo4j.EagerResult
	errs     map[string]error
	executed []executedQuery
}

type executedQuery struct {
	query  string
	params map[string]interface{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		results: make(map[string]neo4j.EagerResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	f.executed = append(f.executed, executedQuery{query: query, params: params})
	if err, ok := f.errs[query]; ok {
		return neo4j.EagerResult{}, err
	}
	return f.results[query], nil
}

func (f *fakeDriver) BuildIndices(ctx context.Context) error { return nil }

func (f *fakeDriver) Close(ctx context.Context) error { return nil }

func record(keys []string, values []interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func result(records ...*neo4j.Record) neo4j.EagerResult {
	return neo4j.EagerResult{Records: records}
}

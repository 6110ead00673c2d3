package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Graph selects one of the two logical graphs behind the adapter.
type Graph string

const (
	// DataGraph holds entity instances and materialized relationship edges.
	DataGraph Graph = "data"
	// OntologyGraph holds entity-type schema and relationship candidates.
	OntologyGraph Graph = "ontology"
)

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, graph Graph, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

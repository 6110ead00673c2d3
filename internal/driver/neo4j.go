package driver

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jDriver serves both logical graphs from one bolt endpoint. On multi-db
// servers the data and ontology graphs map to separate databases; with empty
// database names (Memgraph, community Neo4j) both land in the default one and
// stay disjoint by label.
type Neo4jDriver struct {
	Driver     neo4j.DriverWithContext
	DataDB     string
	OntologyDB string
}

func NewNeo4jDriver(uri, username, password, dataDB, ontologyDB string) (*Neo4jDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := d.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	log.Printf("Connected to graph store at %s", uri)
	return &Neo4jDriver{Driver: d, DataDB: dataDB, OntologyDB: ontologyDB}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) database(graph Graph) string {
	if graph == OntologyGraph {
		return d.OntologyDB
	}
	return d.DataDB
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, graph Graph, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if db := d.database(graph); db != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(db))
	}

	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query on %s graph: %w", graph, err)
	}
	return *result, nil
}

func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	ontology := []string{
		"CREATE INDEX ON :EntityType(name);",
		"CREATE INDEX ON :RelationshipCandidate(id);",
	}
	data := []string{
		"CREATE INDEX ON :Entity(uuid);",
		"CREATE INDEX ON :Entity(type);",
	}

	for _, q := range ontology {
		if _, err := d.ExecuteQuery(ctx, OntologyGraph, q, nil); err != nil {
			log.Printf("Warning: failed to create index '%s': %v", q, err)
			// Continue, as index might already exist
		}
	}
	for _, q := range data {
		if _, err := d.ExecuteQuery(ctx, DataGraph, q, nil); err != nil {
			log.Printf("Warning: failed to create index '%s': %v", q, err)
		}
	}

	return nil
}

//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamesh/ontolink/internal/config"
	"github.com/schemamesh/ontolink/internal/core"
	"github.com/schemamesh/ontolink/internal/core/model"
	"github.com/schemamesh/ontolink/internal/driver"
	"github.com/schemamesh/ontolink/internal/llm"
	"github.com/schemamesh/ontolink/internal/store"
)

// TestDiscoveryFlow runs the pipeline end to end against real backends:
// schema upsert, instance ingest, candidate generation, deep matching,
// manual acceptance, edge sync, and teardown on rejection. Requires
// GRAPH_URI and REDIS_URL; the judge step additionally requires
// LLM_PROVIDER and is skipped without it.
func TestDiscoveryFlow(t *testing.T) {
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("GRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: GRAPH_URI not set")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}

	cfg := config.Default()
	cfg.Graph.URI = uri
	cfg.Graph.User = os.Getenv("GRAPH_USER")
	cfg.Graph.Password = os.Getenv("GRAPH_PASSWORD")
	cfg.Redis.URL = redisURL
	// Small sample so a handful of seeded instances clears the evidence bar.
	cfg.Discovery.MinCountForEval = 3

	ctx := context.Background()

	d, err := driver.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password,
		cfg.Graph.DataDB, cfg.Graph.OntologyDB)
	require.NoError(t, err)
	defer d.Close(ctx)

	counters, err := store.NewCounterStore(store.Options{URL: cfg.Redis.URL})
	require.NoError(t, err)
	defer counters.Close()

	var judgeClient llm.LLMClient
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM = config.LLMConfig{
			Provider: provider,
			Model:    os.Getenv("LLM_MODEL"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		}
		judgeClient, err = llm.NewClient(ctx, cfg.LLM)
		require.NoError(t, err)
	}

	disc := core.NewDiscovery(d, counters, judgeClient, cfg)

	require.NoError(t, d.BuildIndices(ctx))

	// Unique property names keep this run isolated from earlier ones.
	runID := uuid.New().String()[:8]
	ownerProp := "serviceOwner_" + runID
	idProp := "teamId_" + runID

	require.NoError(t, disc.Repo.UpsertEntityType(ctx, model.EntityType{
		Name: "Deployment",
		Properties: []model.Property{
			{Name: ownerProp, Kind: model.KindReference},
		},
	}))
	require.NoError(t, disc.Repo.UpsertEntityType(ctx, model.EntityType{
		Name: "Team",
		Properties: []model.Property{
			{Name: idProp, Kind: model.KindReference},
		},
	}))

	var seeded []string
	seed := func(typeName, prop, value string) {
		id := uuid.New().String()
		seeded = append(seeded, id)
		cypher := fmt.Sprintf("CREATE (:Entity {uuid: $uuid, type: $type, `%s`: $value})", prop)
		_, err := d.ExecuteQuery(ctx, driver.DataGraph, cypher, map[string]interface{}{
			"uuid": id, "type": typeName, "value": value,
		})
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		team := fmt.Sprintf("team-%s-%d", runID, i)
		seed("Deployment", ownerProp, team)
		seed("Team", idProp, team)
	}

	defer func() {
		_, _ = d.ExecuteQuery(ctx, driver.DataGraph,
			"MATCH (n:Entity) WHERE n.uuid IN $uuids DETACH DELETE n",
			map[string]interface{}{"uuids": seeded})
		_, _ = d.ExecuteQuery(ctx, driver.OntologyGraph,
			"MATCH (c:RelationshipCandidate) WHERE c.source_property IN $props OR c.target_property IN $props DETACH DELETE c",
			map[string]interface{}{"props": []interface{}{ownerProp, idProp}})
		_, _ = d.ExecuteQuery(ctx, driver.OntologyGraph,
			"MATCH (p:Property) WHERE p.name IN $props DETACH DELETE p",
			map[string]interface{}{"props": []interface{}{ownerProp, idProp}})
	}()

	// Generation plus deep matching. The seeded values overlap fully, so the
	// pair must surface with a high heuristic score.
	require.NoError(t, disc.Process(ctx))

	pairID := model.PairID(
		model.Endpoint{TypeName: "Deployment", Property: ownerProp},
		model.Endpoint{TypeName: "Team", Property: idProp},
	)
	cand, err := disc.Repo.GetCandidate(ctx, pairID)
	require.NoError(t, err)
	assert.Equal(t, "Deployment."+ownerProp, cand.Source.Key())

	h, err := counters.Get(ctx, pairID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h.MatchCount, int64(5))
	assert.Greater(t, h.Score, 0.5)
	t.Logf("Heuristic after process: count=%d score=%.3f", h.MatchCount, h.Score)

	if judgeClient != nil {
		require.NoError(t, disc.Evaluate(ctx))
		cand, err = disc.Repo.GetCandidate(ctx, pairID)
		require.NoError(t, err)
		if cand.Evaluation != nil {
			t.Logf("Judge verdict: confidence=%.2f %s",
				cand.Evaluation.RelationConfidence, cand.Evaluation.Justification)
		}
	}

	// Manual acceptance must materialize one edge per matching instance pair.
	require.NoError(t, disc.Repo.SetOverride(ctx, pairID, model.OverrideAccepted))
	created, err := disc.SyncAccepted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, created)

	// Re-sync with unchanged data is a no-op.
	created, err = disc.SyncAccepted(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	res, err := d.ExecuteQuery(ctx, driver.DataGraph,
		"MATCH ()-[e:REL_APPLIED {candidate_id: $id}]->() RETURN count(e) AS count",
		map[string]interface{}{"id": pairID})
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	count, _ := res.Records[0].Get("count")
	assert.Equal(t, int64(5), count)

	// Flipping to rejected tears the edges down again.
	require.NoError(t, disc.Repo.SetOverride(ctx, pairID, model.OverrideRejected))
	_, err = disc.SyncAccepted(ctx)
	require.NoError(t, err)

	res, err = d.ExecuteQuery(ctx, driver.DataGraph,
		"MATCH ()-[e:REL_APPLIED {candidate_id: $id}]->() RETURN count(e) AS count",
		map[string]interface{}{"id": pairID})
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	count, _ = res.Records[0].Get("count")
	assert.Equal(t, int64(0), count)
}

// Package repo maps graph store records onto the domain model. All Cypher
// lives in the driver package; this layer owns parameter building and record
// parsing.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/schemamesh/ontolink/internal/core/model"
	"github.com/schemamesh/ontolink/internal/driver"
)

type Repo struct {
	Driver driver.GraphDriver
}

func New(d driver.GraphDriver) *Repo {
	return &Repo{Driver: d}
}

func (r *Repo) UpsertEntityType(ctx context.Context, t model.EntityType) error {
	params := map[string]interface{}{
		"name":       t.Name,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.UpsertEntityTypeQuery, params); err != nil {
		return fmt.Errorf("failed to upsert entity type %s: %w", t.Name, err)
	}

	for _, p := range t.Properties {
		propParams := map[string]interface{}{
			"type_name": t.Name,
			"name":      p.Name,
			"kind":      string(p.Kind),
		}
		if _, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.UpsertPropertyQuery, propParams); err != nil {
			return fmt.Errorf("failed to upsert property %s.%s: %w", t.Name, p.Name, err)
		}
	}
	return nil
}

func (r *Repo) ListEntityTypes(ctx context.Context) ([]model.EntityType, error) {
	result, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.ListEntityTypesQuery, nil)
	if err != nil {
		return nil, err
	}

	var types []model.EntityType
	for _, rec := range result.Records {
		t := model.EntityType{
			Name:      recString(rec, "name"),
			UpdatedAt: recTime(rec, "updated_at"),
		}
		if raw, ok := rec.Get("properties"); ok {
			if props, ok := raw.([]interface{}); ok {
				for _, p := range props {
					m, ok := p.(map[string]interface{})
					if !ok {
						continue
					}
					name, _ := m["name"].(string)
					if name == "" {
						continue // OPTIONAL MATCH miss
					}
					kind, _ := m["kind"].(string)
					t.Properties = append(t.Properties, model.Property{
						Name: name,
						Kind: model.PropertyKind(kind),
					})
				}
			}
		}
		types = append(types, t)
	}
	return types, nil
}

// CreateCandidate persists a candidate node if the pair is new. Returns
// whether a node was created; existing candidates are untouched.
func (r *Repo) CreateCandidate(ctx context.Context, c model.RelationshipCandidate) (bool, error) {
	params := map[string]interface{}{
		"id":              c.ID,
		"source_type":     c.Source.TypeName,
		"source_property": c.Source.Property,
		"target_type":     c.Target.TypeName,
		"target_property": c.Target.Property,
		"created_at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	result, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.CreateCandidateQuery, params)
	if err != nil {
		return false, fmt.Errorf("failed to create candidate %s: %w", c.ID, err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	return recBool(result.Records[0], "created"), nil
}

func (r *Repo) GetCandidate(ctx context.Context, id string) (model.RelationshipCandidate, error) {
	result, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.GetCandidateQuery,
		map[string]interface{}{"id": id})
	if err != nil {
		return model.RelationshipCandidate{}, err
	}
	if len(result.Records) == 0 {
		return model.RelationshipCandidate{}, fmt.Errorf("candidate %s not found", id)
	}
	return candidateFromRecord(result.Records[0]), nil
}

func (r *Repo) ListCandidates(ctx context.Context) ([]model.RelationshipCandidate, error) {
	result, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.ListCandidatesQuery, nil)
	if err != nil {
		return nil, err
	}

	cands := make([]model.RelationshipCandidate, 0, len(result.Records))
	for _, rec := range result.Records {
		cands = append(cands, candidateFromRecord(rec))
	}
	return cands, nil
}

func (r *Repo) SetEvaluation(ctx context.Context, id string, ev model.Evaluation) error {
	params := map[string]interface{}{
		"id":                  id,
		"relation_confidence": ev.RelationConfidence,
		"justification":       ev.Justification,
		"thought":             ev.Thought,
		"evaluated_at":        ev.EvaluatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.SetEvaluationQuery, params)
	if err != nil {
		return fmt.Errorf("failed to store evaluation for %s: %w", id, err)
	}
	return nil
}

func (r *Repo) SetOverride(ctx context.Context, id string, override model.ManualOverride) error {
	_, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.SetOverrideQuery,
		map[string]interface{}{"id": id, "manual_override": string(override)})
	if err != nil {
		return fmt.Errorf("failed to set override for %s: %w", id, err)
	}
	return nil
}

func (r *Repo) SetApplied(ctx context.Context, id string, applied bool) error {
	_, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.SetAppliedQuery,
		map[string]interface{}{"id": id, "is_applied": applied})
	return err
}

func (r *Repo) ArchiveCandidate(ctx context.Context, id string) error {
	_, err := r.Driver.ExecuteQuery(ctx, driver.OntologyGraph, driver.ArchiveCandidateQuery,
		map[string]interface{}{"id": id})
	return err
}

func (r *Repo) SampleInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error) {
	return r.instances(ctx, driver.SampleInstancesQuery, typeName, property, limit)
}

func (r *Repo) ListInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error) {
	return r.instances(ctx, driver.ListInstancesQuery, typeName, property, limit)
}

func (r *Repo) instances(ctx context.Context, query, typeName, property string, limit int) ([]model.InstanceValue, error) {
	params := map[string]interface{}{
		"type":     typeName,
		"property": property,
		"limit":    limit,
	}
	result, err := r.Driver.ExecuteQuery(ctx, driver.DataGraph, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load instances of %s.%s: %w", typeName, property, err)
	}

	values := make([]model.InstanceValue, 0, len(result.Records))
	for _, rec := range result.Records {
		values = append(values, model.InstanceValue{
			UUID:  recString(rec, "uuid"),
			Value: recString(rec, "value"),
		})
	}
	return values, nil
}

// MergeAppliedEdge materializes one relationship instance, tagged with the
// candidate that authorized it. Returns whether the edge is new.
func (r *Repo) MergeAppliedEdge(ctx context.Context, candidateID, sourceUUID, targetUUID string) (bool, error) {
	params := map[string]interface{}{
		"candidate_id": candidateID,
		"source_uuid":  sourceUUID,
		"target_uuid":  targetUUID,
		"created_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	result, err := r.Driver.ExecuteQuery(ctx, driver.DataGraph, driver.MergeAppliedEdgeQuery, params)
	if err != nil {
		return false, fmt.Errorf("failed to apply edge for candidate %s: %w", candidateID, err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	return recBool(result.Records[0], "created"), nil
}

func (r *Repo) DeleteAppliedEdges(ctx context.Context, candidateID string) error {
	_, err := r.Driver.ExecuteQuery(ctx, driver.DataGraph, driver.DeleteAppliedEdgesQuery,
		map[string]interface{}{"candidate_id": candidateID})
	if err != nil {
		return fmt.Errorf("failed to remove applied edges for %s: %w", candidateID, err)
	}
	return nil
}

func (r *Repo) ListAppliedCandidateIDs(ctx context.Context) ([]string, error) {
	result, err := r.Driver.ExecuteQuery(ctx, driver.DataGraph, driver.ListAppliedCandidateIDsQuery, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		ids = append(ids, recString(rec, "candidate_id"))
	}
	return ids, nil
}

func candidateFromRecord(rec *db.Record) model.RelationshipCandidate {
	c := model.RelationshipCandidate{
		ID: recString(rec, "id"),
		Source: model.Endpoint{
			TypeName: recString(rec, "source_type"),
			Property: recString(rec, "source_property"),
		},
		Target: model.Endpoint{
			TypeName: recString(rec, "target_type"),
			Property: recString(rec, "target_property"),
		},
		Override:  model.ManualOverride(recString(rec, "manual_override")),
		IsApplied: recBool(rec, "is_applied"),
		Archived:  recBool(rec, "archived"),
		CreatedAt: recTime(rec, "created_at"),
	}

	if raw, ok := rec.Get("relation_confidence"); ok && raw != nil {
		if conf, ok := raw.(float64); ok {
			c.Evaluation = &model.Evaluation{
				RelationConfidence: conf,
				Justification:      recString(rec, "justification"),
				Thought:            recString(rec, "thought"),
				EvaluatedAt:        recTime(rec, "evaluated_at"),
			}
		}
	}
	return c
}

func recString(rec *db.Record, key string) string {
	if raw, ok := rec.Get(key); ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

func recBool(rec *db.Record, key string) bool {
	if raw, ok := rec.Get(key); ok {
		if b, ok := raw.(bool); ok {
			return b
		}
	}
	return false
}

func recTime(rec *db.Record, key string) time.Time {
	s := recString(rec, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

package driver

// Ontology graph queries.
const (
	UpsertEntityTypeQuery = `
		MERGE (t:EntityType {name: $name})
		SET t.updated_at = $updated_at
		RETURN t.name AS name
	`

	UpsertPropertyQuery = `
		MATCH (t:EntityType {name: $type_name})
		MERGE (t)-[:HAS_PROPERTY]->(p:Property {name: $name})
		SET p.kind = $kind
		RETURN p.name AS name
	`

	ListEntityTypesQuery = `
		MATCH (t:EntityType)
		OPTIONAL MATCH (t)-[:HAS_PROPERTY]->(p:Property)
		RETURN t.name AS name, t.updated_at AS updated_at,
			collect({name: p.name, kind: p.kind}) AS properties
		ORDER BY t.name
	`

	CreateCandidateQuery = `
		MERGE (c:RelationshipCandidate {id: $id})
		ON CREATE SET
			c.source_type = $source_type,
			c.source_property = $source_property,
			c.target_type = $target_type,
			c.target_property = $target_property,
			c.manual_override = "",
			c.is_applied = false,
			c.archived = false,
			c.created_at = $created_at
		RETURN c.created_at = $created_at AS created
	`

	GetCandidateQuery = `
		MATCH (c:RelationshipCandidate {id: $id})
		RETURN c.id AS id,
			c.source_type AS source_type, c.source_property AS source_property,
			c.target_type AS target_type, c.target_property AS target_property,
			c.manual_override AS manual_override,
			c.is_applied AS is_applied, c.archived AS archived,
			c.created_at AS created_at,
			c.relation_confidence AS relation_confidence,
			c.justification AS justification,
			c.thought AS thought,
			c.evaluated_at AS evaluated_at
	`

	ListCandidatesQuery = `
		MATCH (c:RelationshipCandidate)
		WHERE NOT coalesce(c.archived, false)
		RETURN c.id AS id,
			c.source_type AS source_type, c.source_property AS source_property,
			c.target_type AS target_type, c.target_property AS target_property,
			c.manual_override AS manual_override,
			c.is_applied AS is_applied, c.archived AS archived,
			c.created_at AS created_at,
			c.relation_confidence AS relation_confidence,
			c.justification AS justification,
			c.thought AS thought,
			c.evaluated_at AS evaluated_at
		ORDER BY c.created_at
	`

	SetEvaluationQuery = `
		MATCH (c:RelationshipCandidate {id: $id})
		SET c.relation_confidence = $relation_confidence,
			c.justification = $justification,
			c.thought = $thought,
			c.evaluated_at = $evaluated_at
		RETURN c.id AS id
	`

	SetOverrideQuery = `
		MATCH (c:RelationshipCandidate {id: $id})
		SET c.manual_override = $manual_override
		RETURN c.id AS id
	`

	SetAppliedQuery = `
		MATCH (c:RelationshipCandidate {id: $id})
		SET c.is_applied = $is_applied
		RETURN c.id AS id
	`

	ArchiveCandidateQuery = `
		MATCH (c:RelationshipCandidate {id: $id})
		SET c.archived = true
		RETURN c.id AS id
	`
)

// Data graph queries.
const (
	SampleInstancesQuery = `
		MATCH (n:Entity {type: $type})
		WHERE n[$property] IS NOT NULL
		WITH n, rand() AS r
		ORDER BY r
		LIMIT $limit
		RETURN n.uuid AS uuid, toString(n[$property]) AS value
	`

	ListInstancesQuery = `
		MATCH (n:Entity {type: $type})
		WHERE n[$property] IS NOT NULL
		RETURN n.uuid AS uuid, toString(n[$property]) AS value
		LIMIT $limit
	`

	MergeAppliedEdgeQuery = `
		MATCH (a:Entity {uuid: $source_uuid})
		MATCH (b:Entity {uuid: $target_uuid})
		MERGE (a)-[e:REL_APPLIED {candidate_id: $candidate_id}]->(b)
		ON CREATE SET e.created_at = $created_at
		RETURN e.created_at = $created_at AS created
	`

	DeleteAppliedEdgesQuery = `
		MATCH ()-[e:REL_APPLIED {candidate_id: $candidate_id}]->()
		DELETE e
	`

	ListAppliedCandidateIDsQuery = `
		MATCH ()-[e:REL_APPLIED]->()
		RETURN DISTINCT e.candidate_id AS candidate_id
	`
)

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamesh/ontolink/internal/core/model"
)

func testIndex(docs []Document) *Index {
	ix := New(1024, 0.01)
	ix.Rebuild(docs)
	return ix
}

func TestTokenizeSplitsCamelCase(t *testing.T) {
	tokens := tokenize("serviceOwnerTeam")
	assert.Equal(t, []string{"service", "owner", "team"}, tokens)
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := tokenize("the id of a deployment")
	assert.Equal(t, []string{"id", "deployment"}, tokens)
}

func TestSimilarRanksSharedValues(t *testing.T) {
	ix := testIndex([]Document{
		{Endpoint: model.Endpoint{TypeName: "Deployment", Property: "serviceOwner"},
			Values: []string{"team-platform", "team-search"}},
		{Endpoint: model.Endpoint{TypeName: "Team", Property: "identifier"},
			Values: []string{"team-platform", "team-search", "team-infra"}},
		{Endpoint: model.Endpoint{TypeName: "Document", Property: "title"},
			Values: []string{"quarterly report", "runbook"}},
	})

	entries := ix.Similar(model.Endpoint{TypeName: "Deployment", Property: "serviceOwner"}, 2, false)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Team", entries[0].Endpoint.TypeName)
	assert.Equal(t, "identifier", entries[0].Endpoint.Property)
	assert.Greater(t, entries[0].Score, 0.0)
}

func TestSimilarExcludesOwnType(t *testing.T) {
	ix := testIndex([]Document{
		{Endpoint: model.Endpoint{TypeName: "Team", Property: "lead"},
			Values: []string{"alice", "bob"}},
		{Endpoint: model.Endpoint{TypeName: "Team", Property: "manager"},
			Values: []string{"alice", "bob"}},
	})

	entries := ix.Similar(model.Endpoint{TypeName: "Team", Property: "lead"}, 5, false)
	assert.Empty(t, entries)

	// Same query with self-references enabled finds the sibling property.
	entries = ix.Similar(model.Endpoint{TypeName: "Team", Property: "lead"}, 5, true)
	require.Len(t, entries, 1)
	assert.Equal(t, "manager", entries[0].Endpoint.Property)
}

func TestSimilarRespectsLimit(t *testing.T) {
	docs := []Document{
		{Endpoint: model.Endpoint{TypeName: "A", Property: "ref"}, Values: []string{"shared"}},
		{Endpoint: model.Endpoint{TypeName: "B", Property: "ref"}, Values: []string{"shared"}},
		{Endpoint: model.Endpoint{TypeName: "C", Property: "ref"}, Values: []string{"shared"}},
		{Endpoint: model.Endpoint{TypeName: "D", Property: "ref"}, Values: []string{"shared"}},
	}
	ix := testIndex(docs)

	entries := ix.Similar(model.Endpoint{TypeName: "A", Property: "ref"}, 2, false)
	assert.Len(t, entries, 2)
}

func TestSimilarRequiresSharedToken(t *testing.T) {
	// "ident" is a strict prefix of "identifier", not a shared token. The
	// filter rejects the pair, so ranking must agree and return nothing
	// rather than scoring a pair the gate would veto.
	a := model.Endpoint{TypeName: "Deployment", Property: "ref"}
	b := model.Endpoint{TypeName: "Team", Property: "key"}
	ix := testIndex([]Document{
		{Endpoint: a, Values: []string{"ident"}},
		{Endpoint: b, Values: []string{"identifier"}},
	})

	assert.False(t, ix.AllowPair(a, b))
	assert.Empty(t, ix.Similar(a, 5, false))
	assert.Empty(t, ix.Similar(b, 5, false))
}

func TestAllowPairNeverFalseNegative(t *testing.T) {
	a := model.Endpoint{TypeName: "Deployment", Property: "serviceOwner"}
	b := model.Endpoint{TypeName: "Team", Property: "identifier"}
	ix := testIndex([]Document{
		{Endpoint: a, Values: []string{"team-platform"}},
		{Endpoint: b, Values: []string{"team-platform"}},
	})

	// Both documents contain the tokens "team" and "platform"; the filter
	// must let the pair through.
	assert.True(t, ix.AllowPair(a, b))
	assert.True(t, ix.AllowPair(b, a))
}

func TestAllowPairRejectsDisjointDocuments(t *testing.T) {
	a := model.Endpoint{TypeName: "Deployment", Property: "replicaCount"}
	b := model.Endpoint{TypeName: "Document", Property: "title"}
	ix := testIndex([]Document{
		{Endpoint: a, Values: []string{"3", "12"}},
		{Endpoint: b, Values: []string{"runbook", "quarterly"}},
	})

	assert.False(t, ix.AllowPair(a, b))
}

func TestAllowPairUnknownEndpoint(t *testing.T) {
	ix := testIndex(nil)
	assert.False(t, ix.AllowPair(
		model.Endpoint{TypeName: "X", Property: "y"},
		model.Endpoint{TypeName: "Z", Property: "w"},
	))
}

func TestRebuildSwapsGenerations(t *testing.T) {
	a := model.Endpoint{TypeName: "Deployment", Property: "owner"}
	b := model.Endpoint{TypeName: "Team", Property: "owner"}

	ix := testIndex([]Document{{Endpoint: a, Values: []string{"x"}}})
	assert.Equal(t, 1, ix.Size())
	assert.Empty(t, ix.Similar(a, 5, false))

	ix.Rebuild([]Document{
		{Endpoint: a, Values: []string{"x"}},
		{Endpoint: b, Values: []string{"x"}},
	})
	assert.Equal(t, 2, ix.Size())

	entries := ix.Similar(a, 5, false)
	require.Len(t, entries, 1)
	assert.Equal(t, b, entries[0].Endpoint)
}

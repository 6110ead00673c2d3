package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairIDOrderIndependent(t *testing.T) {
	a := Endpoint{TypeName: "Deployment", Property: "serviceOwner"}
	b := Endpoint{TypeName: "Team", Property: "id"}

	assert.Equal(t, PairID(a, b), PairID(b, a))
	assert.NotEmpty(t, PairID(a, b))
}

func TestPairIDDeterministic(t *testing.T) {
	a := Endpoint{TypeName: "Deployment", Property: "serviceOwner"}
	b := Endpoint{TypeName: "Team", Property: "id"}

	// Re-discovery must map to the same id every time.
	assert.Equal(t, PairID(a, b), PairID(a, b))
}

func TestPairIDDistinguishesPairs(t *testing.T) {
	a := Endpoint{TypeName: "Deployment", Property: "serviceOwner"}
	b := Endpoint{TypeName: "Team", Property: "id"}
	c := Endpoint{TypeName: "Team", Property: "name"}

	assert.NotEqual(t, PairID(a, b), PairID(a, c))
}

func TestCanonicalPair(t *testing.T) {
	a := Endpoint{TypeName: "Team", Property: "id"}
	b := Endpoint{TypeName: "Deployment", Property: "serviceOwner"}

	s1, t1 := CanonicalPair(a, b)
	s2, t2 := CanonicalPair(b, a)

	assert.Equal(t, s1, s2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, "Deployment.serviceOwner", s1.Key())
}

func TestManualFlagsMutuallyExclusive(t *testing.T) {
	// The override is one field; both flags set at once is unrepresentable.
	c := RelationshipCandidate{Override: OverrideAccepted}
	assert.True(t, c.ManuallyAccepted())
	assert.False(t, c.ManuallyRejected())

	c.Override = OverrideRejected
	assert.False(t, c.ManuallyAccepted())
	assert.True(t, c.ManuallyRejected())

	c.Override = OverrideNone
	assert.False(t, c.ManuallyAccepted())
	assert.False(t, c.ManuallyRejected())
}

func TestPropertyKindDefaultsToString(t *testing.T) {
	typ := EntityType{
		Name: "Deployment",
		Properties: []Property{
			{Name: "serviceOwner", Kind: KindReference},
			{Name: "notes"},
		},
	}

	assert.Equal(t, KindReference, typ.PropertyKind("serviceOwner"))
	assert.Equal(t, KindString, typ.PropertyKind("notes"))
	assert.Equal(t, KindString, typ.PropertyKind("missing"))
}

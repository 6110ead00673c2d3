// Package index maintains the heuristic index: a BM25 ranked index over
// property names and sampled values per entity type, fronted by a bloom
// filter that cheaply rejects pairs with no token overlap before any scoring
// happens.
package index

import (
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/schemamesh/ontolink/internal/core/model"
)

// Document is the indexable text for one (type, property) endpoint.
type Document struct {
	Endpoint model.Endpoint
	Values   []string // sampled instance values
}

func (d Document) tokens() []string {
	tokens := tokenize(d.Endpoint.Property)
	for _, v := range d.Values {
		tokens = append(tokens, tokenize(v)...)
	}
	return tokens
}

// Entry is one ranked result from a similarity query.
type Entry struct {
	Endpoint model.Endpoint
	Score    float64
}

// generation bundles a ranked index with the bloom filter built from the
// same documents. Swapped atomically on rebuild so readers never observe a
// half-built structure.
type generation struct {
	ranked *rankedIndex
	filter *bloom.BloomFilter
	// docKey -> tokens, for filter probes on the query side
	docTokens map[string][]string
}

// Index is the read-heavy heuristic index. Queries run against the current
// generation; Rebuild constructs a complete replacement off to the side and
// publishes it with one pointer store.
type Index struct {
	bloomBits   uint
	bloomFPRate float64
	gen         atomic.Pointer[generation]
}

func New(bloomBits uint, bloomFPRate float64) *Index {
	ix := &Index{bloomBits: bloomBits, bloomFPRate: bloomFPRate}
	ix.gen.Store(&generation{
		ranked:    buildRankedIndex(nil),
		filter:    bloom.NewWithEstimates(1, bloomFPRate),
		docTokens: map[string][]string{},
	})
	return ix
}

// Rebuild indexes the full document set from scratch. O(n log n) in the
// token count; safe to run concurrently with queries against the previous
// generation.
func (ix *Index) Rebuild(docs []Document) {
	filter := ix.newFilter(docs)
	docTokens := make(map[string][]string, len(docs))

	for _, doc := range docs {
		key := doc.Endpoint.Key()
		tokens := doc.tokens()
		docTokens[key] = tokens
		for _, token := range tokens {
			filter.AddString(key + "\x00" + token)
		}
	}

	ix.gen.Store(&generation{
		ranked:    buildRankedIndex(docs),
		filter:    filter,
		docTokens: docTokens,
	})
}

func (ix *Index) newFilter(docs []Document) *bloom.BloomFilter {
	if ix.bloomBits > 0 {
		// Derive k from the target false-positive rate at the configured width.
		n := uint(1)
		for _, d := range docs {
			n += uint(len(d.Values)) + 1
		}
		m, k := bloom.EstimateParameters(n, ix.bloomFPRate)
		if m < ix.bloomBits {
			m = ix.bloomBits
		}
		return bloom.New(m, k)
	}
	return bloom.NewWithEstimates(uint(len(docs))+1, ix.bloomFPRate)
}

// AllowPair reports whether two endpoints might share index terms. False
// positives happen at roughly the configured rate; false negatives cannot,
// because every indexed (doc, token) pair was added to the filter.
func (ix *Index) AllowPair(from, to model.Endpoint) bool {
	gen := ix.gen.Load()
	tokens, ok := gen.docTokens[from.Key()]
	if !ok {
		return false
	}
	toKey := to.Key()
	for _, token := range tokens {
		if gen.filter.TestString(toKey + "\x00" + token) {
			return true
		}
	}
	return false
}

// Similar returns up to limit endpoints ranked by BM25 similarity to the
// given endpoint's document, bloom-gated first. Endpoints on the same type
// are excluded unless allowSelf is set.
func (ix *Index) Similar(from model.Endpoint, limit int, allowSelf bool) []Entry {
	gen := ix.gen.Load()
	tokens, ok := gen.docTokens[from.Key()]
	if !ok {
		return nil
	}

	fromKey := from.Key()
	entries := gen.ranked.search(tokens, limit+1, func(docKey string) bool {
		if docKey == fromKey {
			return false
		}
		if !allowSelf && gen.ranked.endpoints[docKey].TypeName == from.TypeName {
			return false
		}
		return ix.allowPairIn(gen, tokens, docKey)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (ix *Index) allowPairIn(gen *generation, fromTokens []string, toKey string) bool {
	for _, token := range fromTokens {
		if gen.filter.TestString(toKey + "\x00" + token) {
			return true
		}
	}
	return false
}

// Size returns the number of indexed endpoints in the current generation.
func (ix *Index) Size() int {
	return ix.gen.Load().ranked.docCount
}

package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/schemamesh/ontolink/internal/core/model"
)

// BM25 parameters (standard values)
const (
	bm25K1 = 1.2  // Term frequency saturation
	bm25B  = 0.75 // Length normalization
)

// rankedIndex is a BM25 inverted index over one document per (type, property)
// endpoint. It is immutable after build; rebuilds produce a fresh instance,
// so no locking is needed on the read path.
type rankedIndex struct {
	// Inverted index: term -> docKey -> term frequency
	inverted map[string]map[string]int

	// Document lengths: docKey -> token count
	docLengths map[string]int

	// Average document length (for BM25)
	avgDocLength float64

	// docKey -> endpoint
	endpoints map[string]model.Endpoint

	docCount int
}

func buildRankedIndex(docs []Document) *rankedIndex {
	r := &rankedIndex{
		inverted:   make(map[string]map[string]int),
		docLengths: make(map[string]int),
		endpoints:  make(map[string]model.Endpoint),
	}

	var totalLen int
	for _, doc := range docs {
		tokens := doc.tokens()
		if len(tokens) == 0 {
			continue
		}
		key := doc.Endpoint.Key()

		r.endpoints[key] = doc.Endpoint
		r.docLengths[key] = len(tokens)
		r.docCount++
		totalLen += len(tokens)

		for _, token := range tokens {
			if r.inverted[token] == nil {
				r.inverted[token] = make(map[string]int)
			}
			r.inverted[token][key]++
		}
	}

	if r.docCount > 0 {
		r.avgDocLength = float64(totalLen) / float64(r.docCount)
	}
	return r
}

// search scores documents containing query terms and returns the top results
// that pass the allowed gate. The gate runs before any scoring so rejected
// pairs cost one filter lookup, not a BM25 pass.
func (r *rankedIndex) search(queryTokens []string, limit int, allowed func(docKey string) bool) []Entry {
	if r.docCount == 0 || len(queryTokens) == 0 {
		return nil
	}

	scores := make(map[string]float64)

	// Exact-token matches only. The bloom gate admits a pair solely on shared
	// tokens, so a prefix-match widening here could never surface anyway, and
	// the camelCase tokenizer already splits compound property names into the
	// tokens that matter ("ownerTeam" -> "owner", "team").
	for _, term := range queryTokens {
		docs, exists := r.inverted[term]
		if !exists {
			continue
		}
		idf := r.idf(term)
		for docKey, termFreq := range docs {
			if !r.admit(docKey, scores, allowed) {
				continue
			}
			scores[docKey] += idf * r.termScore(docKey, termFreq)
		}
	}

	results := make([]Entry, 0, len(scores))
	for key, score := range scores {
		results = append(results, Entry{Endpoint: r.endpoints[key], Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Endpoint.Key() < results[j].Endpoint.Key()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// admit runs the gate once per document, caching the outcome via the scores
// map (a present zero entry means previously admitted).
func (r *rankedIndex) admit(docKey string, scores map[string]float64, allowed func(string) bool) bool {
	if _, seen := scores[docKey]; seen {
		return true
	}
	if allowed != nil && !allowed(docKey) {
		return false
	}
	scores[docKey] = 0
	return true
}

func (r *rankedIndex) termScore(docKey string, termFreq int) float64 {
	docLen := float64(r.docLengths[docKey])
	tf := float64(termFreq)
	numerator := tf * (bm25K1 + 1)
	denominator := tf + bm25K1*(1-bm25B+bm25B*(docLen/r.avgDocLength))
	return numerator / denominator
}

// idf uses the Lucene/Elasticsearch BM25 variant with +1 smoothing so common
// terms never go negative.
func (r *rankedIndex) idf(term string) float64 {
	df := float64(len(r.inverted[term]))
	n := float64(r.docCount)

	idf := math.Log(1 + (n-df+0.5)/(df+0.5))
	if idf < 0 {
		idf = 0
	}
	return idf
}

// tokenize lowercases, splits camelCase and snake_case boundaries, and drops
// stop words and single characters. Property names are the main input here,
// so camel splitting matters more than it would for prose.
func tokenize(text string) []string {
	var expanded strings.Builder
	runes := []rune(text)
	for i, c := range runes {
		if i > 0 && unicode.IsUpper(c) && !unicode.IsUpper(runes[i-1]) {
			expanded.WriteRune(' ')
		}
		expanded.WriteRune(c)
	}

	words := strings.FieldsFunc(strings.ToLower(expanded.String()), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})

	var tokens []string
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Minimal stop word list; domain terms are deliberately not filtered.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "was": true, "were": true, "with": true, "this": true,
}

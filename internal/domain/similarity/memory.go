package similarity

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

var _ Index = (*MemoryIndex)(nil)

// MemoryIndex is the reference Index: per-quantum term frequencies plus a
// document-frequency table, scored by TF-IDF weighted cosine similarity.
// IDF is derived from the live corpus at query time, so single-quantum
// updates never trigger a rebuild. Safe for concurrent use.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]map[string]float64
	df   map[string]int
}

// NewMemoryIndex returns an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs: make(map[string]map[string]float64),
		df:   make(map[string]int),
	}
}

// Index inserts or replaces the vector for quantumID. Re-indexing drops the
// prior terms from the document-frequency table first, so no duplicate
// entries accumulate.
func (m *MemoryIndex) Index(_ context.Context, quantumID string, rec *feature.Record) error {
	if quantumID == "" {
		return errors.InvalidParam("quantum id must not be empty")
	}
	terms := Vectorize(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.docs[quantumID]; ok {
		m.dropTerms(old)
	}
	m.docs[quantumID] = terms
	for term := range terms {
		m.df[term]++
	}
	return nil
}

// Remove deletes the vector for quantumID; unknown ids are a no-op.
func (m *MemoryIndex) Remove(_ context.Context, quantumID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms, ok := m.docs[quantumID]
	if !ok {
		return nil
	}
	m.dropTerms(terms)
	delete(m.docs, quantumID)
	return nil
}

// dropTerms decrements document frequencies for a vector leaving the index.
// Callers hold the write lock.
func (m *MemoryIndex) dropTerms(terms map[string]float64) {
	for term := range terms {
		m.df[term]--
		if m.df[term] <= 0 {
			delete(m.df, term)
		}
	}
}

// Len reports the number of indexed quanta.
func (m *MemoryIndex) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// Query returns the k nearest indexed quanta by cosine similarity, ordered
// by similarity descending, ties by quantum id ascending. A query against
// an empty index, or one sharing no terms with any document, returns an
// empty sequence.
func (m *MemoryIndex) Query(_ context.Context, rec *feature.Record, k int) ([]Match, error) {
	if k <= 0 {
		return nil, errors.InvalidParam("query size k must be positive")
	}
	queryTerms := Vectorize(rec)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.docs)
	if n == 0 || len(queryTerms) == 0 {
		return []Match{}, nil
	}

	queryVec := m.unitVector(queryTerms, n)
	matches := make([]Match, 0, n)
	for id, terms := range m.docs {
		score := 0.0
		docVec := m.unitVector(terms, n)
		for term, qw := range queryVec {
			if dw, ok := docVec[term]; ok {
				score += qw * dw
			}
		}
		if score > 0 {
			matches = append(matches, Match{QuantumID: id, Similarity: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].QuantumID < matches[j].QuantumID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// unitVector turns raw term frequencies into a length-normalized TF-IDF
// vector against a corpus of n documents. Callers hold at least a read lock.
func (m *MemoryIndex) unitVector(terms map[string]float64, n int) map[string]float64 {
	total := 0.0
	for _, c := range terms {
		total += c
	}
	if total == 0 {
		return nil
	}

	vec := make(map[string]float64, len(terms))
	norm := 0.0
	for term, count := range terms {
		w := (count / total) * m.idf(term, n)
		vec[term] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}
	for term := range vec {
		vec[term] /= norm
	}
	return vec
}

// idf uses the smoothed form ln((1+n)/(1+df)) + 1, which stays positive for
// every term so a record always ranks first against its own indexed vector.
func (m *MemoryIndex) idf(term string, n int) float64 {
	return math.Log(float64(1+n)/float64(1+m.df[term])) + 1
}

// Package similarity maintains the feature-weighted vector space over
// analyzed land quanta for the LandQuant-Intelligence platform.  Every
// completed analysis is indexed incrementally (no full rebuild); queries
// return the nearest indexed quanta under a TF-IDF weighted cosine
// similarity.  The vector representation is internal — only the Index
// contract is normative — so backends range from the in-memory index in
// this package to the Milvus-backed one in infrastructure/search.
package similarity

import (
	"context"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
)

// Match is one query result: an indexed quantum and its similarity to the
// query record, in descending-similarity order.
type Match struct {
	QuantumID  string  `json:"quantum_id"`
	Similarity float64 `json:"similarity"`
}

// Index is the retriever contract shared by all backends. Implementations
// must serialize updates so a read-after-write query observes a complete
// vector, must replace (never duplicate) the vector on re-index, and must
// answer queries on an empty index with an empty sequence.
type Index interface {
	// Index inserts or replaces the vector for quantumID.
	Index(ctx context.Context, quantumID string, rec *feature.Record) error

	// Query returns the k indexed quanta most similar to rec, ordered by
	// similarity descending, ties broken by quantum id ascending.
	Query(ctx context.Context, rec *feature.Record, k int) ([]Match, error)

	// Remove deletes the vector for quantumID. Removing an unknown id is a
	// no-op.
	Remove(ctx context.Context, quantumID string) error

	// Len reports the number of indexed quanta.
	Len(ctx context.Context) (int, error)
}

package milvus

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Index is the Milvus-backed similarity index. Writes go through Upsert so
// re-indexing a quantum replaces its embedding, and queries run under strong
// consistency so a search immediately after an index call observes the new
// vector.
type Index struct {
	client *Client
	cfg    IndexConfig
	logger logging.Logger
}

var _ similarity.Index = (*Index)(nil)

// NewIndex prepares the embedding collection and returns an index bound to
// it. The collection is created, indexed, and loaded on first use.
func NewIndex(ctx context.Context, c *Client, cfg IndexConfig, logger logging.Logger) (*Index, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	x := &Index{client: c, cfg: cfg, logger: logger}
	if err := x.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

// Index inserts or replaces the embedding for quantumID.
func (x *Index) Index(ctx context.Context, quantumID string, rec *feature.Record) error {
	if quantumID == "" {
		return errors.InvalidParam("quantum id must not be empty")
	}
	if x.client.closed.Load() {
		return ErrClientClosed
	}

	ctx, cancel := x.client.opContext(ctx)
	defer cancel()

	vec := hashEmbedding(similarity.Vectorize(rec), x.cfg.VectorDim)
	cols := []entity.Column{
		entity.NewColumnVarChar(fieldQuantumID, []string{quantumID}),
		entity.NewColumnFloatVector(fieldEmbedding, x.cfg.VectorDim, [][]float32{vec}),
	}
	if _, err := x.client.api.Upsert(ctx, x.cfg.Collection, "", cols...); err != nil {
		return errors.Wrapf(err, errors.ErrCodeIndexUnavailable, "index quantum %s", quantumID)
	}
	return nil
}

// Query returns the k indexed quanta most similar to rec, ordered by
// similarity descending with ties broken by quantum id ascending. A record
// with no terms matches nothing.
func (x *Index) Query(ctx context.Context, rec *feature.Record, k int) ([]similarity.Match, error) {
	if k <= 0 {
		return nil, errors.InvalidParam("query size k must be positive")
	}
	if x.client.closed.Load() {
		return nil, ErrClientClosed
	}

	terms := similarity.Vectorize(rec)
	if len(terms) == 0 {
		return []similarity.Match{}, nil
	}

	sp, err := searchParam(x.cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := x.client.opContext(ctx)
	defer cancel()

	vectors := []entity.Vector{entity.FloatVector(hashEmbedding(terms, x.cfg.VectorDim))}
	results, err := x.client.api.Search(ctx, x.cfg.Collection, nil, "", nil,
		vectors, fieldEmbedding, entity.IP, k, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "similarity search failed")
	}

	matches := make([]similarity.Match, 0, k)
	for _, res := range results {
		for i := 0; i < res.ResultCount; i++ {
			id, err := res.IDs.GetAsString(i)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "decode search hit id")
			}
			score := float64(res.Scores[i])
			if score <= 0 {
				continue
			}
			matches = append(matches, similarity.Match{QuantumID: id, Similarity: score})
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

// Remove deletes the embedding for quantumID. Removing an unknown id is a
// no-op.
func (x *Index) Remove(ctx context.Context, quantumID string) error {
	if quantumID == "" {
		return nil
	}
	if x.client.closed.Load() {
		return ErrClientClosed
	}

	ctx, cancel := x.client.opContext(ctx)
	defer cancel()

	expr := fieldQuantumID + " in [" + strconv.Quote(quantumID) + "]"
	if err := x.client.api.Delete(ctx, x.cfg.Collection, "", expr); err != nil {
		return errors.Wrapf(err, errors.ErrCodeIndexUnavailable, "remove quantum %s", quantumID)
	}
	return nil
}

// Len reports the number of indexed quanta from collection statistics.
// Milvus maintains the row count asynchronously, so the figure can briefly
// lag a just-completed upsert or delete.
func (x *Index) Len(ctx context.Context) (int, error) {
	if x.client.closed.Load() {
		return 0, ErrClientClosed
	}

	ctx, cancel := x.client.opContext(ctx)
	defer cancel()

	stats, err := x.client.api.GetCollectionStatistics(ctx, x.cfg.Collection)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "fetch collection statistics")
	}

	raw, ok := stats["row_count"]
	if !ok {
		return 0, errors.New(errors.ErrCodeIndexQueryFailed, "collection statistics missing row_count")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeIndexQueryFailed, "parse row_count %q", raw)
	}
	return n, nil
}

// hashEmbedding folds a term-frequency vocabulary into a fixed-dimension
// unit vector. Each term lands in the bucket chosen by its 64-bit FNV-1a
// hash and the hash's top bit picks the sign, so colliding terms cancel in
// expectation instead of inflating each other. The result is L2-normalized,
// which makes the inner product of two embeddings their cosine similarity.
func hashEmbedding(terms map[string]float64, dim int) []float32 {
	vec := make([]float32, dim)
	for term, weight := range terms {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		i := int(sum % uint64(dim))
		if sum>>63 == 1 {
			vec[i] -= float32(weight)
		} else {
			vec[i] += float32(weight)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Collection field names. The schema is deliberately minimal: the primary
// key is the quantum id and the only payload is its embedding. Everything
// else about a quantum lives in PostgreSQL.
const (
	fieldQuantumID = "quantum_id"
	fieldEmbedding = "embedding"

	quantumIDMaxLength = "64"
)

// Supported vector index types.
const (
	IndexTypeFlat    = "FLAT"
	IndexTypeIvfFlat = "IVF_FLAT"
	IndexTypeHNSW    = "HNSW"
)

// IndexConfig holds collection and search-tuning parameters for the vector
// index.
type IndexConfig struct {
	Collection string `mapstructure:"collection"`
	VectorDim  int    `mapstructure:"vector_dim"`
	IndexType  string `mapstructure:"index_type"`
	NList      int    `mapstructure:"nlist"`
	NProbe     int    `mapstructure:"nprobe"`
	ShardsNum  int32  `mapstructure:"shards_num"`
}

func (c *IndexConfig) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "land_quanta"
	}
	if c.VectorDim <= 0 {
		c.VectorDim = 256
	}
	if c.IndexType == "" {
		c.IndexType = IndexTypeIvfFlat
	}
	if c.NList <= 0 {
		c.NList = 128
	}
	if c.NProbe <= 0 {
		c.NProbe = 16
	}
	if c.ShardsNum <= 0 {
		c.ShardsNum = 1
	}
}

func (c *IndexConfig) validate() error {
	switch c.IndexType {
	case IndexTypeFlat, IndexTypeIvfFlat, IndexTypeHNSW:
		return nil
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid, "unsupported vector index type %q", c.IndexType)
	}
}

// collectionSchema describes the quantum embedding collection.
func collectionSchema(cfg IndexConfig) *entity.Schema {
	return &entity.Schema{
		CollectionName: cfg.Collection,
		Description:    "land quantum feature embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldQuantumID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": quantumIDMaxLength},
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(cfg.VectorDim)},
			},
		},
	}
}

// vectorIndex builds the ANN index for the embedding field. All index types
// use the inner-product metric: embeddings are unit length, so inner product
// and cosine similarity coincide.
func vectorIndex(cfg IndexConfig) (entity.Index, error) {
	switch cfg.IndexType {
	case IndexTypeFlat:
		return entity.NewIndexFlat(entity.IP)
	case IndexTypeIvfFlat:
		return entity.NewIndexIvfFlat(entity.IP, cfg.NList)
	case IndexTypeHNSW:
		return entity.NewIndexHNSW(entity.IP, 16, 200)
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unsupported vector index type %q", cfg.IndexType)
	}
}

// searchParam builds the query-time parameters matching the index type.
func searchParam(cfg IndexConfig) (entity.SearchParam, error) {
	switch cfg.IndexType {
	case IndexTypeFlat:
		return entity.NewIndexFlatSearchParam()
	case IndexTypeIvfFlat:
		return entity.NewIndexIvfFlatSearchParam(cfg.NProbe)
	case IndexTypeHNSW:
		return entity.NewIndexHNSWSearchParam(64)
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unsupported vector index type %q", cfg.IndexType)
	}
}

// ensureCollection creates, indexes, and loads the collection on first use.
// An existing collection is assumed to carry its index already and is only
// loaded.
func (x *Index) ensureCollection(ctx context.Context) error {
	api := x.client.api

	has, err := api.HasCollection(ctx, x.cfg.Collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "check vector collection")
	}

	if !has {
		if err := api.CreateCollection(ctx, collectionSchema(x.cfg), x.cfg.ShardsNum); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "create vector collection")
		}
		idx, err := vectorIndex(x.cfg)
		if err != nil {
			return err
		}
		if err := api.CreateIndex(ctx, x.cfg.Collection, fieldEmbedding, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "create vector index")
		}
		x.logger.Info("vector collection created",
			logging.String("collection", x.cfg.Collection),
			logging.Int("dim", x.cfg.VectorDim),
			logging.String("index_type", x.cfg.IndexType))
	}

	if err := api.LoadCollection(ctx, x.cfg.Collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "load vector collection")
	}
	return nil
}

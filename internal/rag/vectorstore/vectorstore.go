package vectorstore

import (
	"context"
	"sort"
	"strings"

	"Hermes_RAG/internal/rag/schema"
)

const (
	// FieldTags is the metadata key holding the raw tag list of a record.
	FieldTags = "tags"
	// FieldTagsKey is the metadata key holding the canonical tag key used
	// for exact-match filtering.
	FieldTagsKey = "tags_key"
)

// TagKey derives the canonical, order-independent key of a tag set: the
// tags sorted lexicographically and joined with "|". Every permutation of
// the same tags yields the same key.
func TagKey(tags []string) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// VectorDB is the contract every vector store backend implements. Record
// ids are assigned by the caller; the store upserts by id and never
// deduplicates.
type VectorDB interface {
	// CreateCollection ensures the collection exists with the given vector
	// dimensionality. With doReset, an existing collection is dropped and
	// recreated empty.
	CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) error

	// DeleteCollection drops the collection. Returns false when it did not
	// exist.
	DeleteCollection(ctx context.Context, name string) (bool, error)

	// DeleteByTags removes only records whose tag key equals the key
	// derived from tags. Returns false when the collection did not exist.
	DeleteByTags(ctx context.Context, name string, tags []string) (bool, error)

	// InsertMany upserts a batch of records by id.
	InsertMany(ctx context.Context, name string, texts []string, metadata []map[string]interface{}, vectors [][]float32, ids []int64) error

	// SearchByVector returns up to limit records ranked by descending
	// relevance in the store's native order.
	SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]*schema.RetrievedDocument, error)

	// SearchByVectorWithFilter is SearchByVector restricted to records
	// whose tag key exactly equals the key derived from tags. An empty tag
	// list applies no filter.
	SearchByVectorWithFilter(ctx context.Context, name string, vector []float32, limit int, tags []string) ([]*schema.RetrievedDocument, error)

	// GetCollectionInfo reports the collection's stats.
	GetCollectionInfo(ctx context.Context, name string) (*schema.CollectionInfo, error)
}

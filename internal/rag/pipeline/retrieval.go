package pipeline

import (
	"context"
	"fmt"
	"time"

	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/rag/schema"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/pkg/logger"
	"Hermes_RAG/pkg/util"
)

// Retriever embeds a query and runs a similarity search against a vector
// collection. A nil, error-free result is the sentinel for "no results";
// callers branch on it rather than on a dedicated error type.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.VectorDB
	log      logger.Logger
	cache    *util.LRUCache[string, []float32]
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder embedding.Embedder, store vectorstore.VectorDB, log logger.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

// EnableQueryCache caches query vectors so that repeated questions skip
// the embedding backend. Must be called before the Retriever is shared
// across goroutines.
func (r *Retriever) EnableQueryCache(capacity int, ttl time.Duration) error {
	cache, err := util.NewWithConfig(util.CacheConfig[string, []float32]{
		Capacity: capacity,
		TTL:      ttl,
	})
	if err != nil {
		return err
	}
	r.cache = cache
	return nil
}

// Search runs a similarity search in the given project collection. The
// query is embedded as a single-item QUERY-kind batch; document and query
// embeddings must never be mixed across indexing and retrieval.
func (r *Retriever) Search(ctx context.Context, collection, text string, limit int) ([]*schema.RetrievedDocument, error) {
	vector, err := r.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		return nil, nil
	}

	results, err := r.store.SearchByVector(ctx, collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}
	if len(results) == 0 {
		r.log.Info(fmt.Sprintf("No documents found in collection %s for the given query.", collection))
		return nil, nil
	}
	return results, nil
}

// SearchWithTags runs a similarity search in the shared collection. A
// non-empty tag list restricts results to records whose tag key exactly
// equals the key derived from tags; partial overlap never matches.
func (r *Retriever) SearchWithTags(ctx context.Context, text string, tags []string, limit int) ([]*schema.RetrievedDocument, error) {
	vector, err := r.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		return nil, nil
	}

	results, err := r.store.SearchByVectorWithFilter(ctx, SharedCollectionName, vector, limit, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", SharedCollectionName, err)
	}
	if len(results) == 0 {
		r.log.Info(fmt.Sprintf("No documents found in collection %s for the given query.", SharedCollectionName))
		return nil, nil
	}
	return results, nil
}

// embedQuery embeds the query text, mapping an empty or missing vector to
// the nil sentinel instead of an error.
func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if r.cache != nil {
		if vector, ok := r.cache.Get(text); ok {
			return vector, nil
		}
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{text}, embedding.KindQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		r.log.Warn("Embedding backend returned an empty query vector.")
		return nil, nil
	}

	if r.cache != nil {
		r.cache.Put(text, vectors[0])
	}
	return vectors[0], nil
}

package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"Hermes_RAG/internal/rag/schema"
)

// MemoryStore is a thread-safe, in-memory implementation of the VectorDB
// interface. It is used in tests and as a lightweight development backend;
// ranking is cosine similarity in descending order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim     int
	records map[int64]*memoryRecord
	order   []int64 // insertion order, for stable ranking of score ties
}

type memoryRecord struct {
	id       int64
	text     string
	metadata map[string]interface{}
	tagsKey  string
	vector   []float32
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// CreateCollection ensures the collection exists, dropping any existing
// records first when doReset is set.
func (s *MemoryStore) CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coll, ok := s.collections[name]; ok && !doReset {
		if coll.dim != embeddingSize {
			return fmt.Errorf("collection %s exists with dimension %d, requested %d", name, coll.dim, embeddingSize)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{
		dim:     embeddingSize,
		records: make(map[int64]*memoryRecord),
	}
	return nil
}

// DeleteCollection drops the collection, reporting false when it was absent.
func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return false, nil
	}
	delete(s.collections, name)
	return true, nil
}

// DeleteByTags removes only records whose tag key equals the key derived
// from tags.
func (s *MemoryStore) DeleteByTags(ctx context.Context, name string, tags []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		return false, nil
	}

	key := TagKey(tags)
	kept := coll.order[:0]
	for _, id := range coll.order {
		rec := coll.records[id]
		if rec.tagsKey == key {
			delete(coll.records, id)
			continue
		}
		kept = append(kept, id)
	}
	coll.order = kept
	return true, nil
}

// InsertMany upserts a batch of records by caller-assigned id.
func (s *MemoryStore) InsertMany(ctx context.Context, name string, texts []string, metadata []map[string]interface{}, vectors [][]float32, ids []int64) error {
	if len(texts) != len(vectors) || len(texts) != len(ids) || len(texts) != len(metadata) {
		return fmt.Errorf("mismatched batch sizes: %d texts, %d metadata, %d vectors, %d ids",
			len(texts), len(metadata), len(vectors), len(ids))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}

	for i := range texts {
		if len(vectors[i]) != coll.dim {
			return fmt.Errorf("record %d has dimension %d, collection %s expects %d", ids[i], len(vectors[i]), name, coll.dim)
		}
		md := metadata[i]
		if md == nil {
			md = map[string]interface{}{}
		}
		tagsKey, _ := md[FieldTagsKey].(string)

		if _, exists := coll.records[ids[i]]; !exists {
			coll.order = append(coll.order, ids[i])
		}
		coll.records[ids[i]] = &memoryRecord{
			id:       ids[i],
			text:     texts[i],
			metadata: md,
			tagsKey:  tagsKey,
			vector:   vectors[i],
		}
	}
	return nil
}

// SearchByVector performs an unfiltered similarity search.
func (s *MemoryStore) SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]*schema.RetrievedDocument, error) {
	return s.search(name, vector, limit, nil)
}

// SearchByVectorWithFilter restricts the search to records whose tag key
// exactly equals the key derived from tags. An empty tag list applies no
// filter.
func (s *MemoryStore) SearchByVectorWithFilter(ctx context.Context, name string, vector []float32, limit int, tags []string) ([]*schema.RetrievedDocument, error) {
	if len(tags) == 0 {
		return s.search(name, vector, limit, nil)
	}
	key := TagKey(tags)
	return s.search(name, vector, limit, &key)
}

func (s *MemoryStore) search(name string, vector []float32, limit int, tagsKey *string) ([]*schema.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}

	type scored struct {
		rec   *memoryRecord
		score float32
	}
	var candidates []scored
	for _, id := range coll.order {
		rec := coll.records[id]
		if tagsKey != nil && rec.tagsKey != *tagsKey {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: cosineSimilarity(vector, rec.vector)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]*schema.RetrievedDocument, 0, len(candidates))
	for _, c := range candidates {
		md := make(map[string]interface{}, len(c.rec.metadata))
		for k, v := range c.rec.metadata {
			md[k] = v
		}
		results = append(results, &schema.RetrievedDocument{
			Text:     c.rec.text,
			Score:    c.score,
			Metadata: md,
		})
	}
	return results, nil
}

// GetCollectionInfo reports the collection's row count.
func (s *MemoryStore) GetCollectionInfo(ctx context.Context, name string) (*schema.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	return &schema.CollectionInfo{
		Name:     name,
		RowCount: int64(len(coll.records)),
	}, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// compile-time check to ensure MemoryStore implements the VectorDB interface
var _ VectorDB = (*MemoryStore)(nil)

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"Hermes_RAG/internal/database/milvus"
	"Hermes_RAG/internal/rag/schema"
	"Hermes_RAG/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// Schema fields of every collection managed by this store.
	fieldRecordID  = "record_id"
	fieldText      = "text"
	fieldMetadata  = "metadata"
	fieldTagsKey   = "tags_key"
	fieldEmbedding = "embedding"

	textMaxLength    = 65535
	tagsKeyMaxLength = 512
)

// MilvusStore implements VectorDB on top of the shared Milvus client
// wrapper. Each namespace maps to one Milvus collection; the tag key is
// kept in a dedicated scalar field so exact-match filter expressions stay
// cheap.
type MilvusStore struct {
	log    logger.Logger
	client client.Client
}

// NewMilvusStore creates a new MilvusStore adapter.
func NewMilvusStore(milvusClient *milvus.MilvusClient, log logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{log: log, client: milvusClient.Client}, nil
}

// CreateCollection ensures the collection exists with the given embedding
// dimensionality and loads it for search. With doReset an existing
// collection is dropped first.
func (s *MilvusStore) CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if has && doReset {
		s.log.Info(fmt.Sprintf("Resetting Milvus collection: %s", name))
		if err := s.client.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		has = false
	}

	if !has {
		collSchema := entity.NewSchema().
			WithName(name).
			WithField(entity.NewField().WithName(fieldRecordID).WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(textMaxLength)).
			WithField(entity.NewField().WithName(fieldMetadata).WithDataType(entity.FieldTypeJSON)).
			WithField(entity.NewField().WithName(fieldTagsKey).WithDataType(entity.FieldTypeVarChar).WithMaxLength(tagsKeyMaxLength)).
			WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(embeddingSize)))

		if err := s.client.CreateCollection(ctx, collSchema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 96)
		if err != nil {
			return fmt.Errorf("failed to build HNSW index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}

	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops the collection, reporting false when it was
// absent.
func (s *MilvusStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		return false, nil
	}
	if err := s.client.DropCollection(ctx, name); err != nil {
		return false, fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return true, nil
}

// DeleteByTags removes only the records whose tag key equals the key
// derived from tags.
func (s *MilvusStore) DeleteByTags(ctx context.Context, name string, tags []string) (bool, error) {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		return false, nil
	}

	expr := tagsKeyExpr(TagKey(tags))
	s.log.Info(fmt.Sprintf("Deleting from Milvus collection '%s' with expr: %s", name, expr))
	if err := s.client.Delete(ctx, name, "" /* default partition */, expr); err != nil {
		return false, fmt.Errorf("failed to delete by tags from %s: %w", name, err)
	}
	return true, nil
}

// InsertMany upserts a batch of records by caller-assigned id.
func (s *MilvusStore) InsertMany(ctx context.Context, name string, texts []string, metadata []map[string]interface{}, vectors [][]float32, ids []int64) error {
	if len(texts) != len(vectors) || len(texts) != len(ids) || len(texts) != len(metadata) {
		return fmt.Errorf("mismatched batch sizes: %d texts, %d metadata, %d vectors, %d ids",
			len(texts), len(metadata), len(vectors), len(ids))
	}
	if len(texts) == 0 {
		return nil
	}

	tagsKeys := make([]string, len(metadata))
	metadataJSON := make([][]byte, len(metadata))
	for i, md := range metadata {
		if md == nil {
			md = map[string]interface{}{}
		}
		if key, ok := md[FieldTagsKey].(string); ok {
			tagsKeys[i] = key
		}
		data, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for record %d: %w", ids[i], err)
		}
		metadataJSON[i] = data
	}

	dim := len(vectors[0])
	idCol := entity.NewColumnInt64(fieldRecordID, ids)
	textCol := entity.NewColumnVarChar(fieldText, texts)
	metadataCol := entity.NewColumnJSONBytes(fieldMetadata, metadataJSON)
	tagsKeyCol := entity.NewColumnVarChar(fieldTagsKey, tagsKeys)
	embeddingCol := entity.NewColumnFloatVector(fieldEmbedding, dim, vectors)

	s.log.Info(fmt.Sprintf("Inserting %d records into Milvus collection: %s", len(texts), name))
	if _, err := s.client.Upsert(ctx, name, "" /* default partition */, idCol, textCol, metadataCol, tagsKeyCol, embeddingCol); err != nil {
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}

	if err := s.client.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("failed to flush collection %s: %w", name, err)
	}
	return nil
}

// SearchByVector performs an unfiltered similarity search.
func (s *MilvusStore) SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]*schema.RetrievedDocument, error) {
	return s.search(ctx, name, vector, limit, "")
}

// SearchByVectorWithFilter restricts the search to records whose tag key
// exactly equals the key derived from tags.
func (s *MilvusStore) SearchByVectorWithFilter(ctx context.Context, name string, vector []float32, limit int, tags []string) ([]*schema.RetrievedDocument, error) {
	expr := ""
	if len(tags) > 0 {
		expr = tagsKeyExpr(TagKey(tags))
	}
	return s.search(ctx, name, vector, limit, expr)
}

func (s *MilvusStore) search(ctx context.Context, name string, vector []float32, limit int, expr string) ([]*schema.RetrievedDocument, error) {
	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	s.log.Debug(fmt.Sprintf("Querying Milvus collection '%s' with filter: '%s'", name, expr))
	searchResults, err := s.client.Search(
		ctx, name, []string{}, expr,
		[]string{fieldText, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding, entity.COSINE, limit, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var results []*schema.RetrievedDocument
	for _, res := range searchResults {
		findColumn := func(colName string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == colName {
					return field
				}
			}
			return nil
		}

		textCol, ok := findColumn(fieldText).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result is missing text field or has wrong type, skipping.")
			continue
		}
		textData := textCol.Data()

		var metadataData [][]byte
		if metadataCol, ok := findColumn(fieldMetadata).(*entity.ColumnJSONBytes); ok {
			metadataData = metadataCol.Data()
		}

		for i := 0; i < res.ResultCount && i < len(textData); i++ {
			doc := &schema.RetrievedDocument{
				Text:  textData[i],
				Score: res.Scores[i],
			}
			if metadataData != nil && i < len(metadataData) {
				md := map[string]interface{}{}
				if err := json.Unmarshal(metadataData[i], &md); err == nil {
					doc.Metadata = md
				}
			}
			results = append(results, doc)
		}
	}

	return results, nil
}

// GetCollectionInfo reports the collection's row count and raw statistics.
func (s *MilvusStore) GetCollectionInfo(ctx context.Context, name string) (*schema.CollectionInfo, error) {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}

	stats, err := s.client.GetCollectionStatistics(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics for %s: %w", name, err)
	}

	info := &schema.CollectionInfo{Name: name, Stats: stats}
	if rc, ok := stats["row_count"]; ok {
		if n, err := strconv.ParseInt(rc, 10, 64); err == nil {
			info.RowCount = n
		}
	}
	return info, nil
}

// tagsKeyExpr builds the exact-match filter expression for a tag key.
func tagsKeyExpr(key string) string {
	escaped := strings.ReplaceAll(key, `"`, `\"`)
	return fmt.Sprintf(`%s == "%s"`, fieldTagsKey, escaped)
}

// compile-time check to ensure MilvusStore implements the VectorDB interface
var _ VectorDB = (*MilvusStore)(nil)

package pipeline

import (
	"context"
	"fmt"

	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/pkg/logger"
)

// IndexingPipeline embeds chunk pages and upserts them into a vector
// collection. Pagination is the caller's concern: the pipeline processes
// one page per call and expects the caller to assign a disjoint, ascending
// record-id range across pages.
type IndexingPipeline struct {
	embedder embedding.Embedder
	store    vectorstore.VectorDB
	log      logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline.
func NewIndexingPipeline(embedder embedding.Embedder, store vectorstore.VectorDB, log logger.Logger) *IndexingPipeline {
	return &IndexingPipeline{
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

// Index writes one page of chunks into the project collection. With
// doReset, the entire collection is dropped and recreated before the page
// is written. Any failure aborts the whole page.
func (p *IndexingPipeline) Index(ctx context.Context, collection string, chunks []models.DataChunk, recordIDs []int64, doReset bool) error {
	if err := validateBatch(chunks, recordIDs); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := p.store.CreateCollection(ctx, collection, p.embedder.Size(), doReset); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	texts := make([]string, len(chunks))
	metadata := make([]map[string]interface{}, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		metadata[i] = chunk.Metadata
	}

	// One batched embedding call per page bounds the request count against
	// the embedding backend.
	vectors, err := p.embedder.EmbedBatch(ctx, texts, embedding.KindDocument)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := p.store.InsertMany(ctx, collection, texts, metadata, vectors, recordIDs); err != nil {
		return fmt.Errorf("failed to insert into collection %s: %w", collection, err)
	}

	p.log.Info(fmt.Sprintf("Indexed %d chunks into collection %s", len(chunks), collection))
	return nil
}

// IndexWithTags writes one page of chunks into the shared collection,
// stamping each record with the tag set and its canonical tag key. The
// shared collection is never fully reset; with doReset only records under
// the exact same tag key are deleted first.
func (p *IndexingPipeline) IndexWithTags(ctx context.Context, chunks []models.DataChunk, recordIDs []int64, tags []string, doReset bool) error {
	if err := validateBatch(chunks, recordIDs); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := p.store.CreateCollection(ctx, SharedCollectionName, p.embedder.Size(), false); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", SharedCollectionName, err)
	}

	if doReset {
		if _, err := p.store.DeleteByTags(ctx, SharedCollectionName, tags); err != nil {
			return fmt.Errorf("failed to delete records by tags: %w", err)
		}
	}

	tagsKey := vectorstore.TagKey(tags)
	texts := make([]string, len(chunks))
	metadata := make([]map[string]interface{}, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		// Chunk metadata is layered under the derived fields, so tags and
		// tags_key always win on key collision.
		md := make(map[string]interface{}, len(chunk.Metadata)+2)
		for k, v := range chunk.Metadata {
			md[k] = v
		}
		md[vectorstore.FieldTags] = tags
		md[vectorstore.FieldTagsKey] = tagsKey
		metadata[i] = md
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts, embedding.KindDocument)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := p.store.InsertMany(ctx, SharedCollectionName, texts, metadata, vectors, recordIDs); err != nil {
		return fmt.Errorf("failed to insert into collection %s: %w", SharedCollectionName, err)
	}

	p.log.Info(fmt.Sprintf("Indexed %d chunks into collection %s with tags_key %q", len(chunks), SharedCollectionName, tagsKey))
	return nil
}

// validateBatch enforces the per-call preconditions: chunk and id counts
// match, and every id is unique within the call.
func validateBatch(chunks []models.DataChunk, recordIDs []int64) error {
	if len(chunks) != len(recordIDs) {
		return fmt.Errorf("mismatch between number of chunks (%d) and record ids (%d)", len(chunks), len(recordIDs))
	}
	seen := make(map[int64]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate record id %d in batch", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

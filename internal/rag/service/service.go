package service

import (
	"context"
	"fmt"
	"sync"

	"Hermes_RAG/internal/database/kafka"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/pipeline"
	"Hermes_RAG/internal/rag/schema"
	"Hermes_RAG/internal/rag/store"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/pkg/logger"
)

// Service wires the chunk source, the indexing and answer pipelines and
// the vector store into the outward operations consumed by the HTTP
// layer. Index and reset runs against the same collection are serialised
// through a per-collection lock; searches run lock-free.
type Service struct {
	log       logger.Logger
	chunks    store.ChunkStore
	vectors   vectorstore.VectorDB
	indexer   *pipeline.IndexingPipeline
	retriever *pipeline.Retriever
	answers   *pipeline.AnswerPipeline
	publisher *kafka.IndexEventPublisher
	pageSize  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new Service. publisher may be nil, which disables
// index event publishing.
func NewService(log logger.Logger, chunks store.ChunkStore, vectors vectorstore.VectorDB, indexer *pipeline.IndexingPipeline, retriever *pipeline.Retriever, answers *pipeline.AnswerPipeline, publisher *kafka.IndexEventPublisher, pageSize int) *Service {
	return &Service{
		log:       log,
		chunks:    chunks,
		vectors:   vectors,
		indexer:   indexer,
		retriever: retriever,
		answers:   answers,
		publisher: publisher,
		pageSize:  pageSize,
		locks:     make(map[string]*sync.Mutex),
	}
}

// collectionLock returns the lock guarding writes to one collection.
func (s *Service) collectionLock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[collection]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[collection] = lock
	}
	return lock
}

// PushProject indexes the whole chunk source of a project into its own
// collection, page by page. Record ids form one dense ascending range
// across pages, so re-pushing the same source overwrites the same ids. A
// page failure aborts the run and the count of chunks already indexed is
// returned alongside the error.
func (s *Service) PushProject(ctx context.Context, projectID string, doReset bool) (int, error) {
	project, err := s.chunks.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}

	collection := pipeline.CollectionName(project.ProjectID)
	lock := s.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	inserted := 0
	pageNo := 1
	for {
		page, err := s.chunks.GetProjectChunks(ctx, project.ProjectID, pageNo, s.pageSize)
		if err != nil {
			return inserted, fmt.Errorf("failed to read chunk page %d: %w", pageNo, err)
		}
		if len(page) == 0 {
			break
		}

		// The full reset happens with the first page only; later pages
		// append into the freshly rebuilt collection.
		resetPage := doReset && pageNo == 1
		if err := s.indexer.Index(ctx, collection, chunkValues(page), recordIDRange(inserted, len(page)), resetPage); err != nil {
			return inserted, err
		}
		inserted += len(page)
		pageNo++
	}

	s.publishIndexEvent(ctx, &kafka.IndexEvent{
		ProjectID:  project.ProjectID,
		Collection: collection,
		Inserted:   inserted,
		Reset:      doReset,
	})
	return inserted, nil
}

// PushTagged indexes the chunk source of a project into the shared
// collection under the given tag set. With doReset only records carrying
// the exact same tag key are replaced; the shared collection itself is
// never dropped.
func (s *Service) PushTagged(ctx context.Context, projectID string, tags []string, doReset bool) (int, error) {
	project, err := s.chunks.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}

	lock := s.collectionLock(pipeline.SharedCollectionName)
	lock.Lock()
	defer lock.Unlock()

	inserted := 0
	pageNo := 1
	for {
		page, err := s.chunks.GetProjectChunks(ctx, project.ProjectID, pageNo, s.pageSize)
		if err != nil {
			return inserted, fmt.Errorf("failed to read chunk page %d: %w", pageNo, err)
		}
		if len(page) == 0 {
			break
		}

		resetPage := doReset && pageNo == 1
		if err := s.indexer.IndexWithTags(ctx, chunkValues(page), recordIDRange(inserted, len(page)), tags, resetPage); err != nil {
			return inserted, err
		}
		inserted += len(page)
		pageNo++
	}

	s.publishIndexEvent(ctx, &kafka.IndexEvent{
		ProjectID:  project.ProjectID,
		Collection: pipeline.SharedCollectionName,
		Tags:       tags,
		Inserted:   inserted,
		Reset:      doReset,
	})
	return inserted, nil
}

// CollectionInfo reports name and row count of a project's collection.
func (s *Service) CollectionInfo(ctx context.Context, projectID string) (*schema.CollectionInfo, error) {
	return s.vectors.GetCollectionInfo(ctx, pipeline.CollectionName(projectID))
}

// ResetCollection drops a project's collection entirely, reporting
// whether it existed.
func (s *Service) ResetCollection(ctx context.Context, projectID string) (bool, error) {
	collection := pipeline.CollectionName(projectID)
	lock := s.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	return s.vectors.DeleteCollection(ctx, collection)
}

// Search runs a similarity search in a project's collection.
func (s *Service) Search(ctx context.Context, projectID, text string, limit int) ([]*schema.RetrievedDocument, error) {
	return s.retriever.Search(ctx, pipeline.CollectionName(projectID), text, limit)
}

// SearchTagged runs a similarity search in the shared collection.
func (s *Service) SearchTagged(ctx context.Context, text string, tags []string, limit int) ([]*schema.RetrievedDocument, error) {
	return s.retriever.SearchWithTags(ctx, text, tags, limit)
}

// Answer runs a single-turn answer against a project's collection.
func (s *Service) Answer(ctx context.Context, projectID, query string, limit int) (*schema.AnswerResult, error) {
	return s.answers.Answer(ctx, pipeline.CollectionName(projectID), query, limit)
}

// AnswerTagged runs a single-turn answer against the shared collection.
func (s *Service) AnswerTagged(ctx context.Context, query string, tags []string, limit int) (*schema.AnswerResult, error) {
	return s.answers.AnswerWithTags(ctx, query, tags, limit)
}

// AnswerWithHistory runs a conversational answer against a project's
// collection.
func (s *Service) AnswerWithHistory(ctx context.Context, projectID, query string, chatHistory []models.ChatMessage, sessionEntities []string, limit int) (*schema.ChatAnswerResult, error) {
	return s.answers.AnswerWithHistory(ctx, pipeline.CollectionName(projectID), query, chatHistory, sessionEntities, limit)
}

// AnswerTaggedWithHistory runs a conversational answer against the
// shared collection.
func (s *Service) AnswerTaggedWithHistory(ctx context.Context, query string, tags []string, chatHistory []models.ChatMessage, sessionEntities []string, limit int) (*schema.ChatAnswerResult, error) {
	return s.answers.AnswerWithTagsAndHistory(ctx, query, tags, chatHistory, sessionEntities, limit)
}

func (s *Service) publishIndexEvent(ctx context.Context, event *kafka.IndexEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn(fmt.Sprintf("Failed to publish index event for %s: %v", event.Collection, err))
	}
}

// chunkValues converts a page of chunk pointers into the value slice the
// indexing pipeline consumes.
func chunkValues(page []*models.DataChunk) []models.DataChunk {
	out := make([]models.DataChunk, len(page))
	for i, chunk := range page {
		out[i] = *chunk
	}
	return out
}

// recordIDRange allocates the next len consecutive record ids starting at
// offset.
func recordIDRange(offset, length int) []int64 {
	ids := make([]int64, length)
	for i := range ids {
		ids[i] = int64(offset + i)
	}
	return ids
}

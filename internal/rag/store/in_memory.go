package store

import (
	"Hermes_RAG/internal/models"
	"context"
	"sort"
	"sync"
)

// InMemoryChunkStore is a thread-safe, in-memory implementation of the
// ChunkStore interface, used in tests and as a development backend.
type InMemoryChunkStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project
	chunks   map[string][]*models.DataChunk
}

// NewInMemoryChunkStore creates a new instance of InMemoryChunkStore.
func NewInMemoryChunkStore() *InMemoryChunkStore {
	return &InMemoryChunkStore{
		projects: make(map[string]*models.Project),
		chunks:   make(map[string][]*models.DataChunk),
	}
}

// GetOrCreateProject returns the project record, creating it on first use.
func (s *InMemoryChunkStore) GetOrCreateProject(ctx context.Context, projectID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project, ok := s.projects[projectID]; ok {
		return project, nil
	}
	project := &models.Project{ProjectID: projectID}
	s.projects[projectID] = project
	return project, nil
}

// GetProjectChunks retrieves one page of a project's chunks, sorted by
// chunk order ascending.
func (s *InMemoryChunkStore) GetProjectChunks(ctx context.Context, projectID string, pageNo, pageSize int) ([]*models.DataChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pageNo < 1 {
		pageNo = 1
	}
	all := s.chunks[projectID]
	start := (pageNo - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	page := make([]*models.DataChunk, end-start)
	copy(page, all[start:end])
	return page, nil
}

// InsertChunks appends chunks to a project, keeping the project's chunk
// list sorted by chunk order.
func (s *InMemoryChunkStore) InsertChunks(ctx context.Context, projectID string, chunks []*models.DataChunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks[projectID] = append(s.chunks[projectID], chunks...)
	sort.SliceStable(s.chunks[projectID], func(i, j int) bool {
		return s.chunks[projectID][i].Order < s.chunks[projectID][j].Order
	})
	return len(chunks), nil
}

// DeleteProjectChunks removes all chunks of a project.
func (s *InMemoryChunkStore) DeleteProjectChunks(ctx context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.chunks[projectID]))
	delete(s.chunks, projectID)
	return count, nil
}

// compile-time check to ensure both implementations satisfy ChunkStore
var (
	_ ChunkStore = (*MongoChunkStore)(nil)
	_ ChunkStore = (*InMemoryChunkStore)(nil)
)

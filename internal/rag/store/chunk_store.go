package store

import (
	"Hermes_RAG/internal/models"
	"context"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChunkStore defines the interface for project and chunk persistence.
// Chunk pages are 1-based and sorted by chunk order, so repeated reads of
// the same page are stable.
type ChunkStore interface {
	GetOrCreateProject(ctx context.Context, projectID string) (*models.Project, error)
	GetProjectChunks(ctx context.Context, projectID string, pageNo, pageSize int) ([]*models.DataChunk, error)
	InsertChunks(ctx context.Context, projectID string, chunks []*models.DataChunk) (int, error)
	DeleteProjectChunks(ctx context.Context, projectID string) (int64, error)
}

// MongoChunkStore is an implementation of ChunkStore using MongoDB.
type MongoChunkStore struct {
	projects *mongo.Collection
	chunks   *mongo.Collection
}

// chunkDocument is the persisted shape of a chunk, keyed to its project.
type chunkDocument struct {
	ProjectID string                 `bson:"project_id"`
	Text      string                 `bson:"chunk_text"`
	Metadata  map[string]interface{} `bson:"chunk_metadata"`
	Order     int                    `bson:"chunk_order"`
}

// NewMongoChunkStore creates a new MongoChunkStore.
func NewMongoChunkStore(db *mongo.Database) *MongoChunkStore {
	return &MongoChunkStore{
		projects: db.Collection("projects"),
		chunks:   db.Collection("chunks"),
	}
}

// GetOrCreateProject returns the project record, creating it on first use.
func (s *MongoChunkStore) GetOrCreateProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	err := s.projects.FindOne(ctx, bson.M{"project_id": projectID}).Decode(&project)
	if err == nil {
		return &project, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	project = models.Project{ProjectID: projectID}
	if _, err := s.projects.InsertOne(ctx, project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjectChunks retrieves one page of a project's chunks, sorted by
// chunk order ascending. An empty result marks the end of the data set.
func (s *MongoChunkStore) GetProjectChunks(ctx context.Context, projectID string, pageNo, pageSize int) ([]*models.DataChunk, error) {
	if pageNo < 1 {
		pageNo = 1
	}
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "chunk_order", Value: 1}})
	opts.SetSkip(int64((pageNo - 1) * pageSize))
	opts.SetLimit(int64(pageSize))

	cursor, err := s.chunks.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chunkDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	chunks := make([]*models.DataChunk, len(docs))
	for i, doc := range docs {
		chunks[i] = &models.DataChunk{
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Order:    doc.Order,
		}
	}
	return chunks, nil
}

// InsertChunks appends chunks to a project and returns the inserted count.
func (s *MongoChunkStore) InsertChunks(ctx context.Context, projectID string, chunks []*models.DataChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunkDocument{
			ProjectID: projectID,
			Text:      chunk.Text,
			Metadata:  chunk.Metadata,
			Order:     chunk.Order,
		}
	}
	res, err := s.chunks.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

// DeleteProjectChunks removes all chunks of a project.
func (s *MongoChunkStore) DeleteProjectChunks(ctx context.Context, projectID string) (int64, error) {
	res, err := s.chunks.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

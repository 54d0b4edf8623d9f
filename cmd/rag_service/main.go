package main

import (
	"Hermes_RAG/internal/config"
	"Hermes_RAG/internal/database/kafka"
	"Hermes_RAG/internal/database/milvus"
	"Hermes_RAG/internal/database/mongo"
	"Hermes_RAG/internal/database/redis"
	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/rag/api"
	"Hermes_RAG/internal/rag/pipeline"
	"Hermes_RAG/internal/rag/service"
	"Hermes_RAG/internal/rag/session"
	"Hermes_RAG/internal/rag/store"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
	"Hermes_RAG/pkg/ratelimiter"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("RagService", "")

	// Connect to MongoDB (chunk and project source)
	db, err := mongo.GetDatabase(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.Fatal("Failed to connect to MongoDB: " + err.Error())
	}
	chunkStore := store.NewMongoChunkStore(db)

	// Vector store backend
	var vectors vectorstore.VectorDB
	switch cfg.RAG.VectorDBProvider {
	case "memory":
		vectors = vectorstore.NewMemoryStore()
	default:
		milvusClient, err := milvus.GetClient(context.Background(), &cfg.Databases.Milvus)
		if err != nil {
			serviceLogger.Fatal("Failed to connect to Milvus: " + err.Error())
		}
		vectors, err = vectorstore.NewMilvusStore(milvusClient, serviceLogger)
		if err != nil {
			serviceLogger.Fatal("Failed to create vector store: " + err.Error())
		}
	}

	// Session state backend; falls back to in-memory when Redis is off
	var sessions session.Store
	if cfg.Databases.Redis.Enabled {
		redisClient, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			serviceLogger.Fatal("Failed to connect to Redis: " + err.Error())
		}
		sessions = session.NewRedisStore(redisClient, time.Duration(cfg.RAG.SessionTTLSeconds)*time.Second)
	} else {
		sessions = session.NewInMemoryStore()
	}

	// Optional index event publishing
	var publisher *kafka.IndexEventPublisher
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.Fatal("Failed to connect to Kafka: " + err.Error())
		}
		defer kafkaClient.Close()
		publisher = kafka.NewIndexEventPublisher(kafkaClient)
	}

	// Model backends
	embedder, err := embedding.NewEmbedder(cfg.Embedding)
	if err != nil {
		serviceLogger.Fatal("Failed to create embedder: " + err.Error())
	}
	generator, err := llm.NewClient(cfg.LLM)
	if err != nil {
		serviceLogger.Fatal("Failed to create generation client: " + err.Error())
	}
	parser := templates.NewParser("en")

	// Pipelines and service
	indexer := pipeline.NewIndexingPipeline(embedder, vectors, serviceLogger)
	retriever := pipeline.NewRetriever(embedder, vectors, serviceLogger)
	if cfg.RAG.QueryCacheSize > 0 {
		if err := retriever.EnableQueryCache(cfg.RAG.QueryCacheSize, time.Duration(cfg.RAG.QueryCacheTTLSeconds)*time.Second); err != nil {
			serviceLogger.Fatal("Failed to create query cache: " + err.Error())
		}
	}
	contextManager := pipeline.NewContextManager(generator, parser, serviceLogger,
		cfg.RAG.HistoryWindow, cfg.RAG.MaxEntities, cfg.RAG.EntityAnswerMaxChars)
	answers := pipeline.NewAnswerPipeline(retriever, generator, parser, contextManager, serviceLogger, cfg.RAG.HistoryWindow)
	svc := service.NewService(serviceLogger, chunkStore, vectors, indexer, retriever, answers, publisher, cfg.RAG.PageSize)

	// HTTP server
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(svc, sessions, serviceLogger, cfg.RAG.DefaultLimit)
	var limiter ratelimiter.RateLimiter
	if cfg.Server.RateLimitPerSecond > 0 {
		limiter = ratelimiter.NewTokenBucket(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	}
	router := api.SetupRouter(handler, limiter)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddress,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.Fatal("HTTP server failed to start: " + err.Error())
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown: " + err.Error())
	}
	if err := mongo.Close(shutdownCtx); err != nil {
		serviceLogger.Error("Failed to close MongoDB connection: " + err.Error())
	}
	serviceLogger.Info("Server exited")
}

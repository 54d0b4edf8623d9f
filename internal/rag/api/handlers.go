package api

import (
	"fmt"
	"net/http"

	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/service"
	"Hermes_RAG/internal/rag/session"
	"Hermes_RAG/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler provides the HTTP handlers of the RAG service.
type Handler struct {
	service      *service.Service
	sessions     session.Store
	log          logger.Logger
	defaultLimit int
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service, sessions session.Store, log logger.Logger, defaultLimit int) *Handler {
	return &Handler{
		service:      svc,
		sessions:     sessions,
		log:          log,
		defaultLimit: defaultLimit,
	}
}

type pushRequest struct {
	DoReset bool `json:"do_reset"`
}

type pushTaggedRequest struct {
	ProjectID string   `json:"project_id" binding:"required"`
	Tags      []string `json:"tags" binding:"required"`
	DoReset   bool     `json:"do_reset"`
}

type searchRequest struct {
	Text  string `json:"text" binding:"required"`
	Limit int    `json:"limit"`
}

type searchTaggedRequest struct {
	Text  string   `json:"text" binding:"required"`
	Tags  []string `json:"tags"`
	Limit int      `json:"limit"`
}

type answerRequest struct {
	Text      string `json:"text" binding:"required"`
	Limit     int    `json:"limit"`
	SessionID string `json:"session_id"`
}

type answerTaggedRequest struct {
	Text      string   `json:"text" binding:"required"`
	Tags      []string `json:"tags"`
	Limit     int      `json:"limit"`
	SessionID string   `json:"session_id"`
}

func (h *Handler) limitOrDefault(limit int) int {
	if limit <= 0 {
		return h.defaultLimit
	}
	return limit
}

// PushHandler indexes a project's chunk source into its own collection.
func (h *Handler) PushHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalInsertError, "error": "Invalid request payload"})
		return
	}

	inserted, err := h.service.PushProject(c.Request.Context(), projectID, req.DoReset)
	if err != nil {
		h.log.Error(fmt.Sprintf("Push failed for project %s: %v", projectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"signal":               SignalInsertError,
			"inserted_items_count": inserted,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":               SignalInsertSuccess,
		"inserted_items_count": inserted,
	})
}

// PushTaggedHandler indexes a project's chunk source into the shared
// collection under a tag set.
func (h *Handler) PushTaggedHandler(c *gin.Context) {
	var req pushTaggedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalInsertError, "error": "Invalid request payload"})
		return
	}

	inserted, err := h.service.PushTagged(c.Request.Context(), req.ProjectID, req.Tags, req.DoReset)
	if err != nil {
		h.log.Error(fmt.Sprintf("Tagged push failed for project %s: %v", req.ProjectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"signal":               SignalInsertError,
			"inserted_items_count": inserted,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":               SignalInsertSuccess,
		"inserted_items_count": inserted,
	})
}

// InfoHandler reports name and row count of a project's collection.
func (h *Handler) InfoHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	info, err := h.service.CollectionInfo(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"signal": SignalProjectNotFound})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":          SignalCollectionRetrieved,
		"collection_info": info,
	})
}

// ResetHandler drops a project's collection entirely.
func (h *Handler) ResetHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	deleted, err := h.service.ResetCollection(c.Request.Context(), projectID)
	if err != nil {
		h.log.Error(fmt.Sprintf("Reset failed for project %s: %v", projectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalInsertError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":  SignalCollectionReset,
		"deleted": deleted,
	})
}

// SearchHandler runs a similarity search in a project's collection.
func (h *Handler) SearchHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalSearchError, "error": "Invalid request payload"})
		return
	}

	results, err := h.service.Search(c.Request.Context(), projectID, req.Text, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Search failed for project %s: %v", projectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalSearchError})
		return
	}
	if results == nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalSearchError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":  SignalSearchSuccess,
		"results": results,
	})
}

// SearchTaggedHandler runs a similarity search in the shared collection.
func (h *Handler) SearchTaggedHandler(c *gin.Context) {
	var req searchTaggedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalSearchError, "error": "Invalid request payload"})
		return
	}

	results, err := h.service.SearchTagged(c.Request.Context(), req.Text, req.Tags, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Tagged search failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalSearchError})
		return
	}
	if results == nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalSearchError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":  SignalSearchSuccess,
		"results": results,
	})
}

// AnswerHandler runs a single-turn answer against a project's collection.
func (h *Handler) AnswerHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "error": "Invalid request payload"})
		return
	}

	result, err := h.service.Answer(c.Request.Context(), projectID, req.Text, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Answer failed for project %s: %v", projectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}
	if result.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":       SignalAnswerSuccess,
		"answer":       result.Answer,
		"full_prompt":  result.FullPrompt,
		"chat_history": result.ChatHistory,
	})
}

// AnswerTaggedHandler runs a single-turn answer against the shared
// collection.
func (h *Handler) AnswerTaggedHandler(c *gin.Context) {
	var req answerTaggedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "error": "Invalid request payload"})
		return
	}

	result, err := h.service.AnswerTagged(c.Request.Context(), req.Text, req.Tags, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Tagged answer failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}
	if result.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":       SignalAnswerSuccess,
		"answer":       result.Answer,
		"full_prompt":  result.FullPrompt,
		"chat_history": result.ChatHistory,
	})
}

// AnswerWithHistoryHandler runs a conversational answer against a
// project's collection. Session state is loaded before the call and the
// successor state saved after it; without a session id a new session is
// started.
func (h *Handler) AnswerWithHistoryHandler(c *gin.Context) {
	projectID := c.Param("project_id")

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "error": "Invalid request payload"})
		return
	}

	sessionID, state, err := h.loadSession(c, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}

	result, err := h.service.AnswerWithHistory(c.Request.Context(), projectID, req.Text, state.ChatHistory, state.SessionEntities, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Chat answer failed for project %s: %v", projectID, err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}

	h.saveSession(c, sessionID, state, req.Text, result.Answer, result.SessionEntities)
	if result.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "session_id": sessionID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":           SignalChatAnswerSuccess,
		"answer":           result.Answer,
		"full_prompt":      result.FullPrompt,
		"rewritten_query":  result.RewrittenQuery,
		"session_entities": result.SessionEntities,
		"session_id":       sessionID,
	})
}

// AnswerTaggedWithHistoryHandler is the conversational counterpart of
// AnswerTaggedHandler.
func (h *Handler) AnswerTaggedWithHistoryHandler(c *gin.Context) {
	var req answerTaggedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "error": "Invalid request payload"})
		return
	}

	sessionID, state, err := h.loadSession(c, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}

	result, err := h.service.AnswerTaggedWithHistory(c.Request.Context(), req.Text, req.Tags, state.ChatHistory, state.SessionEntities, h.limitOrDefault(req.Limit))
	if err != nil {
		h.log.Error(fmt.Sprintf("Tagged chat answer failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"signal": SignalAnswerError})
		return
	}

	h.saveSession(c, sessionID, state, req.Text, result.Answer, result.SessionEntities)
	if result.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"signal": SignalAnswerError, "session_id": sessionID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":           SignalChatAnswerSuccess,
		"answer":           result.Answer,
		"full_prompt":      result.FullPrompt,
		"rewritten_query":  result.RewrittenQuery,
		"session_entities": result.SessionEntities,
		"session_id":       sessionID,
	})
}

// loadSession resolves the session id and its predecessor state.
func (h *Handler) loadSession(c *gin.Context, sessionID string) (string, *session.State, error) {
	if sessionID == "" {
		return session.NewSessionID(), &session.State{}, nil
	}
	state, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.log.Error(fmt.Sprintf("Failed to load session %s: %v", sessionID, err))
		return sessionID, nil, err
	}
	return sessionID, state, nil
}

// saveSession appends the finished turn to the history and persists the
// successor state. A turn without an answer leaves the history untouched
// but still carries over the entities.
func (h *Handler) saveSession(c *gin.Context, sessionID string, state *session.State, query, answer string, entities []string) {
	if answer != "" {
		state.ChatHistory = append(state.ChatHistory,
			models.ChatMessage{Role: models.SpeakerUser, Content: query},
			models.ChatMessage{Role: models.SpeakerAssistant, Content: answer},
		)
	}
	state.SessionEntities = entities
	if err := h.sessions.Save(c.Request.Context(), sessionID, state); err != nil {
		h.log.Error(fmt.Sprintf("Failed to save session %s: %v", sessionID, err))
	}
}

package schema

import "Hermes_RAG/internal/models"

// RetrievedDocument is a single similarity-search hit, ranked by the vector
// store's own relevance order. The pipeline never re-ranks.
type RetrievedDocument struct {
	Text     string                 `json:"text"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CollectionInfo describes a vector collection as reported by the store.
type CollectionInfo struct {
	Name     string            `json:"name"`
	RowCount int64             `json:"row_count"`
	Stats    map[string]string `json:"stats,omitempty"`
}

// AnswerResult is the outcome of a single-turn grounded answer. An all-empty
// value signals "insufficient grounding" and is a normal outcome, not an
// error.
type AnswerResult struct {
	Answer      string               `json:"answer"`
	FullPrompt  string               `json:"full_prompt"`
	ChatHistory []models.ChatMessage `json:"chat_history"`
}

// ChatAnswerResult extends AnswerResult with the conversational state that
// the caller must persist between turns: the query actually used for
// retrieval and the updated session entities.
type ChatAnswerResult struct {
	AnswerResult
	RewrittenQuery  string   `json:"rewritten_query"`
	SessionEntities []string `json:"session_entities"`
}

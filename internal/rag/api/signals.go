package api

// Response signal strings. Clients branch on these rather than on HTTP
// status codes alone.
const (
	SignalInsertSuccess       = "insert_into_vectordb_success"
	SignalInsertError         = "insert_into_vectordb_error"
	SignalCollectionRetrieved = "vectordb_collection_retrieved"
	SignalCollectionReset     = "vectordb_collection_reset"
	SignalSearchSuccess       = "vectordb_search_success"
	SignalSearchError         = "vectordb_search_error"
	SignalAnswerSuccess       = "rag_answer_success"
	SignalAnswerError         = "rag_answer_error"
	SignalChatAnswerSuccess   = "chat_rag_answer_success"
	SignalProjectNotFound     = "project_not_found_error"
)

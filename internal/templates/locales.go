package templates

// DefaultLocale is used when a requested locale has no template set.
const DefaultLocale = "en"

// locales maps locale -> group -> template name -> template body.
var locales = map[string]map[string]map[string]string{
	"en": {
		"rag": {
			"system_prompt": joinLines(
				"You are an assistant that generates a response for the user.",
				"You will be provided with a set of documents associated with the user's query.",
				"Generate the response based only on the documents provided.",
				"Ignore documents that are not relevant to the user's query.",
				"You may apologize to the user if you are unable to generate a response.",
				"Generate the response in the same language as the user's query.",
				"Be polite and respectful to the user.",
				"Be precise and concise, and avoid unnecessary information.",
			),
			"document_prompt": joinLines(
				"## Document No: $doc_num",
				"### Content: $chunk_text",
			),
			"footer_prompt": joinLines(
				"Based only on the above documents, please generate an answer for the user.",
				"## Question:",
				"$query",
				"",
				"## Answer:",
			),
		},
		"chat": {
			"query_rewrite_system": joinLines(
				"You are a query rewriting assistant.",
				"Your task is to rewrite the user's current query to be self-contained and contextual.",
				"Incorporate relevant context from the chat history into the query.",
				"The rewritten query should be clear and standalone.",
				"Do NOT answer the query, only rewrite it.",
				"Output ONLY the rewritten query, nothing else.",
			),
			"query_rewrite_prompt": joinLines(
				"## Chat History (last messages):",
				"$chat_history",
				"",
				"## Session Entities:",
				"$session_entities",
				"",
				"## Current User Query:",
				"$query",
				"",
				"## Rewritten Query:",
			),
			"entity_extraction_system": joinLines(
				"You are an entity extraction assistant.",
				"Extract important entities from the conversation (names, topics, concepts, dates, etc).",
				"Return ONLY a JSON array of strings with the entities.",
				`Example output: ["entity1", "entity2", "entity3"]`,
				"Keep entities concise and relevant.",
				"Maximum 10 entities total.",
			),
			"entity_extraction_prompt": joinLines(
				"## User Query:",
				"$query",
				"",
				"## Assistant Answer:",
				"$answer",
				"",
				"## Existing Entities:",
				"$existing_entities",
				"",
				"## Updated Entities (JSON array):",
			),
		},
	},
}

func joinLines(lines ...string) string {
	out := ""
	for i, line := range lines {
		if i > 0 {
			out += "\n"
		}
		out += line
	}
	return out
}

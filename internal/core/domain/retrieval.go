package domain

// FallbackAnswer is returned when no answer could be generated.
const FallbackAnswer = "Sorry, I couldn't generate an answer."

// CompletionRequest is one call to a hosted language model.
type CompletionRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// RetrievalMatch is a document whose best line scored above the relevance threshold.
type RetrievalMatch struct {
	DocumentName string `json:"document_name"`
	Key          string `json:"key"`
	RelevantText string `json:"relevant_text"`
	Score        int    `json:"score"`
}

type Answer struct {
	Text            string           `json:"answer"`
	SourceDocuments []string         `json:"source_documents"`
	Matches         []RetrievalMatch `json:"-"`
}

// Package knowledge provides the read-only knowledge-retrieval interface
// consumed by the chat processor to ground answers in city content.
package knowledge

import "context"

// Retriever queries the knowledge base for passages relevant to a message.
type Retriever interface {
	// Query returns up to limit results for the given text. domain scopes
	// the search for multi-tenant content and may be empty.
	Query(ctx context.Context, text string, limit int, domain string) ([]Result, error)
}

// Result is one retrieved passage.
type Result struct {
	Title   string  `json:"title"`
	Section string  `json:"section"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

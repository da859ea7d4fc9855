package knowledge

import "context"

// MockRetriever is an in-memory Retriever for testing.
type MockRetriever struct {
	// Results is returned for any query unless FailWith is set.
	Results  []Result
	FailWith error

	// Queries records every query text received.
	Queries []string
}

// NewMockRetriever creates an empty mock retriever.
func NewMockRetriever() *MockRetriever {
	return &MockRetriever{}
}

func (m *MockRetriever) Query(ctx context.Context, text string, limit int, domain string) ([]Result, error) {
	m.Queries = append(m.Queries, text)
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	results := m.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const queryTimeout = 5 * time.Second

// HTTPRetriever queries an external knowledge-search service over HTTP.
// The service exposes GET /search?q=...&limit=...&domain=... returning a
// JSON array of results.
type HTTPRetriever struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRetriever creates a retriever against the given base URL.
func NewHTTPRetriever(baseURL string) *HTTPRetriever {
	return &HTTPRetriever{
		baseURL: baseURL,
		client:  &http.Client{Timeout: queryTimeout},
	}
}

func (r *HTTPRetriever) Query(ctx context.Context, text string, limit int, domain string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("limit", strconv.Itoa(limit))
	if domain != "" {
		q.Set("domain", domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build knowledge query")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "knowledge query failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errors.Wrap(err, "failed to decode knowledge results")
	}
	if len(results) > limit && limit > 0 {
		results = results[:limit]
	}
	return results, nil
}

// Package search wraps a SerpAPI-style web search endpoint. Results are
// deduplicated by link and memoized in a shared TTL cache; an empty result
// list is a valid answer, not an error.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
)

const (
	defaultResultLimit       = 10
	searchHTTPErrorFormat    = "search http error %d: %s"
	searchDecodeErrorFormat  = "decode search response: %w"
	searchRequestErrorFormat = "build search request: %w"
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client queries the search service. Language and Country localize results
// the way the advisor's audience expects (vi/vn by default in config).
type Client struct {
	HTTPBaseURL string
	APIKey      string
	Language    string
	Country     string
	HTTPClient  *http.Client
	Cache       *cache.Cache
	Logger      *zap.Logger
}

type organicResponse struct {
	OrganicResults []Result `json:"organic_results"`
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Search returns up to limit deduplicated results for the query.
func (c Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultResultLimit
	}
	cacheKey := cache.Key("search", query, strconv.Itoa(limit), c.Language, c.Country)
	if c.Cache != nil {
		if cached, hit := c.Cache.Get(cacheKey); hit {
			var results []Result
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				c.logger().Debug("search cache hit", zap.String("query", query))
				return results, nil
			}
		}
	}

	results, err := c.fetch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results = Deduplicate(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if c.Cache != nil {
		if encoded, marshalErr := json.Marshal(results); marshalErr == nil {
			c.Cache.Put(cacheKey, string(encoded))
		}
	}
	return results, nil
}

func (c Client) fetch(ctx context.Context, query string, limit int) ([]Result, error) {
	endpoint := strings.TrimRight(c.HTTPBaseURL, "/") + "/search.json"
	parameters := url.Values{}
	parameters.Set("engine", "google")
	parameters.Set("q", query)
	parameters.Set("num", strconv.Itoa(limit))
	parameters.Set("api_key", c.APIKey)
	if c.Language != "" {
		parameters.Set("hl", c.Language)
	}
	if c.Country != "" {
		parameters.Set("gl", c.Country)
	}

	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+parameters.Encode(), nil)
	if buildErr != nil {
		return nil, fmt.Errorf(searchRequestErrorFormat, buildErr)
	}
	httpResponse, httpErr := c.httpClient().Do(httpRequest)
	if httpErr != nil {
		return nil, httpErr
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, readErr
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, fmt.Errorf(searchHTTPErrorFormat, httpResponse.StatusCode, truncatePreview(string(bodyBytes)))
	}

	var decoded organicResponse
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, fmt.Errorf(searchDecodeErrorFormat, err)
	}
	return decoded.OrganicResults, nil
}

// Deduplicate keeps the first result for each link, falling back to the title
// when a result has no link.
func Deduplicate(results []Result) []Result {
	seen := map[string]struct{}{}
	out := make([]Result, 0, len(results))
	for _, result := range results {
		key := strings.TrimSpace(result.Link)
		if key == "" {
			key = strings.TrimSpace(result.Title)
		}
		if key == "" {
			continue
		}
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, result)
	}
	return out
}

func truncatePreview(text string) string {
	if len(text) <= 256 {
		return text
	}
	return text[:256] + "…"
}

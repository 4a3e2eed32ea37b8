// Package e2e exercises a running search service backed by a built index in
// PostgreSQL. Every test skips when the service is unreachable.
//
// Run with:
//
//	E2E_SEARCHER_URL=http://localhost:8080 go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searcherURL() string {
	if v := os.Getenv("E2E_SEARCHER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// get fetches path and decodes a JSON body, skipping the test when the
// service is down.
func get(t *testing.T, path string, into any) int {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(searcherURL() + path)
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if into != nil {
		require.NoError(t, json.Unmarshal(body, into), "body: %s", body)
	}
	return resp.StatusCode
}

type searchResponse struct {
	Query      string   `json:"query"`
	Expression string   `json:"expression"`
	FoundTerms []string `json:"found_terms"`
	TotalHits  int      `json:"total_hits"`
	Count      int      `json:"count"`
	Outcome    string   `json:"outcome"`
	Message    string   `json:"message"`
	RankMode   string   `json:"rank_mode"`
	CacheHit   bool     `json:"cache_hit"`
	Results    []struct {
		DocID string  `json:"doc_id"`
		URL   string  `json:"url"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func search(t *testing.T, q string, params url.Values) (int, searchResponse) {
	t.Helper()
	if params == nil {
		params = url.Values{}
	}
	params.Set("q", q)
	var out searchResponse
	code := get(t, "/api/v1/search?"+params.Encode(), &out)
	return code, out
}

func TestHealth(t *testing.T) {
	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			var report map[string]any
			code := get(t, path, &report)
			assert.Equal(t, http.StatusOK, code, "report: %v", report)
		})
	}
}

func TestSearchShapes(t *testing.T) {
	queries := []string{
		"python",
		"(python) AND (machine learning)",
		"(machine learning)",
		"(python) OR (java)",
		"(search) AND NOT (database)",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			code, res := search(t, q, url.Values{"limit": {"5"}})
			require.Equal(t, http.StatusOK, code)
			assert.NotEmpty(t, res.Outcome)
			assert.NotEmpty(t, res.Expression)
			assert.LessOrEqual(t, res.Count, 5)
			for i := 1; i < len(res.Results); i++ {
				assert.GreaterOrEqual(t, res.Results[i-1].Score, res.Results[i].Score)
			}
			for _, r := range res.Results {
				assert.Regexp(t, `^https://`, r.URL)
			}
		})
	}
}

func TestRankModes(t *testing.T) {
	for _, mode := range []string{"fast", "full"} {
		code, res := search(t, "python", url.Values{"mode": {mode}})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, mode, res.RankMode)
	}
	code, _ := search(t, "python", url.Values{"mode": {"bogus"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownTerm(t *testing.T) {
	code, res := search(t, "zzqqxxnotaword", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "terms_not_found", res.Outcome)
	assert.Zero(t, res.Count)
}

func TestMalformedQuery(t *testing.T) {
	code, _ := search(t, "(python AND", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestShardsEndpoint(t *testing.T) {
	var out struct {
		Partitions map[string]string `json:"partitions"`
		Total      int               `json:"total"`
	}
	code := get(t, "/api/v1/shards", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 38, out.Total, "37 term partitions plus content")
	assert.Contains(t, out.Partitions, "_")
	assert.Contains(t, out.Partitions, "content")
}

func TestAnalyticsCountsSearches(t *testing.T) {
	var before map[string]any
	get(t, "/api/v1/analytics", &before)
	search(t, "analytics probe", nil)

	var after map[string]any
	code := get(t, "/api/v1/analytics", &after)
	require.Equal(t, http.StatusOK, code)
	assert.Greater(t, after["total_searches"], before["total_searches"])
}

func TestCacheStats(t *testing.T) {
	var stats map[string]any
	code := get(t, "/api/v1/cache/stats", &stats)
	require.Equal(t, http.StatusOK, code)
	if stats["status"] == "disabled" {
		t.Skip("result cache disabled")
	}
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		assert.Contains(t, stats, field)
	}

	search(t, "cache probe", nil)
	_, second := search(t, "cache probe", nil)
	assert.True(t, second.CacheHit)
}

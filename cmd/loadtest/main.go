package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Mode        string
	Queries     []string
}

var defaultQueries = []string{
	"python",
	"machine learning",
	"(machine learning)",
	"(python) AND ((machine) OR (learning))",
	"(distributed) AND NOT (database)",
	"(inverted index) OR (ranking)",
	"(python) AND (machine learning)",
	"search engine",
	"zzzunknownterm",
	"compiler AND optimization",
}

// Stats accumulates per-request results across workers.
type Stats struct {
	total     atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	status    map[int]int64
	outcomes  map[string]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		status:    make(map[int]int64),
		outcomes:  make(map[string]int64),
	}
}

type searchResponse struct {
	Outcome  string `json:"outcome"`
	CacheHit bool   `json:"cache_hit"`
}

func (s *Stats) Record(d time.Duration, code int, resp *searchResponse, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code >= 500 {
		s.failed.Add(1)
	}
	if resp != nil && resp.CacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
	s.status[code]++
	if resp != nil && resp.Outcome != "" {
		s.outcomes[resp.Outcome]++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mode := flag.String("mode", "", "rank mode to request: fast, full, or empty for the service default")
	queriesPath := flag.String("queries", "", "file with one query per line")
	flag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		loaded, err := readQueries(*queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Mode:        *mode,
		Queries:     queries,
	}

	fmt.Println("=== termshard load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Rank mode:   %q\n", cfg.Mode)
	fmt.Printf("Queries:     %d unique\n\n", len(cfg.Queries))

	stats := run(cfg)
	if !report(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, sc.Err()
}

func searchURL(cfg Config, q string) string {
	v := url.Values{"q": {q}, "limit": {"10"}}
	if cfg.Mode != "" {
		v.Set("mode", cfg.Mode)
	}
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var g errgroup.Group
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(cfg, cfg.Queries[i%len(cfg.Queries)]), nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(time.Since(start), 0, nil, err)
					}
					continue
				}
				var body searchResponse
				decodeErr := json.NewDecoder(resp.Body).Decode(&body)
				resp.Body.Close()
				elapsed := time.Since(start)
				if decodeErr != nil {
					stats.Record(elapsed, resp.StatusCode, nil, nil)
					continue
				}
				stats.Record(elapsed, resp.StatusCode, &body, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
	}
	return stats
}

func report(stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	failed := stats.failed.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Failed:          %d\n", failed)
	if total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the search service running?")
		return false
	}
	fmt.Printf("Failure Rate:    %.2f%%\n", float64(failed)/float64(total)*100)
	fmt.Printf("Cache Hits:      %d\n", stats.cacheHits.Load())
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	defer stats.mu.Unlock()

	latencies := slices.Clone(stats.latencies)
	slices.Sort(latencies)
	if len(latencies) > 0 {
		fmt.Println("\n=== Latency ===")
		fmt.Printf("Min: %s\n", latencies[0])
		fmt.Printf("P50: %s\n", percentile(latencies, 50))
		fmt.Printf("P95: %s\n", percentile(latencies, 95))
		fmt.Printf("P99: %s\n", percentile(latencies, 99))
		fmt.Printf("Max: %s\n", latencies[len(latencies)-1])
	}

	fmt.Println("\n=== Status Codes ===")
	for _, code := range sortedKeys(stats.status) {
		fmt.Printf("  %d: %d\n", code, stats.status[code])
	}
	fmt.Println("\n=== Outcomes ===")
	for _, outcome := range sortedKeys(stats.outcomes) {
		fmt.Printf("  %s: %d\n", outcome, stats.outcomes[outcome])
	}
	return true
}

func sortedKeys[K int | string](m map[K]int64) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

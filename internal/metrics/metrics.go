// Package metrics exposes process counters via expvar. All counters are
// published under the "cleargate" map and served on /debug/vars when the
// HTTP server runs.
package metrics

import "expvar"

var (
	root = expvar.NewMap("cleargate")

	// Searches counts search requests accepted by the aggregator.
	Searches = new(expvar.Int)

	// SearchErrors counts searches rejected before fan-out.
	SearchErrors = new(expvar.Int)

	// SourceCalls counts individual source fetches attempted.
	SourceCalls = new(expvar.Int)

	// SourceFailures counts individual source fetches that failed.
	SourceFailures = new(expvar.Int)

	// SourceSkips counts source fetches skipped by an open circuit breaker.
	SourceSkips = new(expvar.Int)

	// CacheHits and CacheMisses track the search cache.
	CacheHits   = new(expvar.Int)
	CacheMisses = new(expvar.Int)

	// RateLimited counts requests rejected by the HTTP rate limiter.
	RateLimited = new(expvar.Int)

	// Connections counts graph traversal requests.
	Connections = new(expvar.Int)

	// Enrichments counts Claude enrichment requests.
	Enrichments = new(expvar.Int)
)

func init() {
	root.Set("searches", Searches)
	root.Set("search_errors", SearchErrors)
	root.Set("source_calls", SourceCalls)
	root.Set("source_failures", SourceFailures)
	root.Set("source_skips", SourceSkips)
	root.Set("cache_hits", CacheHits)
	root.Set("cache_misses", CacheMisses)
	root.Set("rate_limited", RateLimited)
	root.Set("connections", Connections)
	root.Set("enrichments", Enrichments)
}

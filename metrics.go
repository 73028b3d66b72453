package fusego

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prom subpackage provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordIndex is called after the one-shot corpus build.
	// docs is the corpus size, duration the total build time.
	RecordIndex(docs int, duration time.Duration, err error)

	// RecordEmbed is called for each embedding lookup.
	// cacheHit reports whether the vector came from the cache.
	RecordEmbed(cacheHit bool, duration time.Duration, err error)

	// RecordSearch is called after each hybrid search.
	// k is the number of results requested, strategy the fusion strategy
	// name, duration the end-to-end time.
	RecordSearch(k int, strategy string, duration time.Duration, err error)

	// RecordSnapshot is called after snapshot save and load operations.
	RecordSnapshot(op string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndex(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordEmbed(bool, time.Duration, error)         {}
func (NoopMetricsCollector) RecordSearch(int, string, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshot(string, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IndexCount       atomic.Int64
	IndexErrors      atomic.Int64
	IndexedDocs      atomic.Int64
	EmbedCount       atomic.Int64
	EmbedErrors      atomic.Int64
	EmbedCacheHits   atomic.Int64
	EmbedTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
}

// RecordIndex implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndex(docs int, _ time.Duration, err error) {
	b.IndexCount.Add(1)
	b.IndexedDocs.Add(int64(docs))
	if err != nil {
		b.IndexErrors.Add(1)
	}
}

// RecordEmbed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmbed(cacheHit bool, duration time.Duration, err error) {
	b.EmbedCount.Add(1)
	b.EmbedTotalNanos.Add(duration.Nanoseconds())
	if cacheHit {
		b.EmbedCacheHits.Add(1)
	}
	if err != nil {
		b.EmbedErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, _ string, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(_ string, _ time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IndexCount:     b.IndexCount.Load(),
		IndexErrors:    b.IndexErrors.Load(),
		IndexedDocs:    b.IndexedDocs.Load(),
		EmbedCount:     b.EmbedCount.Load(),
		EmbedErrors:    b.EmbedErrors.Load(),
		EmbedCacheHits: b.EmbedCacheHits.Load(),
		EmbedAvgNanos:  avg(b.EmbedTotalNanos.Load(), b.EmbedCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}

	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IndexCount     int64
	IndexErrors    int64
	IndexedDocs    int64
	EmbedCount     int64
	EmbedErrors    int64
	EmbedCacheHits int64
	EmbedAvgNanos  int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	SnapshotCount  int64
	SnapshotErrors int64
}

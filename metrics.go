package docvec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus. Every record method is called on all paths including failure.
type MetricsCollector interface {
	// RecordAdd is called after each single-document add.
	RecordAdd(duration time.Duration, err error)

	// RecordBatchAdd is called after each batch add. count is the number
	// of documents attempted, degraded the number written without an
	// embedding.
	RecordBatchAdd(count, degraded int, duration time.Duration)

	// RecordSearch is called after each search. k is the requested result
	// limit.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordRemove is called after each remove.
	RecordRemove(duration time.Duration, err error)

	// RecordRebuild is called after each index rebuild.
	RecordRebuild(duration time.Duration)

	// RecordEmbedding is called after each embedding backend round trip.
	RecordEmbedding(duration time.Duration, err error)

	// RecordCacheHit is called for each embedding served from cache.
	RecordCacheHit()

	// RecordCacheMiss is called for each embedding that required the
	// backend.
	RecordCacheMiss()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)           {}
func (NoopMetricsCollector) RecordBatchAdd(int, int, time.Duration)   {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)        {}
func (NoopMetricsCollector) RecordRebuild(time.Duration)              {}
func (NoopMetricsCollector) RecordEmbedding(time.Duration, error)     {}
func (NoopMetricsCollector) RecordCacheHit()                          {}
func (NoopMetricsCollector) RecordCacheMiss()                         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount            atomic.Int64
	AddErrors           atomic.Int64
	AddTotalNanos       atomic.Int64
	BatchAddCount       atomic.Int64
	BatchAddItems       atomic.Int64
	BatchAddDegraded    atomic.Int64
	SearchCount         atomic.Int64
	SearchErrors        atomic.Int64
	SearchTotalNanos    atomic.Int64
	RemoveCount         atomic.Int64
	RemoveErrors        atomic.Int64
	RebuildCount        atomic.Int64
	RebuildTotalNanos   atomic.Int64
	EmbeddingCount      atomic.Int64
	EmbeddingErrors     atomic.Int64
	EmbeddingTotalNanos atomic.Int64
	CacheHits           atomic.Int64
	CacheMisses         atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordBatchAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchAdd(count, degraded int, duration time.Duration) {
	b.BatchAddCount.Add(1)
	b.BatchAddItems.Add(int64(count))
	b.BatchAddDegraded.Add(int64(degraded))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(duration time.Duration) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
}

// RecordEmbedding implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmbedding(duration time.Duration, err error) {
	b.EmbeddingCount.Add(1)
	b.EmbeddingTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EmbeddingErrors.Add(1)
	}
}

// RecordCacheHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheHit() {
	b.CacheHits.Add(1)
}

// RecordCacheMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheMiss() {
	b.CacheMisses.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:         b.AddCount.Load(),
		AddErrors:        b.AddErrors.Load(),
		AddAvgNanos:      avgNanos(&b.AddTotalNanos, &b.AddCount),
		BatchAddCount:    b.BatchAddCount.Load(),
		BatchAddItems:    b.BatchAddItems.Load(),
		BatchAddDegraded: b.BatchAddDegraded.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avgNanos(&b.SearchTotalNanos, &b.SearchCount),
		RemoveCount:      b.RemoveCount.Load(),
		RemoveErrors:     b.RemoveErrors.Load(),
		RebuildCount:     b.RebuildCount.Load(),
		RebuildAvgNanos:  avgNanos(&b.RebuildTotalNanos, &b.RebuildCount),
		EmbeddingCount:   b.EmbeddingCount.Load(),
		EmbeddingErrors:  b.EmbeddingErrors.Load(),
		CacheHits:        b.CacheHits.Load(),
		CacheMisses:      b.CacheMisses.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	n := count.Load()
	if n == 0 {
		return 0
	}
	return total.Load() / n
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount         int64
	AddErrors        int64
	AddAvgNanos      int64
	BatchAddCount    int64
	BatchAddItems    int64
	BatchAddDegraded int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	RemoveCount      int64
	RemoveErrors     int64
	RebuildCount     int64
	RebuildAvgNanos  int64
	EmbeddingCount   int64
	EmbeddingErrors  int64
	CacheHits        int64
	CacheMisses      int64
}

// stopwatch measures elapsed time for one operation. The zero value is not
// usable; create with newStopwatch.
type stopwatch struct {
	start time.Time
}

func newStopwatch() stopwatch {
	return stopwatch{start: time.Now()}
}

func (s stopwatch) elapsed() time.Duration {
	return time.Since(s.start)
}

package worldsave

import (
	"sync/atomic"
	"time"
)

// Collector receives operational metrics from a Store. Implement it to
// feed a monitoring system; every method may be called concurrently.
type Collector interface {
	// RecordSave is called after each save with the encoded blob size.
	RecordSave(bytes int, duration time.Duration, err error)

	// RecordLoad is called after each load with the encoded blob size,
	// zero when the blob could not be read.
	RecordLoad(bytes int, duration time.Duration, err error)

	// RecordCommit is called after each commit attempt that wrote
	// anything, with the generation it tried to publish.
	RecordCommit(generation uint64, entries int, duration time.Duration, err error)
}

// NoopCollector discards all metrics.
type NoopCollector struct{}

func (NoopCollector) RecordSave(int, time.Duration, error)           {}
func (NoopCollector) RecordLoad(int, time.Duration, error)           {}
func (NoopCollector) RecordCommit(uint64, int, time.Duration, error) {}

// BasicCollector keeps in-memory counters. Useful for debugging and
// tests without an external monitoring stack.
type BasicCollector struct {
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	SaveTotalNanos   atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadBytes        atomic.Int64
	LoadTotalNanos   atomic.Int64
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	LastGeneration   atomic.Uint64
}

// RecordSave implements Collector.
func (b *BasicCollector) RecordSave(bytes int, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(int64(bytes))
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements Collector.
func (b *BasicCollector) RecordLoad(bytes int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(int64(bytes))
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordCommit implements Collector.
func (b *BasicCollector) RecordCommit(generation uint64, entries int, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.LastGeneration.Store(generation)
}

// GetStats returns a snapshot of the current counters.
func (b *BasicCollector) GetStats() BasicStats {
	return BasicStats{
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveBytes:      b.SaveBytes.Load(),
		SaveAvgNanos:   avgNanos(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadBytes:      b.LoadBytes.Load(),
		LoadAvgNanos:   avgNanos(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		CommitAvgNanos: avgNanos(b.CommitTotalNanos.Load(), b.CommitCount.Load()),
		LastGeneration: b.LastGeneration.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicStats is a snapshot of BasicCollector state.
type BasicStats struct {
	SaveCount      int64
	SaveErrors     int64
	SaveBytes      int64
	SaveAvgNanos   int64
	LoadCount      int64
	LoadErrors     int64
	LoadBytes      int64
	LoadAvgNanos   int64
	CommitCount    int64
	CommitErrors   int64
	CommitAvgNanos int64
	LastGeneration uint64
}

package vecfile

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAppend is called after each AddVector call.
	// bytes is the encoded record size (0 if encoding failed).
	RecordAppend(bytes int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	// scanned is the number of complete records ranked.
	RecordSearch(k, scanned int, duration time.Duration, err error)

	// RecordTruncatedTail is called when a scan stops before the end of the
	// file. trailingBytes is how much of the file the scan did not rank; a
	// value above one record size means intact records were skipped.
	RecordTruncatedTail(trailingBytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTruncatedTail(int64)                   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendErrors     atomic.Int64
	AppendBytes      atomic.Int64
	AppendTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchScanned    atomic.Int64
	SearchTotalNanos atomic.Int64
	TruncatedTails   atomic.Int64
	TruncatedBytes   atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(bytes int, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
		return
	}
	b.AppendBytes.Add(int64(bytes))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k, scanned int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchScanned.Add(int64(scanned))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordTruncatedTail implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTruncatedTail(trailingBytes int64) {
	b.TruncatedTails.Add(1)
	b.TruncatedBytes.Add(trailingBytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:    b.AppendCount.Load(),
		AppendErrors:   b.AppendErrors.Load(),
		AppendBytes:    b.AppendBytes.Load(),
		AppendAvgNanos: avg(b.AppendTotalNanos.Load(), b.AppendCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchScanned:  b.SearchScanned.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		TruncatedTails: b.TruncatedTails.Load(),
		TruncatedBytes: b.TruncatedBytes.Load(),
	}
}

// BasicMetricsStats is a point-in-time view of a BasicMetricsCollector.
type BasicMetricsStats struct {
	AppendCount    int64
	AppendErrors   int64
	AppendBytes    int64
	AppendAvgNanos int64
	SearchCount    int64
	SearchErrors   int64
	SearchScanned  int64
	SearchAvgNanos int64
	TruncatedTails int64
	TruncatedBytes int64
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

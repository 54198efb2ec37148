package vecfile

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/vecfile/codec"
	"github.com/hupe1980/vecfile/internal/fs"
	"github.com/hupe1980/vecfile/internal/record"
)

type options struct {
	codec             codec.Codec
	logger            *Logger
	metricsCollector  MetricsCollector
	fs                fs.FileSystem
	syncOnAppend      bool
	maxMetadataSize   uint32
	searchConcurrency int
	skipHeaderCheck   bool
}

// Option configures a Store.
type Option func(*options)

// WithCodec configures how metadata maps are serialized.
//
// The codec is not recorded in the store file; reopen a store with the
// codec that wrote it. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecfile.NewJSONLogger(slog.LevelInfo)
//	store, _ := vecfile.New("vectors.dat", 128, vecfile.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecfile.BasicMetricsCollector{}
//	store, _ := vecfile.New("vectors.dat", 128, vecfile.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithFileSystem replaces the file system used to open the store file.
// Intended for fault-injection tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithSyncOnAppend makes AddVector fsync the file before returning.
func WithSyncOnAppend(enabled bool) Option {
	return func(o *options) {
		o.syncOnAppend = enabled
	}
}

// WithMaxMetadataSize sets the largest metadata payload, in bytes, that a
// search accepts. A length prefix above it is reported as corruption.
// AddVector rejects larger payloads up front. Zero keeps the default (64 MiB).
func WithMaxMetadataSize(n uint32) Option {
	return func(o *options) {
		if n == 0 {
			n = record.DefaultMaxMetadataSize
		}
		o.maxMetadataSize = n
	}
}

// WithSearchConcurrency limits how many queries SearchBatch runs at once.
// Values < 1 use runtime.GOMAXPROCS(0).
func WithSearchConcurrency(n int) Option {
	return func(o *options) {
		o.searchConcurrency = n
	}
}

// WithSkipHeaderCheck opens an existing store without comparing its header
// to the dimension passed to New. Subsequent reads and writes use the
// dimension passed to New.
func WithSkipHeaderCheck() Option {
	return func(o *options) {
		o.skipHeaderCheck = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fs:               fs.Default,
		maxMetadataSize:  record.DefaultMaxMetadataSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.searchConcurrency < 1 {
		o.searchConcurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

package vecfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecfile/distance"
	"github.com/hupe1980/vecfile/internal/fs"
	"github.com/hupe1980/vecfile/internal/queue"
	"github.com/hupe1980/vecfile/internal/record"
)

// Result is one nearest neighbor returned by Search.
type Result struct {
	// Distance to the query. Euclidean searches report the true L2 distance;
	// cosine searches report 1 - cos.
	Distance float32

	// Metadata decoded from the matching record.
	Metadata Metadata
}

// Search returns the k records nearest to query under metric, nearest first.
//
// The whole file is scanned. Only the k best candidates are held in memory,
// and only their metadata is read and decoded. A trailing record cut short
// by an interrupted append is ignored. Any corrupt record fails the whole
// call with ErrCorruption; no partial results are returned.
//
// k <= 0 returns an empty result without reading the file. Results with
// equal distances come back in no particular order.
func (s *Store) Search(ctx context.Context, query []float32, k int, metric distance.Metric) (results []Result, err error) {
	start := time.Now()
	scanned := 0
	defer func() {
		s.opts.metricsCollector.RecordSearch(k, scanned, time.Since(start), err)
		s.logger.LogSearch(ctx, k, scanned, len(results), err)
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = s.validateQuery(query, metric); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Result{}, nil
	}

	items, scanned, err := s.scan(ctx, query, k, metric)
	if err != nil {
		return nil, translateError(err)
	}

	results, err = s.hydrate(items, metric)
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// SearchBatch runs Search for every query concurrently, at most
// WithSearchConcurrency at a time. The i-th result belongs to the i-th query.
// If any query fails, SearchBatch returns the first error and no results.
func (s *Store) SearchBatch(ctx context.Context, queries [][]float32, k int, metric distance.Metric) ([][]Result, error) {
	for i, q := range queries {
		if err := s.validateQuery(q, metric); err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
	}

	out := make([][]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.searchConcurrency)

	for i, q := range queries {
		g.Go(func() error {
			res, err := s.Search(gctx, q, k, metric)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseMetric returns the metric with the given name, as accepted by
// distance.ParseMetric. An unknown name yields *ErrInvalidMetric, which
// matches ErrInvalidArgument.
func ParseMetric(name string) (distance.Metric, error) {
	m, err := distance.ParseMetric(name)
	if err != nil {
		return m, &ErrInvalidMetric{Metric: m, Name: name}
	}
	return m, nil
}

func (s *Store) validateQuery(query []float32, metric distance.Metric) error {
	if len(query) != s.dim {
		return &ErrDimensionMismatch{Expected: s.dim, Actual: len(query)}
	}
	if !metric.Valid() {
		return &ErrInvalidMetric{Metric: metric}
	}
	return nil
}

// scan ranks every complete record against query and returns the k best
// candidates nearest first.
func (s *Store) scan(ctx context.Context, query []float32, k int, metric distance.Metric) (_ []queue.Item, scanned int, err error) {
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, 0, err
	}

	f, err := s.opts.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, err
	}
	defer closeFile(f, &err)

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := info.Size()

	if aerr := fs.AdviseSequential(f, record.HeaderSize, 0); aerr != nil {
		s.logger.LogAdviseFailed(ctx, aerr)
	}
	if _, err = f.Seek(record.HeaderSize, io.SeekStart); err != nil {
		return nil, 0, err
	}

	dec := s.rec.NewDecoder(f, record.HeaderSize, size, s.opts.maxMetadataSize)
	top := queue.NewBounded(k)
	vec := make([]float32, s.dim)

	for {
		if err = dec.DecodeVector(vec); err != nil {
			break
		}
		var (
			off    int64
			length uint32
		)
		if off, length, err = dec.DecodeMetaLength(); err != nil {
			break
		}
		if err = dec.SkipMetadata(length); err != nil {
			break
		}
		top.Offer(queue.Item{Distance: fn(query, vec), Offset: off, Length: length})
		scanned++
	}

	if !errors.Is(err, record.ErrEndOfStore) {
		return nil, scanned, err
	}
	if dec.Offset() < size {
		s.logger.LogTruncatedTail(ctx, dec.Offset(), size)
		s.opts.metricsCollector.RecordTruncatedTail(size - dec.Offset())
	}
	return top.DrainAscending(), scanned, nil
}

// hydrate reads and decodes the metadata of the surviving candidates.
func (s *Store) hydrate(items []queue.Item, metric distance.Metric) (_ []Result, err error) {
	results := make([]Result, len(items))
	if len(items) == 0 {
		return results, nil
	}

	f, err := s.opts.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer closeFile(f, &err)

	for i, it := range items {
		payload, err := record.ReadMetadata(f, it.Offset, it.Length)
		if err != nil {
			return nil, err
		}
		var meta Metadata
		if err := s.opts.codec.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("%w: decode metadata at offset %d: %w", ErrCorruption, it.Offset, err)
		}
		results[i] = Result{
			Distance: distance.Finalize(metric, it.Distance),
			Metadata: meta,
		}
	}
	return results, nil
}

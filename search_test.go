package vecfile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecfile/codec"
	"github.com/hupe1980/vecfile/distance"
	"github.com/hupe1980/vecfile/internal/fs"
	"github.com/hupe1980/vecfile/testutil"
)

func ids(results []Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Metadata["id"].(float64)
	}
	return out
}

func axisStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := newTestStore(t, 3, opts...)
	ctx := context.Background()
	require.NoError(t, s.AddVector(ctx, []float32{1, 0, 0}, Metadata{"id": 1}))
	require.NoError(t, s.AddVector(ctx, []float32{0, 1, 0}, Metadata{"id": 2}))
	require.NoError(t, s.AddVector(ctx, []float32{0, 0, 1}, Metadata{"id": 3}))
	return s
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Euclidean", func(t *testing.T) {
		s := axisStore(t)

		results, err := s.Search(ctx, []float32{1, 0, 0}, 2, distance.MetricEuclidean)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, float64(1), results[0].Metadata["id"])
		assert.Equal(t, float32(0), results[0].Distance)
		assert.InDelta(t, math.Sqrt2, float64(results[1].Distance), 1e-6)
		assert.Contains(t, []float64{2, 3}, results[1].Metadata["id"])
	})

	t.Run("Cosine", func(t *testing.T) {
		s := newTestStore(t, 3)
		require.NoError(t, s.AddVector(ctx, []float32{2, 0, 0}, Metadata{"id": 1}))
		require.NoError(t, s.AddVector(ctx, []float32{0, 1, 0}, Metadata{"id": 2}))
		require.NoError(t, s.AddVector(ctx, []float32{-1, 0, 0}, Metadata{"id": 3}))

		results, err := s.Search(ctx, []float32{1, 0, 0}, 3, distance.MetricCosine)
		require.NoError(t, err)

		assert.Equal(t, []float64{1, 2, 3}, ids(results))
		assert.InDelta(t, 0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1, results[1].Distance, 1e-6)
		assert.InDelta(t, 2, results[2].Distance, 1e-6)
	})

	t.Run("CosineZeroNorm", func(t *testing.T) {
		s := newTestStore(t, 3)
		require.NoError(t, s.AddVector(ctx, []float32{0, 0, 0}, Metadata{"id": 1}))

		results, err := s.Search(ctx, []float32{1, 2, 3}, 1, distance.MetricCosine)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, float32(1), results[0].Distance)

		results, err = s.Search(ctx, []float32{0, 0, 0}, 1, distance.MetricCosine)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, float32(1), results[0].Distance)
	})

	t.Run("SelfMatch", func(t *testing.T) {
		rng := testutil.NewRNG(7)
		vectors := rng.UniformVectors(50, 8)
		s := newTestStore(t, 8)
		for i, v := range vectors {
			require.NoError(t, s.AddVector(ctx, v, Metadata{"id": i}))
		}

		for _, i := range []int{0, 17, 49} {
			results, err := s.Search(ctx, vectors[i], 1, distance.MetricEuclidean)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, float64(i), results[0].Metadata["id"])
			assert.Equal(t, float32(0), results[0].Distance)
		}
	})

	t.Run("KLargerThanStore", func(t *testing.T) {
		s := axisStore(t)

		results, err := s.Search(ctx, []float32{0.9, 0.5, 0.1}, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, sort.SliceIsSorted(results, func(a, b int) bool {
			return results[a].Distance < results[b].Distance
		}))
		assert.Equal(t, []float64{1, 2, 3}, ids(results))
	})

	t.Run("NonPositiveK", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		opens := ffs.Opens()

		for _, k := range []int{0, -3} {
			results, err := s.Search(ctx, []float32{1, 0, 0}, k, distance.MetricEuclidean)
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		}
		assert.Equal(t, opens, ffs.Opens())
	})

	t.Run("EmptyStore", func(t *testing.T) {
		s := newTestStore(t, 3)

		results, err := s.Search(ctx, []float32{1, 0, 0}, 5, distance.MetricCosine)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		opens := ffs.Opens()

		_, err := s.Search(ctx, []float32{1, 0, 0}, 1, distance.Metric(99))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, distance.ErrUnknownMetric)

		var metricErr *ErrInvalidMetric
		require.ErrorAs(t, err, &metricErr)
		assert.Equal(t, distance.Metric(99), metricErr.Metric)
		assert.Equal(t, opens, ffs.Opens())
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		opens := ffs.Opens()

		_, err := s.Search(ctx, []float32{1, 0}, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		var dimErr *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dimErr)
		assert.Equal(t, opens, ffs.Opens())
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := axisStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Search(cctx, []float32{1, 0, 0}, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("MatchesExactScan", func(t *testing.T) {
		rng := testutil.NewRNG(42)
		vectors := rng.UniformRangeVectors(300, 16)
		s := newTestStore(t, 16)
		for i, v := range vectors {
			require.NoError(t, s.AddVector(ctx, v, Metadata{"id": i}))
		}

		for _, metric := range []distance.Metric{distance.MetricEuclidean, distance.MetricCosine} {
			fn, err := distance.Provider(metric)
			require.NoError(t, err)

			for q := 0; q < 5; q++ {
				query := rng.UniformRangeVectors(1, 16)[0]
				want := testutil.ExactTopK(query, vectors, 10, fn)

				got, err := s.Search(ctx, query, 10, metric)
				require.NoError(t, err)
				require.Len(t, got, len(want))

				for i := range want {
					assert.Equal(t, float64(want[i].Index), got[i].Metadata["id"], "%s rank %d", metric, i)
					assert.InDelta(t, distance.Finalize(metric, want[i].Distance), got[i].Distance, 1e-4)
				}
			}
		}
	})

	t.Run("Codecs", func(t *testing.T) {
		for _, name := range []string{"json", "go-json", "go-json+lz4", "go-json+zstd"} {
			t.Run(name, func(t *testing.T) {
				c, ok := codec.ByName(name)
				require.True(t, ok)

				s := newTestStore(t, 2, WithCodec(c))
				meta := Metadata{"id": 7, "text": string(bytes.Repeat([]byte("lorem ipsum "), 64))}
				require.NoError(t, s.AddVector(ctx, []float32{3, 4}, meta))

				results, err := s.Search(ctx, []float32{0, 0}, 1, distance.MetricEuclidean)
				require.NoError(t, err)
				require.Len(t, results, 1)
				assert.InDelta(t, 5, results[0].Distance, 1e-6)
				assert.Equal(t, float64(7), results[0].Metadata["id"])
				assert.Equal(t, meta["text"], results[0].Metadata["text"])
			})
		}
	})
}

func TestSearchDamagedFile(t *testing.T) {
	ctx := context.Background()
	query := []float32{1, 0, 0}

	// Each record of axisStore is 12 vector bytes, 4 length bytes and 8 bytes
	// of metadata.
	const recordSize = 24

	t.Run("TruncatedMetadata", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
		metrics := &BasicMetricsCollector{}
		s := axisStore(t, WithLogger(logger), WithMetricsCollector(metrics))
		require.NoError(t, os.Truncate(s.Path(), 4+3*recordSize-2))

		results, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, ids(results))
		assert.Contains(t, buf.String(), "incomplete trailing record ignored")

		// The scan stopped after the third length prefix, 6 bytes short of the end.
		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.TruncatedTails)
		assert.Equal(t, int64(6), stats.TruncatedBytes)
	})

	t.Run("IntactFileCountsNoTail", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		s := axisStore(t, WithMetricsCollector(metrics))

		_, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Equal(t, int64(0), metrics.GetStats().TruncatedTails)
	})

	t.Run("LengthPastEndMidFile", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		s := axisStore(t, WithMetricsCollector(metrics))

		// Overwrite the first record's length prefix with a value that is
		// within the limit but runs past the end of the file.
		f, err := os.OpenFile(s.Path(), os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.WriteAt(rawLength(1000), 4+12)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		results, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Empty(t, results)

		// Everything after the first length prefix went unranked: more than a
		// record's worth, which a torn append alone cannot produce.
		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.TruncatedTails)
		assert.Equal(t, int64(4+3*recordSize-(4+16)), stats.TruncatedBytes)
		assert.Greater(t, stats.TruncatedBytes, int64(recordSize))
	})

	t.Run("TruncatedLength", func(t *testing.T) {
		s := axisStore(t)
		require.NoError(t, os.Truncate(s.Path(), 4+2*recordSize+12+2))

		results, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, ids(results))
	})

	t.Run("TruncatedVector", func(t *testing.T) {
		s := axisStore(t)
		require.NoError(t, os.Truncate(s.Path(), 4+2*recordSize+5))

		results, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, ids(results))
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		s := axisStore(t)
		require.NoError(t, os.Truncate(s.Path(), 4+3))

		results, err := s.Search(ctx, query, 10, distance.MetricEuclidean)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("ZeroLength", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		appendRaw(t, s.Path(), append(rawVector([]float32{1, 0, 0}), rawLength(0)...))

		results, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrCorruption)
		assert.Nil(t, results)
		assert.Equal(t, 0, ffs.OpenHandles())
	})

	t.Run("ImplausibleLength", func(t *testing.T) {
		s := axisStore(t)
		appendRaw(t, s.Path(), append(rawVector([]float32{0, 1, 1}), rawLength(math.MaxUint32)...))

		_, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("LengthAboveConfiguredLimit", func(t *testing.T) {
		s := axisStore(t, WithMaxMetadataSize(8))
		payload := []byte(`{"id":4,"pad":"xx"}`)
		rec := append(rawVector([]float32{1, 0, 0}), rawLength(uint32(len(payload)))...)
		appendRaw(t, s.Path(), append(rec, payload...))

		_, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrCorruption)
	})

	t.Run("UndecodableMetadata", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		payload := []byte("not json")
		rec := append(rawVector([]float32{1, 0, 0}), rawLength(uint32(len(payload)))...)
		appendRaw(t, s.Path(), append(rec, payload...))

		results, err := s.Search(ctx, query, 4, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrCorruption)
		assert.Nil(t, results)
		assert.Equal(t, 0, ffs.OpenHandles())
	})

	t.Run("ReadFailure", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		ffs.AddRule("vectors.dat", fs.Fault{FailOnRead: true, FailAfterBytes: -1})

		_, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, fs.ErrInjected)
		assert.Equal(t, 0, ffs.OpenHandles())
	})

	t.Run("CloseFailure", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		s := axisStore(t, WithFileSystem(ffs))
		ffs.AddRule("vectors.dat", fs.Fault{FailOnClose: true, FailAfterBytes: -1})

		_, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, fs.ErrInjected)
		assert.Equal(t, 0, ffs.OpenHandles())
	})

	t.Run("MissingFile", func(t *testing.T) {
		s := axisStore(t)
		require.NoError(t, os.Remove(s.Path()))

		_, err := s.Search(ctx, query, 1, distance.MetricEuclidean)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseMetric(t *testing.T) {
	for name, want := range map[string]distance.Metric{
		"euclidean": distance.MetricEuclidean,
		" L2 ":      distance.MetricEuclidean,
		"Cosine":    distance.MetricCosine,
	} {
		m, err := ParseMetric(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m, name)
	}

	for _, name := range []string{"manhattan", ""} {
		_, err := ParseMetric(name)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, distance.ErrUnknownMetric)

		var metricErr *ErrInvalidMetric
		require.ErrorAs(t, err, &metricErr)
		assert.Equal(t, name, metricErr.Name)
		assert.Contains(t, err.Error(), fmt.Sprintf("%q", name))
	}
}

func TestSearchBatch(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(3)
	vectors := rng.UniformVectors(40, 4)
	s := newTestStore(t, 4, WithSearchConcurrency(3))
	for i, v := range vectors {
		require.NoError(t, s.AddVector(ctx, v, Metadata{"id": i}))
	}

	t.Run("ResultsFollowQueryOrder", func(t *testing.T) {
		queries := vectors[:10]
		batch, err := s.SearchBatch(ctx, queries, 3, distance.MetricEuclidean)
		require.NoError(t, err)
		require.Len(t, batch, len(queries))

		for i, results := range batch {
			require.Len(t, results, 3)
			assert.Equal(t, float64(i), results[0].Metadata["id"])
			assert.Equal(t, float32(0), results[0].Distance)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		batch, err := s.SearchBatch(ctx, nil, 3, distance.MetricCosine)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		queries := [][]float32{vectors[0], {1, 2}}
		_, err := s.SearchBatch(ctx, queries, 3, distance.MetricEuclidean)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorContains(t, err, "query 1")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.SearchBatch(cctx, vectors[:4], 3, distance.MetricCosine)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func BenchmarkSearch(b *testing.B) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	vectors := rng.UniformVectors(5000, 128)

	s, err := New(b.TempDir()+"/vectors.dat", 128)
	require.NoError(b, err)
	for i, v := range vectors {
		require.NoError(b, s.AddVector(ctx, v, Metadata{"id": i}))
	}
	query := vectors[0]

	for _, metric := range []distance.Metric{distance.MetricEuclidean, distance.MetricCosine} {
		b.Run(metric.String(), func(b *testing.B) {
			for b.Loop() {
				if _, err := s.Search(ctx, query, 10, metric); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

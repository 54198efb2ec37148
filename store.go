package vecfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/hupe1980/vecfile/internal/fs"
	"github.com/hupe1980/vecfile/internal/record"
)

// Metadata is the payload stored next to a vector. The store does not
// interpret it; it is serialized with the configured codec.
type Metadata map[string]any

// Store is a flat-file vector store of fixed dimension.
//
// A Store holds no open file handles. Every operation opens the file, uses
// it and closes it before returning, on success and on error alike.
//
// Store does no locking. Appends must not run concurrently with each other
// or with searches; concurrent searches are fine.
type Store struct {
	path   string
	dim    int
	rec    record.Codec
	opts   options
	logger *Logger
}

// New opens the store at path, creating it with a header for dimension if
// the file does not exist.
//
// An existing file must carry the same dimension in its header, otherwise
// New returns *ErrDimensionMismatch. WithSkipHeaderCheck disables that check.
// A file too short to hold a header is reported as ErrCorruption.
func New(path string, dimension int, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)
	logger := opts.logger.WithPath(path)
	ctx := context.Background()

	if dimension <= 0 || uint64(dimension) > math.MaxUint32/4 {
		err := &ErrInvalidDimension{Dimension: dimension}
		logger.LogOpen(ctx, dimension, false, err)
		return nil, err
	}

	s := &Store{
		path:   path,
		dim:    dimension,
		rec:    record.New(dimension),
		opts:   opts,
		logger: logger,
	}

	created, err := s.init()
	err = translateError(err)
	logger.LogOpen(ctx, dimension, created, err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the path of the store file.
func (s *Store) Path() string { return s.path }

// Dimension returns the vector dimension of the store.
func (s *Store) Dimension() int { return s.dim }

func (s *Store) init() (created bool, err error) {
	f, err := s.opts.fs.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		defer closeFile(f, &err)
		if _, err = f.Write(record.EncodeHeader(uint32(s.dim))); err != nil {
			return false, fmt.Errorf("write header: %w", err)
		}
		if s.opts.syncOnAppend {
			if err = f.Sync(); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return false, err
	}
	if s.opts.skipHeaderCheck {
		return false, nil
	}
	return false, s.checkHeader()
}

func (s *Store) checkHeader() (err error) {
	f, err := s.opts.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	stored, err := record.DecodeHeader(f)
	if err != nil {
		return err
	}
	if int64(stored) != int64(s.dim) {
		return &ErrDimensionMismatch{Expected: int(stored), Actual: s.dim}
	}
	return nil
}

// AddVector appends one record holding vector and meta to the store.
//
// The vector length is checked before the file is touched; on
// *ErrDimensionMismatch the file is left unchanged. The record is written
// with a single write call on a handle opened in append mode.
func (s *Store) AddVector(ctx context.Context, vector []float32, meta Metadata) (err error) {
	start := time.Now()
	size := 0
	defer func() {
		s.opts.metricsCollector.RecordAppend(size, time.Since(start), err)
		s.logger.LogAppend(ctx, size, err)
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if len(vector) != s.dim {
		return &ErrDimensionMismatch{Expected: s.dim, Actual: len(vector)}
	}

	if meta == nil {
		meta = Metadata{}
	}
	payload, err := s.opts.codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %w", ErrInvalidArgument, err)
	}
	if uint64(len(payload)) > uint64(s.opts.maxMetadataSize) {
		return fmt.Errorf("%w: metadata payload of %d bytes exceeds limit of %d",
			ErrInvalidArgument, len(payload), s.opts.maxMetadataSize)
	}

	buf, err := s.rec.Encode(vector, payload)
	if err != nil {
		return translateError(err)
	}
	size = len(buf)

	return s.append(buf)
}

func (s *Store) append(buf []byte) (err error) {
	f, err := s.opts.fs.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	n, err := f.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	if s.opts.syncOnAppend {
		return f.Sync()
	}
	return nil
}

// closeFile closes f and reports the close error through errp unless an
// earlier error is already set.
func closeFile(f fs.File, errp *error) {
	if cerr := f.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}

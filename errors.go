package vecfile

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecfile/codec"
	"github.com/hupe1980/vecfile/distance"
	"github.com/hupe1980/vecfile/internal/record"
)

var (
	// ErrInvalidArgument is returned when a caller-supplied value violates the
	// store's contract. It is detected before any file I/O takes place.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorruption is returned when the store file holds a record that cannot
	// have been written by AddVector. A search that hits it returns no results.
	ErrCorruption = errors.New("store corruption")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// It matches ErrInvalidArgument via errors.Is.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidArgument }

// ErrInvalidDimension indicates an invalid configured dimension.
//
// It matches ErrInvalidArgument via errors.Is.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return ErrInvalidArgument }

// ErrInvalidMetric indicates an unsupported distance metric.
//
// It matches both ErrInvalidArgument and distance.ErrUnknownMetric via errors.Is.
//
// Name is set when the metric came from ParseMetric.
type ErrInvalidMetric struct {
	Metric distance.Metric
	Name   string
}

func (e *ErrInvalidMetric) Error() string {
	if e.Metric.Valid() || e.Name != "" {
		return fmt.Sprintf("invalid distance metric: %q", e.Name)
	}
	return fmt.Sprintf("invalid distance metric: %v", e.Metric)
}

func (e *ErrInvalidMetric) Unwrap() []error {
	return []error{ErrInvalidArgument, distance.ErrUnknownMetric}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCorruption) || errors.Is(err, ErrInvalidArgument) {
		return err
	}

	if errors.Is(err, record.ErrCorruption) || errors.Is(err, record.ErrShortHeader) ||
		errors.Is(err, codec.ErrCorruptPayload) {
		return fmt.Errorf("%w: %w", ErrCorruption, err)
	}
	if errors.Is(err, record.ErrEmptyMetadata) || errors.Is(err, record.ErrDimensionMismatch) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}

// Package record implements the on-disk layout of a vecfile store.
//
// Layout:
//
//	[Dimension: 4 bytes, big-endian]
//	repeated:
//	  [Vector: Dimension*4 bytes, float32, native byte order]
//	  [MetaLen: 4 bytes, big-endian]
//	  [Metadata: MetaLen bytes]
//
// No record index is persisted. Readers recover record boundaries by
// decoding the file front to back.
package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the file header in bytes.
	HeaderSize = 4

	// LengthSize is the size of the metadata length prefix in bytes.
	LengthSize = 4

	// DefaultMaxMetadataSize bounds a single metadata payload (64 MiB).
	DefaultMaxMetadataSize = 64 << 20
)

var (
	// ErrEndOfStore signals a short read at a record boundary. It marks the
	// end of the readable records, possibly after a torn trailing append.
	ErrEndOfStore = errors.New("end of store")

	// ErrCorruption reports an impossible value inside a record.
	ErrCorruption = errors.New("corrupt record")

	// ErrShortHeader is returned when a file is too small to hold a header.
	ErrShortHeader = errors.New("short store header")

	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyMetadata     = errors.New("empty metadata payload")
)

// EncodeHeader returns the header bytes for a store of the given dimension.
func EncodeHeader(dim uint32) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b, dim)
	return b
}

// DecodeHeader reads the dimension stored at the start of r.
func DecodeHeader(r io.ReaderAt) (uint32, error) {
	var b [HeaderSize]byte
	n, err := r.ReadAt(b[:], 0)
	if n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return 0, ErrShortHeader
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// Codec encodes records of a fixed dimension.
type Codec struct {
	dim int
}

// New returns a codec for vectors of length dim.
func New(dim int) Codec {
	return Codec{dim: dim}
}

// Dimension returns the vector length handled by the codec.
func (c Codec) Dimension() int { return c.dim }

// VectorSize returns the encoded size of one vector in bytes.
func (c Codec) VectorSize() int { return c.dim * 4 }

// RecordSize returns the encoded size of a record carrying metaLen bytes of metadata.
func (c Codec) RecordSize(metaLen int) int64 {
	return int64(c.VectorSize()) + LengthSize + int64(metaLen)
}

// Encode serializes one record.
func (c Codec) Encode(vec []float32, meta []byte) ([]byte, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, c.dim, len(vec))
	}
	if len(meta) == 0 {
		return nil, ErrEmptyMetadata
	}
	if uint64(len(meta)) > math.MaxUint32 {
		return nil, fmt.Errorf("metadata payload too large: %d bytes", len(meta))
	}

	buf := make([]byte, c.RecordSize(len(meta)))
	off := 0
	for _, v := range vec {
		binary.NativeEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:], uint32(len(meta)))
	off += LengthSize
	copy(buf[off:], meta)

	return buf, nil
}

// Decoder reads records sequentially. It never materializes metadata
// payloads; callers record offset and length and skip past them.
type Decoder struct {
	codec   Codec
	br      *bufio.Reader
	off     int64 // absolute offset of the next unread byte
	size    int64 // file size when the scan started
	maxMeta uint32
	scratch []byte
}

// NewDecoder returns a decoder reading from r, which must be positioned at
// absolute offset start. size is the file size observed before the scan.
func (c Codec) NewDecoder(r io.Reader, start, size int64, maxMeta uint32) *Decoder {
	if maxMeta == 0 {
		maxMeta = DefaultMaxMetadataSize
	}
	bufSize := 64 * 1024
	if vs := c.VectorSize() + LengthSize; vs > bufSize {
		bufSize = vs
	}
	return &Decoder{
		codec:   c,
		br:      bufio.NewReaderSize(r, bufSize),
		off:     start,
		size:    size,
		maxMeta: maxMeta,
		scratch: make([]byte, c.VectorSize()),
	}
}

// Offset returns the absolute offset of the next unread byte.
func (d *Decoder) Offset() int64 { return d.off }

// DecodeVector reads the next vector into dst, which must have length
// Dimension. A short read returns ErrEndOfStore.
func (d *Decoder) DecodeVector(dst []float32) error {
	if len(dst) != d.codec.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, d.codec.dim, len(dst))
	}
	if err := d.readFull(d.scratch); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.NativeEndian.Uint32(d.scratch[i*4:]))
	}
	return nil
}

// DecodeMetaLength reads the next metadata length prefix and returns the
// absolute offset of the payload together with its length.
//
// A zero length or one above the configured maximum is corruption. A length
// that runs past the end of the file is a torn trailing append and yields
// ErrEndOfStore.
func (d *Decoder) DecodeMetaLength() (int64, uint32, error) {
	var b [LengthSize]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, 0, err
	}
	length := binary.BigEndian.Uint32(b[:])
	if length == 0 {
		return 0, 0, fmt.Errorf("%w: zero metadata length at offset %d", ErrCorruption, d.off-LengthSize)
	}
	if length > d.maxMeta {
		return 0, 0, fmt.Errorf("%w: metadata length %d exceeds limit %d at offset %d",
			ErrCorruption, length, d.maxMeta, d.off-LengthSize)
	}
	if int64(length) > d.size-d.off {
		return 0, 0, ErrEndOfStore
	}
	return d.off, length, nil
}

// SkipMetadata advances past a payload of the given length.
func (d *Decoder) SkipMetadata(length uint32) error {
	n, err := d.br.Discard(int(length))
	d.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEndOfStore
		}
		return err
	}
	return nil
}

func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.br, p)
	d.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrEndOfStore
		}
		return err
	}
	return nil
}

// ReadMetadata reads length bytes of metadata stored at offset.
func ReadMetadata(r io.ReaderAt, offset int64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: metadata at offset %d truncated (%d of %d bytes)",
			ErrCorruption, offset, n, length)
	}
	return nil, err
}

// Package tfrecord reads and writes TFRecord files, the framing used by
// TensorFlow input pipelines, and encodes the per-timestep training
// examples stored in them.
//
// Each record is framed as
//
//	uint64 length (little endian)
//	uint32 masked CRC-32C of the length bytes
//	length bytes of payload
//	uint32 masked CRC-32C of the payload
//
// Files may optionally be gzip-compressed as a whole.
package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
)

// GzipExtension marks a gzip-compressed record file.
const GzipExtension = ".gz"

// maxRecordSize bounds a single payload so a corrupt length cannot force a
// huge allocation.
const maxRecordSize = 64 << 20

var (
	// ErrChecksum reports a CRC mismatch in a record header or payload.
	ErrChecksum = errors.New("tfrecord checksum mismatch")

	crcTable = crc32.MakeTable(crc32.Castagnoli)
)

const crcMaskDelta = 0xa282ead8

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, crcTable)
	return ((c >> 15) | (c << 17)) + crcMaskDelta
}

// Writer appends framed records to an underlying stream.
type Writer struct {
	mu      sync.Mutex
	bw      *bufio.Writer
	gz      *gzip.Writer
	closer  io.Closer
	count   int64
	closed  bool
	scratch [12]byte
}

// NewWriter frames records onto w, gzip-compressing the stream when
// compress is set. Close flushes but does not close w.
func NewWriter(w io.Writer, compress bool) *Writer {
	tw := &Writer{}
	if compress {
		tw.gz = gzip.NewWriter(w)
		w = tw.gz
	}
	tw.bw = bufio.NewWriter(w)
	return tw
}

// Create opens path on fsys for writing. Paths ending in GzipExtension are
// compressed. Close also closes the file.
func Create(fsys fsutil.FileSystem, path string) (*Writer, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}
	w := NewWriter(f, strings.HasSuffix(path, GzipExtension))
	w.closer = f
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	binary.LittleEndian.PutUint64(w.scratch[:8], uint64(len(record)))
	binary.LittleEndian.PutUint32(w.scratch[8:], maskedCRC(w.scratch[:8]))
	if _, err := w.bw.Write(w.scratch[:]); err != nil {
		return fmt.Errorf("failed to write record header: %w", err)
	}
	if _, err := w.bw.Write(record); err != nil {
		return fmt.Errorf("failed to write record data: %w", err)
	}
	binary.LittleEndian.PutUint32(w.scratch[:4], maskedCRC(record))
	if _, err := w.bw.Write(w.scratch[:4]); err != nil {
		return fmt.Errorf("failed to write record footer: %w", err)
	}
	w.count++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered data. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.bw.Flush()
	if w.gz != nil {
		err = errors.Join(err, w.gz.Close())
	}
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}
	return err
}

// Reader iterates over the records of a stream.
type Reader struct {
	br     *bufio.Reader
	gz     *gzip.Reader
	closer io.Closer
	offset int // offset into the uncompressed stream
	header [12]byte
	footer [4]byte
}

// NewReader reads records from r, which is gzip-compressed if compressed is
// set.
func NewReader(r io.Reader, compressed bool) (*Reader, error) {
	tr := &Reader{}
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		tr.gz = gz
		r = gz
	}
	tr.br = bufio.NewReader(r)
	return tr, nil
}

// Open opens a record file written by Create.
func Open(fsys fsutil.FileSystem, path string) (*Reader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, strings.HasSuffix(path, GzipExtension))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Next returns the next record. It returns io.EOF after the last complete
// record. A stream that ends inside a record, or fails a checksum, yields a
// *qwop.DecodeError.
func (r *Reader) Next() ([]byte, error) {
	start := r.offset
	n, err := io.ReadFull(r.br, r.header[:])
	r.offset += n
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.decodeError(start, err)
	}

	if maskedCRC(r.header[:8]) != binary.LittleEndian.Uint32(r.header[8:]) {
		return nil, r.decodeError(start, fmt.Errorf("length: %w", ErrChecksum))
	}
	size := binary.LittleEndian.Uint64(r.header[:8])
	if size > maxRecordSize {
		return nil, r.decodeError(start, fmt.Errorf("record length %d exceeds %d", size, maxRecordSize))
	}

	record := make([]byte, size)
	n, err = io.ReadFull(r.br, record)
	r.offset += n
	if err != nil {
		return nil, r.decodeError(start, err)
	}
	n, err = io.ReadFull(r.br, r.footer[:])
	r.offset += n
	if err != nil {
		return nil, r.decodeError(start, err)
	}
	if maskedCRC(record) != binary.LittleEndian.Uint32(r.footer[:]) {
		return nil, r.decodeError(start, fmt.Errorf("payload: %w", ErrChecksum))
	}
	return record, nil
}

func (r *Reader) decodeError(offset int, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &qwop.DecodeError{Offset: offset, Err: err}
}

// Close releases the reader and any file opened by Open.
func (r *Reader) Close() error {
	var err error
	if r.gz != nil {
		err = r.gz.Close()
	}
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	return err
}

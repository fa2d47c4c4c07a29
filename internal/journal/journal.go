// Package journal persists exported write batches as an append-only file so
// they can be shipped elsewhere and replayed.
package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"widekv/internal/batch"
	"widekv/internal/common"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("journal: log is closed")

// maxRecordSize bounds a single record so a corrupt length cannot trigger a
// huge allocation.
const maxRecordSize = 1 << 30

// FileLog appends batches to a single file on disk.
//
// Record format: dataLen(varint) + xxhash64(data)(8) + data, where data is
// exactly WriteBatch.Data().
type FileLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var _ Log = (*FileLog)(nil)

// Open creates (or reopens) a journal file at path.
func Open(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLog{
		file: f,
		path: path,
	}, nil
}

// Path returns the file backing the journal.
func (l *FileLog) Path() string {
	return l.path
}

// Close releases the underlying file handle.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Append persists the provided batches in order and syncs once.
func (l *FileLog) Append(ctx context.Context, batches ...*batch.WriteBatch) error {
	if len(batches) == 0 {
		return nil
	}
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	w := bufio.NewWriter(l.file)
	var varintBuf [binary.MaxVarintLen64]byte
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := b.Data()
		n := binary.PutUvarint(varintBuf[:], uint64(len(data)))
		if _, err := w.Write(varintBuf[:n]); err != nil {
			return err
		}
		if _, err := common.WriteUint64(w, xxhash.Sum64(data)); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	common.LogDuration(common.Journal, start, "appended %d batches to %s", len(batches), l.path)
	return nil
}

// Iterator returns a forward-only reader over all journaled batches.
func (l *FileLog) Iterator(ctx context.Context) (LogIterator, error) {
	return OpenIterator(ctx, l.path)
}

// OpenIterator reads a journal file without opening it for writing.
func OpenIterator(ctx context.Context, path string) (LogIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileIterator{
		ctx: ctx,
		f:   f,
		br:  bufio.NewReader(f),
	}, nil
}

type fileIterator struct {
	ctx   context.Context
	f     *os.File
	br    *bufio.Reader
	index int
}

// Next returns the next batch. A record cut short at the end of the file is
// treated as the end of the journal, as left behind by a crash mid-append.
func (it *fileIterator) Next() (*batch.WriteBatch, bool, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, false, err
	}

	size, err := binary.ReadUvarint(it.br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if size > maxRecordSize {
		return nil, false, errors.Wrapf(common.ErrCorrupt, "journal: record %d claims %d bytes", it.index, size)
	}

	sum, err := common.ReadUint64(it.br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, nil
		}
		return nil, false, err
	}

	data, err := common.ReadBytes(it.br, size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if xxhash.Sum64(data) != sum {
		return nil, false, errors.Wrapf(common.ErrCorrupt, "journal: checksum mismatch in record %d", it.index)
	}

	b, err := batch.FromData(data)
	if err != nil {
		return nil, false, errors.Wrapf(err, "journal: record %d", it.index)
	}
	it.index++
	return b, true, nil
}

func (it *fileIterator) Close() error {
	return it.f.Close()
}
